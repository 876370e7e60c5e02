// Package test provides helpers for loading sample dumps in tests.
package test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mizuha/fragplan/internal/model"
	"github.com/mizuha/fragplan/internal/parser"
)

var (
	rootOnce sync.Once
	rootDir  string
	rootErr  error
)

// RootPath returns the repository root, located by walking up to go.mod.
func RootPath(t *testing.T) string {
	t.Helper()
	rootOnce.Do(func() {
		dir, err := os.Getwd()
		if err != nil {
			rootErr = err
			return
		}
		for {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				rootDir = dir
				return
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				rootErr = os.ErrNotExist
				return
			}
			dir = parent
		}
	})
	if rootErr != nil {
		t.Fatalf("locate repository root: %v", rootErr)
	}
	return rootDir
}

// LoadSample reads a fixture relative to the repository root.
func LoadSample(t *testing.T, rel string) string {
	t.Helper()
	path := filepath.Join(RootPath(t), rel)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample %s: %v", rel, err)
	}
	return string(data)
}

// ParseSample loads and parses a fixture, failing the test on error.
func ParseSample(t *testing.T, rel string) *model.ParseResult {
	t.Helper()
	result, err := parser.Parse(LoadSample(t, rel))
	if err != nil {
		t.Fatalf("parse sample %s: %v", rel, err)
	}
	return result
}
