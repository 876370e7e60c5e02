package signal

import (
	"regexp"
	"strings"
)

// Materialization summarises the optimizer's document-wide
// materialized-view selection report.
type Materialization struct {
	Chosen    []string                 `json:"chosen"`
	NotChosen []string                 `json:"notChosen"`
	Failures  []MaterializationFailure `json:"failures"`
}

// MaterializationFailure is one rejected materialization, with the
// reason when a FailInfo line directly followed the fail line.
type MaterializationFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

var (
	matNotChoseRe = regexp.MustCompile(`^(?:RBO|CBO)\.(.+?)\s+not\s+chose\b`)
	matChoseRe    = regexp.MustCompile(`^(?:RBO|CBO)\.(.+?)\s+chose\b`)
	matFailRe     = regexp.MustCompile(`^(?:RBO|CBO)\.(.+?)\s+fail\b`)
	matFailInfoRe = regexp.MustCompile(`^FailInfo:\s*(.*)$`)
)

// ScanMaterialization extracts the materialization summary block from
// raw dump text. The scan only runs when the MATERIALIZATION token is
// present; it returns nil when no summary lines were found at all.
func ScanMaterialization(rawText string) *Materialization {
	if !strings.Contains(rawText, "MATERIALIZATION") {
		return nil
	}

	mat := &Materialization{}
	seenChosen := map[string]struct{}{}
	seenNotChosen := map[string]struct{}{}
	found := false
	// Index into Failures awaiting a FailInfo reason; any unrelated or
	// blank line clears it so a reason is never misattributed.
	pendingFail := -1

	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)

		if m := matFailInfoRe.FindStringSubmatch(line); m != nil && pendingFail >= 0 {
			mat.Failures[pendingFail].Reason = strings.TrimSpace(m[1])
			pendingFail = -1
			continue
		}
		pendingFail = -1

		if m := matNotChoseRe.FindStringSubmatch(line); m != nil {
			name := normalizeName(m[1])
			if _, ok := seenNotChosen[name]; !ok {
				seenNotChosen[name] = struct{}{}
				mat.NotChosen = append(mat.NotChosen, name)
			}
			found = true
			continue
		}
		if m := matChoseRe.FindStringSubmatch(line); m != nil {
			name := normalizeName(m[1])
			if _, ok := seenChosen[name]; !ok {
				seenChosen[name] = struct{}{}
				mat.Chosen = append(mat.Chosen, name)
			}
			found = true
			continue
		}
		if m := matFailRe.FindStringSubmatch(line); m != nil {
			mat.Failures = append(mat.Failures, MaterializationFailure{Name: normalizeName(m[1])})
			pendingFail = len(mat.Failures) - 1
			found = true
			continue
		}
	}

	if !found {
		return nil
	}
	return mat
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
