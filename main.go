package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/mizuha/fragplan/internal/config"
	"github.com/mizuha/fragplan/internal/diff"
	"github.com/mizuha/fragplan/internal/graph"
	"github.com/mizuha/fragplan/internal/insight"
	"github.com/mizuha/fragplan/internal/model"
	"github.com/mizuha/fragplan/internal/parser"
	"github.com/mizuha/fragplan/internal/runner"
	"github.com/mizuha/fragplan/internal/signal"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "parse":
		err = parseCommand(args)
	case "graph":
		err = graphCommand(args)
	case "signals":
		err = signalsCommand(args)
	case "insights":
		err = insightsCommand(args)
	case "diff":
		err = diffCommand(args)
	case "fetch":
		err = fetchCommand(args)
	case "version":
		err = versionCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`fragplan - execution-plan dump inspector for distributed SQL engines

Usage:
  fragplan <command> [options]

Commands:
  parse    Parse a plan dump into the flat node model (JSON)
  graph    Build the fragment data-flow graph from a dump (JSON)
  signals  Derive optimization signals from a dump (JSON)
  insights Print advisory messages derived from a dump
  diff     Compare two dumps and emit a Markdown or JSON summary
  fetch    Run EXPLAIN against a live engine and save the dump text
  version  Show CLI version information

Use "fragplan <command> -h" for command-specific help.`)
}

func applyConfigPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("FRAGPLAN_CONFIG"))
	}
	return config.Apply(path)
}

// readDump loads the dump text from a file, or stdin for "-"/empty.
func readDump(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return writeOutput(path, append(payload, '\n'))
}

func parseCommand(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan parse --input dump.txt [--fragment n] [--out result.json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Path to the dump text (stdin if omitted)")
		outPath    = fs.String("out", "", "Output path (stdout if omitted)")
		fragment   = fs.Int("fragment", -1, "Restrict output to one fragment, with depth renormalized")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $FRAGPLAN_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}

	raw, err := readDump(*input)
	if err != nil {
		return err
	}
	result, err := parser.Parse(raw)
	if err != nil {
		return err
	}
	if *fragment >= 0 {
		result = &model.ParseResult{
			Format:    result.Format,
			RawText:   result.RawText,
			Fragments: result.Fragments,
			Nodes:     parser.SelectNodesByFragment(result.Nodes, fragment),
			Warnings:  result.Warnings,
		}
	}
	return writeJSON(*outPath, result)
}

func graphCommand(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan graph --input dump.txt [--out graph.json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Path to the dump text (stdin if omitted)")
		outPath    = fs.String("out", "", "Output path (stdout if omitted)")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $FRAGPLAN_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}

	result, err := parseInput(*input)
	if err != nil {
		return err
	}
	return writeJSON(*outPath, graph.Build(result))
}

func signalsCommand(args []string) error {
	fs := flag.NewFlagSet("signals", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan signals --input dump.txt [--out signals.json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Path to the dump text (stdin if omitted)")
		outPath    = fs.String("out", "", "Output path (stdout if omitted)")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $FRAGPLAN_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}

	result, err := parseInput(*input)
	if err != nil {
		return err
	}
	return writeJSON(*outPath, signal.Analyze(result))
}

func insightsCommand(args []string) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan insights --input dump.txt [--format text|json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Path to the dump text (stdin if omitted)")
		outPath    = fs.String("out", "", "Output path (stdout if omitted)")
		format     = fs.String("format", "text", "Output format: text or json")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $FRAGPLAN_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}

	result, err := parseInput(*input)
	if err != nil {
		return err
	}
	messages := insight.BuildMessages(graph.Build(result), signal.Analyze(result))

	switch *format {
	case "json":
		return writeJSON(*outPath, messages)
	case "text":
		var b strings.Builder
		if len(messages) == 0 {
			b.WriteString("No insights.\n")
		}
		for _, msg := range messages {
			_, _ = fmt.Fprintf(&b, "[%s] %s\n", msg.Severity, msg.Text)
		}
		return writeOutput(*outPath, []byte(b.String()))
	default:
		return fmt.Errorf("unknown format %q (expected text or json)", *format)
	}
}

func diffCommand(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan diff --base base.txt --target target.txt [--format md]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		basePath   = fs.String("base", "", "Path to the baseline dump")
		targetPath = fs.String("target", "", "Path to the target dump")
		format     = fs.String("format", "md", "Output format: md or json")
		outPath    = fs.String("out", "", "Output path (stdout if omitted)")
		maxItems   = fs.Int("limit", 0, "Maximum changed fragments to report (default from config)")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $FRAGPLAN_CONFIG")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}
	if *basePath == "" || *targetPath == "" {
		return fmt.Errorf("--base and --target are required")
	}

	base, err := parseInput(*basePath)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	target, err := parseInput(*targetPath)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}

	report, err := diff.Compare(base, target, diff.Options{MaxItems: *maxItems})
	if err != nil {
		return err
	}

	switch *format {
	case "md", "markdown":
		return writeOutput(*outPath, []byte(report.Markdown()))
	case "json":
		payload, err := report.JSON()
		if err != nil {
			return err
		}
		return writeOutput(*outPath, append(payload, '\n'))
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func fetchCommand(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan fetch --dsn <dsn> (--sql file.sql | --query \"SELECT ...\") [--out dump.txt]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	envDSN := os.Getenv("FRAGPLAN_DSN")

	var (
		dsnFlag   = fs.String("dsn", envDSN, "MySQL-protocol connection string; defaults to $FRAGPLAN_DSN")
		sqlPath   = fs.String("sql", "", "Path to the SQL file to EXPLAIN")
		inlineSQL = fs.String("query", "", "Inline SQL string to EXPLAIN")
		outPath   = fs.String("out", "", "Path to write the dump text (stdout if omitted)")
		verbose   = fs.Bool("verbose", false, "Use EXPLAIN VERBOSE and log fetch diagnostics")
		timeout   = fs.Duration("timeout", 0, "Optional execution timeout, e.g. 45s")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}

	dsn := strings.TrimSpace(*dsnFlag)
	if dsn == "" {
		return fmt.Errorf("--dsn is required or set $FRAGPLAN_DSN")
	}
	if *sqlPath != "" && *inlineSQL != "" {
		return fmt.Errorf("specify only one of --sql or --query")
	}

	var sqlText string
	switch {
	case *sqlPath != "":
		data, err := os.ReadFile(*sqlPath)
		if err != nil {
			return fmt.Errorf("read sql file: %w", err)
		}
		sqlText = string(data)
	case *inlineSQL != "":
		sqlText = *inlineSQL
	default:
		return fmt.Errorf("--sql or --query is required")
	}

	logger := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() {
			_ = dev.Sync()
		}()
		logger = dev
	}

	dump, err := runner.Run(context.Background(), dsn, sqlText, runner.Options{
		Timeout: *timeout,
		Verbose: *verbose,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	return writeOutput(*outPath, []byte(dump))
}

func versionCommand(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: fragplan version [--short]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	short := fs.Bool("short", false, "Print only the version number")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}

	v, meta := resolveVersion()
	if *short {
		fmt.Println(v)
		return nil
	}
	if meta != "" {
		fmt.Printf("fragplan %s (%s)\n", v, meta)
	} else {
		fmt.Printf("fragplan %s\n", v)
	}
	return nil
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		short := commit
		if len(short) > 12 {
			short = short[:12]
		}
		if dirty {
			short += "*"
			dirty = false
		}
		details = append(details, fmt.Sprintf("commit %s", short))
	}
	if buildTime != "" {
		details = append(details, fmt.Sprintf("built %s", buildTime))
	}
	if dirty {
		details = append(details, "modified workspace")
	}

	return v, strings.Join(details, ", ")
}

func parseInput(path string) (*model.ParseResult, error) {
	raw, err := readDump(path)
	if err != nil {
		return nil, err
	}
	return parser.Parse(raw)
}
