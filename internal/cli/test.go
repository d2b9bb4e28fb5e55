package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob over scenario file names, without extension
	Golden string // golden file directory
}

// ScenarioResult is the verdict for one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult aggregates a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against a fresh in-memory registry.

Each scenario's expectations and assertions are checked, and its journal is
replayed to verify determinism. With --golden, traces are also compared
against <golden-dir>/<scenario-name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  poe test ./scenarios
  poe test ./scenarios --filter "claim_*"
  poe test ./scenarios --golden ./golden --update
  poe test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := scenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := opts.runScenario(file)
		out.VerboseLog("ran %s: pass=%t", file, sr.Pass)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	text := func(w io.Writer) { writeTestText(w, result) }
	if result.Failed > 0 {
		if opts.Format != "json" {
			text(out.Writer)
		}
		return out.Fail(ExitFailure, "E_TEST_FAILED",
			fmt.Sprintf("%d scenario(s) failed", result.Failed), result, nil)
	}
	return out.Success(result, text)
}

// scenarioFiles walks dir for .yaml/.yml files whose base name matches filter.
func scenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (o *TestOptions) runScenario(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	sr := ScenarioResult{Name: scenario.Name}
	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	sr.Errors = append(sr.Errors, result.Errors...)
	if o.Golden != "" {
		if err := o.golden(scenario, result); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
		}
	}
	sr.Pass = len(sr.Errors) == 0
	return sr
}

// golden compares the scenario's canonical trace with <Golden>/<name>.golden,
// or rewrites that file under --update.
func (o *TestOptions) golden(scenario *harness.Scenario, result *harness.Result) error {
	snapshot := harness.NewTraceSnapshot(scenario, result)
	current, err := snapshot.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	path := filepath.Join(o.Golden, scenario.Name+".golden")
	if o.Update {
		if err := os.MkdirAll(o.Golden, 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		return os.WriteFile(path, current, 0o644)
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, current) {
		return fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return nil
}

func writeTestText(w io.Writer, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
