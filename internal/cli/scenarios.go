package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/storysync/internal/harness"
)

// ScenariosOptions holds flags for the scenarios command.
type ScenariosOptions struct {
	*RootOptions
	Filter string // glob on the file name without extension
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenarios <dir>",
		Short: "Run scripted offline-sync scenarios",
		Long: `Run YAML sync scenarios against an in-memory store and a scripted API.

Each scenario drives the sync coordinator through submits, connectivity
changes and drains, then checks the trace and the final queue. No network
or local database is touched.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)`,
		Example: `  story scenarios ./scenarios
  story scenarios ./scenarios --filter "offline_*" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenariosOptions, dir string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	paths, err := harness.FindScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	result, err := harness.RunFiles(cmd.Context(), paths)
	if err != nil {
		return WrapExitError(ExitFailure, "scenario run interrupted", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if err := out.Success(result, renderSuite(result)); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.TotalScenarios))
	}
	return nil
}

func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func renderSuite(result *harness.SuiteResult) string {
	if result.TotalScenarios == 0 {
		return "No scenarios found.\n"
	}

	var b strings.Builder
	failures := make(map[string]string, len(result.Failures))
	for _, f := range result.Failures {
		failures[f.ScenarioPath] = f.Error
	}
	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.ScenarioPath)
		}
		if s.Pass {
			fmt.Fprintf(&b, "✓ %s\n", name)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n  %s\n", name, failures[s.ScenarioPath])
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed\n", result.Passed, result.Failed)
	return b.String()
}
