package cli

import (
	"context"
	"errors"
	"io"
)

// Main runs the CLI with args and returns the process exit code. Errors are
// reported on stderr in the selected output format.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := root.PersistentFlags().GetString("format")
	if format != "json" {
		format = "text"
	}
	out := &OutputFormatter{Format: format, Writer: stderr}
	_ = out.Error(ErrorCode(err), err.Error(), nil)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	// Anything cobra itself rejected (unknown flag, missing argument) is a
	// usage problem.
	return ExitCommandError
}
