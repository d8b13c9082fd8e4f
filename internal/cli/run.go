package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/storysync/internal/app"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch connectivity and sync the queue on reconnect",
		Long: `Run in the foreground, probing the API and sending queued stories every
time it becomes reachable. Queued stories left from earlier sessions are sent
at start when the API is up.

Example:
  story run --verbose
  STORY_PROBE_INTERVAL=10s story run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, runSyncer)
		},
	}
}

func runSyncer(parent context.Context, a *app.App, out *OutputFormatter) error {
	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			out.VerboseLog("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	unsubscribe := a.Monitor().Subscribe(func(online bool) {
		out.Notice("Now %s.", onlineWord(online))
	})
	defer unsubscribe()

	out.Notice("Syncing with %s. Press Ctrl-C to stop.", a.Config().APIURL)

	if err := a.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "syncer error", err)
	}

	out.Notice("Stopped.")
	return nil
}

