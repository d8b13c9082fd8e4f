package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/storysync/internal/app"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued stories now",
		Long: `Send every queued story to the API, oldest first.

A story that fails stays queued and is retried next time; one failure does
not stop the rest. Exit status is 0 even when some stories failed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				report, err := app.Execute(ctx, a, app.SyncNow{})
				if err != nil {
					return commandFailed("sync failed", err)
				}
				text := fmt.Sprintf("Synced %d of %d.", report.Synced, report.Attempted)
				if left := report.Failed + report.Unmarked; left > 0 {
					text += fmt.Sprintf(" %d still queued.", left)
				}
				if report.Pruned > 0 {
					text += fmt.Sprintf(" Pruned %d.", report.Pruned)
				}
				return out.Success(report, text+"\n")
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show connectivity, session and queue state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				st, err := app.Execute(ctx, a, app.Status{})
				if err != nil {
					return commandFailed("status failed", err)
				}
				user := st.User
				if user == "" {
					user = "(guest)"
				}
				text := fmt.Sprintf("API:      %s (%s)\nDatabase: %s\nUser:     %s\nQueued:   %d\nCached:   %d\n",
					st.APIURL, onlineWord(st.Online), st.Database, user, st.Pending, st.Cached)
				return out.Success(st, text)
			})
		},
	}
}
