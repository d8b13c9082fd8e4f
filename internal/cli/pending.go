package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/storysync/internal/app"
	"github.com/roach88/storysync/internal/story"
)

// NewPendingCommand creates the pending command group.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and maintain the offline queue",
	}

	cmd.AddCommand(newPendingListCommand(rootOpts))
	cmd.AddCommand(newPendingDeleteCommand(rootOpts))
	cmd.AddCommand(newPendingPruneCommand(rootOpts))
	return cmd
}

// pendingView is the JSON shape of a queue entry. The photo itself is
// omitted; only its name and size are shown.
type pendingView struct {
	LocalID     string   `json:"localId"`
	Seq         int64    `json:"seq"`
	Description string   `json:"description"`
	Photo       string   `json:"photo,omitempty"`
	PhotoBytes  int      `json:"photoBytes,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	Synced      bool     `json:"synced"`
}

func toPendingViews(entries []story.Pending) []pendingView {
	views := make([]pendingView, len(entries))
	for i, p := range entries {
		v := pendingView{
			LocalID:     p.LocalID,
			Seq:         p.Seq,
			Description: p.Description,
			Lat:         p.Lat,
			Lon:         p.Lon,
			CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Synced:      p.Synced,
		}
		if p.Photo != nil {
			v.Photo = p.Photo.Name
			v.PhotoBytes = len(p.Photo.Data)
		}
		views[i] = v
	}
	return views
}

func renderPending(entries []story.Pending) string {
	if len(entries) == 0 {
		return "Offline queue is empty.\n"
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tLOCAL ID\tCREATED\tSTATE\tDESCRIPTION")
	for _, p := range entries {
		state := "pending"
		if p.Synced {
			state = "synced"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.Seq, p.LocalID, p.CreatedAt.UTC().Format("2006-01-02 15:04"), state, truncate(p.Description, 40))
	}
	tw.Flush()
	return b.String()
}

func newPendingListCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List queued stories, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				entries, err := app.Execute(ctx, a, app.ListPending{IncludeSynced: all})
				if err != nil {
					return commandFailed("listing queue failed", err)
				}
				return out.Success(toPendingViews(entries), renderPending(entries))
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include entries already synced")
	return cmd
}

func newPendingDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <local-id>",
		Short:         "Drop a queued story without sending it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := app.Execute(ctx, a, app.DeletePending{LocalID: args[0]}); err != nil {
					return commandFailed("delete failed", err)
				}
				return out.Success(map[string]string{"deleted": args[0]}, fmt.Sprintf("Removed %s from the queue.\n", args[0]))
			})
		},
	}
}

func newPendingPruneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "prune",
		Short:         "Delete queue entries the server already confirmed",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				n, err := app.Execute(ctx, a, app.PrunePending{})
				if err != nil {
					return commandFailed("prune failed", err)
				}
				return out.Success(map[string]int64{"pruned": n}, fmt.Sprintf("Pruned %d synced %s.\n", n, plural(int(n), "entry", "entries")))
			})
		},
	}
}
