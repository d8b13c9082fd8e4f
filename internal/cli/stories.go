package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storysync/internal/app"
	"github.com/roach88/storysync/internal/store"
	"github.com/roach88/storysync/internal/story"
)

// dateLayout is accepted by --from/--to besides RFC 3339.
const dateLayout = "2006-01-02"

// StoryInputOptions holds the flags that describe a submission.
type StoryInputOptions struct {
	*RootOptions
	Description string
	PhotoPath   string
	Lat         float64
	Lon         float64
}

func addStoryInputFlags(cmd *cobra.Command, opts *StoryInputOptions) {
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "story text (required)")
	cmd.Flags().StringVar(&opts.PhotoPath, "photo", "", "path to a JPEG or PNG photo, at most 1 MB")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "longitude")
	_ = cmd.MarkFlagRequired("description")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

// buildSubmission turns flags into a submission. Coordinates are only set
// when given on the command line, so 0,0 stays expressible.
func buildSubmission(cmd *cobra.Command, opts *StoryInputOptions) (story.Submission, error) {
	sub := story.Submission{Description: opts.Description}

	if opts.PhotoPath != "" {
		photo, err := readPhoto(opts.PhotoPath)
		if err != nil {
			return story.Submission{}, WrapExitError(ExitCommandError, "cannot read photo", err)
		}
		sub.Photo = photo
	}
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		sub.Lat = story.Float(opts.Lat)
		sub.Lon = story.Float(opts.Lon)
	}
	return sub, nil
}

func readPhoto(path string) (*story.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Read one byte past the limit so oversize files are reported, not truncated.
	data, err := io.ReadAll(io.LimitReader(f, story.MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	return &story.Photo{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoryInputOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Share a story, or queue it when offline",
		Long: `Share a story.

When the API is reachable the story is sent immediately. When it is not, or
the send fails, the story is saved to the offline queue and sent by the next
"story sync" or by a running "story run".`,
		Example: `  story submit -d "Sunset at the beach" --photo sunset.jpg --lat -8.72 --lon 115.17
  story submit -d "Written on the train" --offline`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := buildSubmission(cmd, opts)
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				res, err := app.Execute(ctx, a, app.SubmitStory{Submission: sub})
				if err != nil {
					return commandFailed("submit failed", err)
				}

				data := map[string]any{"outcome": res.Outcome.String()}
				if res.Record != nil {
					data["story"] = res.Record
				}
				if res.Pending != nil {
					data["localId"] = res.Pending.LocalID
				}
				return out.Success(data, "")
			})
		},
	}

	addStoryInputFlags(cmd, opts)
	return cmd
}

// RefreshOptions holds flags for the refresh command.
type RefreshOptions struct {
	*RootOptions
	Page         int
	Size         int
	WithLocation bool
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RefreshOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "refresh",
		Short:         "Fetch stories from the API into the local cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				res, err := app.Execute(ctx, a, app.RefreshStories{Page: opts.Page, Size: opts.Size, WithLocation: opts.WithLocation})
				if err != nil {
					return commandFailed("refresh failed", err)
				}
				return out.Success(res, fmt.Sprintf("Fetched %d %s.\n", res.Fetched, plural(res.Fetched, "story", "stories")))
			})
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Size, "size", 20, "stories per page")
	cmd.Flags().BoolVar(&opts.WithLocation, "location", false, "only stories with a location")
	return cmd
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Query     string
	From      string
	To        string
	Sort      string
	Ascending bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached stories",
		Long: `List stories from the local cache. Works offline.

--query matches name or description, ignoring case. --from and --to take a
date (YYYY-MM-DD) or an RFC 3339 timestamp; a date in --to includes that
whole day. Results are newest first unless --sort or --asc say otherwise.`,
		Example: `  story list --query park --sort name --asc
  story list --from 2024-05-01 --to 2024-05-31`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.query()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid list options", err)
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				records, err := app.Execute(ctx, a, q)
				if err != nil {
					return commandFailed("list failed", err)
				}
				return out.Success(records, renderRecords(records))
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "search name and description")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest creation date")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest creation date")
	cmd.Flags().StringVar(&opts.Sort, "sort", "createdAt", "sort field (createdAt|name|description|id)")
	cmd.Flags().BoolVar(&opts.Ascending, "asc", false, "ascending order")
	return cmd
}

func (o *ListOptions) query() (app.ListStories, error) {
	field, err := store.ParseSortField(o.Sort)
	if err != nil {
		return app.ListStories{}, err
	}
	from, err := parseDate(o.From, false)
	if err != nil {
		return app.ListStories{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseDate(o.To, true)
	if err != nil {
		return app.ListStories{}, fmt.Errorf("--to: %w", err)
	}
	return app.ListStories{Query: o.Query, From: from, To: to, SortBy: field, Ascending: o.Ascending}, nil
}

// parseDate accepts RFC 3339 or a bare date. A bare date used as an upper
// bound means the end of that day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// renderRecords formats stories as an aligned table.
func renderRecords(records []story.Record) string {
	if len(records) == 0 {
		return "No stories cached. Run \"story refresh\" while online.\n"
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAME\tDESCRIPTION")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04"), r.Name, truncate(r.Description, 48))
	}
	tw.Flush()
	return b.String()
}

func renderRecord(v app.StoryView) string {
	r := v.Record
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", r.Name)
	fmt.Fprintf(tw, "Created:\t%s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	if r.HasLocation() {
		fmt.Fprintf(tw, "Location:\t%g, %g\n", *r.Lat, *r.Lon)
	}
	if r.PhotoURL != "" {
		fmt.Fprintf(tw, "Photo:\t%s\n", r.PhotoURL)
	}
	fmt.Fprintf(tw, "Source:\t%s\n", v.Source)
	tw.Flush()
	fmt.Fprintf(&b, "\n%s\n", r.Description)
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <story-id>",
		Short:         "Show one story, from the API or the cache",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				view, err := app.Execute(ctx, a, app.ShowStory{ID: args[0]})
				if err != nil {
					return commandFailed("show failed", err)
				}
				if !view.Found {
					return NewExitError(ExitFailure, fmt.Sprintf("story %s not found", args[0]))
				}
				return out.Success(view, renderRecord(view))
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoryInputOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "update <story-id>",
		Short:         "Replace a story you posted (online only)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := buildSubmission(cmd, opts)
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				rec, err := app.Execute(ctx, a, app.UpdateStory{ID: args[0], Submission: sub})
				if err != nil {
					return commandFailed("update failed", err)
				}
				return out.Success(rec, fmt.Sprintf("Updated %s.\n", rec.ID))
			})
		},
	}

	addStoryInputFlags(cmd, opts)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <story-id>",
		Short:         "Delete a story you posted (online only)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := app.Execute(ctx, a, app.DeleteStory{ID: args[0]}); err != nil {
					return commandFailed("delete failed", err)
				}
				return out.Success(map[string]string{"deleted": args[0]}, fmt.Sprintf("Deleted %s.\n", args[0]))
			})
		},
	}
}
