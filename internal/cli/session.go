package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/storysync/internal/app"
	"github.com/roach88/storysync/internal/config"
	"github.com/roach88/storysync/internal/syncer"
	"github.com/roach88/storysync/internal/telemetry"
)

// configEnv names the environment variable holding the config file path.
const configEnv = config.EnvPrefix + "CONFIG"

// resolveConfig loads configuration and applies the global flags on top.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	cfg, err := config.Load(config.LoadOptions{File: path, DotEnv: []string{".env"}})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = opts.DBPath
	}
	if flags.Changed("api") {
		cfg.APIURL = strings.TrimRight(opts.APIURL, "/")
	}
	if flags.Changed("offline") {
		cfg.Offline = opts.Offline
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so they never mix
// with command output.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = lvl > zapcore.DebugLevel
	return zc.Build()
}

// withApp resolves config, builds the app, runs fn and tears everything
// down. Sync notices are printed as they happen.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App, out *OutputFormatter) error) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	defer func() { _ = logger.Sync() }()

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Trace {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: cmd.Root().Name(),
			Writer:      cmd.ErrOrStderr(),
		})
		if err != nil {
			return WrapExitError(ExitFailure, "failed to start tracing", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("trace shutdown failed", zap.Error(err))
			}
		}()
	}

	a, err := app.New(ctx, cfg,
		app.WithLogger(logger),
		app.WithNotifier(syncer.NotifierFunc(func(n syncer.Notice) { printNotice(out, n) })),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing store", zap.Error(closeErr))
		}
	}()

	out.VerboseLog("api %s (%s), db %s", cfg.APIURL, onlineWord(a.Online()), cfg.DBPath)
	return fn(ctx, a, out)
}

// printNotice renders the user-visible sync messages.
func printNotice(out *OutputFormatter, n syncer.Notice) {
	switch n := n.(type) {
	case syncer.NoticeSent:
		out.Notice("Story shared.")
	case syncer.NoticeQueued:
		out.Notice("Saved offline, will sync when connected (%s).", n.Pending.LocalID)
	case syncer.NoticeSynced:
		out.Notice("%d offline %s synced!", n.Count, plural(n.Count, "story", "stories"))
	}
}

func onlineWord(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
