package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/rmcloud-upload/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagDevice     string
	flagName       string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
	flagNoHistory  bool
)

// httpClientTimeout is the HTTP timeout used when the config leaves it unset.
const httpClientTimeout = 30 * time.Second

// Log formats accepted by logging.log_format.
const (
	logFormatAuto = "auto"
	logFormatText = "text"
	logFormatJSON = "json"
)

// skipConfigCommands lists commands that never read the device config, so
// they work before the first device token is configured.
var skipConfigCommands = map[string]bool{
	"rmcloud-upload history":     true,
	"rmcloud-upload config path": true,
}

// CLIFlags is the parsed flag set passed to command handlers.
type CLIFlags struct {
	ConfigPath string
	Device     string
	Name       string
	JSON       bool
	Quiet      bool
	Debug      bool
	NoHistory  bool
}

// CLIContext carries everything a command handler needs. It is attached to
// the command context by the root pre-run.
type CLIContext struct {
	Flags  CLIFlags
	Env    config.EnvOverrides
	Store  *config.Store // nil for skipConfigCommands
	Logger *slog.Logger
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. A missing
// context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("BUG: CLIContext not set; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rmcloud-upload [flags] <file>",
		Short: "Upload a document to the reMarkable cloud",
		Long: `Upload one local file to the reMarkable cloud document storage.

Device tokens are read from ~/.reMarkable2/reMarkable2.yaml (override with
--config or RMCLOUD_CONFIG). The first run creates that file with a
placeholder token and exits; edit it and run again.`,
		Version: version,
		Args:    cobra.ExactArgs(1),
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadCLIContext(cmd)
		},
		RunE: runUpload,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show informational log messages")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging and keep a copy of the uploaded bundle")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress status output and all but error logs")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.Flags().StringVarP(&flagDevice, "device", "d", "", "target device name (default from config)")
	cmd.Flags().StringVarP(&flagName, "name", "n", "", "visible name in the cloud (default: file name)")
	cmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "do not record this upload in the local history")

	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext loads the device config (unless the command skips it),
// builds the final logger and attaches a CLIContext to the command.
func loadCLIContext(cmd *cobra.Command) error {
	cc := &CLIContext{
		Flags: CLIFlags{
			ConfigPath: flagConfigPath,
			Device:     flagDevice,
			Name:       flagName,
			JSON:       flagJSON,
			Quiet:      flagQuiet,
			Debug:      flagDebug,
			NoHistory:  flagNoHistory,
		},
		Env:    config.ReadEnvOverrides(),
		Logger: bootstrapLogger(),
	}

	if !skipConfigCommands[cmd.CommandPath()] {
		path := config.ResolveConfigPath(cc.Flags.ConfigPath, cc.Env)

		store, err := config.Open(path, cc.Logger)
		if err != nil {
			return err
		}

		logging := store.Logging()
		cc.Store = store
		cc.Logger = buildLogger(&logging)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

	return nil
}

// defaultHTTPClient returns an HTTP client with the given timeout, falling
// back to httpClientTimeout.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = httpClientTimeout
	}

	return &http.Client{Timeout: timeout}
}

// bootstrapLogger builds the logger used before the config is loaded. Only
// CLI flags apply; the default level is Warn.
func bootstrapLogger() *slog.Logger {
	return buildLogger(nil)
}

// buildLogger creates an slog.Logger from the config's logging section and
// the CLI flags. The config level is the baseline; --verbose, --debug and
// --quiet override it because CLI flags always win.
func buildLogger(logging *config.Logging) *slog.Logger {
	level := slog.LevelWarn
	format := logFormatAuto

	if logging != nil {
		level = parseLevel(logging.Level, level)

		if logging.Format != "" {
			format = logging.Format
		}
	}

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return newLogger(os.Stderr, format, isTerminal(os.Stderr), level)
}

// newLogger picks the handler for format. "auto" means text on a terminal
// and JSON otherwise.
func newLogger(w io.Writer, format string, terminal bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	switch {
	case format == logFormatText:
		return slog.New(slog.NewTextHandler(w, opts))
	case format == logFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	case terminal:
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(slog.NewJSONHandler(w, opts))
	}
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

