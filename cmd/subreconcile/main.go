// Command subreconcile reconciles original transcripts with machine-corrected
// versions of them and maintains the smart dictionary of recurring fixes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/subreconcile/internal/app"
	"github.com/MrWong99/subreconcile/internal/config"
	"github.com/MrWong99/subreconcile/internal/health"
	"github.com/MrWong99/subreconcile/internal/observe"
)

const version = "0.1.0"

// CLI defines the command-line interface for subreconcile.
type CLI struct {
	// Global flags
	Config   string `short:"c" help:"Path to the YAML configuration file." type:"path"`
	LogLevel string `name:"log-level" help:"Override log_level from the config (debug, info, warn, error)."`
	Metrics  bool   `help:"Write Prometheus metrics to stderr on exit."`

	Diff    DiffCmd    `cmd:"" help:"Show the accept/reject groups between two texts"`
	Review  ReviewCmd  `cmd:"" help:"Reconcile two transcripts line by line and print the final text"`
	Dict    DictGroup  `cmd:"" help:"Smart dictionary operations"`
	Check   CheckCmd   `cmd:"" help:"Check that storage and dictionary are usable"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// DictGroup contains smart dictionary operations.
type DictGroup struct {
	List          DictListCmd          `cmd:"" help:"List dictionary entries"`
	Add           DictAddCmd           `cmd:"" help:"Add a correction with its variants"`
	Apply         DictApplyCmd         `cmd:"" help:"Apply the dictionary to a text"`
	Remove        DictRemoveCmd        `cmd:"" help:"Remove an entry"`
	AddVariant    DictAddVariantCmd    `cmd:"" name:"add-variant" help:"Add a variant to an entry"`
	RemoveVariant DictRemoveVariantCmd `cmd:"" name:"remove-variant" help:"Remove a variant from an entry"`
	Clear         DictClearCmd         `cmd:"" help:"Remove every entry"`
	Export        DictExportCmd        `cmd:"" help:"Export the dictionary as JSON"`
	Import        DictImportCmd        `cmd:"" help:"Merge a JSON export into the dictionary"`
}

// runtime is bound into every command's Run method.
type runtime struct {
	ctx context.Context
	app *app.App
	in  io.Reader
	out io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("subreconcile"),
		kong.Description("Review machine corrections of transcripts and learn recurring fixes."),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "subreconcile: %v\n", err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "subreconcile: %v\n", err)
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(cli.Config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "subreconcile: config file %q not found\n", cli.Config)
		} else {
			fmt.Fprintf(stderr, "subreconcile: %v\n", err)
		}
		return 1
	}
	if cli.LogLevel != "" {
		lvl := config.LogLevel(cli.LogLevel)
		if !lvl.IsValid() {
			fmt.Fprintf(stderr, "subreconcile: --log-level %q is invalid; valid values: debug, info, warn, error\n", cli.LogLevel)
			return 2
		}
		cfg.LogLevel = lvl
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel, stderr)
	if cfg.LogFile.Path != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			LocalTime:  true,
		}
		defer lj.Close()
		logger = newFileLogger(cfg.LogLevel, lj)
	}
	slog.SetDefault(logger)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	if cfg.Telemetry.Prometheus || cli.Metrics {
		provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
		})
		if err != nil {
			logger.Error("failed to init telemetry", "err", err)
			return 1
		}
		defer func() {
			if cli.Metrics {
				if err := provider.WriteMetrics(stderr); err != nil {
					logger.Warn("failed to write metrics", "err", err)
				}
			}
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		logger.Error("failed to start", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			logger.Warn("shutdown error", "err", err)
		}
	}()

	if err := kctx.Run(&runtime{ctx: ctx, app: application, in: stdin, out: stdout}); err != nil {
		fmt.Fprintf(stderr, "subreconcile: %v\n", err)
		return 1
	}
	return 0
}

// newLogger creates an slog.Logger at the given level writing text to w.
func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))
}

// newFileLogger creates an slog.Logger at the given level writing JSON lines
// to w.
func newFileLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(rt *runtime) error {
	_, err := fmt.Fprintf(rt.out, "subreconcile %s\n", version)
	return err
}

// CheckCmd runs the readiness checks and prints the report as JSON.
type CheckCmd struct{}

func (c *CheckCmd) Run(rt *runtime) error {
	rep := health.Run(rt.ctx, rt.app.Checks()...)
	if err := rep.WriteJSON(rt.out); err != nil {
		return err
	}
	if !rep.OK() {
		return errors.New("check failed")
	}
	return nil
}
