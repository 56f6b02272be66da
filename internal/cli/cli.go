// Package cli implements the berth command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berth-dev/berth/internal/config"
	"github.com/berth-dev/berth/internal/lifecycle"
	"github.com/berth-dev/berth/internal/logging"
	"github.com/berth-dev/berth/internal/telemetry"
	"github.com/berth-dev/berth/internal/ui"
)

const (
	envTrace      = "BERTH_TRACE"
	traceFileName = "berth-trace.json"
)

// ExitCodeError carries the process exit status after the error has already
// been reported to the user.
type ExitCodeError struct {
	code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode returns the status the process should exit with.
func (e *ExitCodeError) ExitCode() int {
	return e.code
}

// Options are the parsed command line flags.
type Options struct {
	ConfigPath  string
	Cleanup     bool
	Build       bool
	View        bool
	Environment string
}

type managerFactory func(ctx context.Context, env *config.Environment, opts ...lifecycle.Option) (*lifecycle.Manager, error)

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	env        config.Env
	newManager managerFactory
}

// Main runs berth with os.Args-style args.
func Main(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		env:        config.EnvFromOS(),
		newManager: lifecycle.New,
	}
	return a.execute(ctx, args[1:])
}

func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		config.Render(a.stderr, err, ui.SupportsColor(a.stderr))
		return &ExitCodeError{code: 1}
	}
	return nil
}

func (a *app) rootCommand() *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "berth [flags] ENVIRONMENT",
		Short: "Enter container environments described in a TOML config",
		Long: `berth builds, starts and attaches to long-lived development containers
described by [environment.<Name>] tables in a TOML config file.

Config file (first match wins):
  --config-path FILE
  $XDG_CONFIG_HOME/berth/config.toml
  $HOME/.config/berth/config.toml

Environment:
  BERTH_LOG        log file (default /tmp/berth.log)
  BERTH_LOG_LEVEL  debug, info, warn or error (default info)
  BERTH_TRACE      write OpenTelemetry spans next to the log file`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Environment = args[0]
			return a.run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config-path", "", "path to the config file")
	flags.BoolVar(&opts.Cleanup, "cleanup", false, "remove the container when berth exits")
	flags.BoolVar(&opts.Build, "build", false, "rebuild the environment without entering it")
	flags.BoolVar(&opts.View, "view", false, "print the resolved environment and exit")
	cmd.MarkFlagsMutuallyExclusive("build", "view")
	return cmd
}

func (a *app) run(ctx context.Context, opts Options) error {
	logOpts := logging.OptionsFromEnv(a.env.Lookup)
	logger, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(a.stderr, "warning: logging disabled: %v\n", err)
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	path, err := config.FindConfigPath(opts.ConfigPath, a.env)
	if err != nil {
		logger.Error("config discovery failed", zap.Error(err))
		return err
	}
	fmt.Fprintf(a.stderr, "Using config file at %q\n", path)

	environment, err := config.Resolve(path, opts.Environment, a.env)
	if err != nil {
		logger.Error("config resolution failed", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Info("resolved environment",
		zap.String("environment", environment.OriginalName),
		zap.String("container", environment.Name),
		zap.String("image", environment.Image))

	if opts.View {
		view, err := environment.View()
		if err != nil {
			return fmt.Errorf("render environment: %w", err)
		}
		fmt.Fprint(a.stdout, view)
		return nil
	}

	tp, closeTrace, err := a.setupTelemetry(ctx, logOpts, logger)
	if err != nil {
		fmt.Fprintf(a.stderr, "warning: tracing disabled: %v\n", err)
		tp, closeTrace = telemetry.Noop(), func() {}
	}
	defer closeTrace()

	mgr, err := a.newManager(ctx, environment,
		lifecycle.WithLogger(logger),
		lifecycle.WithTelemetry(tp),
		lifecycle.WithProgress(ui.Spinner(a.stderr)),
	)
	if err != nil {
		logger.Error("docker unavailable", zap.Error(err))
		return err
	}
	defer func() { _ = mgr.Close() }()

	flow, action := mgr.Up, "up"
	if opts.Build {
		flow, action = mgr.Build, "build"
	}
	logger.Info("starting flow", zap.String("action", action), zap.Bool("cleanup", opts.Cleanup))
	if err := mgr.Run(ctx, flow, opts.Cleanup); err != nil {
		return err
	}
	logger.Info("flow finished", zap.String("action", action))
	return nil
}

// setupTelemetry enables tracing when BERTH_TRACE is set, writing spans to a
// file beside the log. The returned func logs the runtime call counts and
// flushes the exporter.
func (a *app) setupTelemetry(ctx context.Context, logOpts logging.Options, logger *zap.Logger) (*telemetry.Provider, func(), error) {
	if v, _ := a.env.Lookup(envTrace); strings.TrimSpace(v) == "" {
		return telemetry.Noop(), func() {}, nil
	}
	path := filepath.Join(logOpts.Dir(), traceFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	tp, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "berth", Enabled: true, TraceOutput: f})
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return tp, func() {
		counts, err := tp.CallCounts(context.Background())
		if err != nil {
			logger.Warn("failed to collect runtime calls", zap.Error(err))
		} else {
			logger.Info("runtime calls", zap.Any("counts", counts))
		}
		_ = tp.Shutdown(context.Background())
		_ = f.Close()
	}, nil
}
