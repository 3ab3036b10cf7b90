package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/dispatcher"
	"github.com/tpncalc/virtualblot/internal/handlers"
	"github.com/tpncalc/virtualblot/internal/logging"
	intOtel "github.com/tpncalc/virtualblot/internal/otel"
	"github.com/tpncalc/virtualblot/internal/storage"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "vblot"
)

const usage = `Usage: vblot <command> [flags] [data-file]

Commands:
  render     draw the band image of a data file and store it with its log
  normalize  normalize a data file against total-protein lanes
  profile    plot every series of a data file as a line chart
  serve      run the HTTP API
  version    print the version

Run "vblot <command> --help" for the flags of a command.
`

// app is the wiring shared by every command.
type app struct {
	logManager *logging.SlogManager
	logger     *slog.Logger
	otel       *intOtel.Provider
	logFile    *os.File

	svc     *handlers.Service
	disp    *dispatcher.Dispatcher
	backend storage.Backend

	stdout io.Writer
	stderr io.Writer
}

type setupOptions struct {
	// flagKeys maps flag names to the config keys they override.
	flagKeys map[string]string
	// console logs to stdout instead of a file in logsDir.
	console     bool
	storage     bool
	storeBuffer int
}

// setup loads config, binds flags over it and builds logging, telemetry,
// the service and its dispatcher.
func setup(fs *pflag.FlagSet, opts setupOptions, stdout, stderr io.Writer) (*app, error) {
	start := time.Now()

	configDir, _ := fs.GetString("config-dir")
	if err := config.Load(configDir); err != nil {
		return nil, err
	}
	defaults := config.GetLayoutDefaults()
	if err := config.BindFlags(fs, opts.flagKeys); err != nil {
		return nil, err
	}

	a := &app{
		logManager: logging.NewSlogManager(),
		stdout:     stdout,
		stderr:     stderr,
	}

	var logWriter io.Writer
	if !opts.console {
		logWriter = stderr
		logsDir := config.GetString("logsDir")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Fprintf(stderr, "Failed to create logs directory, logging to stderr: %v\n", err)
		} else {
			path := logging.LogFilePath(logsDir, AppName, start)
			f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to open log file, logging to stderr: %v\n", err)
			} else {
				a.logFile = f
				logWriter = f
			}
		}
	}

	// Initialize OTel provider if enabled
	var otelLogProvider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var otelWriter io.Writer
		if a.logFile != nil {
			otelWriter = a.logFile
		}
		p, err := intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      otelWriter,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintf(stderr, "Failed to initialize OTel provider: %v\n", err)
		} else {
			a.otel = p
			p.InstallGlobal()
			otelLogProvider = p.LoggerProvider()
		}
	}

	a.logManager.Setup(logWriter, config.GetString("logLevel"), otelLogProvider)
	a.logger = a.logManager.Logger()

	storageCfg := config.GetStorageConfig()
	a.svc = handlers.NewService(handlers.Dependencies{
		LogManager:      a.logManager,
		Defaults:        defaults,
		CompressSummary: storageCfg.CompressSummary,
	})

	if opts.storage {
		backend, err := initStorage(a.logger, storageCfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.backend = backend
		a.svc.SetBackend(backend)
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.logger))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.disp = d
	a.svc.Register(d, opts.storeBuffer)

	return a, nil
}

// close drains queued work and flushes logs.
func (a *app) close() {
	if a.disp != nil {
		a.disp.Close()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("Failed to close storage backend", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.logManager.Flush(ctx)
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			fmt.Fprintf(a.stderr, "OTel shutdown: %v\n", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// dispatch runs a registered command.
func (a *app) dispatch(ctx context.Context, command string, payload any) (any, error) {
	return a.disp.Dispatch(ctx, dispatcher.Event{Command: command, Payload: payload})
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	switch args[0] {
	case "render":
		return runRender(args[1:], stdout, stderr)
	case "normalize":
		return runNormalize(args[1:], stdout, stderr)
	case "profile":
		return runProfile(args[1:], stdout, stderr)
	case "serve":
		return runServe(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "%s %s (built %s)\n", AppName, Version, BuildDate)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
