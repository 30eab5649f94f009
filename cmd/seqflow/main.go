// Command seqflow runs the prime and Fibonacci workers from a line-oriented
// console.
//
// Commands (one per line on stdin):
//
//	prime start [min] [max]
//	fib start [max]
//	<prime|fib> pause|resume|stop|restart
//	status
//	history [prime|fib]
//	events <worker-id>
//	wait
//	help
//	quit
//
// Configuration is read from the YAML file given by -config (or
// SEQFLOW_CONFIG) and overridden by SEQFLOW_* environment variables.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petrijr/seqflow"
	"github.com/petrijr/seqflow/internal/config"
	"github.com/petrijr/seqflow/internal/dispatch"
	"github.com/petrijr/seqflow/pkg/api"
	"github.com/petrijr/seqflow/pkg/observability/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "seqflow:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("seqflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("SEQFLOW_CONFIG"), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	out := &syncWriter{w: stdout}
	logger := newLogger(cfg.Log, stderr)

	shutdownTracing, err := tracing.Initialize(ctx, tracing.Config{
		ServiceName: "seqflow",
		Exporter:    cfg.Tracing.Exporter,
		Writer:      stderr,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	history, closeHistory, err := openHistory(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeHistory()

	printer := dispatch.NewAsyncObserver(newPrinter(out), 0, logger)

	observers := []api.Observer{printer, api.NewLoggingObserver(logger)}
	if cfg.Tracing.Exporter == tracing.ExporterStdout {
		observers = append(observers, tracing.NewObserver(nil))
	}

	opts := []seqflow.RunnerOption{
		seqflow.WithPrimeDelay(cfg.PrimeDelay),
		seqflow.WithFibonacciDelay(cfg.FibonacciDelay),
		seqflow.WithLogger(logger),
	}
	if cfg.SyncRestart {
		opts = append(opts, seqflow.WithSyncRestart())
	}
	if history != nil {
		opts = append(opts, seqflow.WithHistory(history))
	}

	var srv *statusServer
	if cfg.Metrics.Addr != "" {
		srv = newStatusServer(logger)
		observers = append(observers, srv.observer)
	}
	opts = append(opts, seqflow.WithObserver(observers...))

	runner := seqflow.NewRunner(opts...)
	if srv != nil {
		srv.runner = runner
		if err := srv.start(cfg.Metrics.Addr); err != nil {
			return err
		}
		defer srv.stop()
	}

	logger.Info("seqflow ready",
		slog.String("store", cfg.Store.Driver),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("tracing", cfg.Tracing.Exporter),
	)

	sh := &shell{ctx: ctx, runner: runner, out: out}
	readLoop(ctx, in, sh)

	runner.Stop()
	printer.Close()
	logger.Info("seqflow stopped")
	return nil
}

// readLoop feeds input lines to sh until quit, EOF or ctx is done.
func readLoop(ctx context.Context, in io.Reader, sh *shell) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := sh.exec(line)
			if err != nil {
				sh.printf("error: %v\n", err)
			}
			if quit {
				return
			}
		}
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(config.EnvPrefix); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// newPrinter writes values and terminal outcomes to the console.
func newPrinter(out *syncWriter) api.Observer {
	return api.FuncObserver{
		Value: func(info api.WorkerInfo, v string) {
			out.printf("[%s] %s\n", info.Task, v)
		},
		StateChange: func(info api.WorkerInfo, from, to api.WorkerState) {
			out.printf("[%s] %s\n", info.Task, strings.ToLower(to.String()))
		},
		Terminal: func(info api.WorkerInfo, status api.Status, err error) {
			if err != nil {
				out.printf("[%s] %s: %v\n", info.Task, strings.ToLower(string(status)), err)
				return
			}
			out.printf("[%s] %s\n", info.Task, strings.ToLower(string(status)))
		},
	}
}

