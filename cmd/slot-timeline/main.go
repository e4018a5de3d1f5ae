package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"

	"github.com/validaoxyz/slot-timeline/internal/config"
	"github.com/validaoxyz/slot-timeline/internal/exporter"
	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/logparse"
	"github.com/validaoxyz/slot-timeline/internal/metrics"
	"github.com/validaoxyz/slot-timeline/internal/snapshot"
	"github.com/validaoxyz/slot-timeline/internal/source"
)

func usage() {
	fmt.Println("Usage: slot-timeline <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  parse    Reconstruct the timeline once and write a snapshot")
	fmt.Println("  start    Re-parse periodically, serve /snapshot and /metrics")
	fmt.Println("  mock     Write a synthetic snapshot")
	fmt.Println("\nRun 'slot-timeline <command> -h' for command options.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "parse":
		err = runParse(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "mock":
		err = runMock(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Printf("%q is not a valid command.\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		var malformed *logparse.MalformedLineError
		if errors.As(err, &malformed) {
			logger.ErrorComponent("parser", "%v", malformed)
		} else {
			logger.Error("%v", err)
		}
		os.Exit(1)
	}
}

func runParse(args []string) error {
	cmd := flag.NewFlagSet("parse", flag.ExitOnError)
	logsDir := cmd.String("logs-dir", "", "Directory of validator logs (overrides LOGS_DIR)")
	out := cmd.String("out", "", "Snapshot output file, .msgpack for msgpack (overrides SNAPSHOT_OUT)")
	workers := cmd.Int("workers", 0, "Parallel file workers (overrides PARSE_WORKERS)")
	logLevel := cmd.String("log-level", "", "Log level (debug, info, warning, error)")
	cmd.Parse(args)

	cfg, err := loadConfig(&config.Flags{
		LogsDir:     *logsDir,
		SnapshotOut: *out,
		Workers:     *workers,
		LogLevel:    *logLevel,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = exporter.Parse(ctx, cfg)
	return err
}

func runStart(args []string) error {
	cmd := flag.NewFlagSet("start", flag.ExitOnError)
	logsDir := cmd.String("logs-dir", "", "Directory of validator logs (overrides LOGS_DIR)")
	out := cmd.String("out", "", "Also write each snapshot to this file")
	interval := cmd.Duration("interval", 0, "Re-parse interval (overrides REPARSE_INTERVAL)")
	port := cmd.Int("port", 0, "Metrics and snapshot port (overrides METRICS_PORT)")
	workers := cmd.Int("workers", 0, "Parallel file workers (overrides PARSE_WORKERS)")
	logLevel := cmd.String("log-level", "", "Log level (debug, info, warning, error)")
	enableOTLP := cmd.Bool("otlp", false, "Enable OTLP export")
	otlpEndpoint := cmd.String("otlp-endpoint", "", "OTLP endpoint (required when OTLP is enabled)")
	otlpInsecure := cmd.Bool("otlp-insecure", false, "Use insecure connection for OTLP")
	alias := cmd.String("alias", "", "Instance alias attached to exported metrics")
	cmd.Parse(args)

	cfg, err := loadConfig(&config.Flags{
		LogsDir:         *logsDir,
		SnapshotOut:     *out,
		ReparseInterval: *interval,
		MetricsPort:     *port,
		Workers:         *workers,
		LogLevel:        *logLevel,
	})
	if err != nil {
		return err
	}

	if *enableOTLP && *otlpEndpoint == "" {
		return eris.New("--otlp-endpoint flag is required when OTLP is enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := exporter.NewLive(cfg)

	metricsConfig := metrics.MetricsConfig{
		EnablePrometheus: true,
		EnableOTLP:       *enableOTLP,
		OTLPEndpoint:     *otlpEndpoint,
		OTLPInsecure:     *otlpInsecure,
		Alias:            *alias,
		LogsDir:          cfg.LogsDir,
		Port:             cfg.MetricsPort,
		Handlers:         map[string]http.Handler{"/snapshot": live.Handler()},
	}
	if err := metrics.InitMetrics(ctx, metricsConfig); err != nil {
		return eris.Wrap(err, "failed to initialize metrics")
	}

	exporter.Start(ctx, cfg, live)

	logger.InfoComponent("system", "Shutting down gracefully")
	return nil
}

func runMock(args []string) error {
	gen := source.NewSyntheticSource()

	cmd := flag.NewFlagSet("mock", flag.ExitOnError)
	out := cmd.String("out", "mock_snapshot.json", "Snapshot output file, .msgpack for msgpack")
	cmd.IntVar(&gen.Groups, "groups", gen.Groups, "Number of committees")
	cmd.IntVar(&gen.Slots, "slots", gen.Slots, "Slots per committee")
	cmd.IntVar(&gen.Validators, "validators", gen.Validators, "Validators per committee")
	cmd.IntVar(&gen.EmptyEvery, "empty-every", gen.EmptyEvery, "Every n-th slot is skipped (0 disables)")
	seed := cmd.Uint64("seed", gen.Seed, "Jitter seed")
	logLevel := cmd.String("log-level", "info", "Log level (debug, info, warning, error)")
	cmd.Parse(args)

	if err := logger.SetLogLevel(*logLevel); err != nil {
		return err
	}
	gen.Seed = *seed

	data, err := gen.Load(context.Background())
	if err != nil {
		return err
	}
	if err := snapshot.WriteFile(*out, data); err != nil {
		return err
	}

	slots, events := data.Len()
	logger.InfoComponent("exporter", "Wrote synthetic snapshot to %s: %d slots, %d events", *out, slots, events)
	return nil
}

func loadConfig(flags *config.Flags) (config.Config, error) {
	if flags.LogLevel != "" {
		if err := logger.SetLogLevel(flags.LogLevel); err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return config.Config{}, err
	}

	if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
