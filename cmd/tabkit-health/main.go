// Package main provides tabkit-health, a probe that opens the configured
// datastore backend and prints its health report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/tabkit/pkg/config"
	"github.com/dmitrymomot/tabkit/pkg/datastore"
	"github.com/dmitrymomot/tabkit/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type probeOptions struct {
	envFile string
	timeout time.Duration
}

func parseFlags(args []string, stderr io.Writer) (probeOptions, error) {
	opts := probeOptions{}
	fs := flag.NewFlagSet("tabkit-health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Overall probe timeout")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// run returns the process exit code: 0 when the backend is reachable,
// 1 when it is not and 2 on usage or configuration errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	if opts.envFile != "" {
		if err := config.LoadEnv(opts.envFile); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	log := logger.New(logger.WithConfig(logCfg), logger.WithOutput(stderr))

	cfg, err := datastore.LoadConfig()
	if err != nil {
		log.Error("invalid datastore configuration", logger.Error(err))
		return 2
	}
	// a one-shot probe has nothing to sweep
	cfg.CleanupInterval = 0

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	store, err := datastore.New(ctx, cfg, datastore.WithLogger(log))
	if err != nil {
		health := datastore.Health{Backend: configuredBackend(cfg), Error: err.Error()}
		_ = writeHealth(stdout, health)
		log.Error("datastore unavailable", logger.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}()

	health := store.HealthCheck(ctx)
	if err := writeHealth(stdout, health); err != nil {
		log.Error("failed to write health report", logger.Error(err))
		return 2
	}
	if !health.Reachable {
		return 1
	}
	return 0
}

// configuredBackend names the backend cfg asks for, used when none could be
// opened.
func configuredBackend(cfg datastore.Config) datastore.BackendType {
	if cfg.RemoteEnabled {
		return datastore.BackendRemote
	}
	return datastore.BackendLocal
}

func writeHealth(w io.Writer, h datastore.Health) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(h)
}
