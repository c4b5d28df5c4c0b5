// Command recursord runs the recursive DNS resolver, grounded on the
// teacher's cmd/clouddns/main.go startup sequence (structured logging,
// signal.NotifyContext, cooperative shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnslab/recursor/internal/audit"
	"github.com/dnslab/recursor/internal/cache"
	"github.com/dnslab/recursor/internal/config"
	"github.com/dnslab/recursor/internal/resolver"
	"github.com/dnslab/recursor/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: recursord [-v] genconfig <path> | run <path>")
	}

	fs := flag.NewFlagSet("recursord", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: recursord [-v] genconfig <path> | run <path>")
	}
	subcommand, path := rest[0], rest[1]

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	switch subcommand {
	case "genconfig":
		return config.WriteDefault(path)
	case "run":
		return runServer(path, logger)
	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func runServer(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c := cache.Load(cfg.CacheFile, int(cfg.CacheSize))

	var mirror *cache.Mirror
	if cfg.RedisAddr != "" {
		mirror = cache.NewMirror(cfg.RedisAddr)
		if err := mirror.Ping(context.Background()); err != nil {
			logger.Warn("cache mirror unreachable, continuing without it", "error", err)
			mirror = nil
		}
	}

	var auditSink *audit.Sink
	if cfg.AuditDSN != "" {
		auditSink, err = audit.Open(cfg.AuditDSN, logger)
		if err != nil {
			return fmt.Errorf("open audit sink: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := auditSink.Ping(pingCtx); err != nil {
			logger.Warn("audit sink unreachable, continuing without it", "error", err)
			auditSink = nil
		}
		cancel()
	}

	r := resolver.New(cfg.ProxyHostname, int(cfg.ProxyPort), cfg.RootHints)

	addr := fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port)
	sweepInterval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	srv := server.New(addr, int(cfg.MaxThreads), sweepInterval, c, r, logger)
	srv.Mirror = mirror
	srv.Audit = auditSink

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := c.Save(cfg.CacheFile); err != nil {
		logger.Warn("failed to snapshot cache on shutdown", "error", err)
	}
	if mirror != nil {
		_ = mirror.Close()
	}
	if auditSink != nil {
		_ = auditSink.Close()
	}

	return nil
}
