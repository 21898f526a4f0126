package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/g960059/cliprelay/internal/config"
	"github.com/g960059/cliprelay/internal/daemon"
	"github.com/g960059/cliprelay/internal/db"
	"github.com/g960059/cliprelay/internal/logging"
	"github.com/g960059/cliprelay/internal/mailbox"
)

const retentionInterval = time.Hour

func main() {
	cfg := config.DefaultConfig()
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "loopback host:port to serve on")
	flag.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "reject writes larger than this (0 = unlimited)")
	flag.BoolVar(&cfg.StrictPaths, "strict-paths", cfg.StrictPaths, "serve the mailbox on / only, expose /v1/health, 404 elsewhere")
	flag.BoolVar(&cfg.LogRequests, "log-requests", cfg.LogRequests, "write one structured log line per request to stderr")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level with -log-requests (errors are always logged)")
	flag.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite path for the delivery journal (metadata only, disabled when empty)")
	flag.DurationVar(&cfg.JournalTTL, "journal-ttl", cfg.JournalTTL, "how long journal rows are kept")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := daemonLogger(cfg, os.Stderr)
	opts := []daemon.Option{daemon.WithLogger(logger)}

	if cfg.JournalPath != "" {
		store, err := db.Open(ctx, cfg.JournalPath)
		if err != nil {
			fatal(err)
		}
		defer store.Close() //nolint:errcheck
		if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
			fatal(err)
		}
		startRetentionLoop(ctx, store, cfg, logger)
		opts = append(opts, daemon.WithJournal(store))
	}

	srv := daemon.NewServer(cfg, mailbox.New(), opts...)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

// daemonLogger always reports errors such as journal failures; request and
// debug lines need -log-requests.
func daemonLogger(cfg config.Config, w io.Writer) glog.Logger {
	return logging.Daemon(cfg.LogRequests, w, cfg.LogLevel)
}

func startRetentionLoop(ctx context.Context, store *db.Store, cfg config.Config, logger glog.Logger) {
	run := func() {
		cutoff := time.Now().UTC().Add(-cfg.JournalTTL)
		n, err := store.PurgeBefore(ctx, cutoff)
		if err != nil {
			logErr("journal retention purge", err)
			return
		}
		if n > 0 {
			logger.Debug("journal purged", "rows", n, "cutoff", cutoff)
		}
	}

	run()
	go func() {
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}

func logErr(scope string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "cliprelayd: %s: %v\n", scope, err)
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "cliprelayd: %v\n", err)
	os.Exit(1)
}
