package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"nuclight.org/groupsync/internal/config"
	"nuclight.org/groupsync/internal/groups"
	"nuclight.org/groupsync/internal/logger"
	"nuclight.org/groupsync/internal/remote"
	"nuclight.org/groupsync/internal/session"
	"nuclight.org/groupsync/internal/storage"
)

func main() {
	verbose := flag.Bool("v", false, "log api requests")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	lg := logger.NewLogger(os.Stderr, level)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatalf("Failed to init sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
		lg = logger.NewLoggerWithSentry(os.Stderr, level)
	}

	sess, err := session.FromToken(cfg.Token)
	if err != nil {
		log.Fatalf("Failed to decode token: %v", err)
	}

	lg.Info("config loaded",
		"db_path", cfg.DBPath,
		"api_url", cfg.APIURL,
		"user_id", sess.UserID,
	)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	lg.Info("database initialized")

	client, err := remote.NewClient(cfg.APIURL, cfg.HTTPTimeout, lg)
	if err != nil {
		log.Fatalf("Failed to create api client: %v", err)
	}

	svc := groups.NewService(storage.NewStore(db), client,
		groups.WithLogger(lg),
		groups.WithPasswordSalt(cfg.PasswordSalt),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = session.NewContext(ctx, sess)

	run(ctx, groups.NewDispatcher(svc, lg), cfg.SyncInterval, lg)
}

// run performs one sync pass, then keeps syncing every interval until ctx is
// cancelled. A zero interval means a single pass.
func run(ctx context.Context, d *groups.Dispatcher, interval time.Duration, lg *slog.Logger) {
	pass := func() {
		if err := d.SyncAll(ctx); err != nil && ctx.Err() == nil {
			lg.Error("sync pass failed", "error", err)
		}
	}

	pass()
	if interval == 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			lg.Info("shutting down")
			return
		case <-ticker.C:
			pass()
		}
	}
}
