package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"petaverse-chat/config"
	"petaverse-chat/pkg/database"
	"petaverse-chat/pkg/logger"
)

const usage = `
Petaverse Chat - Database CLI Tool

Usage:
  migrate [flags] [command]

Commands:
  up          Apply all pending embedded migrations
  status      Show connection status and which migrations are applied

Flags:
  -timeout duration   Overall deadline for the command (default 1m)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate status
`

func main() {
	timeout := flag.Duration("timeout", time.Minute, "Overall deadline for the command")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch command := flag.Arg(0); command {
	case "up":
		err = runMigrationsUp(ctx, cfg, l)
	case "status":
		err = showStatus(ctx, cfg, l)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		l.Errorf("❌ %v", err)
		l.Sync()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	l.Infof("🚀 Running migrations UP...")

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.ApplyMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if len(applied) == 0 {
		l.Infof("✅ Database already up to date")
		return nil
	}
	for _, name := range applied {
		l.Infof("✅ Applied %s", name)
	}
	return nil
}

func showStatus(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	l.Infof("🔍 Checking database status...")

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.HealthCheck(ctx, db); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	l.Infof("✅ Database connection: OK")

	names, err := database.MigrationNames()
	if err != nil {
		return err
	}
	applied, err := database.AppliedMigrations(ctx, db)
	if err != nil {
		l.Warnf("⚠️  Could not read schema_migrations, run 'up' first: %v", err)
		applied = nil
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	pending := 0
	for _, name := range names {
		if done[name] {
			l.Infof("✅ %-30s applied", name)
			continue
		}
		pending++
		l.Infof("⏳ %-30s pending", name)
	}
	l.Infof("%d applied, %d pending", len(names)-pending, pending)
	return nil
}
