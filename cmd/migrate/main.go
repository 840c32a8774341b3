// Command migrate applies the "-- +goose Up" section of every pending
// migration under -dir, one transaction per file, and records it in
// schema_migrations.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/config"
	"github.com/Armour007/docproc-backend/internal/logging"
)

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at timestamptz NOT NULL DEFAULT now()
)`

func main() {
	dir := flag.String("dir", filepath.Join("db", "migrations"), "directory holding goose-style .sql migrations")
	statusOnly := flag.Bool("status", false, "list pending migrations without applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()

	ctx := context.Background()
	if err := database.Connect(ctx, cfg.Database); err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer database.Close()

	files, err := collectSQLFiles(*dir)
	if err != nil {
		log.Fatalf("read migrations: %v", err)
	}
	if len(files) == 0 {
		log.Info("no migration files found, skipping")
		return
	}

	pending, err := pendingMigrations(ctx, database.DB, files)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *statusOnly {
		for _, f := range pending {
			fmt.Println(filepath.Base(f))
		}
		log.Infof("%d of %d migrations pending", len(pending), len(files))
		return
	}
	for _, f := range pending {
		log.Infof("applying migration %s", filepath.Base(f))
		if err := applyFile(ctx, database.DB, f); err != nil {
			log.Fatalf("migration %s failed: %v", filepath.Base(f), err)
		}
	}
	log.Infof("migrations applied: %d", len(pending))
}

// pendingMigrations ensures the bookkeeping table and returns the files not
// yet recorded in it, in order.
func pendingMigrations(ctx context.Context, db *sqlx.DB, files []string) ([]string, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	var versions []string
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	var out []string
	for _, f := range files {
		if !applied[filepath.Base(f)] {
			out = append(out, f)
		}
	}
	return out, nil
}

// applyFile runs the Up statements of path and records it in one transaction.
func applyFile(ctx context.Context, db *sqlx.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	up, err := gooseUp(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(up) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", short(stmt), err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`,
		filepath.Base(path)); err != nil {
		return err
	}
	return tx.Commit()
}

func collectSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// gooseUp returns the lines between "-- +goose Up" and "-- +goose Down".
// A file without an Up marker is treated as all Up.
func gooseUp(r io.Reader) (string, error) {
	var all, up strings.Builder
	section := ""
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch marker := strings.ToLower(strings.TrimSpace(line)); {
		case strings.HasPrefix(marker, "-- +goose up"):
			section = "up"
			continue
		case strings.HasPrefix(marker, "-- +goose down"):
			section = "down"
			continue
		}
		all.WriteString(line + "\n")
		if section == "up" {
			up.WriteString(line + "\n")
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if section == "" {
		return all.String(), nil
	}
	return up.String(), nil
}

// splitStatements splits on ';'. Migrations here hold no function bodies.
func splitStatements(sql string) []string {
	var out []string
	for _, raw := range strings.Split(sql, ";") {
		if stmt := strings.TrimSpace(raw); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func short(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
