package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

// Database is the relational store for videos, section groups, sections,
// advices and reservations. Queries are written with ? placeholders and
// rebound for PostgreSQL.
type Database struct {
	db     *sql.DB
	driver string
	log    *zap.Logger
}

func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Database, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case "sqlite3":
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
	case "pgx":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite3" {
		// One writer at a time; WAL keeps readers unblocked.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &Database{db: sqlDB, driver: cfg.Driver, log: log.Named("db")}
	if err := d.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	d.log.Info("database ready", zap.String("driver", cfg.Driver))
	return d, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		video_locator TEXT NOT NULL,
		thumbnail_locator TEXT,
		duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
		club_type TEXT,
		swing_form TEXT,
		swing_note TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_user ON videos (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS section_groups (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL UNIQUE REFERENCES videos(id),
		overall_feedback TEXT,
		overall_feedback_summary TEXT,
		next_training_menu TEXT,
		next_training_menu_summary TEXT,
		feedback_created_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS swing_sections (
		id TEXT PRIMARY KEY,
		section_group_id TEXT NOT NULL REFERENCES section_groups(id),
		start_sec DOUBLE PRECISION NOT NULL,
		end_sec DOUBLE PRECISION NOT NULL,
		image_locator TEXT,
		tags TEXT NOT NULL DEFAULT '',
		markup_json TEXT,
		coach_comment TEXT,
		coach_comment_summary TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_group ON swing_sections (section_group_id, start_sec)`,
	`CREATE TABLE IF NOT EXISTS section_advices (
		id TEXT PRIMARY KEY,
		section_id TEXT NOT NULL REFERENCES swing_sections(id),
		phase TEXT,
		text TEXT NOT NULL,
		audio_locator TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_advices_section ON section_advices (section_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS coaching_reservations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		coach_id TEXT NOT NULL,
		scheduled_at TIMESTAMP NOT NULL,
		location_type TEXT NOT NULL,
		status TEXT NOT NULL,
		price BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

func (d *Database) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $N for PostgreSQL.
func (d *Database) rebind(query string) string {
	if d.driver != "pgx" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *Database) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, d.rebind(query), args...)
}

func (d *Database) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, d.rebind(query), args...)
}

func (d *Database) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, d.rebind(query), args...)
}

// inTx runs fn in a transaction, rolling back on error.
func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() time.Time {
	return time.Now().UTC()
}

// notFound maps sql.ErrNoRows to a NotFound error and leaves other errors as is.
func notFound(err error, op, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.KindNotFound, op, "%s %s not found", what, id)
	}
	return err
}

func expectOne(res sql.Result, op, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Newf(apperr.KindNotFound, op, "%s %s not found", what, id)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
