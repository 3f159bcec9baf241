// Package store provides the lead archive for the chatbot.
//
// This file implements the SQLite-backed archive.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite archive with the given DSN.
// The DSN is a file path; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite archive ready", "path", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveLead(ctx context.Context, lead models.LeadRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, phone, sender_name, category, email, address, visit_window, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Phone, lead.SenderName, lead.Category,
		lead.Contact.Email, lead.Contact.Address, lead.Contact.VisitWindow, lead.Contact.Description,
		lead.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "phone", lead.Phone)
		return fmt.Errorf("failed to insert lead for %s: %w", lead.Phone, err)
	}
	slog.Debug("SQLiteStore SaveLead succeeded", "id", lead.ID, "phone", lead.Phone)
	return nil
}

func (s *SQLiteStore) SaveSurveyResult(ctx context.Context, result models.SurveyResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode survey answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO survey_results (id, phone, answers, completed, created_at) VALUES (?, ?, ?, ?, ?)`,
		result.ID, result.Phone, string(answers), result.Completed, result.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSurveyResult failed", "error", err, "phone", result.Phone)
		return fmt.Errorf("failed to insert survey result for %s: %w", result.Phone, err)
	}
	slog.Debug("SQLiteStore SaveSurveyResult succeeded", "id", result.ID, "phone", result.Phone)
	return nil
}

func (s *SQLiteStore) SaveClosure(ctx context.Context, rec models.ClosureRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO closures (id, phone, reason, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Phone, rec.Reason, rec.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveClosure failed", "error", err, "phone", rec.Phone)
		return fmt.Errorf("failed to insert closure for %s: %w", rec.Phone, err)
	}
	slog.Debug("SQLiteStore SaveClosure succeeded", "id", rec.ID, "phone", rec.Phone)
	return nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"leads", &c.Leads},
		{"survey_results", &c.Surveys},
		{"closures", &c.Closures},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			slog.Error("SQLiteStore Counts failed", "error", err, "table", q.table)
			return Counts{}, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
