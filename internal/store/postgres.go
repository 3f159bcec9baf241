// Package store provides the lead archive for the chatbot.
//
// This file implements the Postgres-backed archive.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres archive based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres archive ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveLead(ctx context.Context, lead models.LeadRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, phone, sender_name, category, email, address, visit_window, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lead.ID, lead.Phone, lead.SenderName, lead.Category,
		lead.Contact.Email, lead.Contact.Address, lead.Contact.VisitWindow, lead.Contact.Description,
		lead.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "phone", lead.Phone)
		return fmt.Errorf("failed to insert lead for %s: %w", lead.Phone, err)
	}
	slog.Debug("PostgresStore SaveLead succeeded", "id", lead.ID, "phone", lead.Phone)
	return nil
}

func (s *PostgresStore) SaveSurveyResult(ctx context.Context, result models.SurveyResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode survey answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO survey_results (id, phone, answers, completed, created_at) VALUES ($1, $2, $3, $4, $5)`,
		result.ID, result.Phone, string(answers), result.Completed, result.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSurveyResult failed", "error", err, "phone", result.Phone)
		return fmt.Errorf("failed to insert survey result for %s: %w", result.Phone, err)
	}
	slog.Debug("PostgresStore SaveSurveyResult succeeded", "id", result.ID, "phone", result.Phone)
	return nil
}

func (s *PostgresStore) SaveClosure(ctx context.Context, rec models.ClosureRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO closures (id, phone, reason, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.Phone, rec.Reason, rec.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveClosure failed", "error", err, "phone", rec.Phone)
		return fmt.Errorf("failed to insert closure for %s: %w", rec.Phone, err)
	}
	slog.Debug("PostgresStore SaveClosure succeeded", "id", rec.ID, "phone", rec.Phone)
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
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
			slog.Error("PostgresStore Counts failed", "error", err, "table", q.table)
			return Counts{}, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
