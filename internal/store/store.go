// Package store provides the lead archive for the chatbot.
//
// Conversations themselves are volatile; only their outcomes are persisted:
// finalized leads, survey results, and handoff closures. An in-memory store
// backs tests and dev runs, SQLite and Postgres back deployments.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
)

// Store is the archive interface shared by all backends.
type Store interface {
	SaveLead(ctx context.Context, lead models.LeadRecord) error
	SaveSurveyResult(ctx context.Context, result models.SurveyResult) error
	SaveClosure(ctx context.Context, rec models.ClosureRecord) error
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Counts summarizes the archive for the stats endpoint.
type Counts struct {
	Leads    int `json:"leads"`
	Surveys  int `json:"surveys"`
	Closures int `json:"closures"`
}

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for database-backed stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports which driver a DSN belongs to: "postgres" for
// URL-style or key=value connection strings, "sqlite3" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	for _, kv := range []string{"host=", "user=", "dbname=", "sslmode="} {
		if strings.Contains(dsn, kv) {
			return "postgres"
		}
	}
	return "sqlite3"
}

// InMemoryStore keeps the archive in process memory.
type InMemoryStore struct {
	mu       sync.Mutex
	leads    []models.LeadRecord
	surveys  []models.SurveyResult
	closures []models.ClosureRecord
}

// NewInMemoryStore creates an empty in-memory archive.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveLead(_ context.Context, lead models.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return nil
}

func (s *InMemoryStore) SaveSurveyResult(_ context.Context, result models.SurveyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys = append(s.surveys, result)
	return nil
}

func (s *InMemoryStore) SaveClosure(_ context.Context, rec models.ClosureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closures = append(s.closures, rec)
	return nil
}

func (s *InMemoryStore) Counts(context.Context) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{Leads: len(s.leads), Surveys: len(s.surveys), Closures: len(s.closures)}, nil
}

func (s *InMemoryStore) Close() error { return nil }

// Leads returns a copy of the stored leads, for tests.
func (s *InMemoryStore) Leads() []models.LeadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LeadRecord(nil), s.leads...)
}

// SurveyResults returns a copy of the stored survey results, for tests.
func (s *InMemoryStore) SurveyResults() []models.SurveyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SurveyResult(nil), s.surveys...)
}

// Closures returns a copy of the stored closures, for tests.
func (s *InMemoryStore) Closures() []models.ClosureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClosureRecord(nil), s.closures...)
}
