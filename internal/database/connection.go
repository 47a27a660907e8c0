package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/examsrs/pkg/models"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store is the SQL-backed card store
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database and makes sure the schema exists.
// For sqlite the dsn is a file path; its directory is created if needed.
func Open(driver, dsn string) (*Store, error) {
	if driver == DriverSQLite && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn inside one transaction and commits only if fn succeeds
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistErr("failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistErr("failed to commit transaction", err)
	}
	return nil
}

func persistErr(op string, err error) error {
	return &models.PersistenceError{Op: op, Err: err}
}

type tableDef struct {
	name     string
	sqlite   string
	postgres string
}

var tables = []tableDef{
	{
		name: "cards",
		sqlite: `
			CREATE TABLE IF NOT EXISTS cards (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				learner_id INTEGER NOT NULL,
				question_id INTEGER NOT NULL,
				state INTEGER NOT NULL DEFAULT 0,
				difficulty REAL NOT NULL DEFAULT 5.0,
				stability REAL NOT NULL DEFAULT 1.0,
				retrievability REAL NOT NULL DEFAULT 1.0,
				step INTEGER NOT NULL DEFAULT 0,
				lapse_count INTEGER NOT NULL DEFAULT 0,
				review_count INTEGER NOT NULL DEFAULT 0,
				next_review_at TIMESTAMP NOT NULL,
				last_reviewed_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				UNIQUE(learner_id, question_id)
			)`,
		postgres: `
			CREATE TABLE IF NOT EXISTS cards (
				id BIGSERIAL PRIMARY KEY,
				learner_id BIGINT NOT NULL,
				question_id BIGINT NOT NULL,
				state INTEGER NOT NULL DEFAULT 0,
				difficulty DOUBLE PRECISION NOT NULL DEFAULT 5.0,
				stability DOUBLE PRECISION NOT NULL DEFAULT 1.0,
				retrievability DOUBLE PRECISION NOT NULL DEFAULT 1.0,
				step INTEGER NOT NULL DEFAULT 0,
				lapse_count INTEGER NOT NULL DEFAULT 0,
				review_count INTEGER NOT NULL DEFAULT 0,
				next_review_at TIMESTAMPTZ NOT NULL,
				last_reviewed_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				UNIQUE(learner_id, question_id)
			)`,
	},
	{
		name: "learning_sessions",
		sqlite: `
			CREATE TABLE IF NOT EXISTS learning_sessions (
				id TEXT PRIMARY KEY,
				learner_id INTEGER NOT NULL,
				session_type TEXT NOT NULL,
				target_retention REAL NOT NULL DEFAULT 0.9,
				max_reviews INTEGER NOT NULL DEFAULT 50,
				reviews_completed INTEGER NOT NULL DEFAULT 0,
				correct_count INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP NOT NULL,
				ended_at TIMESTAMP
			)`,
		postgres: `
			CREATE TABLE IF NOT EXISTS learning_sessions (
				id UUID PRIMARY KEY,
				learner_id BIGINT NOT NULL,
				session_type TEXT NOT NULL,
				target_retention DOUBLE PRECISION NOT NULL DEFAULT 0.9,
				max_reviews INTEGER NOT NULL DEFAULT 50,
				reviews_completed INTEGER NOT NULL DEFAULT 0,
				correct_count INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMPTZ NOT NULL,
				ended_at TIMESTAMPTZ
			)`,
	},
	{
		name: "review_history",
		sqlite: `
			CREATE TABLE IF NOT EXISTS review_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				card_id INTEGER NOT NULL,
				learner_id INTEGER NOT NULL,
				question_id INTEGER NOT NULL,
				rating INTEGER NOT NULL,
				response_time_ms INTEGER NOT NULL DEFAULT 0,
				difficulty_before REAL NOT NULL,
				stability_before REAL NOT NULL,
				retrievability_before REAL NOT NULL,
				state_before INTEGER NOT NULL,
				difficulty_after REAL NOT NULL,
				stability_after REAL NOT NULL,
				retrievability_after REAL NOT NULL,
				state_after INTEGER NOT NULL,
				next_interval_days REAL NOT NULL,
				session_id TEXT,
				reviewed_at TIMESTAMP NOT NULL,
				FOREIGN KEY (card_id) REFERENCES cards(id),
				FOREIGN KEY (session_id) REFERENCES learning_sessions(id)
			)`,
		postgres: `
			CREATE TABLE IF NOT EXISTS review_history (
				id BIGSERIAL PRIMARY KEY,
				card_id BIGINT NOT NULL REFERENCES cards(id),
				learner_id BIGINT NOT NULL,
				question_id BIGINT NOT NULL,
				rating INTEGER NOT NULL,
				response_time_ms BIGINT NOT NULL DEFAULT 0,
				difficulty_before DOUBLE PRECISION NOT NULL,
				stability_before DOUBLE PRECISION NOT NULL,
				retrievability_before DOUBLE PRECISION NOT NULL,
				state_before INTEGER NOT NULL,
				difficulty_after DOUBLE PRECISION NOT NULL,
				stability_after DOUBLE PRECISION NOT NULL,
				retrievability_after DOUBLE PRECISION NOT NULL,
				state_after INTEGER NOT NULL,
				next_interval_days DOUBLE PRECISION NOT NULL,
				session_id UUID REFERENCES learning_sessions(id),
				reviewed_at TIMESTAMPTZ NOT NULL
			)`,
	},
	{
		name: "leech_records",
		sqlite: `
			CREATE TABLE IF NOT EXISTS leech_records (
				card_id INTEGER PRIMARY KEY,
				learner_id INTEGER NOT NULL,
				question_id INTEGER NOT NULL,
				lapse_count_at_detection INTEGER NOT NULL,
				threshold INTEGER NOT NULL DEFAULT 8,
				severity TEXT NOT NULL,
				detected_at TIMESTAMP NOT NULL,
				action_taken TEXT,
				action_at TIMESTAMP,
				is_suspended BOOLEAN NOT NULL DEFAULT false,
				user_notes TEXT NOT NULL DEFAULT '',
				resolved_at TIMESTAMP,
				FOREIGN KEY (card_id) REFERENCES cards(id)
			)`,
		postgres: `
			CREATE TABLE IF NOT EXISTS leech_records (
				card_id BIGINT PRIMARY KEY REFERENCES cards(id),
				learner_id BIGINT NOT NULL,
				question_id BIGINT NOT NULL,
				lapse_count_at_detection INTEGER NOT NULL,
				threshold INTEGER NOT NULL DEFAULT 8,
				severity TEXT NOT NULL,
				detected_at TIMESTAMPTZ NOT NULL,
				action_taken TEXT,
				action_at TIMESTAMPTZ,
				is_suspended BOOLEAN NOT NULL DEFAULT false,
				user_notes TEXT NOT NULL DEFAULT '',
				resolved_at TIMESTAMPTZ
			)`,
	},
	{
		name: "algorithm_configs",
		sqlite: `
			CREATE TABLE IF NOT EXISTS algorithm_configs (
				learner_id INTEGER PRIMARY KEY,
				parameters TEXT NOT NULL,
				target_retention REAL NOT NULL DEFAULT 0.9,
				maximum_interval_days INTEGER NOT NULL DEFAULT 36500,
				learning_steps TEXT NOT NULL,
				relearning_steps TEXT NOT NULL,
				graduation_stability REAL NOT NULL DEFAULT 1.0,
				updated_at TIMESTAMP NOT NULL
			)`,
		postgres: `
			CREATE TABLE IF NOT EXISTS algorithm_configs (
				learner_id BIGINT PRIMARY KEY,
				parameters TEXT NOT NULL,
				target_retention DOUBLE PRECISION NOT NULL DEFAULT 0.9,
				maximum_interval_days INTEGER NOT NULL DEFAULT 36500,
				learning_steps TEXT NOT NULL,
				relearning_steps TEXT NOT NULL,
				graduation_stability DOUBLE PRECISION NOT NULL DEFAULT 1.0,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
	},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_cards_due ON cards (learner_id, next_review_at)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_lapses ON cards (learner_id, lapse_count)`,
	`CREATE INDEX IF NOT EXISTS idx_review_history_card ON review_history (card_id, reviewed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_review_history_session ON review_history (session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_leech_records_learner ON leech_records (learner_id, detected_at)`,
}

// initializeSchema creates necessary tables if they don't exist
func (s *Store) initializeSchema() error {
	for _, t := range tables {
		ddl := t.sqlite
		if s.driver == DriverPostgres {
			ddl = t.postgres
		}
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
