package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"offer-wizard/internal/domain"
)

// PostgresStore is a ConversationStore over a Postgres table, for
// deployments that already run a relational database instead of DynamoDB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection, pings it, and ensures the table
// exists.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("repository: open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS offer_conversations (
		session_id  TEXT        NOT NULL,
		page        TEXT        NOT NULL,
		questions   JSONB       NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, page)
	);

	CREATE INDEX IF NOT EXISTS idx_offer_conversations_updated ON offer_conversations (updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("repository: create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPage(ctx context.Context, sessionID string, page domain.Page) ([]domain.Question, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT questions FROM offer_conversations WHERE session_id = $1 AND page = $2`,
		sessionID, string(page),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: GetPage: %w", err)
	}
	var qs []domain.Question
	if err := json.Unmarshal(doc, &qs); err != nil {
		return nil, fmt.Errorf("repository: GetPage unmarshal: %w", err)
	}
	return qs, nil
}

func (s *PostgresStore) ReplacePage(ctx context.Context, sessionID string, page domain.Page, questions []domain.Question) error {
	doc, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("repository: marshal questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offer_conversations (session_id, page, questions, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, page) DO UPDATE SET questions = $3, updated_at = NOW()
	`, sessionID, string(page), doc)
	if err != nil {
		return fmt.Errorf("repository: ReplacePage: %w", err)
	}
	return nil
}

// AppendQuestion reads, extends, and rewrites the page document inside one
// transaction with the row locked.
func (s *PostgresStore) AppendQuestion(ctx context.Context, sessionID string, page domain.Page, q domain.Question) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("repository: AppendQuestion begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := pageForUpdate(ctx, tx, sessionID, page)
	if err != nil {
		return false, err
	}
	next, appended, err := appendQuestion(current, q)
	if err != nil {
		return false, err
	}
	if !appended {
		return false, nil
	}
	if err := writePage(ctx, tx, sessionID, page, next); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("repository: AppendQuestion commit: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) UpdateResponse(ctx context.Context, sessionID string, page domain.Page, questionID string, response []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: UpdateResponse begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := pageForUpdate(ctx, tx, sessionID, page)
	if err != nil {
		return err
	}
	if err := updateResponse(current, questionID, response); err != nil {
		return err
	}
	if err := writePage(ctx, tx, sessionID, page, current); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: UpdateResponse commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearPage(ctx context.Context, sessionID string, page domain.Page) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM offer_conversations WHERE session_id = $1 AND page = $2`,
		sessionID, string(page),
	); err != nil {
		return fmt.Errorf("repository: ClearPage: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM offer_conversations WHERE session_id = $1`,
		sessionID,
	); err != nil {
		return fmt.Errorf("repository: ClearSession: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func pageForUpdate(ctx context.Context, tx *sql.Tx, sessionID string, page domain.Page) ([]domain.Question, error) {
	var doc []byte
	err := tx.QueryRowContext(ctx,
		`SELECT questions FROM offer_conversations WHERE session_id = $1 AND page = $2 FOR UPDATE`,
		sessionID, string(page),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: select for update: %w", err)
	}
	var qs []domain.Question
	if err := json.Unmarshal(doc, &qs); err != nil {
		return nil, fmt.Errorf("repository: unmarshal questions: %w", err)
	}
	return qs, nil
}

func writePage(ctx context.Context, tx *sql.Tx, sessionID string, page domain.Page, questions []domain.Question) error {
	doc, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("repository: marshal questions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO offer_conversations (session_id, page, questions, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, page) DO UPDATE SET questions = $3, updated_at = NOW()
	`, sessionID, string(page), doc); err != nil {
		return fmt.Errorf("repository: write page: %w", err)
	}
	return nil
}
