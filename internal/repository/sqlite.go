// Package repository provides persistent storage for evaluation records.
// Two backends are supported: an embedded SQLite store for single-node
// deployments and a PostgreSQL store for shared ones.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/diapredict-server/internal/domain"
)

// SQLiteStore implements domain.EvaluationStore using an embedded SQLite
// database file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the database file, creating it and the schema if
// they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		request_id TEXT DEFAULT '',
		metrics TEXT NOT NULL,
		label TEXT NOT NULL,
		confidence REAL,
		risk_factors TEXT NOT NULL,
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
	CREATE INDEX IF NOT EXISTS idx_evaluations_label ON evaluations(label);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvaluation(s scanner) (*domain.EvaluationRecord, error) {
	record := &domain.EvaluationRecord{}
	var metricsJSON, riskFactorsJSON, label string
	var confidence sql.NullFloat64

	err := s.Scan(
		&record.ID, &record.RequestID, &metricsJSON, &label,
		&confidence, &riskFactorsJSON, &record.ProcessingTimeMs, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metricsJSON), &record.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(riskFactorsJSON), &record.RiskFactors); err != nil {
		return nil, fmt.Errorf("failed to decode risk factors: %w", err)
	}

	record.Label = domain.PredictionLabel(label)
	if confidence.Valid {
		record.Confidence = &confidence.Float64
	}
	return record, nil
}

// Save stores an evaluation record.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.EvaluationRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	metricsJSON, err := json.Marshal(record.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	riskFactorsJSON, err := json.Marshal(record.RiskFactors)
	if err != nil {
		return fmt.Errorf("failed to encode risk factors: %w", err)
	}

	var confidence sql.NullFloat64
	if record.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *record.Confidence, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (
			id, request_id, metrics, label,
			confidence, risk_factors, processing_time_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.RequestID,
		string(metricsJSON),
		record.Label.String(),
		confidence,
		string(riskFactorsJSON),
		record.ProcessingTimeMs,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// GetByID retrieves one evaluation record.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, metrics, label,
			confidence, risk_factors, processing_time_ms, created_at
		FROM evaluations
		WHERE id = ?
		LIMIT 1
	`, id)

	record, err := scanEvaluation(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan evaluation: %w", err)
	}
	return record, nil
}

// List returns stored evaluations with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, metrics, label,
			confidence, risk_factors, processing_time_ms, created_at
		FROM evaluations
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var result []*domain.EvaluationRecord
	for rows.Next() {
		record, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count returns the total number of stored evaluations.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
