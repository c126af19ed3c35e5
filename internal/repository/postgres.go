package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/diapredict-server/internal/domain"
)

// PostgresStore implements domain.EvaluationStore backed by PostgreSQL.
// The metrics and risk-factor columns are JSONB so the row stays readable
// without joins.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a PostgreSQL evaluation store.
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

// Save inserts an evaluation record.
func (s *PostgresStore) Save(ctx context.Context, record *domain.EvaluationRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	metricsJSON, err := json.Marshal(record.Metrics)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	riskFactorsJSON, err := json.Marshal(record.RiskFactors)
	if err != nil {
		return fmt.Errorf("marshaling risk factors: %w", err)
	}

	query := `
		INSERT INTO evaluations (
			id, request_id, metrics, label,
			confidence, risk_factors, processing_time_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err = s.db.Exec(ctx, query,
		record.ID,
		record.RequestID,
		metricsJSON,
		record.Label.String(),
		record.Confidence,
		riskFactorsJSON,
		record.ProcessingTimeMs,
		record.CreatedAt,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"evaluation_id": record.ID,
			"label":         record.Label,
			"error":         err,
		}).Error("Failed to create evaluation record")
		return fmt.Errorf("creating evaluation record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"evaluation_id":   record.ID,
		"label":           record.Label,
		"processing_time": record.ProcessingTimeMs,
	}).Info("Evaluation record created")

	return nil
}

// GetByID retrieves one evaluation record.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	query := `
		SELECT id, request_id, metrics, label,
			confidence, risk_factors, processing_time_ms, created_at
		FROM evaluations
		WHERE id = $1`

	record, err := scanPostgresEvaluation(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting evaluation record: %w", err)
	}
	return record, nil
}

// List returns stored evaluations with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.EvaluationRecord, error) {
	query := `
		SELECT id, request_id, metrics, label,
			confidence, risk_factors, processing_time_ms, created_at
		FROM evaluations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing evaluation records: %w", err)
	}
	defer rows.Close()

	var result []*domain.EvaluationRecord
	for rows.Next() {
		record, err := scanPostgresEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning evaluation row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
// Count returns the total number of stored evaluations.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting evaluation records: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	return nil
}

func scanPostgresEvaluation(row pgx.Row) (*domain.EvaluationRecord, error) {
	record := &domain.EvaluationRecord{}
	var metricsJSON, riskFactorsJSON []byte
	var label string

	err := row.Scan(
		&record.ID, &record.RequestID, &metricsJSON, &label,
		&record.Confidence, &riskFactorsJSON, &record.ProcessingTimeMs, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metricsJSON, &record.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshaling metrics: %w", err)
	}
	if err := json.Unmarshal(riskFactorsJSON, &record.RiskFactors); err != nil {
		return nil, fmt.Errorf("unmarshaling risk factors: %w", err)
	}

	record.Label = domain.PredictionLabel(label)
	return record, nil
}
