package ordersdb

import (
	"context"
	"database/sql"
)

// SagaStepLog appends saga step rows for orders in Postgres.
type SagaStepLog struct {
	db *sql.DB
}

// NewSagaStepLog constructs a SagaStepLog backed by Postgres.
func NewSagaStepLog(db *sql.DB) *SagaStepLog {
	return &SagaStepLog{db: db}
}

// NewSagaStepLogWithSchema initializes the schema then returns the log.
// The orders table must already exist.
func NewSagaStepLogWithSchema(ctx context.Context, db *sql.DB) (*SagaStepLog, error) {
	steps := NewSagaStepLog(db)
	if err := steps.InitSchema(ctx); err != nil {
		return nil, err
	}
	return steps, nil
}

// InitSchema creates the saga steps table if it does not exist.
func (s *SagaStepLog) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_saga_steps (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		)
	`)
	return err
}

// AddStep appends a saga step row.
func (s *SagaStepLog) AddStep(ctx context.Context, orderID, step, status, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_saga_steps (order_id, step, status, detail)
		VALUES ($1, $2, $3, $4)`,
		orderID, step, status, detail,
	)
	return err
}

// Steps returns the recorded steps of an order in insertion order.
func (s *SagaStepLog) Steps(ctx context.Context, orderID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, status, COALESCE(detail, '')
		FROM order_saga_steps
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.Step, &st.Status, &st.Detail); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Step is one recorded saga step.
type Step struct {
	Step   string
	Status string
	Detail string
}
