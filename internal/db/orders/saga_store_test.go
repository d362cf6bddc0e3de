package ordersdb

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSagaStepLog_InitSchema(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_saga_steps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	if _, err := NewSagaStepLogWithSchema(context.Background(), db); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
}

func TestSagaStepLog_AddStep(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO order_saga_steps").
		WithArgs("order-1", "reserve", "succeeded", "pre-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	steps := NewSagaStepLog(db)
	if err := steps.AddStep(context.Background(), "order-1", "reserve", "succeeded", "pre-1"); err != nil {
		t.Fatalf("AddStep: %v", err)
	}
}

func TestSagaStepLog_AddStepError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO order_saga_steps").
		WillReturnError(errors.New("fk violation"))
	mock.ExpectClose()

	steps := NewSagaStepLog(db)
	if err := steps.AddStep(context.Background(), "order-x", "reserve", "started", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSagaStepLog_Steps(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("SELECT step, status").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"step", "status", "detail"}).
			AddRow("reserve", "started", "").
			AddRow("reserve", "succeeded", "pre-1"))
	mock.ExpectClose()

	steps := NewSagaStepLog(db)
	got, err := steps.Steps(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(got) != 2 || got[1].Status != "succeeded" || got[1].Detail != "pre-1" {
		t.Fatalf("unexpected steps: %+v", got)
	}
}
