package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "migrate", "steps"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected %s subcommand, got %v (%v)", name, cmd, err)
		}
	}
}

func TestStepsCommandRequiresOrderID(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"steps"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestMigrateRequiresDatabase(t *testing.T) {
	if err := migrate(context.Background(), "", &bytes.Buffer{}); !errors.Is(err, errNoDatabase) {
		t.Fatalf("expected errNoDatabase, got %v", err)
	}
}

func TestMigrateCreatesTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	stubOpenOrderDB(t, db, nil)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_items").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_saga_steps").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	var out bytes.Buffer
	if err := migrate(context.Background(), "postgres://orders", &out); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "schema up to date") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrateReportsSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	stubOpenOrderDB(t, db, nil)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	err = migrate(context.Background(), "postgres://orders", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "order tables") {
		t.Fatalf("expected wrapped schema error, got %v", err)
	}
}

func TestPrintSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	stubOpenOrderDB(t, db, nil)

	rows := sqlmock.NewRows([]string{"step", "status", "detail"}).
		AddRow("reserve", "started", "").
		AddRow("reserve", "succeeded", "pre-1")
	mock.ExpectQuery("SELECT step, status").WithArgs("order-1").WillReturnRows(rows)
	mock.ExpectClose()

	var out bytes.Buffer
	if err := printSteps(context.Background(), "postgres://orders", "order-1", &out); err != nil {
		t.Fatalf("print steps: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "reserve") || !strings.HasSuffix(lines[1], "pre-1") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPrintStepsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	stubOpenOrderDB(t, db, nil)

	mock.ExpectQuery("SELECT step, status").WithArgs("order-9").
		WillReturnRows(sqlmock.NewRows([]string{"step", "status", "detail"}))
	mock.ExpectClose()

	var out bytes.Buffer
	if err := printSteps(context.Background(), "postgres://orders", "order-9", &out); err != nil {
		t.Fatalf("print steps: %v", err)
	}
	if !strings.Contains(out.String(), "no steps recorded for order-9") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
