package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"checkout/cmd/server/config"
	"checkout/internal/balance"
	"checkout/internal/events"
	"checkout/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

type spyBroadcaster struct {
	msgs [][]byte
}

func (s *spyBroadcaster) Broadcast(msg []byte) {
	s.msgs = append(s.msgs, msg)
}

type logRecorder struct {
	lines []string
}

func (l *logRecorder) logf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logRecorder) contains(substr string) bool {
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func stubOpenOrderDB(t *testing.T, db *sql.DB, err error) *int {
	t.Helper()
	calls := 0
	prev := openOrderDB
	openOrderDB = func(driver, dsn string) (*sql.DB, error) {
		calls++
		if driver != "pgx" {
			t.Fatalf("unexpected driver %q", driver)
		}
		return db, err
	}
	t.Cleanup(func() { openOrderDB = prev })
	return &calls
}

func TestBuildOrderServiceInMemoryWithoutDSN(t *testing.T) {
	calls := stubOpenOrderDB(t, nil, errors.New("must not open"))

	svc, cleanup := buildOrderService(context.Background(), "", nil, nil, nil)
	defer cleanup()

	if svc == nil {
		t.Fatalf("expected service")
	}
	if *calls != 0 {
		t.Fatalf("expected no database to be opened")
	}
}

func TestBuildOrderServiceUsesPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	stubOpenOrderDB(t, db, nil)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_items").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_saga_steps").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	logs := &logRecorder{}
	svc, cleanup := buildOrderService(context.Background(), "postgres://orders", nil, nil, logs.logf)
	if svc == nil {
		t.Fatalf("expected service")
	}
	cleanup()

	if !logs.contains("postgres order store enabled") {
		t.Fatalf("expected postgres to be enabled, logs: %v", logs.lines)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuildOrderServiceFallsBackOnSchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	stubOpenOrderDB(t, db, nil)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	logs := &logRecorder{}
	svc, cleanup := buildOrderService(context.Background(), "postgres://orders", nil, nil, logs.logf)
	defer cleanup()

	if svc == nil {
		t.Fatalf("expected in-memory service")
	}
	if !logs.contains("falling back to in-memory orders") {
		t.Fatalf("expected fallback log, got %v", logs.lines)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuildOrderServiceFallsBackOnOpenError(t *testing.T) {
	stubOpenOrderDB(t, nil, errors.New("bad dsn"))

	logs := &logRecorder{}
	svc, cleanup := buildOrderService(context.Background(), "postgres://orders", nil, nil, logs.logf)
	defer cleanup()

	if svc == nil || !logs.contains("postgres open failed") {
		t.Fatalf("expected fallback after open error, logs: %v", logs.lines)
	}
}

func orderEvent(status string) events.OrderEvent {
	return events.OrderEvent{
		Type:        events.TypeOrderStatus,
		OrderID:     "order-1",
		Status:      status,
		TotalAmount: decimal.RequireFromString("35.50"),
		OccurredAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBuildEventPublisherWithoutRedis(t *testing.T) {
	metrics := observability.NewMetrics()
	hub := &spyBroadcaster{}

	pub, cleanup, err := buildEventPublisher(context.Background(), config.RedisConfig{}, hub, metrics)
	if err != nil {
		t.Fatalf("build publisher: %v", err)
	}
	defer cleanup()

	if err := pub.Publish(context.Background(), orderEvent("Created")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(hub.msgs) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(hub.msgs))
	}
	if got := metrics.Snapshot().OrderTransitions["Created"]; got != 1 {
		t.Fatalf("expected transition counted, got %d", got)
	}
}

func TestBuildEventPublisherWritesRedisStream(t *testing.T) {
	mr := miniredis.RunT(t)
	hub := &spyBroadcaster{}
	cfg := config.RedisConfig{
		Enabled:            true,
		URL:                "redis://" + mr.Addr() + "/0",
		HealthcheckTimeout: time.Second,
		EventTTL:           time.Hour,
		StreamMaxLen:       100,
	}

	pub, cleanup, err := buildEventPublisher(context.Background(), cfg, hub, nil)
	if err != nil {
		t.Fatalf("build publisher: %v", err)
	}
	defer cleanup()

	if err := pub.Publish(context.Background(), orderEvent("PaymentReserved")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := mr.HGet("order:order-1", "status"); got != "PaymentReserved" {
		t.Fatalf("expected status in redis, got %q", got)
	}
	if len(hub.msgs) != 1 {
		t.Fatalf("expected broadcast after stream write")
	}
}

func TestBuildEventPublisherPingFails(t *testing.T) {
	dial := 20 * time.Millisecond
	cfg := config.RedisConfig{
		Enabled:            true,
		URL:                "redis://127.0.0.1:1/0",
		DialTimeout:        &dial,
		HealthcheckTimeout: 30 * time.Millisecond,
	}

	if _, _, err := buildEventPublisher(context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestBuildEventPublisherRejectsBadURL(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, URL: "not a url"}

	if _, _, err := buildEventPublisher(context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected url parse error")
	}
}

func TestGatewayObserverCountsEvents(t *testing.T) {
	metrics := observability.NewMetrics()
	logs := &logRecorder{}
	observe := gatewayObserver(metrics, logs.logf)

	observe(balance.Event{Kind: balance.EventRetry, Operation: balance.OpReserve, Family: balance.FamilyBalance, Attempt: 1, Delay: 2 * time.Second, Err: errors.New("503")})
	observe(balance.Event{Kind: balance.EventBreakerOpen, Family: balance.FamilyBalance, Err: errors.New("503")})

	snap := metrics.Snapshot()
	if snap.GatewayEvents["reserve.retry"] != 1 || snap.GatewayEvents["balance.breaker_open"] != 1 {
		t.Fatalf("unexpected gateway events: %+v", snap.GatewayEvents)
	}
	if !logs.contains("retry 1 in 2s") || !logs.contains("balance breaker: breaker_open") {
		t.Fatalf("unexpected logs: %v", logs.lines)
	}
}
