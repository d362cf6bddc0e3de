package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	ordersdb "checkout/internal/db/orders"
	"checkout/internal/orders"
)

var openOrderDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildOrderService wires an OrderService from the Postgres DSN. If the DSN is
// empty or initialization fails, orders are kept in memory. The returned
// cleanup closes any external resources.
func buildOrderService(ctx context.Context, dsn string, gateway orders.Gateway, publisher orders.Publisher, logf func(format string, args ...any)) (*orders.OrderService, func()) {
	if logf == nil {
		logf = log.Printf
	}

	cleanup := func() {}
	var store orders.OrderStore = orders.NewInMemoryOrderStore()
	opts := []orders.Option{
		orders.WithPublisher(publisher),
		orders.WithLogger(logf),
	}

	if dsn != "" {
		sqlDB, err := openOrderDB("pgx", dsn)
		if err != nil {
			logf("postgres open failed, falling back to in-memory orders: %v", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			pgStore, err := ordersdb.NewPostgresOrderStoreWithSchema(setupCtx, sqlDB)
			var steps *ordersdb.SagaStepLog
			if err == nil {
				steps, err = ordersdb.NewSagaStepLogWithSchema(setupCtx, sqlDB)
			}
			if err != nil {
				logf("postgres init failed, falling back to in-memory orders: %v", err)
				_ = sqlDB.Close()
			} else {
				logf("postgres order store enabled")
				store = pgStore
				opts = append(opts, orders.WithStepLog(steps))
				cleanup = func() {
					if err := sqlDB.Close(); err != nil {
						logf("close postgres: %v", err)
					}
				}
			}
		}
	}

	return orders.NewOrderService(store, gateway, opts...), cleanup
}
