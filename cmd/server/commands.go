package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"checkout/cmd/server/config"
	ordersdb "checkout/internal/db/orders"

	"github.com/spf13/cobra"
)

var Version = "dev"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkout",
		Short:         "Order checkout service backed by the balance provider",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(stepsCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health server and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the order tables in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return migrate(ctx, config.LoadDatabase().URL, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "schema creation timeout")
	return cmd
}

func stepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps [order-id]",
		Short: "Print the recorded saga steps of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSteps(cmd.Context(), config.LoadDatabase().URL, args[0], cmd.OutOrStdout())
		},
	}
}

var errNoDatabase = errors.New("DATABASE_URL is required")

func migrate(ctx context.Context, dsn string, out io.Writer) error {
	if dsn == "" {
		return errNoDatabase
	}
	db, err := openOrderDB("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := ordersdb.NewPostgresOrderStoreWithSchema(ctx, db); err != nil {
		return fmt.Errorf("order tables: %w", err)
	}
	if _, err := ordersdb.NewSagaStepLogWithSchema(ctx, db); err != nil {
		return fmt.Errorf("saga steps table: %w", err)
	}
	fmt.Fprintln(out, "schema up to date")
	return nil
}

func printSteps(ctx context.Context, dsn, orderID string, out io.Writer) error {
	if dsn == "" {
		return errNoDatabase
	}
	db, err := openOrderDB("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	steps, err := ordersdb.NewSagaStepLog(db).Steps(ctx, orderID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Fprintf(out, "no steps recorded for %s\n", orderID)
		return nil
	}
	for _, st := range steps {
		if st.Detail == "" {
			fmt.Fprintf(out, "%-8s %s\n", st.Step, st.Status)
			continue
		}
		fmt.Fprintf(out, "%-8s %-9s %s\n", st.Step, st.Status, st.Detail)
	}
	return nil
}
