package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"sanastro.app/internal/migrate"
)

var (
	dsn     string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Sanastro schema migrations",
	Long: `migrate applies the embedded PostgreSQL migrations and local seed data
for the Sanastro API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dsn == "" {
			return fmt.Errorf("missing DSN: provide via --dsn or DATABASE_DSN")
		}
		return nil
	},
}

// withManager opens the database and runs fn with a manager over the embedded files.
func withManager(cmd *cobra.Command, fn func(ctx context.Context, mgr *migrate.Manager) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	migrations, seeds := migrate.Embedded()
	return fn(ctx, migrate.NewManager(db, migrations, seeds))
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *migrate.Manager) error {
			return mgr.Up(ctx)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *migrate.Manager) error {
			return mgr.Down(ctx)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load local development fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *migrate.Manager) error {
			return mgr.Seed(ctx)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *migrate.Manager) error {
			history, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			for _, item := range history {
				fmt.Fprintln(cmd.OutOrStdout(), item)
			}
			return nil
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List migrations not yet applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *migrate.Manager) error {
			pending, err := mgr.Pending(ctx)
			if err != nil {
				return err
			}
			for _, item := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), item)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("DATABASE_DSN"), "PostgreSQL DSN")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")
	rootCmd.AddCommand(upCmd, downCmd, seedCmd, statusCmd, pendingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
