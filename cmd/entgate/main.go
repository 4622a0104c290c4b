package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archvision/entgate/internal/store"
)

var (
	pgDSN    string
	useMem   bool
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "entgate",
		Short: "entgate - tenant entitlement and permission gateway",
		Long:  "Evaluates user actions against tenant product activations, entitlement grants, asset ownership and roles.",
	}

	rootCmd.PersistentFlags().StringVar(&pgDSN, "postgres", "", "Postgres DSN (defaults to ENTGATE_POSTGRES_DSN)")
	rootCmd.PersistentFlags().BoolVar(&useMem, "memory", false, "Use the in-memory store (demo/testing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")

	rootCmd.AddCommand(
		serveCmd(),
		evaluateCmd(),
		quotaCmd(),
		tenantCmd(),
		roleCmd(),
		assetCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getStore(ctx context.Context) (store.Store, error) {
	if useMem {
		return store.NewMemoryStore(), nil
	}
	dsn := pgDSN
	if dsn == "" {
		dsn = os.Getenv("ENTGATE_POSTGRES_DSN")
	}
	if dsn == "" {
		return nil, fmt.Errorf("no store configured: pass --postgres, set ENTGATE_POSTGRES_DSN, or use --memory")
	}
	return store.NewPostgresStore(ctx, dsn)
}
