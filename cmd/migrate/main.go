package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/config"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/repository/postgres"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the Prompt Master database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newUpCmd(), newDownCmd(), newStatusCmd(), newImportLegacyCmd())
	return root
}

// connect opens the configured database. The caller closes it.
func connect() (*config.Config, *postgres.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Up(cmd.Context(), db.DB, db.Driver()); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func newDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}

			_, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Down(cmd.Context(), db.DB, db.Driver(), steps); err != nil {
				return err
			}
			fmt.Printf("Rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, ok, err := migrations.Version(cmd.Context(), db.DB, db.Driver())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("No migrations applied")
				return nil
			}
			fmt.Printf("Version %d", version)
			if dirty {
				fmt.Print(" (dirty: fix the schema, then force the version)")
			}
			fmt.Println()
			return nil
		},
	}
}

func newImportLegacyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import exported legacy account documents",
		Long: `Reads a JSON object mapping user id to the raw legacy account document
and stores each one for normalization on first access. Users that already
have an account are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			var docs map[string]json.RawMessage
			if err := json.Unmarshal(raw, &docs); err != nil {
				return fmt.Errorf("%s is not a user-id keyed JSON object: %w", file, err)
			}

			cfg, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Up(cmd.Context(), db.DB, db.Driver()); err != nil {
				return err
			}

			loc, err := cfg.Ledger.Location()
			if err != nil {
				return fmt.Errorf("invalid ledger timezone %q: %w", cfg.Ledger.Timezone, err)
			}
			repo := postgres.NewAccountRepository(db, nil, loc, logger.Nop())

			var imported, skipped int
			for userID, doc := range docs {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				inserted, err := repo.ImportLegacy(ctx, userID, doc)
				cancel()
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", userID, err)
				}
				if inserted {
					imported++
				} else {
					skipped++
				}
			}

			fmt.Printf("Imported %d account(s), skipped %d existing\n", imported, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the exported JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
