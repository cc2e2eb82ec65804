package cli

import (
	"fmt"
	"log"
	"time"

	"clinical-case-service/internal/config"
	"clinical-case-service/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads case definitions into the Postgres catalog.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert cases and daily challenges into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			var bundle postgres.SeedBundle
			if file == "" {
				bundle, err = sampleBundle(time.Now())
			} else {
				bundle, err = postgres.ReadSeedFile(file)
				scheduleUndated(&bundle, time.Now())
			}
			if err != nil {
				return err
			}

			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			db := postgres.OpenDB(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.Seed(cmd.Context(), db, bundle); err != nil {
				return err
			}
			log.Printf("seeded %d cases and %d daily challenges", len(bundle.Cases), len(bundle.DailyChallenges))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with cases and dailyChallenges (defaults to the bundled demo cases)")
	return cmd
}
