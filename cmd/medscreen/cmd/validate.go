package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openbenefits/medscreen/internal/catalog"
	"github.com/openbenefits/medscreen/internal/core/db"
	"github.com/openbenefits/medscreen/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate <catalog.yaml>",
	Short: "Validate a catalog file, optionally seeding it into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("seed", false, "write the validated catalog to the database")
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	file, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	if err := file.Validate(); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				logger.Error("catalog problem", "code", p.Code, "subject", p.Subject, "detail", p.Detail)
			}
			return fmt.Errorf("catalog invalid: %d problem(s)", len(verr.Problems))
		}
		return err
	}

	logger.Info("catalog valid",
		"state", file.StateCode,
		"questions", len(file.Questions),
		"rules", len(file.Rules),
		"steps", len(file.Steps),
	)

	seed, _ := cmd.Flags().GetBool("seed")
	if !seed {
		return nil
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required with --seed")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	store := db.NewStore(queries)

	if err := store.ReplaceCatalog(context.Background(), file.StateCode, file.Questions, file.Rules, file.Steps); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}

	logger.Info("catalog seeded", "state", file.StateCode)
	return nil
}
