package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/beacon/internal/access"
	"github.com/MikeSquared-Agency/beacon/internal/config"
	"github.com/MikeSquared-Agency/beacon/internal/store"
)

const registerAttempts = 5

func codeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Generate learner access codes",
		Long: `Print freshly generated learner access codes.

With --register each code is stored as a new learner (DATABASE_URL
required) and printed next to the learner id.`,
		RunE: runCode,
	}

	cmd.Flags().IntP("count", "n", 1, "Number of codes")
	cmd.Flags().Bool("register", false, "Create a learner for each code")

	return cmd
}

func runCode(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	register, _ := cmd.Flags().GetBool("register")
	if count < 1 {
		return errors.New("--count must be at least 1")
	}

	if !register {
		for i := 0; i < count; i++ {
			code, err := access.GenerateCode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
		}
		return nil
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required with --register")
	}
	ctx := context.Background()
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := 0; i < count; i++ {
		code, id, err := registerLearner(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, id)
	}
	return nil
}

// registerLearner retries on the rare code collision.
func registerLearner(ctx context.Context, db *store.Store) (string, string, error) {
	for attempt := 0; attempt < registerAttempts; attempt++ {
		code, err := access.GenerateCode()
		if err != nil {
			return "", "", err
		}
		id, err := db.CreateLearner(ctx, code)
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return "", "", err
		}
		return code, id.String(), nil
	}
	return "", "", fmt.Errorf("no free code after %d attempts", registerAttempts)
}
