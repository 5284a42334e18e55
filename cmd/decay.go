package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brainspark/engine/internal/config"
	"github.com/brainspark/engine/internal/logger"
	"github.com/brainspark/engine/internal/mastery"
	"github.com/brainspark/engine/internal/store"
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Persist the mastery forgetting pass",
	Long: "Recomputes and stores decayed mastery scores for inactive topics.\n" +
		"Reads already apply decay on the fly; this pass writes the decayed\n" +
		"values back so stored scores stay honest. Safe to run on a schedule,\n" +
		"repeated runs are no-ops.",
	RunE: runDecay,
}

func init() {
	decayCmd.Flags().String("user", "", "Decay a single user's topics (default: all users)")
}

func runDecay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	dbPath := cfg.DBPath
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		dbPath = p
	}
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return err
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	svc := mastery.NewService(st, cfg.Bands, cfg.Decay)
	ctx := cmd.Context()

	users := []string{}
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		users = append(users, u)
	} else {
		users, err = st.MasteryUserIDs(ctx)
		if err != nil {
			return err
		}
	}

	for _, u := range users {
		if err := svc.ApplyDecay(ctx, u); err != nil {
			return fmt.Errorf("decay user %s: %w", u, err)
		}
		log.Info("decay applied", "user", u)
	}
	log.Info("decay pass complete", "users", len(users))
	return nil
}
