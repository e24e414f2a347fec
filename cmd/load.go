package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/loader"
	"github.com/sells-group/ria-hunter/internal/model"
	"github.com/sells-group/ria-hunter/internal/narrative"
	"github.com/sells-group/ria-hunter/internal/profile"
	"github.com/sells-group/ria-hunter/internal/resilience"
)

var loadCmd = &cobra.Command{
	Use:   "load [profiles_csv] [narratives_json]",
	Short: "Load profiles and narratives into the store",
	Long: `Loads canonical profiles and narratives into the database. The load is
idempotent: advisers upsert on their identity key, filings only insert for
advisers without one, and reruns converge instead of duplicating.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "load"))

		profilesPath := argOr(args, 0, "data/processed/ria_profiles.csv")
		narrativesPath := argOr(args, 1, "data/processed/ria_narratives.json")

		profiles, err := profile.ReadCSV(profilesPath)
		if err != nil {
			return err
		}

		var narratives []model.Narrative
		if _, err := os.Stat(narrativesPath); err == nil {
			narratives, err = narrative.ReadJSON(narrativesPath)
			if err != nil {
				return err
			}
		} else {
			log.Warn("narratives file missing, loading profiles only",
				zap.String("path", narrativesPath))
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Migrate(ctx); err != nil {
			return eris.Wrap(err, "load: migrate")
		}

		l := &loader.Loader{
			Store:              s,
			AdviserBatchSize:   cfg.Load.AdviserBatchSize,
			FilingBatchSize:    cfg.Load.FilingBatchSize,
			NarrativeBatchSize: cfg.Load.NarrativeBatchSize,
			LookupChunkSize:    cfg.Load.LookupChunkSize,
			Retry:              resilience.DefaultRetryConfig(),
		}

		summary, err := l.Run(ctx, profiles, narratives)
		if err != nil {
			return err
		}

		fmt.Printf("Loaded %d advisers, %d filings, %d narratives, %d profiles (%d skipped, %d errors)\n",
			summary.AdvisersLoaded, summary.FilingsLoaded, summary.NarrativesLoaded,
			summary.ProfilesLoaded, summary.Skipped, summary.Errors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
