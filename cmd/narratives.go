package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/extract"
	"github.com/sells-group/ria-hunter/internal/model"
	"github.com/sells-group/ria-hunter/internal/narrative"
	"github.com/sells-group/ria-hunter/internal/profile"
)

var narrativesCmd = &cobra.Command{
	Use:   "narratives [profiles_csv] [output_file]",
	Short: "Synthesize adviser narratives from profiles",
	Long: `Builds one natural language description per profile from the canonical
fields. With --raw-dir set, Form CRS relationship summary text is extracted
and appended as additional narratives.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("command", "narratives"))

		profilesPath := argOr(args, 0, "data/processed/ria_profiles.csv")
		out := argOr(args, 1, "data/processed/ria_narratives.json")
		rawDir, _ := cmd.Flags().GetString("raw-dir")

		profiles, err := profile.ReadCSV(profilesPath)
		if err != nil {
			return err
		}

		narratives := narrative.BuildAll(profiles)
		log.Info("built profile narratives", zap.Int("count", len(narratives)))

		schedulesPath, _ := cmd.Flags().GetString("schedules")
		if _, err := os.Stat(schedulesPath); err == nil {
			segs, err := extract.ReadScheduleNarratives(schedulesPath)
			if err != nil {
				return err
			}
			log.Info("merged schedule narratives", zap.Int("count", len(segs)))
			for _, seg := range segs {
				narratives = append(narratives, model.Narrative{
					Narrative: seg.Text,
					Source:    seg.Source,
				})
			}
		}

		if rawDir != "" {
			crs, err := narrative.ExtractCRS(rawDir)
			if err != nil {
				return err
			}
			log.Info("extracted crs narratives", zap.Int("count", len(crs)))
			narratives = append(narratives, crs...)
		}

		if err := narrative.WriteJSON(out, narratives); err != nil {
			return err
		}

		fmt.Printf("Wrote %d narratives to %s\n", len(narratives), out)
		return nil
	},
}

func init() {
	narrativesCmd.Flags().String("schedules", "data/processed/schedule_d_narratives.json", "schedule narratives JSON to merge (skipped if missing)")
	narrativesCmd.Flags().String("raw-dir", "", "raw data directory to scan for Form CRS text (optional)")
	rootCmd.AddCommand(narrativesCmd)
}
