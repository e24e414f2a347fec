package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/adv"
	"github.com/sells-group/ria-hunter/internal/extract"
	"github.com/sells-group/ria-hunter/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [input_dir] [output_file]",
	Short: "Map the combined ADV CSV to canonical profiles",
	Long: `Reads the combined base filing CSV and maps the raw ADV item columns to
canonical adviser profiles with normalized identifiers, coerced numerics,
and labeled service and client type sets.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("command", "profiles"))

		dataDir := argOr(args, 0, "data/processed")
		out := argOr(args, 1, "data/processed/ria_profiles.csv")

		combined := filepath.Join(dataDir, extract.CombinedFileName)
		table, _, err := adv.ReadCSVFile(combined)
		if err != nil {
			return err
		}
		log.Info("read combined filings", zap.Int("rows", len(table.Rows)))

		b := profile.Builder{}
		profiles := b.Build(table)
		if err := profile.WriteCSV(out, profiles); err != nil {
			return err
		}

		fmt.Printf("Wrote %d profiles to %s\n", len(profiles), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
