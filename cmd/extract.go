package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract [raw_dir] [output_dir]",
	Short: "Combine raw ADV base filings into one CSV",
	Long: `Scans the raw data directory for ADV filing period dumps, combines the
base A filings into a single deduplicated CSV, and pulls narrative text out
of the Schedule D miscellaneous files.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "extract"))

		rawDir := argOr(args, 0, "data/raw")
		outDir := argOr(args, 1, "data/processed")

		ex := &extract.Extractor{
			RawDir:        rawDir,
			OutDir:        outDir,
			MaxSampleRows: cfg.Extract.MaxSampleRows,
		}

		log.Info("starting extraction", zap.String("raw_dir", rawDir), zap.String("out_dir", outDir))
		res, err := ex.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Extracted %d rows from %d base files across %d filing periods (%d schedule narratives)\n",
			res.Rows, res.BaseFiles, res.Periods, res.Narratives)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
