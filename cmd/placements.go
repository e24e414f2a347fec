package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/analysis"
	"github.com/sells-group/ria-hunter/internal/match"
)

var placementsCmd = &cobra.Command{
	Use:   "placements",
	Short: "Analyze and apply private fund placement activity",
}

var placementsAnalyzeCmd = &cobra.Command{
	Use:   "analyze [raw_dir] [output_file]",
	Short: "Aggregate Schedule D 7.B(1) private fund filings",
	Long: `Joins the private fund schedules against the base filings, keeps
advisers in the configured location, and aggregates fund counts and gross
assets per adviser.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rawDir := argOr(args, 0, "data/raw")
		out := argOr(args, 1, "data/processed/private_placements.csv")

		a := &analysis.Analyzer{
			RawDir:        rawDir,
			City:          cfg.Analysis.City,
			State:         cfg.Analysis.State,
			CityVariants:  cfg.Analysis.CityVariants,
			MinFundAssets: cfg.Analysis.MinFundAssets,
		}
		rows, err := a.Run(ctx)
		if err != nil {
			return err
		}
		if err := analysis.WriteAnalysisCSV(out, rows); err != nil {
			return err
		}

		fmt.Printf("Wrote %d advisers to %s\n", len(rows), out)
		return nil
	},
}

var placementsApplyCmd = &cobra.Command{
	Use:   "apply [analysis_file]",
	Short: "Reconcile analysis results against stored profiles",
	Long: `Matches each analyzed adviser against the persisted profiles (exact by
CRD or name, then partial by first name token), writes a reconciliation
report, and updates the matched profiles' placement columns.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "placements.apply"))

		analysisPath := argOr(args, 0, "data/processed/private_placements.csv")
		reportPath, _ := cmd.Flags().GetString("report")
		yes, _ := cmd.Flags().GetBool("yes")

		rows, err := analysis.ReadAnalysisCSV(analysisPath)
		if err != nil {
			return err
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		profiles, err := s.ListProfiles(ctx)
		if err != nil {
			return err
		}

		report := analysis.BuildReport(rows, profiles, match.Default())
		if err := analysis.WriteReportCSV(reportPath, report); err != nil {
			return err
		}

		var matched int
		for _, r := range report {
			if r.CRDNumber != "" {
				matched++
			}
		}
		fmt.Printf("Matched %d of %d advisers (report: %s)\n", matched, len(report), reportPath)
		if matched == 0 {
			return nil
		}

		if !yes && !confirm(fmt.Sprintf("Update %d profiles?", matched)) {
			fmt.Println("Aborted")
			return nil
		}

		now := time.Now().UTC()
		var updated int
		for _, r := range report {
			if r.CRDNumber == "" {
				continue
			}
			err := s.UpdateProfilePlacements(ctx, r.CRDNumber, r.PrivateFundCount, int64(r.PrivateFundAUM), now)
			if err != nil {
				log.Error("placement update failed", zap.String("crd", r.CRDNumber), zap.Error(err))
				continue
			}
			updated++
		}

		fmt.Printf("Updated %d profiles\n", updated)
		return nil
	},
}

// confirm prompts on stdin and accepts y/yes.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	placementsApplyCmd.Flags().String("report", "data/processed/placements_report.csv", "output reconciliation report path")
	placementsApplyCmd.Flags().Bool("yes", false, "apply updates without prompting")

	placementsCmd.AddCommand(placementsAnalyzeCmd)
	placementsCmd.AddCommand(placementsApplyCmd)
	rootCmd.AddCommand(placementsCmd)
}
