package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// aumSanityThreshold flags the thousands-scale reporting bug: the largest
// firms report well above $100M, so a ceiling below that means the whole
// dataset was loaded in thousands.
const (
	aumSentinelPattern  = "%EDWARD JONES%"
	aumSanityThreshold  = 100_000_000
	aumSanityMultiplier = 1000
)

var fixdataCmd = &cobra.Command{
	Use:   "fixdata",
	Short: "Repair known data quality issues in stored profiles",
	Long: `Runs two repairs: rescales AUM when the dataset was loaded in thousands
(detected via a sentinel firm whose real AUM is known to be far larger), and
collapses duplicate profiles sharing a legal name, keeping the highest-AUM
row and repointing advisers at it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "fixdata"))

		yes, _ := cmd.Flags().GetBool("yes")

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		// AUM scale repair.
		maxAUM, found, err := s.MaxProfileAUMForName(ctx, aumSentinelPattern)
		if err != nil {
			return err
		}
		if found && maxAUM > 0 && maxAUM < aumSanityThreshold {
			log.Info("sentinel firm AUM below sanity threshold, rescaling",
				zap.Int64("max_aum", maxAUM))
			if yes || confirm(fmt.Sprintf("Multiply all profile AUM by %d?", aumSanityMultiplier)) {
				n, err := s.ScaleProfileAUM(ctx, aumSanityMultiplier)
				if err != nil {
					return err
				}
				fmt.Printf("Rescaled AUM on %d profiles\n", n)
			}
		} else {
			fmt.Println("AUM scale looks correct")
		}

		// Duplicate profile cleanup. Groups come back ordered by AUM
		// descending, so the first row in each group is the keeper.
		groups, err := s.DuplicateNameGroups(ctx)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicate profiles found")
			return nil
		}

		var doomed []string
		for _, group := range groups {
			keeper := group[0]
			for _, loser := range group[1:] {
				doomed = append(doomed, loser.CRDNumber)
				if loser.CRDNumber == "" || loser.CRDNumber == keeper.CRDNumber {
					continue
				}
				n, err := s.UpdateAdviserCRD(ctx, loser.CRDNumber, keeper.CRDNumber)
				if err != nil {
					return err
				}
				if n > 0 {
					log.Info("repointed advisers",
						zap.String("from_crd", loser.CRDNumber),
						zap.String("to_crd", keeper.CRDNumber),
						zap.Int64("advisers", n))
				}
			}
		}

		fmt.Printf("Found %d duplicate groups (%d profiles to remove)\n", len(groups), len(doomed))
		if !yes && !confirm("Delete duplicate profiles?") {
			fmt.Println("Aborted")
			return nil
		}

		deleted, err := s.DeleteProfiles(ctx, doomed)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d duplicate profiles\n", deleted)
		return nil
	},
}

func init() {
	fixdataCmd.Flags().Bool("yes", false, "apply repairs without prompting")
	rootCmd.AddCommand(fixdataCmd)
}
