package recall

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assessCmd = &cobra.Command{
	Use:   "assess <type>",
	Short: "Assess the quality of every live record of a type",
	Long: `Score every live record of a type against the configured validators
and print the results worst first, flagging records below the quality
threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)
	assessCmd.Flags().Bool("failing-only", false, "only print records below the threshold")
}

func runAssess(cmd *cobra.Command, args []string) error {
	r, _, _, err := open(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	batch, err := r.AssessQualityByType(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	failingOnly, _ := cmd.Flags().GetBool("failing-only")
	out := cmd.OutOrStdout()
	for _, report := range batch.Reports {
		if failingOnly && !report.BelowThreshold {
			continue
		}
		flag := " "
		if report.BelowThreshold {
			flag = "!"
		}
		fmt.Fprintf(out, "%s %.2f  %s\n", flag, report.OverallScore, report.RecordID)
		for _, s := range report.Suggestions {
			fmt.Fprintf(out, "      - %s\n", s)
		}
	}
	for id, reason := range batch.Failures {
		fmt.Fprintf(out, "x assessment failed for %s: %s\n", id, reason)
	}
	fmt.Fprintf(out, "assessed %d record(s), %d below threshold\n", batch.Assessed, batch.BelowThreshold)
	return nil
}
