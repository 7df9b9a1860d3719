package recall

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Apply retention rules and remove expired records",
	Long: `Apply the configured per-type archival rules, then sweep expired
records: expired local records are deleted and deindexed, expired shared
records are archived.`,
	RunE: runSweep,
}

var archiveCmd = &cobra.Command{
	Use:   "archive <type>",
	Short: "Archive live records of a type older than a cutoff",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().Int("older-than", 90, "archive records not modified in this many days")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	r, _, log, err := open(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := cmd.Context()
	archived, err := r.ApplyRetention(ctx)
	if err != nil {
		return fmt.Errorf("applying retention rules: %w", err)
	}
	res, err := r.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweeping expired records: %w", err)
	}
	log.Info("sweep complete",
		"retention_archived", archived,
		"expired_deleted", res.Deleted,
		"expired_archived", res.Archived)
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	r, _, log, err := open(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	days, _ := cmd.Flags().GetInt("older-than")
	n, err := r.Archive(cmd.Context(), args[0], days)
	if err != nil {
		return err
	}
	log.Info("archived records", "type", args[0], "older_than_days", days, "count", n)
	return nil
}
