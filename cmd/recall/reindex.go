package recall

import (
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the lexical and semantic indexes from the record store",
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	r, _, log, err := open(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := r.Reindex(cmd.Context())
	if err != nil {
		return err
	}
	log.Info("reindexed records", "count", n)
	return nil
}
