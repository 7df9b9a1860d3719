package recall

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/recall"
)

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Export shared records and relationships to a snapshot directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import a snapshot directory, merging by last writer wins",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	exportCmd.Flags().String("format", "jsonl", "snapshot format: jsonl or parquet")
	importCmd.Flags().String("format", "jsonl", "snapshot format: jsonl or parquet")
}

func snapshotFormat(cmd *cobra.Command) (recall.SnapshotFormat, error) {
	raw, _ := cmd.Flags().GetString("format")
	switch raw {
	case "jsonl":
		return recall.FormatJSONL, nil
	case "parquet":
		return recall.FormatParquet, nil
	default:
		return "", fmt.Errorf("unknown snapshot format %q (want jsonl or parquet)", raw)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := snapshotFormat(cmd)
	if err != nil {
		return err
	}
	r, _, log, err := open(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Export(cmd.Context(), args[0], format); err != nil {
		return err
	}
	log.Info("exported snapshot", "dir", args[0], "format", string(format))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	format, err := snapshotFormat(cmd)
	if err != nil {
		return err
	}
	r, _, log, err := open(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.Import(cmd.Context(), args[0], format)
	if err != nil {
		return err
	}
	log.Info("imported snapshot",
		"dir", args[0],
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"edges", res.Edges)
	return nil
}
