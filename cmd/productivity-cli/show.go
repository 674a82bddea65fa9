package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/screen-productivity/internal/report"
)

var showCmd = &cobra.Command{
	Use:   "show <report>",
	Short: "Render a report saved by analyze --output",
	Long: `Show reads a JSON report from a local path or an s3://bucket/key URI and
renders it like analyze output. A trailing .zst is decompressed first.
Markdown exports are already rendered text and cannot be read back.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the report as JSON instead of rendered Markdown")
	showCmd.Flags().IntVar(&widthFlag, "width", 100, "Wrap width for rendered output")
}

func runShow(cmd *cobra.Command, args []string) error {
	data, err := readSource(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	r, err := report.Parse(data, args[0])
	if err != nil {
		return fmt.Errorf("failed to read report %s: %w", args[0], err)
	}
	return printReport(r)
}
