package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/screen-productivity/internal/cli"
	"github.com/fpang/screen-productivity/internal/pipeline"
	"github.com/fpang/screen-productivity/internal/report"
	"github.com/fpang/screen-productivity/internal/s3util"
	"github.com/fpang/screen-productivity/internal/workflow"
)

var (
	imageFlag  string
	outputFlag string
	rawFlag    bool
	widthFlag  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a screenshot and print its productivity report",
	Long: `Analyze runs the full pipeline: compress the screenshot, submit it,
poll the workflow, and render the three-stage report.

With no --image a file picker opens (or a terminal prompt when no desktop
session is available). --output writes the report to a local path or an
s3://bucket/key URI; a .md suffix selects Markdown, anything else JSON, and a
trailing .zst compresses with zstd.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&imageFlag, "image", "i", "", "Screenshot path or s3:// URI")
	f.StringVarP(&outputFlag, "output", "o", "", "Write the report to this path or s3:// URI")
	f.BoolVar(&rawFlag, "raw", false, "Print the report as JSON instead of rendered Markdown")
	f.IntVar(&widthFlag, "width", 100, "Wrap width for rendered output")
	addImageFlags(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if cfg.Endpoint == "" {
		return errors.New("no endpoint configured (set --endpoint, PRODUCTIVITY_ENDPOINT or endpoint in config.yaml)")
	}

	data, source, err := loadImage(ctx, imageFlag)
	if err != nil {
		return err
	}

	statusSource, err := cli.NewStatusSource(ctx, cfg)
	if err != nil {
		return err
	}
	client := pipeline.NewClient(
		cfg.Image.PrepOptions(),
		workflow.NewSubmitter(cfg.Endpoint, cfg.Image.CeilingBytes),
		workflow.NewPoller(statusSource, cfg.Poll.Interval, cfg.Poll.MaxAttempts),
	)

	fmt.Fprintf(os.Stderr, "Analyzing %s ...\n", source)
	start := time.Now()
	r, err := client.Analyze(ctx, data)
	if err != nil {
		return cli.LogPipelineError(err)
	}
	fmt.Fprintf(os.Stderr, "Done in %s\n", cli.FormatDurationShort(time.Since(start)))

	if err := printReport(r); err != nil {
		return err
	}
	if outputFlag != "" {
		return exportReport(cmd, r, outputFlag)
	}
	return nil
}

func printReport(r *report.Report) error {
	if rawFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Print(cli.RenderMarkdown(r.Markdown(), widthFlag))
	return nil
}

func exportReport(cmd *cobra.Command, r *report.Report, target string) error {
	var putter s3util.ObjectPutter
	if strings.HasPrefix(target, "s3://") {
		awsCfg, err := cli.InitAWS(cmd.Context(), cfg.Region)
		if err != nil {
			return err
		}
		putter = s3.NewFromConfig(awsCfg)
	}
	if err := report.NewExporter(putter).Export(cmd.Context(), r, target); err != nil {
		return err
	}
	log.Info().Str("target", target).Msg("Report exported")
	return nil
}
