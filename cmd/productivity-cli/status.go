package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fpang/screen-productivity/internal/cli"
	"github.com/fpang/screen-productivity/internal/config"
	"github.com/fpang/screen-productivity/internal/jobs"
	"github.com/fpang/screen-productivity/internal/pipeline"
	"github.com/fpang/screen-productivity/internal/report"
	"github.com/fpang/screen-productivity/internal/workflow"
)

var statusReportFlag bool

var statusCmd = &cobra.Command{
	Use:   "status <execution-arn|name>",
	Short: "Query one workflow execution",
	Long: `Status performs a single status query. A bare execution name is expanded
with the configured state machine ARN when the sfn source is used. With
--report a SUCCEEDED execution is rendered like analyze output.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusReportFlag, "report", false, "Render the report of a succeeded execution")
	statusCmd.Flags().IntVar(&widthFlag, "width", 100, "Wrap width for rendered output")
}

func runStatus(cmd *cobra.Command, args []string) error {
	handle, err := resolveHandle(args[0], cfg)
	if err != nil {
		return err
	}

	src, err := cli.NewStatusSource(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	st, err := src.Describe(cmd.Context(), handle)
	if err != nil {
		return cli.LogPipelineError(err)
	}

	if !statusReportFlag || st.Status != workflow.StatusSucceeded {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(workflow.StatusResponse(st))
	}

	output, err := pipeline.DecodeOutput(st.Output)
	if err != nil {
		return cli.LogPipelineError(err)
	}
	r := &report.Report{ExecutionArn: string(handle), Analysis: report.Reconstruct(output)}
	fmt.Print(cli.RenderMarkdown(r.Markdown(), widthFlag))
	return nil
}

// resolveHandle turns a bare execution name into an ARN when the sfn source
// needs one. The http source accepts either form.
func resolveHandle(arg string, c *config.Config) (workflow.JobHandle, error) {
	if strings.HasPrefix(arg, "arn:") || c.StatusSource != config.StatusSourceSFN {
		return workflow.JobHandle(arg), nil
	}
	if c.StateMachineArn == "" {
		return "", fmt.Errorf("execution name %q needs --state-machine to build an ARN", arg)
	}
	name := arg
	if !strings.HasPrefix(name, jobs.ExecutionPrefix) {
		name = jobs.ExecutionPrefix + name
	}
	arn, err := jobs.ExecutionArn(c.StateMachineArn, name)
	if err != nil {
		return "", err
	}
	return workflow.JobHandle(arn), nil
}
