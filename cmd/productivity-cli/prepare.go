package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fpang/screen-productivity/internal/cli"
	"github.com/fpang/screen-productivity/internal/imageprep"
	"github.com/fpang/screen-productivity/internal/workflow"
)

var prepareOutFlag string

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Run the compression cascade without submitting",
	Long: `Prepare runs the image cascade locally and reports every step applied,
the final dimensions, and the raw, base64 and envelope sizes measured against
the ceiling. Use --out to keep the prepared image.`,
	Args: cobra.NoArgs,
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Screenshot path or s3:// URI")
	prepareCmd.Flags().StringVar(&prepareOutFlag, "out", "", "Write the prepared image to this path")
	addImageFlags(prepareCmd)
}

// addImageFlags registers the cascade overrides shared by analyze and prepare.
func addImageFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("ceiling", 0, "Base64 size ceiling in bytes")
	f.Int("limit", 0, "Raw encoded size limit in bytes")
	f.Int("max-dimension", 0, "Largest width or height of the first encode")
	f.String("format", "", "Target format: png or jpeg")
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	data, source, err := loadImage(cmd.Context(), imageFlag)
	if err != nil {
		return err
	}

	res, err := imageprep.Prepare(data, cfg.Image.PrepOptions())
	if err != nil {
		return cli.LogPipelineError(err)
	}
	envelope, err := workflow.ValidatePayload(res.Base64, cfg.Image.CeilingBytes)
	if err != nil {
		return cli.LogPipelineError(err)
	}

	fmt.Println("============================================")
	fmt.Println("Image Cascade")
	fmt.Println("============================================")
	fmt.Printf("Source:     %s (%s, %s)\n", source, res.SourceFormat, cli.FormatBytes(len(data)))
	fmt.Printf("Steps:      %s\n", strings.Join(res.Steps, " -> "))
	fmt.Printf("Result:     %s %dx%d\n", res.Format, res.Width, res.Height)
	fmt.Printf("Raw:        %d bytes (limit %d)\n", len(res.Data), cfg.Image.LimitBytes)
	fmt.Printf("Base64:     %d bytes (ceiling %d)\n", res.EncodedSize(), cfg.Image.CeilingBytes)
	fmt.Printf("Envelope:   %d bytes\n", len(envelope))

	if prepareOutFlag != "" {
		if err := os.WriteFile(prepareOutFlag, res.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write prepared image: %w", err)
		}
		fmt.Printf("Written:    %s\n", prepareOutFlag)
	}
	return nil
}
