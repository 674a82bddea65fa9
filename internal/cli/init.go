package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/config"
	"github.com/fpang/screen-productivity/internal/workflow"
)

// InitAWS loads the shared AWS config for the given region.
func InitAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// NewStatusSource builds the configured job status source. The sfn source
// needs AWS credentials; the http source only needs the endpoint.
func NewStatusSource(ctx context.Context, cfg *config.Config) (workflow.StatusSource, error) {
	switch cfg.StatusSource {
	case config.StatusSourceSFN:
		awsCfg, err := InitAWS(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return workflow.NewSFNStatusSource(sfn.NewFromConfig(awsCfg)), nil
	case config.StatusSourceHTTP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("status source %q needs an endpoint", cfg.StatusSource)
		}
		return workflow.NewHTTPStatusSource(cfg.Endpoint), nil
	default:
		return nil, fmt.Errorf("unknown status source %q", cfg.StatusSource)
	}
}

// RenderMarkdown renders md for the terminal. On renderer failure the raw
// markdown is returned.
func RenderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Debug().Err(err).Msg("Markdown renderer unavailable")
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		log.Debug().Err(err).Msg("Markdown render failed")
		return md
	}
	return out
}
