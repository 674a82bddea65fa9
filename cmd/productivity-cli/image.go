package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/cli"
	"github.com/fpang/screen-productivity/internal/s3util"
)

// loadImage reads the screenshot named by path: an s3:// URI, a local file,
// or (when empty) whatever the user picks interactively.
func loadImage(ctx context.Context, path string) ([]byte, string, error) {
	if path == "" {
		picked, err := cli.PromptForImage()
		if err != nil {
			return nil, "", err
		}
		path = picked
	}

	if _, ok := s3util.ParseURI(path); ok {
		data, err := readSource(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return data, path, nil
	}

	resolved, err := cli.ValidateImagePath(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read screenshot: %w", err)
	}
	log.Debug().Str("path", resolved).Int("bytes", len(data)).Msg("Screenshot loaded")
	return data, resolved, nil
}

// readSource reads an s3:// object or a local file.
func readSource(ctx context.Context, path string) ([]byte, error) {
	loc, ok := s3util.ParseURI(path)
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}
	awsCfg, err := cli.InitAWS(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	return s3util.Download(ctx, s3.NewFromConfig(awsCfg), loc)
}
