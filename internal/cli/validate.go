package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/failure"
)

// ValidateImagePath checks that the path exists and is a regular file, then
// returns the absolute path.
func ValidateImagePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("screenshot not found: %s", path)
		}
		return "", fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", path)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// Hint returns a short operator-facing explanation for a pipeline failure.
func Hint(err error) string {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		return "Unexpected error"
	}
	switch fe.Kind {
	case failure.KindInput:
		return "The screenshot could not be read. Check that it is a PNG, JPEG, GIF, WebP, BMP or TIFF image"
	case failure.KindSizeLimit:
		return fmt.Sprintf("The screenshot could not be compressed under the %d byte limit (smallest attempt %d bytes)", fe.Limit, fe.Size)
	case failure.KindTransport:
		return "Could not reach the analysis service. Check the endpoint and your network connection"
	case failure.KindRemoteJob:
		return "The analysis workflow did not complete"
	case failure.KindStreamDecode:
		return "The model response stream was malformed"
	default:
		return "Analysis failed"
	}
}

// LogPipelineError logs err with its hint and the failing stage, and
// returns err unchanged.
func LogPipelineError(err error) error {
	ev := log.Error().Err(err)
	var fe *failure.Error
	if errors.As(err, &fe) {
		ev = ev.Str("kind", fe.Kind.String()).Str("stage", fe.Stage)
	}
	ev.Msg(Hint(err))
	return err
}
