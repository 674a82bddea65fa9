package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// ErrNoImage is returned when the user cancels image selection.
var ErrNoImage = errors.New("no screenshot selected")

// imagePatterns lists the formats the cascade can decode.
var imagePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.bmp", "*.tif", "*.tiff",
}

// PromptForImage opens a native file picker for a screenshot. When no picker
// is available (headless session, no zenity backend) it falls back to a
// terminal prompt on stdin.
func PromptForImage() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select a screenshot"),
		zenity.FileFilters{
			{Name: "Screenshots", Patterns: imagePatterns},
		},
	)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrNoImage
	}
	log.Debug().Err(err).Msg("File picker unavailable, prompting on terminal")
	return PromptForPath(os.Stdin, os.Stderr, "Screenshot path: ")
}

// PromptForPath reads one line from r after writing label to w. An empty
// answer yields ErrNoImage.
func PromptForPath(r io.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)

	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrNoImage
	}
	return input, nil
}
