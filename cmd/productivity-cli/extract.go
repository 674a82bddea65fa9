package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/screen-productivity/internal/jsonutil"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Recover the JSON record from a model response",
	Long: `Extract runs the structured extractor over a raw model response read from
file (or stdin when omitted or "-") and prints the recovered record. The
strategy that matched is logged at info level; a total miss prints {}.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func runExtract(_ *cobra.Command, args []string) error {
	var (
		text []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	rec, strategy, ok := jsonutil.ExtractText(string(text))
	if ok {
		log.Info().Str("strategy", strategy).Int("keys", len(rec)).Msg("Record extracted")
	} else {
		log.Warn().Int("length", len(text)).Msg("No structured record found")
		rec = jsonutil.Record{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
