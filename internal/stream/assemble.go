// Package stream reconstructs a complete text answer from an incremental
// generation stream. Fragments are concatenated strictly in receipt order;
// events without a text delta are skipped, and an undecodable event aborts
// the assembly for that stage.
package stream

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/failure"
)

// DeltaFunc extracts the text fragment carried by one event. ok is false
// when the event has no recognized delta field; err is non-nil only when
// the event itself cannot be decoded.
type DeltaFunc[T any] func(event T) (fragment string, ok bool, err error)

// Assemble consumes events and returns the concatenation of their deltas.
// An empty or nil sequence yields "". A decode error, or an error reported
// by the sequence itself, aborts with a KindStreamDecode failure naming the
// event index.
func Assemble[T any](events iter.Seq2[T, error], delta DeltaFunc[T]) (string, error) {
	var sb strings.Builder
	if events == nil {
		return "", nil
	}

	index := 0
	skipped := 0
	for event, err := range events {
		if err != nil {
			return "", failure.StreamDecode("", fmt.Sprintf("stream error at event %d", index), err)
		}
		fragment, ok, err := delta(event)
		if err != nil {
			return "", failure.StreamDecode("", fmt.Sprintf("malformed event %d", index), err)
		}
		if ok {
			sb.WriteString(fragment)
		} else {
			skipped++
		}
		index++
	}

	log.Debug().
		Int("events", index).
		Int("skipped", skipped).
		Int("length", sb.Len()).
		Msg("Stream assembled")

	return sb.String(), nil
}

// novaChunk is the subset of a Nova streaming chunk that carries text.
type novaChunk struct {
	ContentBlockDelta *struct {
		Delta *struct {
			Text *string `json:"text"`
		} `json:"delta"`
	} `json:"contentBlockDelta"`
}

// NovaDelta decodes one Bedrock Nova chunk and returns
// contentBlockDelta.delta.text. Chunks such as messageStart, metadata or
// contentBlockStop have no delta and are skipped.
func NovaDelta(chunk []byte) (string, bool, error) {
	var c novaChunk
	if err := json.Unmarshal(chunk, &c); err != nil {
		return "", false, fmt.Errorf("decode chunk: %w", err)
	}
	if c.ContentBlockDelta == nil || c.ContentBlockDelta.Delta == nil || c.ContentBlockDelta.Delta.Text == nil {
		return "", false, nil
	}
	return *c.ContentBlockDelta.Delta.Text, true, nil
}
