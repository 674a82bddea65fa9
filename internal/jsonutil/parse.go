// Package jsonutil recovers structured records from LLM responses that may be
// wrapped in markdown code fences, prefixed by a language tag, embedded in
// prose, or already valid JSON.
//
// Extraction is an ordered list of strategies; the first one that yields a
// JSON object wins. A response with no recoverable object degrades to an
// empty Record rather than an error, so downstream rendering has a single
// "no data" path.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Record is a structured value recovered from model output.
type Record = map[string]any

const fence = "```"

// Strategy locates a candidate JSON span inside free text.
// Match reports where the candidate starts; Strip trims the trailing prose.
type Strategy struct {
	Name  string
	Match func(text string) (rest string, ok bool)
	Strip func(rest string) string
}

// Strategies returns the marker strategies in priority order. The first/last
// brace fallback is not part of the list; Extract applies it after every
// strategy has failed.
func Strategies() []Strategy {
	return []Strategy{
		markerStrategy("json-fence", fence+"json\n", false, stripToFence),
		markerStrategy("json-tag", "json\n", false, stripToBlankLine),
		markerStrategy("python-fence", fence+"python\n", false, stripToFence),
		markerStrategy("open-brace", "{", true, stripToBlankLine),
	}
}

// markerStrategy builds a strategy that starts just after the first
// occurrence of marker. When keepMarker is set the marker itself is part of
// the candidate (used for the bare brace, which belongs to the object).
func markerStrategy(name, marker string, keepMarker bool, strip func(string) string) Strategy {
	return Strategy{
		Name: name,
		Match: func(text string) (string, bool) {
			idx := strings.Index(text, marker)
			if idx == -1 {
				return "", false
			}
			if keepMarker {
				return strings.TrimSpace(text[idx:]), true
			}
			return strings.TrimSpace(text[idx+len(marker):]), true
		},
		Strip: strip,
	}
}

// stripToFence cuts the candidate at the closing fence, if any.
func stripToFence(rest string) string {
	if end := strings.Index(rest, fence); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// stripToBlankLine cuts the candidate at the first blank line, an approximate
// end of the object before any explanatory trailing prose.
func stripToBlankLine(rest string) string {
	if end := strings.Index(rest, "\n\n"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// Extract recovers a Record from v. A Record (or map) passes through
// unchanged; strings, byte slices and raw JSON are scanned with the
// strategies, then with the first-'{' / last-'}' span. Anything else, or a
// total miss, yields an empty Record. Extract never panics or errors.
//
// Known limitation: when the text holds several independent JSON fragments,
// the brace-span fallback joins them and the parse fails, leaving an empty
// Record.
func Extract(v any) Record {
	var text string
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return Record{}
		}
		return t
	case string:
		text = t
	case []byte:
		text = string(t)
	case json.RawMessage:
		text = string(t)
	default:
		if v != nil {
			log.Debug().Str("type", fmt.Sprintf("%T", v)).Msg("Unsupported value for JSON extraction")
		}
		return Record{}
	}

	if rec, name, ok := ExtractText(text); ok {
		log.Debug().Str("strategy", name).Int("keys", len(rec)).Msg("Structured record extracted")
		return rec
	}

	log.Debug().Int("raw_length", len(text)).Msg("No structured record recoverable from response")
	return Record{}
}

// ExtractText runs the strategies over text and reports which one succeeded.
func ExtractText(text string) (Record, string, bool) {
	for _, s := range Strategies() {
		rest, ok := s.Match(text)
		if !ok {
			continue
		}
		if rec, ok := parseObject(s.Strip(rest)); ok {
			return rec, s.Name, true
		}
	}

	if span, ok := braceSpan(text); ok {
		if rec, ok := parseObject(span); ok {
			return rec, "brace-span", true
		}
	}
	return nil, "", false
}

// braceSpan returns the text between the first '{' and the last '}', inclusive.
func braceSpan(text string) (string, bool) {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	return text[first : last+1], true
}

// parseObject decodes candidate as a JSON object. Arrays and scalars do not
// count as a record.
func parseObject(candidate string) (Record, bool) {
	candidate = strings.TrimLeft(candidate, "\n")
	if candidate == "" {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(candidate), &rec); err != nil || rec == nil {
		return nil, false
	}
	return rec, true
}

// Decode converts a Record into the typed view T.
func Decode[T any](rec Record) (T, error) {
	var result T
	data, err := json.Marshal(rec)
	if err != nil {
		return result, fmt.Errorf("marshal record: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode record: %w", err)
	}
	return result, nil
}
