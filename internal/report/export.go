package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/s3util"
)

// Report is the exported result of one analysis.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	// CapturedAt is the screenshot's embedded capture time, when present.
	CapturedAt   *time.Time     `json:"captured_at,omitempty"`
	ExecutionArn string         `json:"execution_arn,omitempty"`
	Analysis     PipelineOutput `json:"analysis"`
}

// Markdown renders the report with a header line.
func (r *Report) Markdown() string {
	body := Markdown(r.Analysis)
	var meta []string
	if !r.Timestamp.IsZero() {
		meta = append(meta, "Generated "+r.Timestamp.UTC().Format(time.RFC3339))
	}
	if r.CapturedAt != nil {
		meta = append(meta, "captured "+r.CapturedAt.Format(time.RFC3339))
	}
	if len(meta) == 0 {
		return body
	}
	header, rest, _ := strings.Cut(body, "\n\n")
	return header + "\n\n_" + strings.Join(meta, ", ") + "_\n\n" + rest
}

// Encoded is a serialized report ready to write.
type Encoded struct {
	Data            []byte
	ContentType     string
	ContentEncoding string
}

// Encode serializes r according to the target name: ".md" selects
// Markdown, anything else JSON; a trailing ".zst" compresses the result
// with zstd (so "report.json.zst" is compressed JSON).
func Encode(r *Report, target string) (Encoded, error) {
	name := target
	compressed := false
	if strings.HasSuffix(strings.ToLower(name), ".zst") {
		compressed = true
		name = name[:len(name)-len(".zst")]
	}

	var enc Encoded
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		enc = Encoded{Data: []byte(r.Markdown()), ContentType: "text/markdown; charset=utf-8"}
	default:
		data, err := marshalIndent(r)
		if err != nil {
			return Encoded{}, fmt.Errorf("marshal report: %w", err)
		}
		enc = Encoded{Data: data, ContentType: "application/json"}
	}

	if compressed {
		data, err := compress(enc.Data)
		if err != nil {
			return Encoded{}, err
		}
		enc.Data = data
		enc.ContentEncoding = "zstd"
	}
	return enc, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("zstd write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses the ".zst" export encoding.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// Parse reads a report written by Export. The name selects the decoding the
// same way Encode does; Markdown exports cannot be parsed back.
func Parse(data []byte, name string) (*Report, error) {
	if strings.HasSuffix(strings.ToLower(name), ".zst") {
		plain, err := Decompress(data)
		if err != nil {
			return nil, err
		}
		data = plain
		name = name[:len(name)-len(".zst")]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return nil, fmt.Errorf("%s is a Markdown export; only JSON reports can be read back", name)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Exporter writes reports to local files or S3.
type Exporter struct {
	s3 s3util.ObjectPutter
}

// NewExporter creates an Exporter. s3Client may be nil when no s3:// target
// is used.
func NewExporter(s3Client s3util.ObjectPutter) *Exporter {
	return &Exporter{s3: s3Client}
}

// Export writes r to target: an s3://bucket/key URI or a local path.
func (e *Exporter) Export(ctx context.Context, r *Report, target string) error {
	enc, err := Encode(r, target)
	if err != nil {
		return err
	}

	if loc, ok := s3util.ParseURI(target); ok {
		if e.s3 == nil {
			return fmt.Errorf("no S3 client configured for %s", target)
		}
		return s3util.Upload(ctx, e.s3, loc, enc.Data, enc.ContentType, enc.ContentEncoding)
	}
	if strings.HasPrefix(target, "s3://") {
		return fmt.Errorf("invalid S3 URI %q (want s3://bucket/key)", target)
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(target, enc.Data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", target).Int("bytes", len(enc.Data)).Msg("Report written")
	return nil
}
