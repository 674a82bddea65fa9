// Package s3util provides the small set of S3 helpers shared by the CLI and
// the report exporter: s3:// URI parsing, object upload with the project
// cost-allocation tag, and bounded object download.
package s3util

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// MaxDownloadBytes bounds Download. Screenshots larger than this are
// rejected rather than buffered.
const MaxDownloadBytes = 64 << 20

// Location is a parsed s3://bucket/key URI.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// ParseURI parses s3://bucket/key. ok is false for anything else, including
// URIs without a key.
func ParseURI(uri string) (Location, bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return Location{}, false
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return Location{}, false
	}
	return Location{Bucket: bucket, Key: key}, true
}

// ObjectGetter is the subset of the S3 client used for downloads.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Download reads an S3 object into memory.
func Download(ctx context.Context, client ObjectGetter, loc Location) ([]byte, error) {
	log.Debug().Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("Downloading from S3")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &loc.Bucket, Key: &loc.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(io.LimitReader(result.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", loc, MaxDownloadBytes)
	}
	return data, nil
}
