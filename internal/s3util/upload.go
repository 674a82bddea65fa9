package s3util

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=screen-productivity"

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Upload writes data to loc with the project tag. contentEncoding may be empty.
func Upload(ctx context.Context, client ObjectPutter, loc Location, data []byte, contentType, contentEncoding string) error {
	input := &s3.PutObjectInput{
		Bucket:      &loc.Bucket,
		Key:         &loc.Key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	}
	if contentEncoding != "" {
		input.ContentEncoding = &contentEncoding
	}
	if _, err := client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", loc, err)
	}

	log.Info().
		Str("bucket", loc.Bucket).
		Str("key", loc.Key).
		Int("bytes", len(data)).
		Msg("Uploaded to S3")
	return nil
}
