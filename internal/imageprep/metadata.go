package imageprep

import (
	"bytes"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// CaptureTime returns the capture timestamp recorded in the image's EXIF
// block, if any. Screenshots rarely carry EXIF; the lookup is best-effort
// and never fails the pipeline.
//
// Priority: DateTimeOriginal > CreateDate > ModifyDate.
func CaptureTime(data []byte) (time.Time, bool) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in source image")
		return time.Time{}, false
	}

	for _, t := range []time.Time{exifData.DateTimeOriginal(), exifData.CreateDate(), exifData.ModifyDate()} {
		if !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}
