// Package imageprep normalizes an arbitrary user image into a size-bounded,
// format-verified payload suitable for the workflow submission envelope.
//
// The cascade applies increasingly aggressive transformations, each only
// when the previous output still exceeds the limit:
//
//  1. normalize the colour model to NRGBA
//  2. auto-crop to the bounding box of non-empty content
//  3. shrink to MaxDimension (CatmullRom resampling)
//  4. encode with best compression and measure
//  5. retry at each of FallbackDimensions
//  6. convert to grayscale and encode once more
//
// The base64 length of the final buffer is the authoritative limit, since
// the payload travels as text.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	// Extra decoders for screenshots saved by other tools.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fpang/screen-productivity/internal/failure"
)

const stageName = "imageprep"

// Target formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// Default limits. The ceiling matches the 256 KiB workflow input limit with
// headroom for the envelope; the raw limit keeps the encoded buffer well
// under it.
const (
	DefaultCeilingBytes = 262000
	DefaultLimitBytes   = 250000
	DefaultMaxDimension = 500
	DefaultJPEGQuality  = 85
)

// MaxSourcePixels bounds the declared dimensions of an input image. The
// cascade holds the decoded source and its NRGBA copy at once, so a large
// declared size is rejected before any pixel buffer is allocated.
const MaxSourcePixels = 50_000_000

// DefaultFallbackDimensions are tried in order after the first encode.
var DefaultFallbackDimensions = []int{400, 300, 200}

// Options configures the cascade.
type Options struct {
	// CeilingBytes bounds the base64 text of the final buffer.
	CeilingBytes int
	// LimitBytes bounds the raw encoded buffer.
	LimitBytes int
	// Format is the target encoding: "png" or "jpeg".
	Format string
	// MaxDimension bounds width and height of the first encode.
	MaxDimension int
	// FallbackDimensions are tried in descending order when still oversized.
	FallbackDimensions []int
	// JPEGQuality applies to the jpeg target only.
	JPEGQuality int
}

// DefaultOptions returns the production cascade settings.
func DefaultOptions() Options {
	return Options{
		CeilingBytes:       DefaultCeilingBytes,
		LimitBytes:         DefaultLimitBytes,
		Format:             FormatPNG,
		MaxDimension:       DefaultMaxDimension,
		FallbackDimensions: append([]int(nil), DefaultFallbackDimensions...),
		JPEGQuality:        DefaultJPEGQuality,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CeilingBytes <= 0 {
		o.CeilingBytes = d.CeilingBytes
	}
	if o.LimitBytes <= 0 {
		o.LimitBytes = d.LimitBytes
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = d.MaxDimension
	}
	if o.FallbackDimensions == nil {
		o.FallbackDimensions = d.FallbackDimensions
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = d.JPEGQuality
	}
	return o
}

// Payload is an encoded image: bytes, declared format and pixel dimensions.
type Payload struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Result is the verified output of the cascade.
type Result struct {
	Payload
	// SourceFormat is the format the input decoded as.
	SourceFormat string
	// Steps lists the cascade steps applied, in order.
	Steps []string
	// Base64 is the textual form of Payload.Data.
	Base64 string
}

// EncodedSize returns the length of the base64 text.
func (r *Result) EncodedSize() int {
	return len(r.Base64)
}

// Prepare runs the cascade over data. It returns a KindInput failure when
// data cannot be decoded or the target format is unknown, and a
// KindSizeLimit failure when every fallback is still oversized.
func Prepare(data []byte, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if opts.Format != FormatPNG && opts.Format != FormatJPEG {
		return nil, failure.Input(stageName, fmt.Sprintf("unsupported target format %q", opts.Format), nil)
	}
	if len(data) == 0 {
		return nil, failure.Input(stageName, "no image data provided", nil)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, failure.Input(stageName, "failed to decode image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, failure.Input(stageName, fmt.Sprintf("unsupported image dimensions %dx%d (limit %d pixels)", cfg.Width, cfg.Height, MaxSourcePixels), nil)
	}

	src, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, failure.Input(stageName, "failed to decode image", err)
	}

	log.Debug().
		Str("source_format", srcFormat).
		Int("source_bytes", len(data)).
		Int("width", src.Bounds().Dx()).
		Int("height", src.Bounds().Dy()).
		Msg("Starting image cascade")

	res := &Result{SourceFormat: srcFormat}

	img := normalize(src)
	res.Steps = append(res.Steps, "normalize")

	if cropped, ok := autoCrop(img); ok {
		img = cropped
		res.Steps = append(res.Steps, "crop")
	}

	if shrunk := shrink(img, opts.MaxDimension); shrunk != img {
		img = shrunk
		res.Steps = append(res.Steps, fmt.Sprintf("resize-%d", opts.MaxDimension))
	}

	p, err := encode(img, opts)
	if err != nil {
		return nil, err
	}
	smallest := len(p.Data)

	if !fits(p.Data, opts) {
		log.Warn().
			Int("bytes", len(p.Data)).
			Int("limit", opts.LimitBytes).
			Msg("Image is large, attempting further compression")

		var found bool
		var last image.Image = img
		for _, dim := range opts.FallbackDimensions {
			candidate := shrink(img, dim)
			cp, err := encode(candidate, opts)
			if err != nil {
				return nil, err
			}
			if candidate != img {
				res.Steps = append(res.Steps, fmt.Sprintf("resize-%d", dim))
			}
			last = candidate
			smallest = min(smallest, len(cp.Data))
			if fits(cp.Data, opts) {
				p, found = cp, true
				break
			}
		}

		if !found {
			gp, err := encode(grayscale(last), opts)
			if err != nil {
				return nil, err
			}
			res.Steps = append(res.Steps, "grayscale")
			smallest = min(smallest, len(gp.Data))
			if !fits(gp.Data, opts) {
				return nil, failure.SizeLimit(stageName, base64.StdEncoding.EncodedLen(smallest), opts.CeilingBytes)
			}
			p = gp
		}
	}

	if err := verify(p); err != nil {
		return nil, err
	}

	res.Payload = p
	res.Base64 = base64.StdEncoding.EncodeToString(p.Data)

	log.Info().
		Str("format", p.Format).
		Int("width", p.Width).
		Int("height", p.Height).
		Int("bytes", len(p.Data)).
		Int("base64_bytes", len(res.Base64)).
		Strs("steps", res.Steps).
		Msg("Image cascade complete")

	return res, nil
}

// fits reports whether buf is within both the raw and the base64 limits.
func fits(buf []byte, opts Options) bool {
	return len(buf) <= opts.LimitBytes && base64.StdEncoding.EncodedLen(len(buf)) <= opts.CeilingBytes
}

// normalize converts any colour model (paletted, gray, CMYK, YCbCr, 16-bit)
// into 8-bit NRGBA. Alpha is preserved.
func normalize(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// autoCrop crops img to the bounding box of non-empty pixels. For images
// with transparency a pixel is empty when fully transparent; for opaque
// images it is empty when pure black. ok is false when there is nothing to
// crop: no content at all, or content already fills the frame.
func autoCrop(img *image.NRGBA) (*image.NRGBA, bool) {
	b := img.Bounds()
	useAlpha := !img.Opaque()

	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+4]
			var empty bool
			if useAlpha {
				empty = px[3] == 0
			} else {
				empty = px[0] == 0 && px[1] == 0 && px[2] == 0
			}
			if empty {
				continue
			}
			ax := b.Min.X + x
			minX, maxX = min(minX, ax), max(maxX, ax)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}

	if maxX < minX || maxY < minY {
		return img, false
	}
	box := image.Rect(minX, minY, maxX+1, maxY+1)
	if box.Eq(b) {
		return img, false
	}

	log.Debug().
		Int("width", box.Dx()).
		Int("height", box.Dy()).
		Msg("Auto-cropped to content bounding box")

	dst := image.NewNRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(dst, dst.Bounds(), img, box.Min, draw.Src)
	return dst, true
}

// shrink returns img scaled to fit within maxDimension×maxDimension,
// preserving aspect ratio. Images already within bounds are returned as is.
func shrink(img *image.NRGBA, maxDimension int) *image.NRGBA {
	b := img.Bounds()
	w, h := fitDimensions(b.Dx(), b.Dy(), maxDimension)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// fitDimensions calculates new dimensions maintaining aspect ratio. Neither
// side drops below one pixel.
func fitDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}

// grayscale converts img to a single-channel image.
func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// encode writes img in the target format with maximum compression.
func encode(img image.Image, opts Options) (Payload, error) {
	var buf bytes.Buffer
	var err error
	switch opts.Format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: opts.JPEGQuality})
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("failed to encode image as %s: %w", opts.Format, err)
	}

	b := img.Bounds()
	log.Debug().
		Str("format", opts.Format).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("bytes", buf.Len()).
		Msg("Encoded cascade candidate")

	return Payload{Data: buf.Bytes(), Format: opts.Format, Width: b.Dx(), Height: b.Dy()}, nil
}

// flatten composites translucent pixels onto white, since JPEG carries no alpha.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// verify decodes the header of p and checks it reports the declared format.
func verify(p Payload) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return fmt.Errorf("failed to verify %s output: %w", p.Format, err)
	}
	if format != p.Format {
		return fmt.Errorf("output decoded as %q, want %q", format, p.Format)
	}
	if cfg.Width != p.Width || cfg.Height != p.Height {
		return fmt.Errorf("output is %dx%d, want %dx%d", cfg.Width, cfg.Height, p.Width, p.Height)
	}
	return nil
}
