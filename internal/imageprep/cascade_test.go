package imageprep

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/fpang/screen-productivity/internal/failure"
)

// noiseImage returns an opaque image of random pixels, which PNG cannot
// compress, so encoded size tracks pixel count.
func noiseImage(w, h int, seed int64) *image.NRGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(r.Intn(256))
		img.Pix[i+1] = uint8(r.Intn(256))
		img.Pix[i+2] = uint8(r.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestPrepare_SmallImagePassesThrough(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	for i := range img.Pix {
		img.Pix[i] = 200
	}

	res, err := Prepare(encodePNG(t, img), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if res.Width != 120 || res.Height != 80 {
		t.Errorf("dimensions = %dx%d, want 120x80", res.Width, res.Height)
	}
	if res.Format != FormatPNG {
		t.Errorf("Format = %q, want png", res.Format)
	}
	if slices.Contains(res.Steps, "grayscale") {
		t.Errorf("unexpected grayscale step: %v", res.Steps)
	}
	if got := base64.StdEncoding.EncodeToString(res.Data); got != res.Base64 {
		t.Error("Base64 does not match Data")
	}
}

func TestPrepare_DownscalesPreservingAspect(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1000, 400))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	res, err := Prepare(encodePNG(t, img), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if res.Width != 500 || res.Height != 200 {
		t.Errorf("dimensions = %dx%d, want 500x200", res.Width, res.Height)
	}
}

func TestPrepare_AutoCropTransparentBorder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	red := color.NRGBA{R: 255, A: 255}
	for y := 10; y < 40; y++ {
		for x := 30; x < 50; x++ {
			img.SetNRGBA(x, y, red)
		}
	}

	res, err := Prepare(encodePNG(t, img), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if res.Width != 20 || res.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 20x30", res.Width, res.Height)
	}
	if !slices.Contains(res.Steps, "crop") {
		t.Errorf("Steps = %v, want crop", res.Steps)
	}
}

func TestPrepare_AutoCropBlackBorderOpaque(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.SetNRGBA(5, 5, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	img.SetNRGBA(14, 24, color.NRGBA{G: 90, A: 255})

	res, err := Prepare(encodePNG(t, img), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if res.Width != 10 || res.Height != 20 {
		t.Errorf("dimensions = %dx%d, want 10x20", res.Width, res.Height)
	}
}

func TestPrepare_EmptyImageIsNotCropped(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))

	res, err := Prepare(encodePNG(t, img), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if res.Width != 40 || res.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 40x30", res.Width, res.Height)
	}
	if slices.Contains(res.Steps, "crop") {
		t.Errorf("Steps = %v, want no crop", res.Steps)
	}
}

func TestPrepare_FallbackDimensions(t *testing.T) {
	data := encodePNG(t, noiseImage(500, 500, 1))

	opts := DefaultOptions()
	res, err := Prepare(data, opts)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(res.Data) > opts.LimitBytes {
		t.Errorf("raw size %d exceeds limit %d", len(res.Data), opts.LimitBytes)
	}
	if res.EncodedSize() > opts.CeilingBytes {
		t.Errorf("base64 size %d exceeds ceiling %d", res.EncodedSize(), opts.CeilingBytes)
	}
	if res.Width > 300 || res.Height > 300 {
		t.Errorf("dimensions = %dx%d, want a fallback size", res.Width, res.Height)
	}
	if !slices.Contains(res.Steps, "resize-400") {
		t.Errorf("Steps = %v, want fallback resizes", res.Steps)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil || format != "png" {
		t.Fatalf("round-trip decode = %q, %v", format, err)
	}
	if cfg.Width != res.Width || cfg.Height != res.Height {
		t.Errorf("decoded %dx%d, result says %dx%d", cfg.Width, cfg.Height, res.Width, res.Height)
	}
}

func TestPrepare_GrayscaleLastResort(t *testing.T) {
	data := encodePNG(t, noiseImage(500, 500, 2))

	opts := DefaultOptions()
	opts.LimitBytes = 50000
	opts.CeilingBytes = 70000

	res, err := Prepare(data, opts)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !slices.Contains(res.Steps, "grayscale") {
		t.Errorf("Steps = %v, want grayscale", res.Steps)
	}
	if res.EncodedSize() > opts.CeilingBytes {
		t.Errorf("base64 size %d exceeds ceiling %d", res.EncodedSize(), opts.CeilingBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(res.Data))
	if err != nil || format != "png" {
		t.Fatalf("round-trip decode = %q, %v", format, err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("decoded %T, want *image.Gray", img)
	}
}

func TestPrepare_SizeLimitExceeded(t *testing.T) {
	data := encodePNG(t, noiseImage(500, 500, 3))

	opts := DefaultOptions()
	opts.LimitBytes = 5000
	opts.CeilingBytes = 7000

	res, err := Prepare(data, opts)
	if err == nil {
		t.Fatalf("Prepare() = %d bytes, want SizeLimitExceeded", len(res.Data))
	}
	if !failure.IsKind(err, failure.KindSizeLimit) {
		t.Errorf("error = %v, want KindSizeLimit", err)
	}
}

func TestPrepare_Undecodable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, noiseImage(10, 10, 4))[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.data, DefaultOptions())
			if !failure.IsKind(err, failure.KindInput) {
				t.Errorf("Prepare() error = %v, want KindInput", err)
			}
		})
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w×h RGBA
// pixels, with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], w)
	binary.BigEndian.PutUint32(ihdr[8:], h)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 6 // truecolour with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestPrepare_RejectsOversizedDeclaredDimensions(t *testing.T) {
	_, err := Prepare(pngHeader(100000, 100000), DefaultOptions())
	if !failure.IsKind(err, failure.KindInput) {
		t.Fatalf("Prepare() error = %v, want KindInput", err)
	}
}

func TestPrepare_StepsOnlyRecordChangedDimensions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0], img.Pix[3] = 10, 255

	res, err := Prepare(encodePNG(t, img), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	for _, step := range res.Steps {
		if strings.HasPrefix(step, "resize-") {
			t.Errorf("Steps = %v, want no resize for a 1x1 image", res.Steps)
		}
	}

	res, err = Prepare(encodePNG(t, noiseImage(800, 400, 5)), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !slices.Contains(res.Steps, "resize-500") {
		t.Errorf("Steps = %v, want resize-500", res.Steps)
	}
}

func TestPrepare_JPEGSourceToPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noiseImage(64, 48, 5), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	res, err := Prepare(buf.Bytes(), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if res.SourceFormat != "jpeg" {
		t.Errorf("SourceFormat = %q, want jpeg", res.SourceFormat)
	}
	if res.Format != FormatPNG {
		t.Errorf("Format = %q, want png", res.Format)
	}
}

func TestPrepare_JPEGTarget(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = 180
	}

	opts := DefaultOptions()
	opts.Format = FormatJPEG
	res, err := Prepare(encodePNG(t, img), opts)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(res.Data)); err != nil || format != "jpeg" {
		t.Errorf("round-trip decode = %q, %v; want jpeg", format, err)
	}
}

func TestPrepare_UnknownFormat(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = "gif"
	_, err := Prepare([]byte("x"), opts)
	if !failure.IsKind(err, failure.KindInput) {
		t.Errorf("Prepare() error = %v, want KindInput", err)
	}
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{3000, 3000, 500, 500, 500},
		{1920, 1080, 500, 500, 281},
		{1080, 1920, 400, 225, 400},
		{300, 200, 500, 300, 200},
		{5000, 2, 500, 500, 1},
	}
	for _, tt := range tests {
		w, h := fitDimensions(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestCaptureTime_NoExif(t *testing.T) {
	if _, ok := CaptureTime(encodePNG(t, noiseImage(8, 8, 6))); ok {
		t.Error("CaptureTime() on bare PNG reported a timestamp")
	}
}

func TestPrepare_LargeScreenshotScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("large fixture")
	}

	// 3000x3000 RGBA with a translucent band so the alpha path is exercised.
	img := noiseImage(3000, 3000, 7)
	for y := 0; y < 100; y++ {
		for x := 0; x < 3000; x++ {
			img.Pix[img.PixOffset(x, y)+3] = 128
		}
	}
	data := encodePNG(t, img)

	opts := DefaultOptions()
	res, err := Prepare(data, opts)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(res.Data) > opts.LimitBytes && !slices.Contains(res.Steps, "grayscale") {
		t.Errorf("raw size %d exceeds %d without grayscale fallback", len(res.Data), opts.LimitBytes)
	}
	if res.EncodedSize() > opts.CeilingBytes {
		t.Errorf("base64 size %d exceeds ceiling %d", res.EncodedSize(), opts.CeilingBytes)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(res.Data)); err != nil || format != "png" {
		t.Errorf("round-trip decode = %q, %v; want png", format, err)
	}
}
