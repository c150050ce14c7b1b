// Package imaging normalises uploaded images: it decodes common formats, bounds the
// display size and derives WebP renditions.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	defaultMaxWidth   = 1600
	defaultThumbWidth = 480
	defaultQuality    = 82
	maxPixels         = 40_000_000
)

var (
	// ErrUnsupportedFormat is returned for payloads that are not JPEG, PNG, GIF or WebP.
	ErrUnsupportedFormat = errors.New("imaging: unsupported image format")
	// ErrTooLarge is returned when the decoded image would exceed the pixel budget.
	ErrTooLarge = errors.New("imaging: image dimensions too large")
)

// Rendition is one encoded output image.
type Rendition struct {
	Name        string
	Ext         string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}

// Result holds the untouched original plus derived renditions.
type Result struct {
	Original Rendition
	Variants []Rendition
}

// Processor converts uploads into the renditions served by the site.
type Processor struct {
	maxWidth   int
	thumbWidth int
	quality    float32
}

func NewProcessor(maxWidth, thumbWidth int) *Processor {
	if maxWidth <= 0 {
		maxWidth = defaultMaxWidth
	}
	if thumbWidth <= 0 || thumbWidth > maxWidth {
		thumbWidth = min(defaultThumbWidth, maxWidth)
	}
	return &Processor{maxWidth: maxWidth, thumbWidth: thumbWidth, quality: defaultQuality}
}

var formats = map[string]struct{ ext, contentType string }{
	"jpeg": {"jpg", "image/jpeg"},
	"png":  {"png", "image/png"},
	"gif":  {"gif", "image/gif"},
	"webp": {"webp", "image/webp"},
}

// Process returns the original (as uploaded) plus a "display" WebP bounded by the max
// width and a "thumb" WebP.
func (p *Processor) Process(data []byte) (Result, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	info, ok := formats[format]
	if !ok {
		return Result{}, ErrUnsupportedFormat
	}
	if cfg.Width*cfg.Height > maxPixels {
		return Result{}, ErrTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("imaging: decode: %w", err)
	}
	bounds := img.Bounds()
	result := Result{Original: Rendition{
		Name:        "original",
		Ext:         info.ext,
		ContentType: info.contentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Data:        data,
	}}

	for _, spec := range []struct {
		name  string
		width int
	}{{"display", p.maxWidth}, {"thumb", p.thumbWidth}} {
		variant, err := p.encode(img, spec.name, spec.width)
		if err != nil {
			return Result{}, err
		}
		result.Variants = append(result.Variants, variant)
	}
	return result, nil
}

func (p *Processor) encode(img image.Image, name string, width int) (Rendition, error) {
	// never upscale
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: p.quality}); err != nil {
		return Rendition{}, fmt.Errorf("imaging: encode %s: %w", name, err)
	}
	b := img.Bounds()
	return Rendition{
		Name:        name,
		Ext:         "webp",
		ContentType: "image/webp",
		Width:       b.Dx(),
		Height:      b.Dy(),
		Data:        buf.Bytes(),
	}, nil
}
