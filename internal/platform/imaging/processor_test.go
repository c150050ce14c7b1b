package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
)

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 255), G: uint8(y % 255), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestProcessResizesAndEncodesWebP(t *testing.T) {
	p := NewProcessor(400, 100)
	data := pngFixture(t, 800, 600)

	res, err := p.Process(data)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Original.ContentType != "image/png" || res.Original.Width != 800 || res.Original.Height != 600 {
		t.Fatalf("unexpected original %+v", res.Original)
	}
	if len(res.Variants) != 2 {
		t.Fatalf("expected two variants, got %d", len(res.Variants))
	}
	display, thumb := res.Variants[0], res.Variants[1]
	if display.Name != "display" || display.Width != 400 || display.Height != 300 {
		t.Fatalf("unexpected display variant %+v", display)
	}
	if thumb.Name != "thumb" || thumb.Width != 100 || thumb.Height != 75 {
		t.Fatalf("unexpected thumb variant %+v", thumb)
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(thumb.Data))
	if err != nil {
		t.Fatalf("thumb is not webp: %v", err)
	}
	if cfg.Width != 100 {
		t.Fatalf("unexpected encoded width %d", cfg.Width)
	}
}

func TestProcessDoesNotUpscale(t *testing.T) {
	res, err := NewProcessor(1600, 480).Process(pngFixture(t, 120, 80))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, v := range res.Variants {
		if v.Width != 120 || v.Height != 80 {
			t.Fatalf("variant %s was resized: %dx%d", v.Name, v.Width, v.Height)
		}
	}
}

func TestProcessRejectsNonImages(t *testing.T) {
	_, err := NewProcessor(0, 0).Process([]byte("%PDF-1.4"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
