package photo

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_DownscalesLongEdge(t *testing.T) {
	input := encodePNG(t, 4000, 1000)

	result, err := Normalize(bytes.NewReader(input), 1920, 85)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if result.ContentType != OutputContentType {
		t.Errorf("content type = %q, want %q", result.ContentType, OutputContentType)
	}
	if result.Width != 1920 {
		t.Errorf("width = %d, want 1920", result.Width)
	}
	if result.Height != 480 {
		t.Errorf("height = %d, want 480 (aspect ratio preserved)", result.Height)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decode normalized output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg", format)
	}
	if cfg.Width > 1920 || cfg.Height > 1920 {
		t.Errorf("output %dx%d exceeds max edge", cfg.Width, cfg.Height)
	}
}

func TestNormalize_NeverUpscales(t *testing.T) {
	input := encodePNG(t, 100, 60)

	result, err := Normalize(bytes.NewReader(input), 1920, 85)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if result.Width != 100 || result.Height != 60 {
		t.Errorf("small image resized to %dx%d, want 100x60 untouched", result.Width, result.Height)
	}
}

func TestNormalize_ConvertsPNGToJPEG(t *testing.T) {
	// PNG input with transparency must come out as opaque JPEG
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	img.Set(10, 10, color.NRGBA{R: 0, G: 0, B: 255, A: 128})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	result, err := Normalize(bytes.NewReader(buf.Bytes()), 1920, 85)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decode normalized output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg", format)
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	_, err := Normalize(bytes.NewReader([]byte("definitely not an image")), 1920, 85)
	if err == nil {
		t.Fatal("expected error for undecodable input")
	}
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("error = %v, want ErrInvalidImage", err)
	}
}
