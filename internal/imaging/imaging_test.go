package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{200, 120, 0, 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), nil); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeShrinksLandscape(t *testing.T) {
	photo, err := Normalize(bytes.NewReader(encodeJPEG(t, 1600, 800)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if photo.Width != MaxDimension || photo.Height != MaxDimension/2 {
		t.Errorf("got %dx%d, want %dx%d", photo.Width, photo.Height, MaxDimension, MaxDimension/2)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(photo.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if format != "jpeg" || cfg.Width != photo.Width {
		t.Errorf("result is %s %dpx wide", format, cfg.Width)
	}
}

func TestNormalizePNGBecomesJPEG(t *testing.T) {
	photo, err := Normalize(bytes.NewReader(encodePNG(t, 64, 128)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(photo.Data)); err != nil || format != "jpeg" {
		t.Errorf("format = %q, err = %v", format, err)
	}
	if photo.Width != 64 || photo.Height != 128 {
		t.Errorf("small photo was resized to %dx%d", photo.Width, photo.Height)
	}
}

func TestNormalizeRejects(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("definitely not a photo"),
		"gif":  []byte("GIF89a\x01\x00\x01\x00"),
	} {
		if _, err := Normalize(bytes.NewReader(data)); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: err = %v, want ErrUnsupported", name, err)
		}
	}

	big := make([]byte, MaxUploadSize+10)
	if _, err := Normalize(bytes.NewReader(big)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized upload: err = %v, want ErrTooLarge", err)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{100, 100, 100, 100},
		{512, 512, 512, 512},
		{1024, 1024, 512, 512},
		{2048, 1024, 512, 256},
		{1000, 4000, 128, 512},
		{10000, 1, 512, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, MaxDimension)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fit(%d, %d) = %d, %d, want %d, %d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}
