package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func fill(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, fill(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, fill(w, h, c))
	return buf.Bytes()
}

func decode(t *testing.T, p *Photo) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img
}

func TestNormalizeJPEG(t *testing.T) {
	photo, err := Normalize(bytes.NewReader(createTestJPEG(100, 100)), DefaultOptions)
	if err != nil {
		t.Fatalf("Normalize JPEG: %v", err)
	}
	if photo.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", photo.MIME)
	}
	if b := decode(t, photo).Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("expected 100x100, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizePadsToSquare(t *testing.T) {
	photo, err := Normalize(bytes.NewReader(createTestJPEG(2048, 1024)), DefaultOptions)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	img := decode(t, photo)
	b := img.Bounds()
	if b.Dx() != 1024 || b.Dy() != 1024 {
		t.Fatalf("expected 1024x1024 canvas, got %dx%d", b.Dx(), b.Dy())
	}
	// Top edge is padding, the middle is the photo.
	if r, g, bl, _ := img.At(512, 5).RGBA(); r>>8 < 240 || g>>8 < 240 || bl>>8 < 240 {
		t.Errorf("expected white padding, got %d,%d,%d", r>>8, g>>8, bl>>8)
	}
	if r, g, _, _ := img.At(512, 512).RGBA(); r>>8 < 200 || g>>8 > 60 {
		t.Errorf("expected red photo in the middle, got r=%d g=%d", r>>8, g>>8)
	}
}

func TestNormalizeKeepsAspectWhenNotSquare(t *testing.T) {
	opts := DefaultOptions
	opts.Square = false
	photo, err := Normalize(bytes.NewReader(createTestJPEG(2048, 1024)), opts)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if b := decode(t, photo).Bounds(); b.Dx() != 1024 || b.Dy() != 512 {
		t.Errorf("expected 1024x512, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeFlattensTransparency(t *testing.T) {
	data := createTestPNG(40, 40, color.NRGBA{0, 0, 255, 0})
	photo, err := Normalize(bytes.NewReader(data), DefaultOptions)
	if err != nil {
		t.Fatalf("Normalize PNG: %v", err)
	}
	if r, g, b, _ := decode(t, photo).At(20, 20).RGBA(); r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("transparent pixels should become background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("not an image"),
		"gif":  []byte("GIF89a..."),
	} {
		if _, err := Normalize(bytes.NewReader(data), DefaultOptions); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNormalizeRejectsOversize(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, createTestJPEG(10, 10))
	if _, err := Normalize(bytes.NewReader(data), DefaultOptions); err == nil {
		t.Error("expected error for oversized upload")
	}
}

func TestFit(t *testing.T) {
	for _, tc := range []struct{ w, h, max, ww, wh int }{
		{50, 50, 1024, 50, 50},
		{2048, 1024, 1024, 1024, 512},
		{1024, 4096, 1024, 256, 1024},
		{5000, 1, 1000, 1000, 1},
	} {
		if w, h := fit(tc.w, tc.h, tc.max); w != tc.ww || h != tc.wh {
			t.Errorf("fit(%d,%d,%d) = %d,%d want %d,%d", tc.w, tc.h, tc.max, w, h, tc.ww, tc.wh)
		}
	}
}
