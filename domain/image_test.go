package domain

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalizeJPEGFromPNG(t *testing.T) {
	out, err := NormalizeJPEG(encodePNG(t))
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 8 {
		t.Fatalf("unexpected dimensions %v", decoded.Bounds())
	}
}

func TestNormalizeJPEGRoundTrip(t *testing.T) {
	first, err := NormalizeJPEG(encodePNG(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := NormalizeJPEG(first)
	if err != nil {
		t.Fatalf("re-normalizing a normalized image failed: %v", err)
	}
	if len(second) == 0 {
		t.Fatal("empty output")
	}
}

func TestNormalizeJPEGInvalid(t *testing.T) {
	_, err := NormalizeJPEG([]byte("definitely not an image"))
	if CodeOf(err) != CodeInvalidImage {
		t.Fatalf("expected CodeInvalidImage, got %v", err)
	}

	_, err = NormalizeJPEG(nil)
	if CodeOf(err) != CodeInvalidImage {
		t.Fatalf("expected CodeInvalidImage for empty input, got %v", err)
	}
}
