package thumbs

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, w, h int, asPNG bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	var err error
	if asPNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGenerateShrinksLargeImage(t *testing.T) {
	data := encodeTestImage(t, 1600, 900, false)

	out, w, h, err := Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty thumbnail")
	}
	if w > MaxSize || h > MaxSize {
		t.Errorf("thumbnail %dx%d exceeds max %d", w, h, MaxSize)
	}
	// Aspect ratio preserved (16:9)
	if w != 400 || h != 225 {
		t.Errorf("dimensions = %dx%d, want 400x225", w, h)
	}

	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not valid JPEG: %v", err)
	}
}

func TestGenerateHandlesPNG(t *testing.T) {
	data := encodeTestImage(t, 200, 300, true)

	_, w, h, err := Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Smaller than max stays at original size
	if w != 200 || h != 300 {
		t.Errorf("dimensions = %dx%d, want 200x300", w, h)
	}
}

func TestGenerateRejectsGarbage(t *testing.T) {
	if _, _, _, err := Generate([]byte("definitely not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestKey(t *testing.T) {
	if got := Key("ab/cdef"); got != "_thumbs/ab/cdef" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("/ab/cdef"); got != "_thumbs/ab/cdef" {
		t.Errorf("Key with leading slash = %q", got)
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		mime, name string
		want       bool
	}{
		{"image/jpeg", "photo", true},
		{"", "photo.PNG", true},
		{"application/pdf", "doc.pdf", false},
		{"", "archive.tar.gz", false},
		{"text/plain", "shot.jpg", true},
	}
	for _, tt := range tests {
		if got := IsImage(tt.mime, tt.name); got != tt.want {
			t.Errorf("IsImage(%q, %q) = %v, want %v", tt.mime, tt.name, got, tt.want)
		}
	}
}
