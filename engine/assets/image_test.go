package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 3, 2)
	l := NewLoader(WithDir(dir))

	img, err := l.LoadImage("a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 3 || img.Height != 2 {
		t.Errorf("expected 3x2, got %dx%d", img.Width, img.Height)
	}
	if len(img.Pixels) != 3*2*4 {
		t.Fatalf("expected %d bytes, got %d", 3*2*4, len(img.Pixels))
	}
	// pixel (2, 1)
	px := img.Pixels[(1*3+2)*4:]
	if px[0] != 20 || px[1] != 10 || px[2] != 200 || px[3] != 255 {
		t.Errorf("expected [20 10 200 255], got %v", px[:4])
	}
}

func TestLoadImageErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "junk.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(WithDir(dir))
	for _, name := range []string{"missing.png", "junk.png"} {
		if _, err := l.LoadImage(name); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDecodeScalesToMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "big.png", 20, 10)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := Decode(f, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 8 || img.Height != 4 {
		t.Errorf("expected 8x4, got %dx%d", img.Width, img.Height)
	}
	if len(img.Pixels) != 8*4*4 {
		t.Errorf("expected tightly packed pixels, got %d bytes", len(img.Pixels))
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	paths := []string{"a.png", "b.png", "c.png"}
	for i, p := range paths {
		writePNG(t, dir, p, i+1, 1)
	}
	l := NewLoader(WithDir(dir), WithConcurrency(2))

	got, err := l.LoadAll(context.Background(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range paths {
		if got[p].Width != uint32(i+1) {
			t.Errorf("%s: expected width %d, got %d", p, i+1, got[p].Width)
		}
	}

	if _, err := l.LoadAll(context.Background(), append(paths, "missing.png")); err == nil {
		t.Error("expected the missing file to fail the batch")
	}
}
