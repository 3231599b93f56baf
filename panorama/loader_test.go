// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package panorama

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Synthetic(w, h, 0)); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestHTTPLoaderFetch(t *testing.T) {
	data := encodePNG(t, 64, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pano.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.Client())

	img, err := l.Load(context.Background(), srv.URL+"/pano.png")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("bounds = %v, want 64x32", b)
	}

	if _, err := l.Load(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Load() of 404 succeeded")
	}

	small := l.WithMaxBytes(16)
	if _, err := small.Load(context.Background(), srv.URL+"/pano.png"); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Load() over cap error = %v, want ErrImageTooLarge", err)
	}
}

// pngClaiming returns a tiny PNG whose header declares w x h pixels.
func pngClaiming(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, 1, 1)
	// Signature (8), IHDR length (4), "IHDR" (4), width, height.
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestHTTPLoaderPixelCap(t *testing.T) {
	dir := t.TempDir()
	huge := filepath.Join(dir, "huge.png")
	if err := os.WriteFile(huge, pngClaiming(t, 16000, 8000), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewHTTPLoader(nil)
	if _, err := l.Load(context.Background(), huge); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Load() of 16000x8000 header error = %v, want ErrImageTooLarge", err)
	}

	small := filepath.Join(dir, "small.png")
	if err := os.WriteFile(small, encodePNG(t, 20, 10), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := l.WithMaxPixels(199).Load(context.Background(), small); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Load() over pixel cap error = %v, want ErrImageTooLarge", err)
	}
	if _, err := l.WithMaxPixels(200).Load(context.Background(), small); err != nil {
		t.Errorf("Load() at pixel cap error = %v", err)
	}
}

func TestHTTPLoaderCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPLoader(srv.Client()).Load(ctx, srv.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestHTTPLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pano.png")
	if err := os.WriteFile(path, encodePNG(t, 32, 16), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewHTTPLoader(nil)
	for _, u := range []string{path, "file://" + path} {
		img, err := l.Load(context.Background(), u)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", u, err)
		}
		if img.Bounds().Dx() != 32 {
			t.Errorf("Load(%q) width = %d, want 32", u, img.Bounds().Dx())
		}
	}

	if _, err := l.Load(context.Background(), "ftp://example.com/p.png"); err == nil {
		t.Error("Load() accepted ftp scheme")
	}
	if _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "none.png")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}

func TestSyntheticLoader(t *testing.T) {
	l := SyntheticLoader(nil)

	img, err := l.Load(context.Background(), "synthetic://3")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1024 || b.Dy() != 512 {
		t.Errorf("bounds = %v, want 1024x512", b)
	}

	if _, err := l.Load(context.Background(), "synthetic://abc"); err == nil {
		t.Error("Load() accepted non-numeric seed")
	}
	if _, err := l.Load(context.Background(), "https://example.com/p.jpg"); err == nil {
		t.Error("Load() without fallback succeeded")
	}

	called := false
	next := LoaderFunc(func(context.Context, string) (image.Image, error) {
		called = true
		return Synthetic(4, 2, 0), nil
	})
	if _, err := SyntheticLoader(next).Load(context.Background(), "pano.jpg"); err != nil || !called {
		t.Errorf("fallback called = %v, err = %v", called, err)
	}
}
