package imgutil

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectHeader(t *testing.T) {
	webp := append([]byte("RIFF"), 0x24, 0x00, 0x00, 0x00)
	webp = append(webp, []byte("WEBPVP8 ")...)

	cases := []struct {
		name   string
		header []byte
		want   Format
	}{
		{"jpeg", append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 8)...), FormatJPEG},
		{"png", append(append([]byte{}, pngSig...), make([]byte, 8)...), FormatPNG},
		{"gif", append([]byte("GIF89a"), make([]byte, 8)...), FormatGIF},
		{"webp", webp, FormatWebP},
		{"svg plain", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), FormatSVG},
		{"svg with xml decl", []byte("<?xml version=\"1.0\"?>\n<svg></svg>"), FormatSVG},
		{"unknown", []byte("not an image at all"), FormatUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectHeader(tc.header)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectHeaderTooShort(t *testing.T) {
	if _, err := DetectHeader([]byte{0xff, 0xd8}); err == nil {
		t.Fatal("expected error for short header")
	}
}

func TestSniffFileIgnoresExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mislabeled.jpg")

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := SniffFile(path)
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if got != FormatPNG {
		t.Fatalf("got %v, want png despite .jpg extension", got)
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JPG") != FormatJPEG || ParseFormat(".jpeg") != FormatJPEG {
		t.Fatal("jpeg aliases not recognized")
	}
	if ParseFormat("webp") != FormatWebP || ParseFormat("bmp") != FormatUnknown {
		t.Fatal("unexpected parse results")
	}
}
