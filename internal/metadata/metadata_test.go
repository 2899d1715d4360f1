package metadata

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"squish/pkg/imgutil"
)

// buildExifTIFF builds a minimal TIFF EXIF block with a camera model and a
// timestamp.
func buildExifTIFF() []byte {
	var tiff bytes.Buffer
	tiff.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0110))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(38))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0132))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(20))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(46))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write([]byte("TestCam\x00"))
	tiff.Write([]byte("2024:01:02 03:04:05\x00"))
	return tiff.Bytes()
}

func tinyImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	return img
}

// writeJPEGWithExif encodes a real JPEG and splices an EXIF APP1 segment in
// after the SOI marker.
func writeJPEGWithExif(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, tinyImage(), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()

	app1 := append([]byte("Exif\x00\x00"), buildExifTIFF()...)
	var out bytes.Buffer
	out.Write(data[:2])
	out.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(app1)+2))
	out.Write(app1)
	out.Write(data[2:])

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// writePNGWithMetadata encodes a real PNG and splices tEXt, tIME, and eXIf
// chunks in before IEND.
func writePNGWithMetadata(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, tinyImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	if string(data[len(data)-8:len(data)-4]) != "IEND" {
		t.Fatal("unexpected png tail")
	}

	insertAt := len(data) - 12
	out := append([]byte{}, data[:insertAt]...)
	out = append(out, BuildChunk("tEXt", []byte("Model\x00TestCam")).Raw...)
	out = append(out, BuildChunk("tIME", []byte{0x07, 0xE8, 0x01, 0x02, 0x03, 0x04, 0x05}).Raw...)
	out = append(out, BuildChunk("eXIf", buildExifTIFF()).Raw...)
	out = append(out, data[insertAt:]...)

	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func writePlain(t *testing.T, path string, format imgutil.Format) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	switch format {
	case imgutil.FormatJPEG:
		err = jpeg.Encode(f, tinyImage(), nil)
	case imgutil.FormatPNG:
		err = png.Encode(f, tinyImage())
	}
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func decodable(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, _, err := image.Decode(f); err != nil {
		t.Fatalf("decode %s: %v", filepath.Base(path), err)
	}
}

func TestStripJPEGRemovesExif(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.jpg")
	writeJPEGWithExif(t, path)

	if has, err := HasExif(path); err != nil || !has {
		t.Fatalf("fixture should carry exif (has=%v err=%v)", has, err)
	}

	if err := StripFile(path, imgutil.FormatJPEG); err != nil {
		t.Fatalf("strip: %v", err)
	}

	if has, err := HasExif(path); err != nil || has {
		t.Fatalf("exif survived strip (has=%v err=%v)", has, err)
	}
	decodable(t, path)
}

func TestStripPNGRemovesChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.png")
	writePNGWithMetadata(t, path)

	if err := StripFile(path, imgutil.FormatPNG); err != nil {
		t.Fatalf("strip: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	chunks, err := ExtractPNGChunks(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("chunks survived strip: %d", len(chunks))
	}
	decodable(t, path)
}

func TestStripUnhandledFormatIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anim.gif")
	payload := []byte("GIF89a not really a gif")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := StripFile(path, imgutil.FormatGIF); err != nil {
		t.Fatalf("strip: %v", err)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(after, payload) {
		t.Fatal("no-op strip modified the file")
	}
}

func TestTransplantJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writeJPEGWithExif(t, src)
	writePlain(t, dst, imgutil.FormatJPEG)

	if err := TransplantFile(src, dst, imgutil.FormatJPEG, imgutil.FormatJPEG); err != nil {
		t.Fatalf("transplant: %v", err)
	}

	if has, err := HasExif(dst); err != nil || !has {
		t.Fatalf("exif missing after transplant (has=%v err=%v)", has, err)
	}
	decodable(t, dst)
}

func TestTransplantPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	writePNGWithMetadata(t, src)
	writePlain(t, dst, imgutil.FormatPNG)

	if err := TransplantFile(src, dst, imgutil.FormatPNG, imgutil.FormatPNG); err != nil {
		t.Fatalf("transplant: %v", err)
	}

	data, _ := os.ReadFile(dst)
	chunks, err := ExtractPNGChunks(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks after transplant, want 3", len(chunks))
	}
	decodable(t, dst)
}

func TestTransplantAcrossFormats(t *testing.T) {
	dir := t.TempDir()

	jpgSrc := filepath.Join(dir, "src.jpg")
	pngDst := filepath.Join(dir, "dst.png")
	writeJPEGWithExif(t, jpgSrc)
	writePlain(t, pngDst, imgutil.FormatPNG)

	if err := TransplantFile(jpgSrc, pngDst, imgutil.FormatJPEG, imgutil.FormatPNG); err != nil {
		t.Fatalf("jpeg->png transplant: %v", err)
	}
	if has, err := HasExif(pngDst); err != nil || !has {
		t.Fatalf("exif missing in png (has=%v err=%v)", has, err)
	}
	decodable(t, pngDst)

	pngSrc := filepath.Join(dir, "src.png")
	jpgDst := filepath.Join(dir, "dst.jpg")
	writePNGWithMetadata(t, pngSrc)
	writePlain(t, jpgDst, imgutil.FormatJPEG)

	if err := TransplantFile(pngSrc, jpgDst, imgutil.FormatPNG, imgutil.FormatJPEG); err != nil {
		t.Fatalf("png->jpeg transplant: %v", err)
	}
	if has, err := HasExif(jpgDst); err != nil || !has {
		t.Fatalf("exif missing in jpeg (has=%v err=%v)", has, err)
	}
	decodable(t, jpgDst)
}

func TestExifTagsOnSplicedBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.jpg")
	writeJPEGWithExif(t, path)

	tags, err := ExifTags(path)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	found := map[string]bool{}
	for _, name := range tags {
		found[name] = true
	}
	if !found["Model"] || !found["DateTime"] {
		t.Fatalf("got tags %v, want Model and DateTime", tags)
	}
}

// An in-place tool seeds the output with the source bytes, metadata
// included. Transplanting on top of that must not duplicate segments.
func TestTransplantOntoSeededJPEGDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writeJPEGWithExif(t, src)
	srcData, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(dst, srcData, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := TransplantFile(src, dst, imgutil.FormatJPEG, imgutil.FormatJPEG); err != nil {
		t.Fatalf("transplant: %v", err)
	}

	data, _ := os.ReadFile(dst)
	segs, err := ExtractJPEGSegments(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	exifCount := 0
	for _, seg := range segs {
		if seg.Marker == 0xe1 {
			exifCount++
		}
	}
	if exifCount != 1 {
		t.Fatalf("got %d EXIF segments, want 1", exifCount)
	}
	decodable(t, dst)
}

func TestTransplantOntoSeededPNGDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	writePNGWithMetadata(t, src)
	srcData, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(dst, srcData, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := TransplantFile(src, dst, imgutil.FormatPNG, imgutil.FormatPNG); err != nil {
		t.Fatalf("transplant: %v", err)
	}

	data, _ := os.ReadFile(dst)
	chunks, err := ExtractPNGChunks(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks after transplant, want 3", len(chunks))
	}
	decodable(t, dst)
}

func TestTransplantWithoutMetadataIsNoop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	writePlain(t, src, imgutil.FormatJPEG)
	writePlain(t, dst, imgutil.FormatJPEG)

	before, _ := os.ReadFile(dst)
	if err := TransplantFile(src, dst, imgutil.FormatJPEG, imgutil.FormatJPEG); err != nil {
		t.Fatalf("transplant: %v", err)
	}
	after, _ := os.ReadFile(dst)
	if !bytes.Equal(before, after) {
		t.Fatal("transplant from metadata-free source modified output")
	}
}
