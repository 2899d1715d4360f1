package metadata

import (
	"bytes"
	"fmt"
	"os"

	"squish/pkg/imgutil"
)

// StripFile removes auxiliary metadata from the file at path, in place.
// Formats without a strip implementation are a no-op: the built-in encoders
// never carry metadata forward for them, and the external tools strip via
// their own flags.
func StripFile(path string, format imgutil.Format) error {
	var strip func([]byte, *bytes.Buffer) error
	switch format {
	case imgutil.FormatJPEG:
		strip = func(in []byte, out *bytes.Buffer) error { return StripJPEG(bytes.NewReader(in), out) }
	case imgutil.FormatPNG:
		strip = func(in []byte, out *bytes.Buffer) error { return StripPNG(bytes.NewReader(in), out) }
	default:
		return nil
	}

	in, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := strip(in, &out); err != nil {
		return fmt.Errorf("strip %s: %w", format, err)
	}
	return os.WriteFile(path, out.Bytes(), 0o644)
}

// TransplantFile copies metadata from the original file at src into the
// re-encoded output at dst, rewriting dst in place. Same-format JPEG and PNG
// carry all auxiliary segments/chunks; a JPEG<->PNG conversion carries the
// raw EXIF block across. Every other combination is a no-op.
func TransplantFile(src, dst string, srcFormat, dstFormat imgutil.Format) error {
	switch {
	case srcFormat == imgutil.FormatJPEG && dstFormat == imgutil.FormatJPEG:
		return transplantJPEG(src, dst)
	case srcFormat == imgutil.FormatPNG && dstFormat == imgutil.FormatPNG:
		return transplantPNG(src, dst)
	case srcFormat == imgutil.FormatJPEG && dstFormat == imgutil.FormatPNG,
		srcFormat == imgutil.FormatPNG && dstFormat == imgutil.FormatJPEG:
		return transplantEXIF(src, dst, srcFormat, dstFormat)
	default:
		return nil
	}
}

func transplantJPEG(src, dst string) error {
	srcData, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	segs, err := ExtractJPEGSegments(bytes.NewReader(srcData))
	if err != nil {
		return fmt.Errorf("extract jpeg metadata: %w", err)
	}
	if len(segs) == 0 {
		return nil
	}

	dstData, err := os.ReadFile(dst)
	if err != nil {
		return err
	}
	// An in-place tool may have carried the source metadata into dst
	// already; strip before inserting so segments never double up.
	var clean bytes.Buffer
	if err := StripJPEG(bytes.NewReader(dstData), &clean); err != nil {
		return fmt.Errorf("strip jpeg metadata: %w", err)
	}
	var out bytes.Buffer
	if err := InsertJPEGSegments(bytes.NewReader(clean.Bytes()), &out, segs); err != nil {
		return fmt.Errorf("insert jpeg metadata: %w", err)
	}
	return os.WriteFile(dst, out.Bytes(), 0o644)
}

func transplantPNG(src, dst string) error {
	srcData, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	chunks, err := ExtractPNGChunks(bytes.NewReader(srcData))
	if err != nil {
		return fmt.Errorf("extract png metadata: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	dstData, err := os.ReadFile(dst)
	if err != nil {
		return err
	}
	var clean bytes.Buffer
	if err := StripPNG(bytes.NewReader(dstData), &clean); err != nil {
		return fmt.Errorf("strip png metadata: %w", err)
	}
	var out bytes.Buffer
	if err := InsertPNGChunks(bytes.NewReader(clean.Bytes()), &out, chunks); err != nil {
		return fmt.Errorf("insert png metadata: %w", err)
	}
	return os.WriteFile(dst, out.Bytes(), 0o644)
}

// transplantEXIF carries the raw EXIF TIFF block across a JPEG<->PNG
// conversion: APP1 "Exif\0\0" payload on the JPEG side, eXIf chunk data on
// the PNG side. Text chunks and Photoshop blocks have no cross-format home
// and are not carried.
func transplantEXIF(src, dst string, srcFormat, dstFormat imgutil.Format) error {
	exifBlock, err := extractEXIFBlock(src, srcFormat)
	if err != nil {
		return err
	}
	if len(exifBlock) == 0 {
		return nil
	}

	dstData, err := os.ReadFile(dst)
	if err != nil {
		return err
	}
	var clean bytes.Buffer
	var out bytes.Buffer
	if dstFormat == imgutil.FormatPNG {
		if err := StripPNG(bytes.NewReader(dstData), &clean); err != nil {
			return fmt.Errorf("strip png metadata: %w", err)
		}
		chunk := BuildChunk("eXIf", exifBlock)
		err = InsertPNGChunks(bytes.NewReader(clean.Bytes()), &out, []Chunk{chunk})
	} else {
		if err := StripJPEG(bytes.NewReader(dstData), &clean); err != nil {
			return fmt.Errorf("strip jpeg metadata: %w", err)
		}
		seg := Segment{Marker: 0xe1, Payload: append(append([]byte(nil), jpegExifHeader...), exifBlock...)}
		err = InsertJPEGSegments(bytes.NewReader(clean.Bytes()), &out, []Segment{seg})
	}
	if err != nil {
		return fmt.Errorf("insert exif block: %w", err)
	}
	return os.WriteFile(dst, out.Bytes(), 0o644)
}

func extractEXIFBlock(path string, format imgutil.Format) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case imgutil.FormatJPEG:
		segs, err := ExtractJPEGSegments(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		for _, seg := range segs {
			if seg.Marker == 0xe1 && hasPrefix(seg.Payload, jpegExifHeader) {
				return seg.Payload[len(jpegExifHeader):], nil
			}
		}
	case imgutil.FormatPNG:
		chunks, err := ExtractPNGChunks(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if c.Name == "eXIf" {
				return c.Data(), nil
			}
		}
	}
	return nil, nil
}
