package imgutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
)

// Format identifies a supported image format, detected from content rather
// than file extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
	FormatGIF
	FormatSVG
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatGIF:
		return "gif"
	case FormatSVG:
		return "svg"
	default:
		return "unknown"
	}
}

// Ext returns the canonical file extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	case FormatGIF:
		return ".gif"
	case FormatSVG:
		return ".svg"
	default:
		return ""
	}
}

// Raster reports whether the format is pixel-based. SVG is the only vector
// format recognized.
func (f Format) Raster() bool {
	return f == FormatJPEG || f == FormatPNG || f == FormatWebP || f == FormatGIF
}

// ParseFormat maps a user-supplied format name (with or without a leading
// dot) to a Format. Unrecognized names map to FormatUnknown.
func ParseFormat(name string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "webp":
		return FormatWebP
	case "gif":
		return FormatGIF
	case "svg":
		return FormatSVG
	default:
		return FormatUnknown
	}
}

// headerLen covers the longest binary signature (RIFF....WEBP) plus enough
// text to spot an SVG root element in typical files.
const headerLen = 512

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	riffSig   = []byte("RIFF")
	webpSig   = []byte("WEBP")
	gif87Sig  = []byte("GIF87a")
	gif89Sig  = []byte("GIF89a")
	xmlHeader = []byte("<?xml")
	svgRoot   = []byte("<svg")
)

// DetectHeader inspects the leading bytes of a file for known signatures.
func DetectHeader(header []byte) (Format, error) {
	if len(header) < 8 {
		return FormatUnknown, errors.New("header too short")
	}

	if bytes.HasPrefix(header, jpegSig) {
		return FormatJPEG, nil
	}
	if bytes.HasPrefix(header, pngSig) {
		return FormatPNG, nil
	}
	if bytes.HasPrefix(header, gif87Sig) || bytes.HasPrefix(header, gif89Sig) {
		return FormatGIF, nil
	}
	if len(header) >= 12 && bytes.HasPrefix(header, riffSig) && bytes.Equal(header[8:12], webpSig) {
		return FormatWebP, nil
	}
	if looksLikeSVG(header) {
		return FormatSVG, nil
	}

	return FormatUnknown, nil
}

// SniffFile reads the head of a file to determine its format.
func SniffFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

// SniffReader reads up to headerLen bytes from r and determines its format.
func SniffReader(r io.Reader) (Format, error) {
	header := make([]byte, headerLen)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return FormatUnknown, err
	}

	return DetectHeader(header[:n])
}

// looksLikeSVG accepts a document whose first non-whitespace content is an
// <svg> root, optionally preceded by an XML declaration.
func looksLikeSVG(header []byte) bool {
	trimmed := bytes.TrimLeft(header, " \t\r\n\xef\xbb\xbf")
	if bytes.HasPrefix(trimmed, svgRoot) {
		return true
	}
	return bytes.HasPrefix(trimmed, xmlHeader) && bytes.Contains(trimmed, svgRoot)
}
