// Package metadata enforces the keep-metadata policy: stripping auxiliary
// metadata from outputs, or transplanting it from the original into
// re-encoded outputs so it survives the built-in codec path.
package metadata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	jpegXMPHeader  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	jpegPhotoshop  = []byte("Photoshop 3.0\x00")
)

// Segment is one raw JPEG APPn metadata segment (marker plus payload,
// without the length prefix).
type Segment struct {
	Marker  byte
	Payload []byte
}

// isAuxJPEGSegment reports whether a segment carries auxiliary metadata:
// EXIF or XMP in APP1, or Photoshop/IPTC in APP13. ICC profiles (APP2) are
// color information, not metadata, and are always left alone.
func isAuxJPEGSegment(marker byte, payload []byte) bool {
	switch marker {
	case 0xe1:
		return hasPrefix(payload, jpegExifHeader) || hasPrefix(payload, jpegXMPHeader)
	case 0xed:
		return hasPrefix(payload, jpegPhotoshop)
	}
	return false
}

// StripJPEG copies the JPEG stream from r to w with auxiliary metadata
// segments removed.
func StripJPEG(r io.Reader, w io.Writer) error {
	return walkJPEG(r, w, func(marker byte, payload []byte) bool {
		return !isAuxJPEGSegment(marker, payload)
	})
}

// ExtractJPEGSegments returns the auxiliary metadata segments of a JPEG
// stream without consuming image data into memory.
func ExtractJPEGSegments(r io.Reader) ([]Segment, error) {
	var segs []Segment
	err := walkJPEG(r, nil, func(marker byte, payload []byte) bool {
		if isAuxJPEGSegment(marker, payload) {
			segs = append(segs, Segment{Marker: marker, Payload: append([]byte(nil), payload...)})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return segs, nil
}

// InsertJPEGSegments copies the JPEG stream from r to w, inserting the given
// metadata segments directly after the SOI marker.
func InsertJPEGSegments(r io.Reader, w io.Writer, segs []Segment) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return fmt.Errorf("invalid JPEG SOI")
	}
	if _, err := bw.Write(soi); err != nil {
		return err
	}

	for _, seg := range segs {
		if len(seg.Payload)+2 > 0xffff {
			continue
		}
		if _, err := bw.Write([]byte{0xff, seg.Marker}); err != nil {
			return err
		}
		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(seg.Payload)+2))
		if _, err := bw.Write(lenBuf); err != nil {
			return err
		}
		if _, err := bw.Write(seg.Payload); err != nil {
			return err
		}
	}

	if _, err := io.Copy(bw, br); err != nil {
		return err
	}
	return bw.Flush()
}

// walkJPEG scans a JPEG segment stream. Segments that can carry auxiliary
// metadata (APP1, APP13) are buffered and offered to visit, which returns
// whether to keep them; everything else passes through untouched. A nil w
// discards output, turning the walk into a pure scan.
func walkJPEG(r io.Reader, w io.Writer, visit func(marker byte, payload []byte) bool) error {
	br := bufio.NewReader(r)
	out := io.Discard
	if w != nil {
		out = w
	}
	bw := bufio.NewWriter(out)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return fmt.Errorf("invalid JPEG SOI")
	}
	if _, err := bw.Write(soi); err != nil {
		return err
	}

	for {
		markerPrefix, err := br.ReadByte()
		if err != nil {
			return err
		}
		for markerPrefix != 0xff {
			markerPrefix, err = br.ReadByte()
			if err != nil {
				return err
			}
		}

		marker, err := br.ReadByte()
		if err != nil {
			return err
		}
		for marker == 0xff {
			marker, err = br.ReadByte()
			if err != nil {
				return err
			}
		}

		if marker == 0xd9 { // EOI
			if _, err := bw.Write([]byte{0xff, 0xd9}); err != nil {
				return err
			}
			break
		}

		if marker == 0xda { // SOS: entropy-coded data follows, copy the rest
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			if _, err := io.Copy(bw, br); err != nil {
				return err
			}
			break
		}

		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			continue
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf))
		if segLen < 2 {
			return fmt.Errorf("invalid JPEG segment length")
		}
		payloadLen := segLen - 2

		if marker == 0xe1 || marker == 0xed {
			payload := make([]byte, payloadLen)
			if _, err := io.ReadFull(br, payload); err != nil {
				return err
			}
			if !visit(marker, payload) {
				continue
			}
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			if _, err := bw.Write(lenBuf); err != nil {
				return err
			}
			if _, err := bw.Write(payload); err != nil {
				return err
			}
			continue
		}

		if _, err := bw.Write([]byte{0xff, marker}); err != nil {
			return err
		}
		if _, err := bw.Write(lenBuf); err != nil {
			return err
		}
		if _, err := io.CopyN(bw, br, int64(payloadLen)); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
