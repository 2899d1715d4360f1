package metadata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// auxPNGChunks are the chunk types treated as auxiliary metadata. iCCP is
// color information and always passes through.
var auxPNGChunks = map[string]bool{
	"tEXt": true,
	"zTXt": true,
	"iTXt": true,
	"eXIf": true,
	"tIME": true,
}

// Chunk is one raw PNG chunk, fully serialized (length, type, data, CRC).
type Chunk struct {
	Name string
	Raw  []byte
}

// Data returns the chunk's data portion.
func (c Chunk) Data() []byte {
	return c.Raw[8 : len(c.Raw)-4]
}

// BuildChunk serializes a chunk of the given type and data, computing its CRC.
func BuildChunk(name string, data []byte) Chunk {
	raw := make([]byte, 0, 12+len(data))
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	raw = append(raw, lenBuf...)
	raw = append(raw, []byte(name)...)
	raw = append(raw, data...)

	crc := crc32.ChecksumIEEE(raw[4:])
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc)
	return Chunk{Name: name, Raw: append(raw, crcBuf...)}
}

// StripPNG copies the PNG stream from r to w with auxiliary metadata chunks
// removed.
func StripPNG(r io.Reader, w io.Writer) error {
	return walkPNG(r, w, func(c Chunk) bool { return false })
}

// ExtractPNGChunks returns the auxiliary metadata chunks of a PNG stream.
func ExtractPNGChunks(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	err := walkPNG(r, nil, func(c Chunk) bool {
		chunks = append(chunks, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// InsertPNGChunks copies the PNG stream from r to w, inserting the given
// chunks immediately before the first IDAT chunk.
func InsertPNGChunks(r io.Reader, w io.Writer, chunks []Chunk) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return err
	}
	if !bytesEqual(sig, pngSignature) {
		return fmt.Errorf("invalid PNG signature")
	}
	if _, err := bw.Write(sig); err != nil {
		return err
	}

	inserted := false
	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(br, header); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkName := string(header[4:8])

		if chunkName == "IDAT" && !inserted {
			for _, c := range chunks {
				if _, err := bw.Write(c.Raw); err != nil {
					return err
				}
			}
			inserted = true
		}

		if _, err := bw.Write(header); err != nil {
			return err
		}
		if _, err := io.CopyN(bw, br, int64(length)+4); err != nil {
			return err
		}

		if chunkName == "IEND" {
			break
		}
	}

	return bw.Flush()
}

// walkPNG scans a PNG chunk stream. Auxiliary metadata chunks are buffered
// and offered to visit, which returns whether to keep them; everything else
// passes through untouched. A nil w discards output.
func walkPNG(r io.Reader, w io.Writer, visit func(c Chunk) bool) error {
	br := bufio.NewReader(r)
	out := io.Discard
	if w != nil {
		out = w
	}
	bw := bufio.NewWriter(out)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return err
	}
	if !bytesEqual(sig, pngSignature) {
		return fmt.Errorf("invalid PNG signature")
	}
	if _, err := bw.Write(sig); err != nil {
		return err
	}

	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(br, header); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkName := string(header[4:8])

		if auxPNGChunks[chunkName] {
			body := make([]byte, int64(length)+4)
			if _, err := io.ReadFull(br, body); err != nil {
				return err
			}
			raw := append(append([]byte(nil), header...), body...)
			if visit(Chunk{Name: chunkName, Raw: raw}) {
				if _, err := bw.Write(raw); err != nil {
					return err
				}
			}
			continue
		}

		if _, err := bw.Write(header); err != nil {
			return err
		}
		if _, err := io.CopyN(bw, br, int64(length)+4); err != nil {
			return err
		}

		if chunkName == "IEND" {
			break
		}
	}

	return bw.Flush()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
