package packet

import (
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"io"

	"github.com/klauspost/compress/zlib"

	openpgp "github.com/dirkz/sequoia-sub000"
)

// CompressionAlgorithm identifies a Compressed Data packet's algorithm
// (RFC 4880 §5.6, §9.3).
type CompressionAlgorithm byte

const (
	CompressionNone  CompressionAlgorithm = 0
	CompressionZIP   CompressionAlgorithm = 1 // raw DEFLATE, no zlib wrapper
	CompressionZLIB  CompressionAlgorithm = 2
	CompressionBZip2 CompressionAlgorithm = 3
)

// CompressedData is a Compressed Data packet: a container whose body,
// once decompressed, is itself a nested packet stream (spec §4.2).
type CompressedData struct {
	Algo CompressionAlgorithm

	// compressedBody is the still-compressed payload, decompressed
	// lazily by Cursor.Recurse via Decompressor.
	compressedBody []byte
}

func (c *CompressedData) Tag() Tag { return TagCompressedData }

func (c *CompressedData) PacketBody() []byte {
	return append([]byte{byte(c.Algo)}, c.compressedBody...)
}

// ParseCompressedData decodes a Compressed Data packet header.
func ParseCompressedData(body []byte) (*CompressedData, error) {
	if len(body) < 1 {
		return nil, openpgp.StructuralError("empty compressed data packet")
	}
	return &CompressedData{Algo: CompressionAlgorithm(body[0]), compressedBody: append([]byte(nil), body[1:]...)}, nil
}

// Decompressor returns a reader over the packet's decompressed body.
// BZip2 compression (write direction) is not supported by this module
// (no BZip2-writing library is wired in; see DESIGN.md), but BZip2
// *decompression* uses the standard library's read-only implementation
// and works here.
func (c *CompressedData) Decompressor() (io.ReadCloser, error) {
	switch c.Algo {
	case CompressionNone:
		return io.NopCloser(bytes.NewReader(c.compressedBody)), nil
	case CompressionZIP:
		return flate.NewReader(bytes.NewReader(c.compressedBody)), nil
	case CompressionZLIB:
		return zlib.NewReader(bytes.NewReader(c.compressedBody))
	case CompressionBZip2:
		return io.NopCloser(bzip2.NewReader(bytes.NewReader(c.compressedBody))), nil
	default:
		return nil, openpgp.UnsupportedError("unknown compression algorithm")
	}
}

// NewCompressedData wraps an already-compressed body.
func NewCompressedData(algo CompressionAlgorithm, compressedBody []byte) *CompressedData {
	return &CompressedData{Algo: algo, compressedBody: compressedBody}
}
