package stream

import (
	"compress/flate"
	"io"

	"github.com/klauspost/compress/zlib"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/packet"
)

// nopWriteCloser adapts a bare io.Writer (the uncompressed case) to
// io.WriteCloser so Compressor's Finalize logic doesn't need a special
// case for it.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Compressor emits a Compressed Data packet header, then wraps the
// inner sink in a compression stream: uncompressed, raw DEFLATE (ZIP,
// algorithm 1), zlib-wrapped DEFLATE (algorithm 2, via the teacher's
// own github.com/klauspost/compress dependency rather than stdlib
// compress/zlib), or BZip2 (algorithm 3 — write-side unsupported, see
// DESIGN.md: no BZip2-writing library is wired into this module, only
// the standard library's read-only decompressor).
type Compressor struct {
	sink   io.Writer
	body   io.WriteCloser // partial-length framed Compressed Data body
	stream io.WriteCloser // compression layer wrapping body
}

// NewCompressor starts a Compressor of the given algorithm writing into
// sink. level is passed through to DEFLATE-family algorithms (ignored
// for CompressionNone); flate.DefaultCompression is a reasonable
// default.
func NewCompressor(sink io.Writer, algo packet.CompressionAlgorithm, level int) (*Compressor, error) {
	body := packet.NewPartialBodyWriter(sink, packet.TagCompressedData, 13)
	if _, err := body.Write([]byte{byte(algo)}); err != nil {
		return nil, err
	}
	c := &Compressor{sink: sink, body: body}
	switch algo {
	case packet.CompressionNone:
		c.stream = nopWriteCloser{body}
	case packet.CompressionZIP:
		fw, err := flate.NewWriter(body, level)
		if err != nil {
			return nil, err
		}
		c.stream = fw
	case packet.CompressionZLIB:
		zw, err := zlib.NewWriterLevel(body, level)
		if err != nil {
			return nil, err
		}
		c.stream = zw
	case packet.CompressionBZip2:
		return nil, openpgp.UnsupportedError("BZip2 compression is read-only in this module")
	default:
		return nil, openpgp.UnsupportedError("unknown compression algorithm")
	}
	return c, nil
}

func (c *Compressor) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *Compressor) Finalize() (io.Writer, error) {
	if err := c.stream.Close(); err != nil {
		return nil, err
	}
	if err := c.body.Close(); err != nil {
		return nil, err
	}
	return c.sink, nil
}
