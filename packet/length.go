package packet

import (
	"io"

	openpgp "github.com/dirkz/sequoia-sub000"
)

// header is a parsed Cipher Type Byte plus its length framing. Exactly
// one of (length, partial, indeterminate) describes the body: a fixed
// length, partial-length chunking (new format only), or an
// indeterminate (read-to-EOF) old-format body.
type header struct {
	tag         Tag
	newFormat   bool
	length      int64
	partial     bool
	indefinite  bool
}

// readHeader reads one packet header (CTB + length octets) from r.
func readHeader(r io.Reader) (*header, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	b := first[0]
	if b&0x80 == 0 {
		return nil, openpgp.StructuralError("packet tag byte does not have MSB set")
	}
	h := &header{}
	if b&0x40 != 0 {
		h.newFormat = true
		h.tag = Tag(b & 0x3f)
		return h, readNewLength(r, h)
	}
	h.newFormat = false
	h.tag = Tag((b & 0x3c) >> 2)
	lengthType := b & 3
	return h, readOldLength(r, h, lengthType)
}

func readOldLength(r io.Reader, h *header, lengthType byte) error {
	switch lengthType {
	case 0:
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		h.length = int64(buf[0])
	case 1:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		h.length = int64(buf[0])<<8 | int64(buf[1])
	case 2:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		h.length = int64(buf[0])<<24 | int64(buf[1])<<16 | int64(buf[2])<<8 | int64(buf[3])
	case 3:
		h.indefinite = true
	default:
		return openpgp.StructuralError("invalid old-format length type")
	}
	return nil
}

// readNewLength reads a new-format length, which may be a 1/2/5-octet
// full length or the first chunk of a partial-length sequence (spec
// §4.2 "Length encodings").
func readNewLength(r io.Reader, h *header) error {
	var b0 [1]byte
	if _, err := io.ReadFull(r, b0[:]); err != nil {
		return err
	}
	switch {
	case b0[0] < 192:
		h.length = int64(b0[0])
		return nil
	case b0[0] < 224:
		var b1 [1]byte
		if _, err := io.ReadFull(r, b1[:]); err != nil {
			return err
		}
		h.length = (int64(b0[0])-192)<<8 + int64(b1[0]) + 192
		return nil
	case b0[0] == 255:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		h.length = int64(buf[0])<<24 | int64(buf[1])<<16 | int64(buf[2])<<8 | int64(buf[3])
		return nil
	default:
		// 224..254: partial body length, chunk size 1<<(b0&0x1f).
		h.partial = true
		h.length = 1 << (b0[0] & 0x1f)
		return nil
	}
}

// readNewLengthContinuation reads the length octets that introduce the
// *next* chunk of a partial-length body (called by
// partialLengthReader once the current chunk is exhausted).
func readNewLengthContinuation(r io.Reader) (chunkLen int64, partial bool, err error) {
	var b0 [1]byte
	if _, err = io.ReadFull(r, b0[:]); err != nil {
		return 0, false, err
	}
	switch {
	case b0[0] < 192:
		return int64(b0[0]), false, nil
	case b0[0] < 224:
		var b1 [1]byte
		if _, err = io.ReadFull(r, b1[:]); err != nil {
			return 0, false, err
		}
		return (int64(b0[0])-192)<<8 + int64(b1[0]) + 192, false, nil
	case b0[0] == 255:
		var buf [4]byte
		if _, err = io.ReadFull(r, buf[:]); err != nil {
			return 0, false, err
		}
		return int64(buf[0])<<24 | int64(buf[1])<<16 | int64(buf[2])<<8 | int64(buf[3]), false, nil
	default:
		return 1 << (b0[0] & 0x1f), true, nil
	}
}

// partialLengthReader reassembles a partial-length-framed packet body
// into a contiguous stream, transparently reading the next chunk's
// length octets from the underlying source as each chunk is exhausted.
// The last chunk is signaled by a full (non-partial) length.
type partialLengthReader struct {
	src       io.Reader
	remaining int64
	partial   bool
	done      bool
}

func newPartialLengthReader(src io.Reader, firstChunk int64, firstIsPartial bool) *partialLengthReader {
	return &partialLengthReader{src: src, remaining: firstChunk, partial: firstIsPartial}
}

func (p *partialLengthReader) Read(buf []byte) (int, error) {
	for p.remaining == 0 && p.partial && !p.done {
		chunk, partial, err := readNewLengthContinuation(p.src)
		if err != nil {
			return 0, err
		}
		p.remaining = chunk
		p.partial = partial
	}
	if p.remaining == 0 {
		if p.done {
			return 0, io.EOF
		}
		p.done = true
		return 0, io.EOF
	}
	n := int64(len(buf))
	if n > p.remaining {
		n = p.remaining
	}
	read, err := p.src.Read(buf[:n])
	p.remaining -= int64(read)
	if p.remaining == 0 && !p.partial {
		p.done = true
	}
	return read, err
}

// fixedLengthReader is io.LimitReader plus an EOF-on-short-read check,
// so a truncated fixed-length body surfaces as a structural error
// rather than silent success.
type fixedLengthReader struct {
	src       io.Reader
	remaining int64
}

func (f *fixedLengthReader) Read(buf []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(buf)) > f.remaining {
		buf = buf[:f.remaining]
	}
	n, err := f.src.Read(buf)
	f.remaining -= int64(n)
	if err == io.EOF && f.remaining > 0 {
		err = openpgp.StructuralError("truncated packet body")
	}
	return n, err
}

// indefiniteLengthReader reads until the underlying source is
// exhausted (old-format indeterminate length, only valid for the
// outermost / last packet in a stream).
type indefiniteLengthReader struct {
	src io.Reader
}

func (i *indefiniteLengthReader) Read(buf []byte) (int, error) {
	return i.src.Read(buf)
}

// bodyReaderFor constructs the appropriate body io.Reader for a parsed
// header, reading from src (the current container frame).
func bodyReaderFor(h *header, src io.Reader) io.Reader {
	switch {
	case h.indefinite:
		return &indefiniteLengthReader{src: src}
	case h.partial:
		return newPartialLengthReader(src, h.length, true)
	default:
		return &fixedLengthReader{src: src, remaining: h.length}
	}
}
