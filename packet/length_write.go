package packet

import (
	"encoding/binary"
	"io"
)

// WriteHeader writes a new-format CTB and a full (non-partial) length
// for tag, choosing the 1/2/5-octet encoding per RFC 4880 §4.2.2.
func WriteHeader(w io.Writer, tag Tag, length int64) error {
	if _, err := w.Write([]byte{0x80 | 0x40 | byte(tag)}); err != nil {
		return err
	}
	return writeNewLength(w, length)
}

func writeNewLength(w io.Writer, length int64) error {
	switch {
	case length < 192:
		_, err := w.Write([]byte{byte(length)})
		return err
	case length < 8384:
		v := length - 192
		_, err := w.Write([]byte{byte(v>>8) + 192, byte(v)})
		return err
	default:
		buf := make([]byte, 5)
		buf[0] = 255
		binary.BigEndian.PutUint32(buf[1:], uint32(length))
		_, err := w.Write(buf)
		return err
	}
}

// WritePartialHeader writes a new-format CTB followed by a
// partial-length octet announcing a chunk of exactly 1<<power bytes.
// power must be in [0,30].
func WritePartialHeader(w io.Writer, tag Tag, power uint) error {
	if _, err := w.Write([]byte{0x80 | 0x40 | byte(tag)}); err != nil {
		return err
	}
	_, err := w.Write([]byte{byte(0xE0 | power)})
	return err
}

// WritePartialChunkLength writes a bare partial-length continuation
// octet (no CTB) announcing the next chunk size.
func WritePartialChunkLength(w io.Writer, power uint) error {
	_, err := w.Write([]byte{byte(0xE0 | power)})
	return err
}

// partialBodyWriter streams an unknown-length body as a sequence of
// power-of-two partial-length chunks, buffering up to chunkSize bytes
// before flushing a chunk header + chunk body, and writing a final
// full-length chunk on Close. This matches spec §4.2's "partial
// lengths (chunked streaming, power-of-two chunk sizes, last chunk
// full length)".
type partialBodyWriter struct {
	w         io.Writer
	tag       Tag
	chunkPow  uint
	chunkSize int
	buf       []byte
	wroteCTB  bool
}

// newPartialBodyWriter creates a writer that chunks at 2^chunkPow
// bytes (default chunkPow=13, 8192 bytes, a conventional choice also
// used for the AED container's fixed 4096-byte plaintext chunking
// elsewhere in this module — the two chunk sizes are independent).
func newPartialBodyWriter(w io.Writer, tag Tag, chunkPow uint) *partialBodyWriter {
	return &partialBodyWriter{w: w, tag: tag, chunkPow: chunkPow, chunkSize: 1 << chunkPow}
}

func (p *partialBodyWriter) Write(data []byte) (int, error) {
	total := len(data)
	for len(data) > 0 {
		room := p.chunkSize - len(p.buf)
		n := room
		if n > len(data) {
			n = len(data)
		}
		p.buf = append(p.buf, data[:n]...)
		data = data[n:]
		if len(p.buf) == p.chunkSize {
			if err := p.flushChunk(p.buf, true); err != nil {
				return 0, err
			}
			p.buf = p.buf[:0]
		}
	}
	return total, nil
}

func (p *partialBodyWriter) flushChunk(chunk []byte, partial bool) error {
	if !p.wroteCTB {
		if _, err := p.w.Write([]byte{0x80 | 0x40 | byte(p.tag)}); err != nil {
			return err
		}
		p.wroteCTB = true
	}
	if partial {
		if err := WritePartialChunkLength(p.w, p.chunkPow); err != nil {
			return err
		}
	} else {
		if err := writeNewLength(p.w, int64(len(chunk))); err != nil {
			return err
		}
	}
	_, err := p.w.Write(chunk)
	return err
}

// NewPartialBodyWriter exposes partialBodyWriter to callers outside
// this package (serialize/stream) that need to frame a packet body of
// unknown final length: Write any number of times, then Close to flush
// the final chunk and complete the packet.
func NewPartialBodyWriter(w io.Writer, tag Tag, chunkPow uint) io.WriteCloser {
	return newPartialBodyWriter(w, tag, chunkPow)
}

// Close flushes any buffered tail as a final, fully-length-prefixed
// chunk (possibly zero-length, which is legal).
func (p *partialBodyWriter) Close() error {
	if !p.wroteCTB && len(p.buf) == 0 {
		// Body was empty and we never emitted even the CTB: emit a
		// zero-length fixed-length packet so the container is still
		// well-formed.
		if _, err := p.w.Write([]byte{0x80 | 0x40 | byte(p.tag)}); err != nil {
			return err
		}
		return writeNewLength(p.w, 0)
	}
	return p.flushChunk(p.buf, false)
}
