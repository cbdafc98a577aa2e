package stream

import (
	"encoding/binary"
	"io"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/packet"
)

// LiteralOptions configures the Literal filter (spec §4.8).
type LiteralOptions struct {
	Format   packet.LiteralDataFormat
	FileName string // at most 255 bytes once UTF-8 encoded
	Created  time.Time
}

// Literal is the innermost filter of a signed or encrypted message: it
// emits a Literal Data packet header, then streams the payload using
// partial-length framing (the final length isn't known up front; a
// writer stack never buffers the whole payload in memory). It must be
// the topmost filter whenever the message is also signed or encrypted,
// since those filters need to see the plaintext as it's produced.
type Literal struct {
	sink  io.Writer
	inner io.WriteCloser
	wrote bool
}

// NewLiteral starts a Literal filter writing into sink.
func NewLiteral(sink io.Writer, opts LiteralOptions) (*Literal, error) {
	name := []byte(opts.FileName)
	if len(name) > 255 {
		return nil, openpgp.InvalidArgumentError("literal data filename exceeds 255 bytes")
	}
	format := opts.Format
	if format == 0 {
		format = packet.LiteralBinary
	}
	l := &Literal{sink: sink, inner: packet.NewPartialBodyWriter(sink, packet.TagLiteralData, 13)}
	header := make([]byte, 0, 6+len(name))
	header = append(header, byte(format), byte(len(name)))
	header = append(header, name...)
	var created [4]byte
	binary.BigEndian.PutUint32(created[:], uint32(opts.Created.Unix()))
	header = append(header, created[:]...)
	if _, err := l.inner.Write(header); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Literal) Write(p []byte) (int, error) {
	l.wrote = true
	return l.inner.Write(p)
}

func (l *Literal) Finalize() (io.Writer, error) {
	if err := l.inner.Close(); err != nil {
		return nil, err
	}
	return l.sink, nil
}
