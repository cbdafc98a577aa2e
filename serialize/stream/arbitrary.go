package stream

import (
	"io"

	"github.com/dirkz/sequoia-sub000/packet"
)

// Arbitrary wraps raw bytes written to it in a packet header of the
// given tag, in partial-length chunks of 8192 bytes; a body that fits
// in a single chunk gets one full-length header instead. It exists for
// test use and for
// emitting packet types this package otherwise has no dedicated filter
// for (Marker, Trust), matching spec §4.8's "Arbitrary filter".
type Arbitrary struct {
	tag   packet.Tag
	sink  io.Writer
	inner io.WriteCloser
}

// NewArbitrary starts an Arbitrary filter of the given tag writing into
// sink, using partial-length framing (the body length isn't known up
// front).
func NewArbitrary(sink io.Writer, tag packet.Tag) *Arbitrary {
	return &Arbitrary{
		tag:   tag,
		sink:  sink,
		inner: packet.NewPartialBodyWriter(sink, tag, 13),
	}
}

func (a *Arbitrary) Write(p []byte) (int, error) { return a.inner.Write(p) }

func (a *Arbitrary) Finalize() (io.Writer, error) {
	if err := a.inner.Close(); err != nil {
		return nil, err
	}
	return a.sink, nil
}
