package stream

import (
	"io"
	"math/bits"

	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// SizeFunc maps a message's true length to the length it should be
// padded up to.
type SizeFunc func(length int64) int64

// PADME implements the PADME heuristic (Mathewson & Carpenter): it
// reveals only the position of the most significant bit of the true
// length plus a handful of low bits, rather than the exact length,
// while keeping the padding overhead within O(L/2^k) of L.
func PADME(length int64) int64 {
	if length <= 1 {
		return length
	}
	e := bits.Len64(uint64(length)) - 1
	s := bits.Len64(uint64(e))
	lastBits := e - s
	mask := int64(1)<<uint(lastBits) - 1
	return (length + mask) &^ mask
}

// Padder pads a message to SizeFunc(trueLength) by appending a
// sibling Padding packet (tag 21) once the true length is known, at
// Finalize time: bytes written through the Padder pass straight to the
// sink unmodified, so it is implemented as a size counter plus a
// trailing packet rather than a true compressor, per spec §4.8
// ("implemented as a compressor with uncompressed algorithm plus a
// padding tail") — generalized here to a standalone filter since the
// padding packet sits alongside, not inside, the payload it measures.
type Padder struct {
	sink     io.Writer
	sizeFunc SizeFunc
	rand     crypto.Random
	written  int64
}

// NewPadder starts a Padder writing into sink. sizeFunc defaults to
// PADME if nil. rand supplies the padding packet's filler bytes (RFC
// recommends but does not require random content).
func NewPadder(sink io.Writer, sizeFunc SizeFunc, rand crypto.Random) *Padder {
	if sizeFunc == nil {
		sizeFunc = PADME
	}
	return &Padder{sink: sink, sizeFunc: sizeFunc, rand: rand}
}

func (p *Padder) Write(b []byte) (int, error) {
	n, err := p.sink.Write(b)
	p.written += int64(n)
	return n, err
}

func (p *Padder) Finalize() (io.Writer, error) {
	target := p.sizeFunc(p.written)
	padLen := target - p.written
	if padLen <= 0 {
		return p.sink, nil
	}
	pad := make([]byte, padLen)
	if p.rand != nil {
		if err := p.rand.Fill(pad); err != nil {
			return nil, err
		}
	}
	if err := packet.WriteHeader(p.sink, packet.TagPadding, padLen); err != nil {
		return nil, err
	}
	if _, err := p.sink.Write(pad); err != nil {
		return nil, err
	}
	return p.sink, nil
}
