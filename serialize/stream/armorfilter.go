package stream

import (
	"io"

	"github.com/dirkz/sequoia-sub000/armor"
)

// Armor wraps the inner sink in the ASCII-armor writer (spec §4.1).
// Per spec §4.8 it must be the bottom of a filter stack: everything
// above it produces raw binary OpenPGP packets, and Armor is what
// turns those bytes into the PEM-like text block.
type Armor struct {
	sink io.Writer
	w    *armor.Writer
}

// NewArmor starts an Armor filter writing into sink.
func NewArmor(sink io.Writer, kind armor.Kind, headers []armor.Header) *Armor {
	return &Armor{sink: sink, w: armor.NewWriter(sink, kind, headers)}
}

func (a *Armor) Write(p []byte) (int, error) { return a.w.Write(p) }

func (a *Armor) Finalize() (io.Writer, error) {
	if err := a.w.Close(); err != nil {
		return nil, err
	}
	return a.sink, nil
}
