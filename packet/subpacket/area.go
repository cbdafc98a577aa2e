package subpacket

import "fmt"

// Area is an ordered, size-bounded sequence of Subpackets with
// amortized O(1) last-wins lookup by Tag (spec §3/§4.3). The tag-index
// cache is lazily built and invalidated on every mutation; behind a
// read-only method it is guaranteed to be initialized before use
// (spec §9 "Lazy caches behind immutable interfaces").
type Area struct {
	items []*Subpacket
	index map[Tag]int // tag -> index of *last* occurrence; nil until built
}

// NewArea constructs an Area from already-parsed subpackets (used by
// the packet parser). The size limit is not re-checked here: a
// signature read off the wire is accepted as-is even if, somehow, its
// length-prefixed area exceeds MaxAreaSize, since the 2-byte area
// length field already bounds what could have been read.
func NewArea(items []*Subpacket) *Area {
	return &Area{items: append([]*Subpacket(nil), items...)}
}

// Len returns the number of subpackets in the area.
func (a *Area) Len() int { return len(a.items) }

// All returns the subpackets in order. The returned slice must not be
// mutated by the caller; use Add/Replace/RemoveAll instead.
func (a *Area) All() []*Subpacket { return a.items }

// SerializedSize returns the total size in bytes the area occupies
// when serialized.
func (a *Area) SerializedSize() int {
	n := 0
	for _, sp := range a.items {
		n += sp.SerializedLen()
	}
	return n
}

// Serialize concatenates every subpacket's serialized bytes in order.
func (a *Area) Serialize() []byte {
	var buf []byte
	for _, sp := range a.items {
		buf = append(buf, sp.Serialize()...)
	}
	return buf
}

func (a *Area) ensureIndex() {
	if a.index != nil {
		return
	}
	a.index = make(map[Tag]int, len(a.items))
	for i, sp := range a.items {
		a.index[sp.Tag] = i // later occurrences overwrite earlier ones: last-wins
	}
}

func (a *Area) invalidate() {
	a.index = nil
}

// Add appends sp unconditionally. It fails without mutating the area
// if doing so would push the serialized size past MaxAreaSize (spec
// §3, §8 boundary behavior).
func (a *Area) Add(sp *Subpacket) error {
	if a.SerializedSize()+sp.SerializedLen() > MaxAreaSize {
		return fmt.Errorf("subpacket: area would exceed %d octets", MaxAreaSize)
	}
	a.items = append(a.items, sp)
	a.invalidate()
	return nil
}

// Replace removes every subpacket with sp's tag, then appends sp. The
// size check considers only subpackets of other tags plus sp itself,
// matching spec §4.3 ("size check considers other tags only").
func (a *Area) Replace(sp *Subpacket) error {
	otherSize := 0
	kept := a.items[:0:0]
	for _, existing := range a.items {
		if existing.Tag == sp.Tag {
			continue
		}
		otherSize += existing.SerializedLen()
		kept = append(kept, existing)
	}
	if otherSize+sp.SerializedLen() > MaxAreaSize {
		return fmt.Errorf("subpacket: area would exceed %d octets", MaxAreaSize)
	}
	kept = append(kept, sp)
	a.items = kept
	a.invalidate()
	return nil
}

// RemoveAll drops every subpacket with the given tag.
func (a *Area) RemoveAll(tag Tag) {
	kept := a.items[:0:0]
	for _, sp := range a.items {
		if sp.Tag != tag {
			kept = append(kept, sp)
		}
	}
	a.items = kept
	a.invalidate()
}

// Lookup returns the *last* subpacket with the given tag (RFC 4880
// §5.2.4.1: "a subpacket may be found multiple times... the last one
// is authoritative").
func (a *Area) Lookup(tag Tag) (*Subpacket, bool) {
	a.ensureIndex()
	idx, ok := a.index[tag]
	if !ok {
		return nil, false
	}
	return a.items[idx], true
}

// Notations returns every Notation-Data subpacket whose name matches,
// in area order (notations are list-valued, unlike every other
// subpacket type, which is last-wins).
func (a *Area) Notations(name string) []Notation {
	var out []Notation
	for _, sp := range a.items {
		if sp.Tag != TagNotation {
			continue
		}
		n, ok := DecodeNotation(sp.Value)
		if ok && n.Name == name {
			out = append(out, n)
		}
	}
	return out
}
