package subpacket

import (
	"fmt"

	"github.com/dirkz/sequoia-sub000/internal/log"
)

// ParseArea decodes a raw, length-prefix-free subpacket area body (the
// bytes following the signature packet's 2-byte hashed/unhashed area
// length field) into an Area, preserving each subpacket's original
// length encoding for bit-exact round-trip (spec §3/§9).
func ParseArea(buf []byte) (*Area, error) {
	var items []*Subpacket
	for len(buf) > 0 {
		bodyLen, rawLenBytes, tail, ok := decodeLength(buf)
		if !ok {
			return nil, fmt.Errorf("subpacket: truncated length header")
		}
		if bodyLen < 1 || len(tail) < bodyLen {
			return nil, fmt.Errorf("subpacket: truncated body")
		}
		tagByte := tail[0]
		critical := tagByte&0x80 != 0
		tag := Tag(tagByte &^ 0x80)
		value := append([]byte(nil), tail[1:bodyLen]...)
		sp := &Subpacket{Critical: critical, Tag: tag, Value: value}
		if !isCanonical(bodyLen, rawLenBytes) {
			sp.rawLenBytes = append([]byte(nil), rawLenBytes...)
			log.L.WithField("tag", tag).Debug("non-canonical subpacket length encoding, preserving raw bytes")
		}
		items = append(items, sp)
		buf = tail[bodyLen:]
	}
	return NewArea(items), nil
}

// New constructs a fresh (non-preserved-length) subpacket.
func New(tag Tag, critical bool, value []byte) *Subpacket {
	return &Subpacket{Tag: tag, Critical: critical, Value: value}
}
