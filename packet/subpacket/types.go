package subpacket

import (
	"encoding/binary"
	"strings"
	"time"
)

// Notation is the decoded value of a Notation Data subpacket (RFC 4880
// §5.2.3.16): flags, a name, and either a human-readable or binary
// value depending on the human-readable flag.
type Notation struct {
	HumanReadable bool
	Name          string
	Value         []byte
}

// DecodeNotation parses a Notation Data subpacket value.
func DecodeNotation(data []byte) (Notation, bool) {
	if len(data) < 8 {
		return Notation{}, false
	}
	flags := data[0]
	nameLen := int(binary.BigEndian.Uint16(data[4:6]))
	valueLen := int(binary.BigEndian.Uint16(data[6:8]))
	if len(data) < 8+nameLen+valueLen {
		return Notation{}, false
	}
	name := string(data[8 : 8+nameLen])
	value := data[8+nameLen : 8+nameLen+valueLen]
	return Notation{HumanReadable: flags&0x80 != 0, Name: name, Value: value}, true
}

// Encode serializes a Notation back into a subpacket value.
func (n Notation) Encode() []byte {
	buf := make([]byte, 8, 8+len(n.Name)+len(n.Value))
	if n.HumanReadable {
		buf[0] = 0x80
	}
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(n.Name)))
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(n.Value)))
	buf = append(buf, n.Name...)
	buf = append(buf, n.Value...)
	return buf
}

// ReasonForRevocation is the decoded value of a Reason-For-Revocation
// subpacket (RFC 4880 §5.2.3.23).
type ReasonForRevocation struct {
	Code byte
	Text string
}

const (
	ReasonUnspecified  byte = 0
	ReasonKeyCompromised byte = 2
	ReasonKeySuperseded byte = 1
	ReasonKeyRetired    byte = 3
	ReasonUIDRetired    byte = 32
)

// IsHard reports whether this reason code classifies the revocation
// as hard (retroactive and permanent) rather than soft, per spec
// §4.6/§9: everything except key-superseded and key-retired/uid-retired
// is hard, including reason code 0 ("no reason given") — the spec's
// Open-Question decision that a *missing* subpacket, and by extension
// an unspecified-reason subpacket, is treated as hard.
func (r ReasonForRevocation) IsHard() bool {
	switch r.Code {
	case ReasonKeySuperseded, ReasonKeyRetired, ReasonUIDRetired:
		return false
	default:
		return true
	}
}

// DecodeReasonForRevocation parses a Reason-For-Revocation value.
func DecodeReasonForRevocation(data []byte) (ReasonForRevocation, bool) {
	if len(data) < 1 {
		return ReasonForRevocation{}, false
	}
	return ReasonForRevocation{Code: data[0], Text: string(data[1:])}, true
}

func (r ReasonForRevocation) Encode() []byte {
	return append([]byte{r.Code}, r.Text...)
}

// KeyFlags is the decoded value of a Key Flags subpacket (RFC 4880
// §5.2.3.21).
type KeyFlags struct {
	CertifyOthers    bool // 0x01
	SignData         bool // 0x02
	EncryptComms     bool // 0x04
	EncryptStorage   bool // 0x08
	Authenticate     bool // 0x20
	SplitKey         bool // 0x10
	SharedPrivateKey bool // 0x80
}

// DecodeKeyFlags parses a Key Flags subpacket value (only the first
// octet is interpreted; later octets are reserved).
func DecodeKeyFlags(data []byte) KeyFlags {
	var f byte
	if len(data) > 0 {
		f = data[0]
	}
	return KeyFlags{
		CertifyOthers:    f&0x01 != 0,
		SignData:         f&0x02 != 0,
		EncryptComms:     f&0x04 != 0,
		EncryptStorage:   f&0x08 != 0,
		SplitKey:         f&0x10 != 0,
		Authenticate:     f&0x20 != 0,
		SharedPrivateKey: f&0x80 != 0,
	}
}

func (f KeyFlags) Encode() []byte {
	var b byte
	if f.CertifyOthers {
		b |= 0x01
	}
	if f.SignData {
		b |= 0x02
	}
	if f.EncryptComms {
		b |= 0x04
	}
	if f.EncryptStorage {
		b |= 0x08
	}
	if f.SplitKey {
		b |= 0x10
	}
	if f.Authenticate {
		b |= 0x20
	}
	if f.SharedPrivateKey {
		b |= 0x80
	}
	return []byte{b}
}

// RevocationKey is the decoded value of a Revocation Key subpacket
// (RFC 4880 §5.2.3.15), identifying a designated revoker.
type RevocationKey struct {
	Sensitive  bool
	Algo       byte
	Fingerprint []byte
}

func DecodeRevocationKey(data []byte) (RevocationKey, bool) {
	if len(data) < 2 {
		return RevocationKey{}, false
	}
	cls := data[0]
	return RevocationKey{
		Sensitive:   cls&0x40 != 0,
		Algo:        data[1],
		Fingerprint: append([]byte(nil), data[2:]...),
	}, true
}

// Time helpers: SignatureCreationTime/SignatureExpirationTime/
// KeyExpirationTime are all 4-byte big-endian Unix timestamps (or,
// for the two expiration subpackets, a duration in seconds relative
// to creation time, per RFC 4880 §5.2.3.4/§5.2.3.6).

func DecodeTime(data []byte) (time.Time, bool) {
	if len(data) != 4 {
		return time.Time{}, false
	}
	return time.Unix(int64(binary.BigEndian.Uint32(data)), 0).UTC(), true
}

func EncodeTime(t time.Time) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(t.Unix()))
	return buf
}

func DecodeDuration(data []byte) (time.Duration, bool) {
	if len(data) != 4 {
		return 0, false
	}
	return time.Duration(binary.BigEndian.Uint32(data)) * time.Second, true
}

func EncodeDuration(d time.Duration) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(d/time.Second))
	return buf
}

// DecodeRegex strips the NUL terminator RFC 4880 §5.2.3.14 mandates on
// the wire; in-memory the value never carries the trailing NUL (spec
// §3).
func DecodeRegex(data []byte) string {
	return strings.TrimSuffix(string(data), "\x00")
}

func EncodeRegex(pattern string) []byte {
	return append([]byte(pattern), 0)
}
