package packet

// Trust is a Trust packet (RFC 4880 §5.10): implementation-local trust
// database metadata with no defined wire format beyond "opaque bytes
// following this tag". This module treats it as an opaque blob to be
// preserved across a parse/reserialize round trip but never
// interpreted, matching GnuPG's own local-only semantics.
type Trust struct {
	Body []byte
}

func (t *Trust) Tag() Tag { return TagTrust }

func (t *Trust) PacketBody() []byte { return t.Body }

// ParseTrust wraps a Trust packet's raw body.
func ParseTrust(body []byte) (*Trust, error) {
	return &Trust{Body: append([]byte(nil), body...)}, nil
}
