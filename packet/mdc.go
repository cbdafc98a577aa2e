package packet

import openpgp "github.com/dirkz/sequoia-sub000"

// MDC is the Modification Detection Code packet (RFC 4880 §5.14): a
// fixed 20-byte SHA-1 digest over everything preceding it inside a
// SEIP container, including that packet's own two-byte new-format
// header (0xD3, 0x14), mandatory as the very last packet of the
// decrypted stream.
type MDC struct {
	Digest [20]byte
}

func (m *MDC) Tag() Tag { return TagMDC }

func (m *MDC) PacketBody() []byte { return m.Digest[:] }

// ParseMDC decodes an MDC packet body.
func ParseMDC(body []byte) (*MDC, error) {
	if len(body) != 20 {
		return nil, openpgp.StructuralError("malformed MDC packet")
	}
	var m MDC
	copy(m.Digest[:], body)
	return &m, nil
}

// MDCHeader is the fixed two-byte new-format CTB+length prefix an MDC
// packet always uses, which itself is fed into the running hash (RFC
// 4880 §5.14).
var MDCHeader = [2]byte{0xD3, 0x14}
