package packet

import (
	openpgp "github.com/dirkz/sequoia-sub000"
)

// OnePassSig is a One-Pass Signature packet (RFC 4880 §5.4): it
// precedes the signed data in a stream so a single-pass reader can
// start hashing before it has seen the trailing Signature packet.
type OnePassSig struct {
	Version    int
	Type       SignatureType
	HashAlgo   openpgp.HashAlgorithm
	PubKeyAlgo openpgp.PublicKeyAlgorithm
	Issuer     openpgp.KeyID
	// Nested is true when this one-pass signature is not the last
	// before the signed data, i.e. more one-pass signatures follow
	// (RFC 4880 §5.4's "nested" octet, inverted on the wire: 0 means
	// "more to come").
	Nested bool
}

func (o *OnePassSig) PacketBody() []byte {
	nested := byte(1)
	if o.Nested {
		nested = 0
	}
	buf := make([]byte, 0, 13)
	buf = append(buf, byte(o.Version), byte(o.Type), byte(o.HashAlgo), byte(o.PubKeyAlgo))
	buf = append(buf, []byte(o.Issuer)...)
	buf = append(buf, nested)
	return buf
}

func (o *OnePassSig) Tag() Tag { return TagOnePassSig }

// ParseOnePassSig decodes a One-Pass Signature packet body.
func ParseOnePassSig(body []byte) (*OnePassSig, error) {
	if len(body) != 13 {
		return nil, openpgp.StructuralError("malformed one-pass signature packet")
	}
	return &OnePassSig{
		Version:    int(body[0]),
		Type:       SignatureType(body[1]),
		HashAlgo:   openpgp.HashAlgorithm(body[2]),
		PubKeyAlgo: openpgp.PublicKeyAlgorithm(body[3]),
		Issuer:     openpgp.KeyID(append([]byte(nil), body[4:12]...)),
		Nested:     body[12] == 0,
	}, nil
}
