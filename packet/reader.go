package packet

import (
	"bytes"
	"io"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
)

// Packet is the common interface every parsed packet type in this
// package satisfies.
type Packet interface {
	Tag() Tag
	PacketBody() []byte
}

// DefaultMaxDepth bounds container nesting (an encrypted packet
// wrapping a compressed packet wrapping another encrypted packet, and
// so on) against unbounded recursion from a malicious stream (spec
// §7).
const DefaultMaxDepth = 32

// onePassHasher is one entry of the Cursor's one-pass-signature
// hashing side effect (spec §4.2): a running hash started when a
// OnePassSig packet is seen, fed every subsequent Literal Data body
// until the matching trailing Signature is reached.
type onePassHasher struct {
	issuer  openpgp.KeyID
	sigType SignatureType
	hash    crypto.Hash
}

// Cursor is a recursive-descent OpenPGP packet stream reader (spec
// §4.2, L2). Next walks packets at the current container depth;
// Recurse descends into a container packet's plaintext (already
// decrypted or decompressed by the caller, since key material and
// decompressor selection live outside this package) as a fresh nested
// Cursor. Packet bodies are read fully into memory as each packet is
// parsed — true octet-at-a-time streaming is reserved for Literal Data
// bodies large enough that callers read via io.Reader at the
// serialize/stream and parse/stream layers; the Cursor itself trades a
// fully streaming core for a much simpler, still-correct
// recursive-descent shape, since OpenPGP packets besides Literal Data
// bodies are bounded in practice by the subpacket/MPI size limits
// already enforced at parse time.
type Cursor struct {
	src   io.Reader
	depth int

	maxDepth    int
	hashFactory crypto.HashFactory
	onePass     []onePassHasher
}

// NewCursor starts a Cursor at the outermost packet stream. hashFactory
// may be nil if the caller never needs one-pass-signature verification
// digests (e.g. when only unwrapping/re-serializing a stream).
func NewCursor(src io.Reader, hashFactory crypto.HashFactory) *Cursor {
	return &Cursor{src: src, maxDepth: DefaultMaxDepth, hashFactory: hashFactory}
}

// Next reads and fully parses the next packet at this Cursor's depth,
// or returns io.EOF when the stream (or the current container frame)
// is exhausted.
func (c *Cursor) Next() (Packet, error) {
	h, err := readHeader(c.src)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(bodyReaderFor(h, c.src))
	if err != nil {
		if ie, ok := err.(openpgp.IntegrityError); ok {
			return nil, ie
		}
		return nil, openpgp.StructuralError("truncated packet body: " + err.Error())
	}
	pkt, err := parseBody(h.tag, body)
	if err != nil {
		return nil, err
	}
	c.observe(pkt)
	return pkt, nil
}

// Recurse descends into plaintext (the result of decrypting a SEIP/AED
// body or decompressing a CompressedData body) as a new Cursor one
// level deeper. It shares this Cursor's hashFactory but not its
// onePass stack, so a one-pass signature opened outside the container
// does not hash Literal Data found inside it: a signature inside a
// container only ever covers data inside that same container (spec
// §4.2).
func (c *Cursor) Recurse(plaintext io.Reader) (*Cursor, error) {
	if c.depth+1 >= c.maxDepth {
		return nil, openpgp.StructuralError("container nesting exceeds limit")
	}
	return &Cursor{src: plaintext, depth: c.depth + 1, maxDepth: c.maxDepth, hashFactory: c.hashFactory}, nil
}

// Depth reports the container nesting level (0 = outermost).
func (c *Cursor) Depth() int { return c.depth }

// observe implements the one-pass-signature hashing side effects:
// a OnePassSig packet opens a new running hash; every Literal Data
// packet seen afterward (at the same depth) feeds all open hashes;
// a Signature packet doesn't close anything by itself — callers use
// FinalizeOnePass to retrieve and retire the matching digest once
// they've decided to verify it.
func (c *Cursor) observe(pkt Packet) {
	switch p := pkt.(type) {
	case *OnePassSig:
		if c.hashFactory == nil {
			return
		}
		h, err := c.hashFactory(int(p.HashAlgo))
		if err != nil {
			return // unsupported hash: signature simply won't verify later
		}
		c.onePass = append(c.onePass, onePassHasher{issuer: p.Issuer, sigType: p.Type, hash: h})
	case *LiteralData:
		for _, oph := range c.onePass {
			oph.hash.Write(p.Body)
		}
	}
}

// FinalizeOnePass looks up the most recently opened one-pass hash
// context matching sig's issuer and type, feeds it sig's own
// hash-trailer bytes, and returns the resulting digest, retiring that
// hasher. The second return is false if no matching one-pass signature
// was ever observed (e.g. sig is a detached or non-one-pass signature,
// which callers hash through a fresh context of their own instead).
func (c *Cursor) FinalizeOnePass(sig *Signature) ([]byte, bool) {
	issuer, _ := sig.Issuer()
	for i := len(c.onePass) - 1; i >= 0; i-- {
		oph := c.onePass[i]
		if oph.sigType == sig.Type && (issuer == nil || bytes.Equal(oph.issuer, issuer)) {
			oph.hash.Write(sig.DataToHash())
			digest := oph.hash.Sum(nil)
			c.onePass = append(c.onePass[:i], c.onePass[i+1:]...)
			return digest, true
		}
	}
	return nil, false
}

// parseBody dispatches to the tag-specific parser, falling back to an
// Unknown packet for anything this module doesn't model (spec §4.2):
// an unsupported tag is preserved, never rejected.
func parseBody(tag Tag, body []byte) (Packet, error) {
	switch tag {
	case TagPKESK:
		return ParsePKESK(body)
	case TagSignature:
		return ParseSignature(body)
	case TagSKESK:
		return ParseSKESK(body)
	case TagOnePassSig:
		return ParseOnePassSig(body)
	case TagSecretKey, TagSecretSubkey, TagPublicKey, TagPublicSubkey:
		return parseKeyPacket(tag, body)
	case TagCompressedData:
		return ParseCompressedData(body)
	case TagMarker:
		m, ok := ParseMarker(body)
		if !ok {
			return &Unknown{RawTag: tag, Body: body}, nil
		}
		return m, nil
	case TagLiteralData:
		return ParseLiteralData(body)
	case TagTrust:
		return ParseTrust(body)
	case TagUserID:
		return &UserID{Value: string(body)}, nil
	case TagUserAttribute:
		return parseUserAttribute(body)
	case TagSEIP:
		return ParseSEIP(body)
	case TagMDC:
		return ParseMDC(body)
	case TagAED:
		return ParseAED(body, func(aeadAlgo int) int { return aeadIVSize(openpgp.AEADAlgorithm(aeadAlgo)) })
	default:
		return &Unknown{RawTag: tag, Body: body}, nil
	}
}

func parseUserAttribute(body []byte) (*UserAttribute, error) {
	var subs []UserAttributeSubpacket
	for len(body) > 0 {
		bodyLen, _, tail, ok := decodeSubpacketLength(body)
		if !ok || bodyLen < 1 || len(tail) < bodyLen {
			return nil, openpgp.StructuralError("malformed user attribute subpacket")
		}
		subs = append(subs, UserAttributeSubpacket{Type: tail[0], Data: append([]byte(nil), tail[1:bodyLen]...)})
		body = tail[bodyLen:]
	}
	return &UserAttribute{Subpackets: subs}, nil
}

// decodeSubpacketLength mirrors packet/subpacket's length decoding
// (user attribute subpackets use the same one/two/five-octet scheme).
func decodeSubpacketLength(buf []byte) (bodyLen int, rawLenBytes, tail []byte, ok bool) {
	if len(buf) < 1 {
		return 0, nil, buf, false
	}
	b0 := buf[0]
	switch {
	case b0 < 192:
		return int(b0), buf[:1], buf[1:], true
	case b0 < 255:
		if len(buf) < 2 {
			return 0, nil, buf, false
		}
		v := (int(b0)-192)<<8 + int(buf[1]) + 192
		return v, buf[:2], buf[2:], true
	default:
		if len(buf) < 5 {
			return 0, nil, buf, false
		}
		v := int(buf[1])<<24 | int(buf[2])<<16 | int(buf[3])<<8 | int(buf[4])
		return v, buf[:5], buf[5:], true
	}
}
