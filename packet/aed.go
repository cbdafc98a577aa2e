package packet

import openpgp "github.com/dirkz/sequoia-sub000"

// AED is an AEAD Encrypted Data packet (crypto-refresh §5.16): a
// container whose plaintext is chunked and sealed with an AEAD
// primitive rather than SEIP's CFB+MDC, with the chunk index and
// packet-specific associated data folding integrity into every chunk
// instead of one trailing hash (spec §4.2, §4.9).
type AED struct {
	Version       int // always 1
	SymAlgo       openpgp.SymmetricAlgorithm
	AEADAlgo      openpgp.AEADAlgorithm
	ChunkSizeOct  byte // encoded chunk size exponent, RFC: chunk size = 2^(c+6)
	IV            []byte
	encryptedBody []byte
}

func (a *AED) Tag() Tag { return TagAED }

// ChunkSize returns the decoded chunk size in bytes.
func (a *AED) ChunkSize() int {
	return 1 << (uint(a.ChunkSizeOct) + 6)
}

func (a *AED) PacketBody() []byte {
	buf := []byte{byte(a.Version), byte(a.SymAlgo), byte(a.AEADAlgo), a.ChunkSizeOct}
	buf = append(buf, a.IV...)
	buf = append(buf, a.encryptedBody...)
	return buf
}

// ParseAED decodes an AED packet header and leaves the still-encrypted
// body (chunks followed by the final authentication tag over the
// total length, per crypto-refresh §5.16.1) for the Cursor's
// decryption hook.
func ParseAED(body []byte, ivSize func(aeadAlgo int) int) (*AED, error) {
	if len(body) < 4 {
		return nil, openpgp.StructuralError("malformed AED packet")
	}
	a := &AED{
		Version:      int(body[0]),
		SymAlgo:      openpgp.SymmetricAlgorithm(body[1]),
		AEADAlgo:     openpgp.AEADAlgorithm(body[2]),
		ChunkSizeOct: body[3],
	}
	n := ivSize(int(a.AEADAlgo))
	if len(body) < 4+n {
		return nil, openpgp.StructuralError("truncated AED IV")
	}
	a.IV = append([]byte(nil), body[4:4+n]...)
	a.encryptedBody = append([]byte(nil), body[4+n:]...)
	return a, nil
}

func (a *AED) EncryptedBody() []byte { return a.encryptedBody }

// aeadIVSize returns the nonce length an AEAD algorithm ID uses,
// independent of any particular crypto backend (crypto-refresh §5.16,
// §9.6): GCM and the ChaCha20-Poly1305 extension both use a 12-byte
// nonce, OCB uses 15, EAX uses 16.
func aeadIVSize(algo openpgp.AEADAlgorithm) int {
	switch algo {
	case openpgp.AEADEAX:
		return 16
	case openpgp.AEADOCB:
		return 15
	default:
		return 12
	}
}

// AssociatedData returns the packet-specific associated data AEAD
// chunk encryption/decryption mixes in ahead of the chunk index (spec
// §4.9): the packet tag (with the always-new-format/always-one CTB
// bits set), version, cipher, AEAD algorithm and chunk size octet.
func (a *AED) AssociatedData() []byte {
	return []byte{0xD4, byte(a.Version), byte(a.SymAlgo), byte(a.AEADAlgo), a.ChunkSizeOct}
}
