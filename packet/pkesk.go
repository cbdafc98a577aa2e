package packet

import (
	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
)

// PKESK is a Public-Key Encrypted Session Key packet (RFC 4880 §5.1):
// a session key wrapped to one recipient's public key, prefixed to a
// SEIP or AED container.
type PKESK struct {
	Version int
	KeyID   openpgp.KeyID // all-zero for an anonymous/"hidden recipient" PKESK
	Algo    openpgp.PublicKeyAlgorithm
	MPIs    [][]byte
}

func (p *PKESK) Tag() Tag { return TagPKESK }

func (p *PKESK) PacketBody() []byte {
	buf := make([]byte, 0, 10)
	buf = append(buf, byte(p.Version))
	buf = append(buf, []byte(p.KeyID)...)
	buf = append(buf, byte(p.Algo))
	for _, m := range p.MPIs {
		buf = append(buf, mpi(m)...)
	}
	return buf
}

// ParsePKESK decodes a PKESK packet body.
func ParsePKESK(body []byte) (*PKESK, error) {
	if len(body) < 10 {
		return nil, openpgp.StructuralError("malformed PKESK packet")
	}
	p := &PKESK{
		Version: int(body[0]),
		KeyID:   openpgp.KeyID(append([]byte(nil), body[1:9]...)),
		Algo:    openpgp.PublicKeyAlgorithm(body[9]),
	}
	rest := body[10:]
	for len(rest) > 0 {
		m, tail, err := readMPIFromBuf(rest)
		if err != nil {
			return nil, err
		}
		p.MPIs = append(p.MPIs, m)
		rest = tail
	}
	return p, nil
}

// Decrypt unwraps this PKESK's session key using decrypter, validating
// the two-octet checksum RFC 4880 §5.1 appends to RSA-wrapped session
// keys. ECDH's own key-wrap scheme (spec §5, crypto/std/ecdh.go)
// returns the session key without this checksum framing, so
// hasChecksum lets the caller pick the right shape for decrypter's
// algorithm.
func Decrypt(p *PKESK, decrypter crypto.PKDecryption, hasChecksum bool) (algo openpgp.SymmetricAlgorithm, sessionKey []byte, err error) {
	raw, err := decrypter.Decrypt(p.MPIs)
	if err != nil {
		return 0, nil, err
	}
	if !hasChecksum {
		if len(raw) < 1 {
			return 0, nil, openpgp.StructuralError("empty decrypted session key")
		}
		return openpgp.SymmetricAlgorithm(raw[0]), raw[1:], nil
	}
	if len(raw) < 3 {
		return 0, nil, openpgp.StructuralError("truncated decrypted session key")
	}
	algoByte := raw[0]
	key := raw[1 : len(raw)-2]
	checksum := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
	var sum uint16
	for _, b := range key {
		sum += uint16(b)
	}
	if sum != checksum {
		return 0, nil, openpgp.SignatureError("session key checksum mismatch")
	}
	return openpgp.SymmetricAlgorithm(algoByte), key, nil
}

func readMPIFromBuf(buf []byte) (value, tail []byte, err error) {
	value, tail = mpiDecodeRaw(buf)
	if value == nil {
		return nil, nil, openpgp.StructuralError("truncated MPI")
	}
	return value, tail, nil
}
