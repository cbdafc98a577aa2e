package packet

import (
	"bytes"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
)

// Parts marks whether a Key carries only public material, only secret
// material conceptually (never occurs without public material in
// practice, but distinguished at the type level per spec §9), or is
// unspecified (as freshly parsed, before the caller commits).
type Parts int

const (
	PartsUnspecified Parts = iota
	PartsPublic
	PartsSecret
)

// Role marks whether a Key is a primary key or a subordinate
// (subkey). Kept on the value, not on any iterator, per spec §9's
// design note ("primary vs subordinate erased in iteration").
type Role int

const (
	RoleUnspecified Role = iota
	RolePrimary
	RoleSubordinate
)

// Key is an OpenPGP public/secret key packet. The Parts/Role fields
// are markers in the sense of spec §9: widening conversions (Public ->
// Unspecified, Subordinate -> Unspecified) are always valid; narrowing
// conversions (Unspecified -> Secret) go through WithSecret below, and
// role changes through AsRole, never by direct field mutation from
// outside this package's constructors.
type Key struct {
	parts Parts
	role  Role

	Version    int
	Created    time.Time
	Algo       openpgp.PublicKeyAlgorithm
	PublicMPIs [][]byte // algorithm-specific public parameters, MPI-valued
	Curve      []byte   // OID, for ECDH/EdDSA

	// Secret material, present only if Parts == PartsSecret. May be
	// nil even when Parts == PartsSecret if the corresponding
	// passphrase hasn't been supplied to Decrypt S2K-protected
	// material; callers must check SecretEncrypted.
	SecretMPIs       [][]byte
	SecretEncrypted  bool
	S2K              *S2K                       // nil if SecretEncrypted is false
	SecretCipherAlgo openpgp.SymmetricAlgorithm // protecting cipher, valid iff SecretEncrypted
	SecretUsage      byte                       // 254 (SHA-1 check) or 255 (2-byte checksum), valid iff SecretEncrypted

	fingerprint openpgp.Fingerprint
}

// Parts and Role are read-only views; there is no setter, only the
// widening/narrowing conversions below, so a code path that expects
// public-only material cannot accidentally observe secret fields
// through a shared *Key unless it was explicitly handed a
// PartsSecret-marked one.
func (k *Key) Parts() Parts { return k.parts }
func (k *Key) Role() Role   { return k.role }

// NewPublicKey builds a fresh v4 public key packet from raw key
// material, the shape the teacher's own key-generation path
// (signkey.go's Seed/PubPacket) produces before ever touching the
// wire format. Used by builders and tests that need a Key without
// round-tripping through ParsePacket.
func NewPublicKey(role Role, created time.Time, algo openpgp.PublicKeyAlgorithm, curve []byte, publicMPIs [][]byte) *Key {
	return &Key{
		parts:      PartsPublic,
		role:       role,
		Version:    4,
		Created:    created,
		Algo:       algo,
		Curve:      curve,
		PublicMPIs: publicMPIs,
	}
}

// AsPublic returns a copy of k with only the public fields retained
// (a total, always-succeeding widening/narrowing in the public
// direction): this is the conversion used when a Cert needs to hand
// out a public view of a key that may carry secrets.
func (k *Key) AsPublic() *Key {
	pub := &Key{
		parts:      PartsPublic,
		role:       k.role,
		Version:    k.Version,
		Created:    k.Created,
		Algo:       k.Algo,
		PublicMPIs: k.PublicMPIs,
		Curve:      k.Curve,
	}
	return pub
}

// AsRole returns a copy of k with its Role marker set to role,
// otherwise identical. Used when a key's role isn't known until it is
// placed into a Cert (e.g. a freshly-parsed key has RoleUnspecified
// until the canonicalizer decides primary vs. subordinate).
func (k *Key) AsRole(role Role) *Key {
	cp := *k
	cp.role = role
	return &cp
}

// WithSecret returns a copy of k marked PartsSecret and carrying the
// given secret material; called by the parser once it has decoded a
// secret-key packet's secret portion. It always succeeds: it does not
// check that secretMPIs or an S2K descriptor is actually supplied.
func (k *Key) WithSecret(secretMPIs [][]byte, encrypted bool, s2k *S2K) *Key {
	cp := *k
	cp.parts = PartsSecret
	cp.SecretMPIs = secretMPIs
	cp.SecretEncrypted = encrypted
	cp.S2K = s2k
	return &cp
}

// Decrypt derives the S2K key from passphrase and CFB-decrypts the
// secret-key material, returning a new Key with SecretEncrypted false
// and SecretMPIs holding the plaintext parameters. Generalized from
// the teacher's Load (signkey.go), which derives a key via its inline
// iterated-salted S2K, CFB-decrypts a fixed Ed25519 seed, and checks a
// trailing SHA-1 digest with subtle.ConstantTimeCompare; here the
// cipher and key count are no longer hardcoded, and usage 255's
// simpler 2-byte checksum (never produced by the teacher) is also
// accepted, matching the wire shapes parseKeyPacket already parses.
func (k *Key) Decrypt(passphrase []byte, cipherFactory crypto.SymmetricFactory) (*Key, error) {
	if k.parts != PartsSecret {
		return nil, openpgp.InvalidArgumentError("Decrypt called on a key with no secret material")
	}
	if !k.SecretEncrypted {
		return k, nil
	}
	if len(k.SecretMPIs) != 1 {
		return nil, openpgp.StructuralError("malformed encrypted secret-key blob")
	}
	derived, err := k.S2K.DeriveKey(passphrase)
	if err != nil {
		return nil, err
	}
	cipher, err := cipherFactory(int(k.SecretCipherAlgo), derived)
	if err != nil {
		return nil, err
	}
	blob := k.SecretMPIs[0]
	bs := cipher.BlockSize()
	if len(blob) < bs {
		return nil, openpgp.StructuralError("truncated encrypted secret-key blob")
	}
	iv := blob[:bs]
	plain := make([]byte, len(blob)-bs)
	cipher.NewCFBDecrypter(iv).XORKeyStream(plain, blob[bs:])

	checkLen := 2
	if k.SecretUsage == 254 {
		checkLen = sha1.Size
	}
	if len(plain) < checkLen {
		return nil, openpgp.StructuralError("truncated secret-key check value")
	}
	encoded, rest := plain[:len(plain)-checkLen], plain[len(plain)-checkLen:]

	var mpis [][]byte
	var consumed []byte
	for len(encoded) > 0 {
		m, tail := mpiDecodeRaw(encoded)
		if m == nil {
			return nil, openpgp.StructuralError("malformed decrypted secret-key MPI")
		}
		mpis = append(mpis, m)
		consumed = append(consumed, encoded[:len(encoded)-len(tail)]...)
		encoded = tail
	}

	var ok bool
	if k.SecretUsage == 254 {
		sum := sha1.Sum(consumed)
		ok = subtle.ConstantTimeCompare(sum[:], rest) == 1
	} else {
		sum := checksum(consumed)
		ok = bytes.Equal([]byte{byte(sum >> 8), byte(sum)}, rest)
	}
	if !ok {
		return nil, openpgp.InvalidArgumentError("wrong passphrase or corrupted secret key")
	}
	return k.WithSecret(mpis, false, nil), nil
}

// Fingerprint computes (and caches) the key's fingerprint. For v4 keys
// this is SHA-1 over a synthetic "0x99, length-hi, length-lo, body"
// prefix, exactly the construction in the teacher's own KeyID():
//
//	h.Write([]byte{0x99, 0, 51})
//	h.Write(k.Packet()[2:SignKeyPubLen])
//
// generalized here from the teacher's fixed Ed25519 51-byte body to an
// arbitrary serialized public key body.
func (k *Key) Fingerprint() (openpgp.Fingerprint, error) {
	if k.fingerprint != nil {
		return k.fingerprint, nil
	}
	if k.Version != 4 {
		return nil, openpgp.UnsupportedError("fingerprint computation only implemented for v4 keys")
	}
	body, err := k.publicKeyBody()
	if err != nil {
		return nil, err
	}
	h := sha1.New()
	h.Write([]byte{0x99, byte(len(body) >> 8), byte(len(body))})
	h.Write(body)
	k.fingerprint = openpgp.Fingerprint(h.Sum(nil))
	return k.fingerprint, nil
}

// SignedData returns the bytes the signature hash domain covers for
// this key alone: RFC 4880 §5.2.4's 0x99 prefix, a 2-byte length, and
// the public key body. Direct-key signatures and key revocations hash
// exactly this; subkey bindings/revocations hash the primary's
// SignedData followed by the subkey's.
func (k *Key) SignedData() ([]byte, error) {
	body, err := k.publicKeyBody()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 3+len(body))
	buf = append(buf, 0x99, byte(len(body)>>8), byte(len(body)))
	buf = append(buf, body...)
	return buf, nil
}

// KeyID returns the low 8 bytes of the fingerprint.
func (k *Key) KeyID() (openpgp.KeyID, error) {
	fp, err := k.Fingerprint()
	if err != nil {
		return nil, err
	}
	return fp.KeyID(), nil
}

// publicKeyBody serializes the version/creation/algo/public-MPI
// portion of the key packet, i.e. everything the fingerprint hash
// covers (RFC 4880 §12.2).
func (k *Key) publicKeyBody() ([]byte, error) {
	buf := make([]byte, 6)
	buf[0] = byte(k.Version)
	binary.BigEndian.PutUint32(buf[1:], uint32(k.Created.Unix()))
	buf[5] = byte(k.Algo)
	switch k.Algo {
	case openpgp.PKEdDSA, openpgp.PKECDH:
		buf = append(buf, byte(len(k.Curve)))
		buf = append(buf, k.Curve...)
		for _, m := range k.PublicMPIs {
			buf = append(buf, mpi(m)...)
		}
	default:
		for _, m := range k.PublicMPIs {
			buf = append(buf, mpi(m)...)
		}
	}
	return buf, nil
}

// PacketBody returns the full serialized packet body (public portion,
// plus secret portion if Parts == PartsSecret), suitable for writing
// behind a Public-Key/Secret-Key packet header. publicKeyBody never
// actually fails for a v4 key; a non-v4 key degrades to best-effort
// serialization rather than erroring, since PacketBody has no error
// return to report it through.
func (k *Key) PacketBody() []byte {
	pub, _ := k.publicKeyBody()
	if k.parts != PartsSecret {
		return pub
	}
	buf := append([]byte(nil), pub...)
	if k.SecretEncrypted {
		usage := k.SecretUsage
		if usage == 0 {
			usage = 254
		}
		buf = append(buf, usage)
		buf = append(buf, byte(k.SecretCipherAlgo))
		buf = append(buf, k.S2K.serialize()...)
		buf = append(buf, k.SecretMPIs[0]...) // pre-encrypted blob incl. IV
		return buf
	}
	buf = append(buf, 0)
	var checksumInput []byte
	for _, m := range k.SecretMPIs {
		enc := mpi(m)
		buf = append(buf, enc...)
		checksumInput = append(checksumInput, enc...)
	}
	sum := checksum(checksumInput)
	buf = append(buf, byte(sum>>8), byte(sum))
	return buf
}

// parseKeyPacket decodes a Public-Key/Public-Subkey/Secret-Key/
// Secret-Subkey packet body (RFC 4880 §5.5), dispatching on tag for
// Parts/Role and on algorithm for the public-parameter MPI count,
// generalized from the teacher's fixed Ed25519-only layout (`Load` in
// signkey.go) to the algorithms this module's crypto/std backend
// supports.
func parseKeyPacket(tag Tag, body []byte) (*Key, error) {
	if len(body) < 6 || body[0] != 4 {
		return nil, openpgp.UnsupportedError("only version 4 key packets are supported")
	}
	k := &Key{
		Version: 4,
		Created: timeFromUnix32(body[1:5]),
		Algo:    openpgp.PublicKeyAlgorithm(body[5]),
	}
	switch tag {
	case TagPublicKey, TagSecretKey:
		k.role = RolePrimary
	default:
		k.role = RoleSubordinate
	}
	rest := body[6:]
	switch k.Algo {
	case openpgp.PKEdDSA, openpgp.PKECDH:
		if len(rest) < 1 {
			return nil, openpgp.StructuralError("truncated EC key curve OID")
		}
		oidLen := int(rest[0])
		if len(rest) < 1+oidLen {
			return nil, openpgp.StructuralError("truncated EC key curve OID")
		}
		k.Curve = append([]byte(nil), rest[1:1+oidLen]...)
		rest = rest[1+oidLen:]
		m, tail := mpiDecodeRaw(rest)
		if m == nil {
			return nil, openpgp.StructuralError("truncated EC public point")
		}
		k.PublicMPIs = [][]byte{m}
		rest = tail
		if k.Algo == openpgp.PKECDH {
			if len(rest) < 1 {
				return nil, openpgp.StructuralError("truncated ECDH KDF parameters")
			}
			kdfLen := int(rest[0])
			if len(rest) < 1+kdfLen {
				return nil, openpgp.StructuralError("truncated ECDH KDF parameters")
			}
			k.PublicMPIs = append(k.PublicMPIs, append([]byte(nil), rest[:1+kdfLen]...))
			rest = rest[1+kdfLen:]
		}
	case openpgp.PKRSAEncryptSign, openpgp.PKRSAEncryptOnly, openpgp.PKRSASignOnly:
		n, tail := mpiDecodeRaw(rest)
		if n == nil {
			return nil, openpgp.StructuralError("truncated RSA modulus")
		}
		e, tail2 := mpiDecodeRaw(tail)
		if e == nil {
			return nil, openpgp.StructuralError("truncated RSA exponent")
		}
		k.PublicMPIs = [][]byte{n, e}
		rest = tail2
	default:
		return nil, openpgp.UnsupportedError("unsupported public-key algorithm")
	}
	if tag != TagSecretKey && tag != TagSecretSubkey {
		return k, nil
	}
	if len(rest) < 1 {
		return nil, openpgp.StructuralError("truncated secret-key portion")
	}
	usage := rest[0]
	rest = rest[1:]
	switch usage {
	case 0:
		var mpis [][]byte
		for len(rest) > 2 {
			m, tail := mpiDecodeRaw(rest)
			if m == nil {
				break
			}
			mpis = append(mpis, m)
			rest = tail
		}
		return k.WithSecret(mpis, false, nil), nil
	case 254, 255:
		if len(rest) < 2 {
			return nil, openpgp.StructuralError("truncated secret-key S2K")
		}
		symAlgo := openpgp.SymmetricAlgorithm(rest[0])
		keySize, err := SymmetricKeySize(symAlgo)
		if err != nil {
			return nil, err
		}
		s2k, n, err := parseS2K(rest[1:])
		if err != nil {
			return nil, err
		}
		s2k.CipherKeySize = keySize
		rest = rest[1+n:]
		k.SecretCipherAlgo = symAlgo
		k.SecretUsage = usage
		return k.WithSecret([][]byte{append([]byte(nil), rest...)}, true, &s2k), nil
	default:
		return nil, openpgp.UnsupportedError("unsupported secret-key string-to-key usage octet")
	}
}

// Tag returns the packet tag this key should be serialized/parsed as,
// given its Parts and Role.
func (k *Key) Tag() Tag {
	switch {
	case k.role == RolePrimary && k.parts == PartsSecret:
		return TagSecretKey
	case k.role == RolePrimary:
		return TagPublicKey
	case k.parts == PartsSecret:
		return TagSecretSubkey
	default:
		return TagPublicSubkey
	}
}
