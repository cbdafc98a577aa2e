package packet

import (
	"encoding/binary"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet/subpacket"
)

func timeFromUnix32(b []byte) time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(b)), 0).UTC()
}

// SignatureType identifies what a Signature certifies (RFC 4880
// §5.2.1).
type SignatureType byte

const (
	SigTypeBinary              SignatureType = 0x00
	SigTypeText                SignatureType = 0x01
	SigTypeGenericCert         SignatureType = 0x10
	SigTypePersonaCert         SignatureType = 0x11
	SigTypeCasualCert          SignatureType = 0x12
	SigTypePositiveCert        SignatureType = 0x13
	SigTypeSubkeyBinding       SignatureType = 0x18
	SigTypePrimaryKeyBinding   SignatureType = 0x19
	SigTypeDirectKey           SignatureType = 0x1F
	SigTypeKeyRevocation       SignatureType = 0x20
	SigTypeSubkeyRevocation    SignatureType = 0x28
	SigTypeCertRevocation      SignatureType = 0x30
	SigTypeTimestamp           SignatureType = 0x40
	SigTypeThirdPartyConfirm   SignatureType = 0x50
)

// Signature is an OpenPGP Signature packet (RFC 4880 §5.2), version 4.
// Version 3 signatures are tolerated on read (spec §6) but always end
// up in Cert's Dropped list rather than participating in
// verification; this package does not implement v3 verification.
type Signature struct {
	Version    int
	Type       SignatureType
	PubKeyAlgo openpgp.PublicKeyAlgorithm
	HashAlgo   openpgp.HashAlgorithm

	Hashed   *subpacket.Area
	Unhashed *subpacket.Area

	HashPrefix [2]byte
	MPIs       [][]byte

	// trailer is DataToHash's output for a parsed v4 signature, set by
	// ParseSignature only; nothing in this package reads it back.
	trailer []byte
}

// whitelisted subpackets are allowed to be read from the unhashed area
// as a fallback when absent from the hashed area (spec §4.3): they are
// "self-authenticating" in the sense that a forger who could alter the
// unhashed area without invalidating the signature gains nothing by
// lying about them.
func isUnhashedFallbackAllowed(tag subpacket.Tag) bool {
	switch tag {
	case subpacket.TagIssuer, subpacket.TagIssuerFingerprint, subpacket.TagEmbeddedSignature:
		return true
	default:
		return false
	}
}

// lookup implements the hashed-preferred, whitelisted-unhashed-fallback
// accessor rule.
func (s *Signature) lookup(tag subpacket.Tag) (*subpacket.Subpacket, bool) {
	if sp, ok := s.Hashed.Lookup(tag); ok {
		return sp, true
	}
	if isUnhashedFallbackAllowed(tag) {
		if sp, ok := s.Unhashed.Lookup(tag); ok {
			return sp, true
		}
	}
	return nil, false
}

// Created returns the Signature Creation Time subpacket's value.
func (s *Signature) Created() (time.Time, bool) {
	sp, ok := s.lookup(subpacket.TagSignatureCreationTime)
	if !ok {
		return time.Time{}, false
	}
	return subpacket.DecodeTime(sp.Value)
}

// ExpiresAt returns the absolute expiration time computed from the
// Signature Expiration Time subpacket (a duration relative to
// creation), or (zero, false) if the signature never expires or has
// no creation time recorded.
func (s *Signature) ExpiresAt() (time.Time, bool) {
	created, ok := s.Created()
	if !ok {
		return time.Time{}, false
	}
	sp, ok := s.lookup(subpacket.TagSignatureExpirationTime)
	if !ok {
		return time.Time{}, false
	}
	d, ok := subpacket.DecodeDuration(sp.Value)
	if !ok || d == 0 {
		return time.Time{}, false
	}
	return created.Add(d), true
}

// KeyExpiresAt returns the absolute key-expiration time computed from
// the Key Expiration Time subpacket relative to keyCreated.
func (s *Signature) KeyExpiresAt(keyCreated time.Time) (time.Time, bool) {
	sp, ok := s.lookup(subpacket.TagKeyExpirationTime)
	if !ok {
		return time.Time{}, false
	}
	d, ok := subpacket.DecodeDuration(sp.Value)
	if !ok || d == 0 {
		return time.Time{}, false
	}
	return keyCreated.Add(d), true
}

// Issuer returns the Issuer subpacket's KeyID.
func (s *Signature) Issuer() (openpgp.KeyID, bool) {
	sp, ok := s.lookup(subpacket.TagIssuer)
	if !ok || len(sp.Value) != 8 {
		return nil, false
	}
	return openpgp.KeyID(sp.Value), true
}

// IssuerFingerprint returns the Issuer Fingerprint subpacket's value
// (version octet followed by the fingerprint bytes).
func (s *Signature) IssuerFingerprint() (openpgp.Fingerprint, bool) {
	sp, ok := s.lookup(subpacket.TagIssuerFingerprint)
	if !ok || len(sp.Value) < 2 {
		return nil, false
	}
	return openpgp.Fingerprint(sp.Value[1:]), true
}

// KeyFlags returns the Key Flags subpacket's decoded value.
func (s *Signature) KeyFlags() (subpacket.KeyFlags, bool) {
	sp, ok := s.lookup(subpacket.TagKeyFlags)
	if !ok {
		return subpacket.KeyFlags{}, false
	}
	return subpacket.DecodeKeyFlags(sp.Value), true
}

// PrimaryUserID reports whether the Primary User ID subpacket is
// present and true.
func (s *Signature) PrimaryUserID() bool {
	sp, ok := s.lookup(subpacket.TagPrimaryUserID)
	return ok && len(sp.Value) == 1 && sp.Value[0] != 0
}

// Revocable reports the Revocable subpacket's value, defaulting to
// true when absent (RFC 4880 §5.2.3.12).
func (s *Signature) Revocable() bool {
	sp, ok := s.lookup(subpacket.TagRevocable)
	if !ok {
		return true
	}
	return len(sp.Value) == 1 && sp.Value[0] != 0
}

// RevocationReason returns the Reason-For-Revocation subpacket's
// decoded value. A revocation signature with no such subpacket is
// treated as ReasonUnspecified, which IsHard classifies as hard: the
// RFC is ambiguous about a missing subpacket's meaning, and this
// module's choice (spec §9, DESIGN.md Open Question 3) is to err
// toward treating unexplained revocations as permanent.
func (s *Signature) RevocationReason() subpacket.ReasonForRevocation {
	sp, ok := s.lookup(subpacket.TagReasonForRevocation)
	if !ok {
		return subpacket.ReasonForRevocation{Code: subpacket.ReasonUnspecified}
	}
	r, ok := subpacket.DecodeReasonForRevocation(sp.Value)
	if !ok {
		return subpacket.ReasonForRevocation{Code: subpacket.ReasonUnspecified}
	}
	return r
}

// DesignatedRevokers returns every Revocation Key subpacket in the
// hashed area (third-party revokers the primary key has authorized).
func (s *Signature) DesignatedRevokers() []subpacket.RevocationKey {
	var out []subpacket.RevocationKey
	for _, sp := range s.Hashed.All() {
		if sp.Tag != subpacket.TagRevocationKey {
			continue
		}
		if rk, ok := subpacket.DecodeRevocationKey(sp.Value); ok {
			out = append(out, rk)
		}
	}
	return out
}

// Equivalent implements the RFC-defined signature equivalence used by
// canonicalization's dedup step (spec §4.5 step 5): two signatures are
// equivalent if everything except the unhashed area matches.
func (s *Signature) Equivalent(other *Signature) bool {
	if s.Version != other.Version || s.Type != other.Type ||
		s.PubKeyAlgo != other.PubKeyAlgo || s.HashAlgo != other.HashAlgo ||
		s.HashPrefix != other.HashPrefix {
		return false
	}
	if len(s.MPIs) != len(other.MPIs) {
		return false
	}
	for i := range s.MPIs {
		if string(s.MPIs[i]) != string(other.MPIs[i]) {
			return false
		}
	}
	return string(s.Hashed.Serialize()) == string(other.Hashed.Serialize())
}

// MPIByteOrder is the tiebreak comparator spec §3/§4.5 use when two
// signatures share a creation time: byte order of the concatenated
// MPIs.
func (s *Signature) MPIByteOrder() []byte {
	var buf []byte
	for _, m := range s.MPIs {
		buf = append(buf, m...)
	}
	return buf
}

// DataToHash returns the bytes that must be fed to a fresh hash
// context, *after* the signature-domain-specific prefix (key body,
// user-id body, etc. — supplied by the caller), matching RFC 4880
// §5.2.4: the version, signature type, hashed subpacket area (with its
// own length prefix) and the final 6-byte trailer (version, 0xFF,
// 4-byte hashed-area length), which is included.
func (s *Signature) DataToHash() []byte {
	hashedBytes := s.Hashed.Serialize()
	buf := make([]byte, 0, 6+len(hashedBytes)+6)
	buf = append(buf, byte(s.Version), byte(s.Type), byte(s.PubKeyAlgo), byte(s.HashAlgo))
	hlen := len(hashedBytes)
	buf = append(buf, byte(hlen>>8), byte(hlen))
	buf = append(buf, hashedBytes...)
	buf = append(buf, byte(s.Version), 0xFF,
		byte(hlen>>24), byte(hlen>>16), byte(hlen>>8), byte(hlen))
	return buf
}

// Verify checks this signature's MPIs against digest (the hash of
// signedPrefix+s.DataToHash(), computed by the caller or by the
// parser's hashing side effects) using verifier.
func (s *Signature) Verify(digest []byte, verifier crypto.VerifierKey) error {
	if digest[0] != s.HashPrefix[0] || digest[1] != s.HashPrefix[1] {
		return openpgp.SignatureError("hash prefix mismatch")
	}
	ok, err := verifier.Verify(digest, int(s.HashAlgo), s.MPIs)
	if err != nil {
		return err
	}
	if !ok {
		return openpgp.SignatureError("signature verification failed")
	}
	return nil
}

func (s *Signature) Tag() Tag { return TagSignature }

// ParseSignature decodes a Signature packet body. Version 3 signatures
// (a fixed 5-field layout with no subpacket areas) are parsed into the
// same struct with the creation time folded into a synthetic hashed
// area and the issuer into a synthetic unhashed area, so callers that
// only ever read via the combined accessors don't need a separate
// code path; Cert canonicalization is responsible for routing v3
// signatures to Dropped rather than treating them as verifiable
// (spec §6, DESIGN.md Open Question 2).
func ParseSignature(body []byte) (*Signature, error) {
	if len(body) < 1 {
		return nil, openpgp.StructuralError("empty signature packet")
	}
	version := int(body[0])
	if version == 3 {
		return parseSignatureV3(body)
	}
	if version != 4 {
		return nil, openpgp.UnsupportedError("unsupported signature version")
	}
	if len(body) < 6 {
		return nil, openpgp.StructuralError("truncated signature packet")
	}
	sigType := SignatureType(body[1])
	pkAlgo := openpgp.PublicKeyAlgorithm(body[2])
	hashAlgo := openpgp.HashAlgorithm(body[3])
	hlen := int(body[4])<<8 | int(body[5])
	rest := body[6:]
	if len(rest) < hlen {
		return nil, openpgp.StructuralError("truncated hashed subpacket area")
	}
	hashedArea, err := subpacket.ParseArea(rest[:hlen])
	if err != nil {
		return nil, err
	}
	rest = rest[hlen:]
	if len(rest) < 2 {
		return nil, openpgp.StructuralError("truncated unhashed subpacket area length")
	}
	ulen := int(rest[0])<<8 | int(rest[1])
	rest = rest[2:]
	if len(rest) < ulen {
		return nil, openpgp.StructuralError("truncated unhashed subpacket area")
	}
	unhashedArea, err := subpacket.ParseArea(rest[:ulen])
	if err != nil {
		return nil, err
	}
	rest = rest[ulen:]
	if len(rest) < 2 {
		return nil, openpgp.StructuralError("truncated hash prefix")
	}
	sig := &Signature{
		Version:    version,
		Type:       sigType,
		PubKeyAlgo: pkAlgo,
		HashAlgo:   hashAlgo,
		Hashed:     hashedArea,
		Unhashed:   unhashedArea,
	}
	sig.HashPrefix[0], sig.HashPrefix[1] = rest[0], rest[1]
	rest = rest[2:]
	for len(rest) > 0 {
		m, tail := mpiDecodeRaw(rest)
		if m == nil {
			return nil, openpgp.StructuralError("truncated signature MPI")
		}
		sig.MPIs = append(sig.MPIs, m)
		rest = tail
	}
	sig.trailer = sig.DataToHash()
	return sig, nil
}

// parseSignatureV3 decodes the legacy fixed-layout signature body
// (RFC 4880 §5.2.2): version, hash-material length octet, sig type,
// 4-byte creation time, 8-byte issuer key id, PK algo, hash algo,
// 2-byte hash prefix, then MPIs.
func parseSignatureV3(body []byte) (*Signature, error) {
	if len(body) < 19 {
		return nil, openpgp.StructuralError("truncated v3 signature packet")
	}
	sigType := SignatureType(body[2])
	created := subpacket.EncodeTime(timeFromUnix32(body[3:7]))
	issuer := append([]byte(nil), body[7:15]...)
	pkAlgo := openpgp.PublicKeyAlgorithm(body[15])
	hashAlgo := openpgp.HashAlgorithm(body[16])
	hashed := subpacket.NewArea([]*subpacket.Subpacket{
		subpacket.New(subpacket.TagSignatureCreationTime, false, created),
	})
	unhashed := subpacket.NewArea([]*subpacket.Subpacket{
		subpacket.New(subpacket.TagIssuer, false, issuer),
	})
	sig := &Signature{
		Version:    3,
		Type:       sigType,
		PubKeyAlgo: pkAlgo,
		HashAlgo:   hashAlgo,
		Hashed:     hashed,
		Unhashed:   unhashed,
	}
	sig.HashPrefix[0], sig.HashPrefix[1] = body[17], body[18]
	rest := body[19:]
	for len(rest) > 0 {
		m, tail := mpiDecodeRaw(rest)
		if m == nil {
			return nil, openpgp.StructuralError("truncated v3 signature MPI")
		}
		sig.MPIs = append(sig.MPIs, m)
		rest = tail
	}
	return sig, nil
}

// PacketBody serializes the signature packet's body.
func (s *Signature) PacketBody() []byte {
	hashedBytes := s.Hashed.Serialize()
	unhashedBytes := s.Unhashed.Serialize()
	buf := make([]byte, 0, 10+len(hashedBytes)+len(unhashedBytes))
	buf = append(buf, byte(s.Version), byte(s.Type), byte(s.PubKeyAlgo), byte(s.HashAlgo))
	hlen := len(hashedBytes)
	buf = append(buf, byte(hlen>>8), byte(hlen))
	buf = append(buf, hashedBytes...)
	ulen := len(unhashedBytes)
	buf = append(buf, byte(ulen>>8), byte(ulen))
	buf = append(buf, unhashedBytes...)
	buf = append(buf, s.HashPrefix[0], s.HashPrefix[1])
	for _, m := range s.MPIs {
		buf = append(buf, mpi(m)...)
	}
	return buf
}
