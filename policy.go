package openpgp

import "time"

// Policy is injected into canonicalization and signature verification
// (spec §6). Implementations decide which algorithms and packet
// versions remain trustworthy, and since when.
type Policy interface {
	// HashCutoff returns the time at or after which signatures using
	// the given hash algorithm are rejected. ok == false means the
	// algorithm is banned outright; ok == true with a nil cutoff means
	// no cutoff applies, which is what AcceptAllPolicy returns for
	// every algorithm.
	HashCutoff(algo HashAlgorithm) (cutoff *time.Time, ok bool)

	// SymmetricCutoff is the analogous cutoff for symmetric ciphers.
	SymmetricCutoff(algo SymmetricAlgorithm) (cutoff *time.Time, ok bool)

	// PacketTagCutoff is the analogous cutoff for packet tags (used to
	// deprecate e.g. old MDC-less SEIP-adjacent constructs).
	PacketTagCutoff(tag int) (cutoff *time.Time, ok bool)

	// SignatureIsAcceptable runs any additional, non-cutoff-based
	// check against a signature (e.g. minimum key size). Returning a
	// non-nil error rejects the signature with that error.
	// Canonicalization and cert.ActivePrimarySignature do not call it;
	// they consult only HashCutoff.
	SignatureIsAcceptable(sig *SignatureInfo) error

	// KeyIsAcceptable runs any additional check against a public key.
	KeyIsAcceptable(key *KeyInfo) error

	// AuthenticatesDesignatedRevokers reports whether a third-party
	// revocation by a designated revoker is honored as a hard
	// revocation only when that revoker is listed in a *non-revoked*
	// self-signature (eager / safer), or whether any designated
	// revocation is accepted without checking authorization freshness
	// (deferred / current upstream behavior). See spec §9, DESIGN.md
	// Open Question 1.
	AuthenticatesDesignatedRevokers() bool
}

// HashAlgorithm identifies a hash function by its OpenPGP algorithm
// ID (RFC 4880 §9.4, extended per crypto-refresh).
type HashAlgorithm uint8

const (
	HashMD5       HashAlgorithm = 1
	HashSHA1      HashAlgorithm = 2
	HashRIPEMD160 HashAlgorithm = 3
	HashSHA256    HashAlgorithm = 8
	HashSHA384    HashAlgorithm = 9
	HashSHA512    HashAlgorithm = 10
	HashSHA224    HashAlgorithm = 11
	HashSHA3_256  HashAlgorithm = 12
	HashSHA3_512  HashAlgorithm = 14
)

// SymmetricAlgorithm identifies a symmetric cipher by OpenPGP
// algorithm ID (RFC 4880 §9.2).
type SymmetricAlgorithm uint8

const (
	SymmetricPlaintext SymmetricAlgorithm = 0
	SymmetricIDEA      SymmetricAlgorithm = 1
	SymmetricTripleDES SymmetricAlgorithm = 2
	SymmetricCAST5     SymmetricAlgorithm = 3
	SymmetricBlowfish  SymmetricAlgorithm = 4
	SymmetricAES128    SymmetricAlgorithm = 7
	SymmetricAES192    SymmetricAlgorithm = 8
	SymmetricAES256    SymmetricAlgorithm = 9
	SymmetricTwofish   SymmetricAlgorithm = 10
)

// AEADAlgorithm identifies an AEAD construction by OpenPGP algorithm
// ID (draft-ietf-openpgp-rfc4880bis / crypto-refresh).
type AEADAlgorithm uint8

const (
	AEADEAX           AEADAlgorithm = 1
	AEADOCB           AEADAlgorithm = 2
	AEADGCM           AEADAlgorithm = 3
	AEADChaCha20Poly1305 AEADAlgorithm = 100 // pack-local extension id; see crypto/std
)

// PublicKeyAlgorithm identifies a public-key algorithm by OpenPGP
// algorithm ID (RFC 4880 §9.1).
type PublicKeyAlgorithm uint8

const (
	PKRSAEncryptSign PublicKeyAlgorithm = 1
	PKRSAEncryptOnly PublicKeyAlgorithm = 2
	PKRSASignOnly    PublicKeyAlgorithm = 3
	PKElgamal        PublicKeyAlgorithm = 16
	PKDSA            PublicKeyAlgorithm = 17
	PKECDH           PublicKeyAlgorithm = 18
	PKECDSA          PublicKeyAlgorithm = 19
	PKEdDSA          PublicKeyAlgorithm = 22
)

// SignatureInfo is the minimal view of a signature the Policy needs,
// decoupled from package packet to avoid an import cycle (policy is
// consumed by both packet and cert).
type SignatureInfo struct {
	HashAlgo      HashAlgorithm
	PubKeyAlgo    PublicKeyAlgorithm
	Created       time.Time
	SignerKeyBits int
}

// KeyInfo is the minimal view of a public key the Policy needs.
type KeyInfo struct {
	PubKeyAlgo PublicKeyAlgorithm
	Bits       int
	Created    time.Time
}

// AcceptAllPolicy is a Policy with no opinions: nothing is ever
// rejected on age or acceptability grounds, and designated-revoker
// authorization is not checked. Useful for tests and for parsing
// historical material for display purposes.
type AcceptAllPolicy struct{}

func (AcceptAllPolicy) HashCutoff(HashAlgorithm) (*time.Time, bool)           { return nil, true }
func (AcceptAllPolicy) SymmetricCutoff(SymmetricAlgorithm) (*time.Time, bool) { return nil, true }
func (AcceptAllPolicy) PacketTagCutoff(int) (*time.Time, bool)                { return nil, true }
func (AcceptAllPolicy) SignatureIsAcceptable(*SignatureInfo) error            { return nil }
func (AcceptAllPolicy) KeyIsAcceptable(*KeyInfo) error                        { return nil }
func (AcceptAllPolicy) AuthenticatesDesignatedRevokers() bool                 { return false }
