// Package cert implements the OpenPGP certificate (TPK/TSK) model:
// canonicalization of a raw packet bag into a structured Cert (spec
// §4.5), primary self-signature selection at a reference time with
// revocation evaluation (spec §4.6), and merging two Certs with the
// same primary fingerprint (spec §4.7). Grounded on
// original_source/openpgp/src/cert/mod.rs and
// original_source/openpgp/src/cert/amalgamation/key.rs, generalized
// from the teacher's flat, unverified SelfSign/Bind/Certify outputs
// (KAction-passphrase2pgp's openpgp.SignKey) into a structure that
// actually verifies and ranks what it's handed.
package cert

import (
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// VerifierFactory constructs a crypto.VerifierKey for a public key
// packet, the injection point through which this package reaches
// cryptographic primitives without depending on a concrete backend
// (spec §6, L0): canonicalization calls it once per distinct issuing
// key it needs to verify a signature against.
type VerifierFactory func(k *packet.Key) (crypto.VerifierKey, error)

// ComponentBinding pairs one certificate component (a user id, a user
// attribute, or a subkey) with the signatures that bind and revoke it.
// Third-party signatures/revocations are kept but never drive
// canonicalization decisions on their own (spec §4.5/§4.6).
type ComponentBinding[C any] struct {
	Component C

	SelfSignatures  []*packet.Signature
	SelfRevocations []*packet.Signature

	ThirdPartySignatures  []*packet.Signature
	ThirdPartyRevocations []*packet.Signature
}

func (b *ComponentBinding[C]) allSelf() []*packet.Signature {
	all := make([]*packet.Signature, 0, len(b.SelfSignatures)+len(b.SelfRevocations))
	all = append(all, b.SelfSignatures...)
	all = append(all, b.SelfRevocations...)
	return all
}

// DroppedPacket records a packet Assemble could not place anywhere
// meaningful (a signature of a version other than 4, never eligible
// for verification, or a packet type that doesn't belong in a Cert at
// all), kept for diagnostics rather than silently discarded (DESIGN.md
// Open Question: V3 signature diagnostics). Signatures that fail
// verification go to Cert.Bad instead.
type DroppedPacket struct {
	Packet packet.Packet
	Reason string
}

// Cert is a canonicalized OpenPGP certificate.
type Cert struct {
	Primary *packet.Key

	// PrimarySelfSignatures/PrimarySelfRevocations are direct-key
	// signatures and key revocations over the primary key alone (no
	// user id/attribute/subkey involved).
	PrimarySelfSignatures  []*packet.Signature
	PrimarySelfRevocations []*packet.Signature

	UserIDs        []*ComponentBinding[*packet.UserID]
	UserAttributes []*ComponentBinding[*packet.UserAttribute]
	Subkeys        []*ComponentBinding[*packet.Key]

	// Bad holds signatures that could not be verified against any
	// binding after the rescue pass (spec §4.5 step 3).
	Bad []*packet.Signature

	Dropped []DroppedPacket
}

// Fingerprint returns the primary key's fingerprint.
func (c *Cert) Fingerprint() (openpgp.Fingerprint, error) {
	return c.Primary.Fingerprint()
}

// RevokedAt reports whether the primary key itself is revoked at t
// (spec §4.6 "Revocation evaluation"), considering only hard/soft
// self-revocations over the primary key.
func (c *Cert) RevokedAt(policy openpgp.Policy, t time.Time) (bool, error) {
	sel, err := ActivePrimarySignature(c, policy, t)
	if err != nil {
		return false, err
	}
	return sel.Revoked, nil
}
