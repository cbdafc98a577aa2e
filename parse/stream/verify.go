package stream

import (
	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// VerificationHelper looks up the verifying key for a signature's
// issuer, as spec §4.9 requires: the Reader never holds key material
// itself, only the helper that knows where to find it (a Cert store,
// a single trusted key, a no-op that always fails, etc).
type VerificationHelper interface {
	PublicKey(issuer openpgp.KeyID) (crypto.VerifierKey, error)
}

// SignatureResult records the outcome of verifying one signature found
// in a message (spec §7: invalid signatures are reported alongside
// good ones, not silently dropped). Every signature the Reader reaches
// is recorded this way, with Err set when it did not verify; none is
// moved to a separate list, and the Reader applies no policy.
type SignatureResult struct {
	Signature *packet.Signature
	Err       error // nil means the signature verified successfully
}

// verifyOnePass finalizes a one-pass-covered signature against
// cur's accumulated hash and the issuer's public key from vh.
func verifyOnePass(cur *packet.Cursor, sig *packet.Signature, vh VerificationHelper) SignatureResult {
	digest, ok := cur.FinalizeOnePass(sig)
	if !ok {
		return SignatureResult{Signature: sig, Err: openpgp.StructuralError("signature has no matching one-pass packet")}
	}
	return verifyDigest(sig, digest, vh)
}

func verifyDigest(sig *packet.Signature, digest []byte, vh VerificationHelper) SignatureResult {
	issuer, ok := sig.Issuer()
	if !ok {
		return SignatureResult{Signature: sig, Err: openpgp.StructuralError("signature has no issuer")}
	}
	verifier, err := vh.PublicKey(issuer)
	if err != nil {
		return SignatureResult{Signature: sig, Err: err}
	}
	if err := sig.Verify(digest, verifier); err != nil {
		return SignatureResult{Signature: sig, Err: err}
	}
	return SignatureResult{Signature: sig, Err: nil}
}
