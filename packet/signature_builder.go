package packet

import (
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet/subpacket"
)

// securityRelevant lists subpacket types spec §4.4 requires land in the
// hashed area whenever a Builder sets them: an attacker who could move
// these into the unhashed area without invalidating the signature could
// change its meaning undetected.
func securityRelevant(tag subpacket.Tag) bool {
	switch tag {
	case subpacket.TagSignatureCreationTime, subpacket.TagSignatureExpirationTime,
		subpacket.TagKeyExpirationTime, subpacket.TagKeyFlags, subpacket.TagRevocable,
		subpacket.TagReasonForRevocation, subpacket.TagPrimaryUserID,
		subpacket.TagRevocationKey, subpacket.TagFeatures, subpacket.TagExportable:
		return true
	default:
		return false
	}
}

// Builder assembles a Signature incrementally, the way SignKey.sign's
// sigInput/subpackets slice does in the teacher, generalized to an
// arbitrary hash algorithm, public-key algorithm and subpacket set
// (spec §4.4).
type Builder struct {
	sigType    SignatureType
	pubKeyAlgo openpgp.PublicKeyAlgorithm
	hashAlgo   openpgp.HashAlgorithm
	hashed     []*subpacket.Subpacket
	unhashed   []*subpacket.Subpacket

	// err latches the first setter-time validation failure (e.g. a
	// negative expiration), reported once Finalize/FinalizeWithHash is
	// called, so every Set* method can keep returning *Builder for
	// chaining.
	err error
}

// NewBuilder starts a signature of sigType that will use signer's
// algorithm and hashAlgo.
func NewBuilder(sigType SignatureType, pubKeyAlgo openpgp.PublicKeyAlgorithm, hashAlgo openpgp.HashAlgorithm) *Builder {
	return &Builder{sigType: sigType, pubKeyAlgo: pubKeyAlgo, hashAlgo: hashAlgo}
}

// Set adds sp to the hashed area if its tag is security-relevant, or to
// the caller's chosen area otherwise (spec §4.4 placement rules).
func (b *Builder) Set(sp *subpacket.Subpacket, preferHashed bool) *Builder {
	if b.err != nil {
		return b
	}
	if securityRelevant(sp.Tag) || preferHashed {
		b.hashed = append(b.hashed, sp)
	} else {
		b.unhashed = append(b.unhashed, sp)
	}
	return b
}

// SetCreationTime sets the Signature Creation Time subpacket. If never
// called, Finalize supplies its refTime argument as the creation time
// (spec §4.4).
func (b *Builder) SetCreationTime(t time.Time) *Builder {
	return b.Set(subpacket.New(subpacket.TagSignatureCreationTime, false, subpacket.EncodeTime(t)), true)
}

// SetExpiration sets the Signature Expiration Time subpacket as a
// duration relative to the (eventual) creation time. Spec §4.4:
// set_signature_expiration_time(t) fails if t < creation_time, so a
// negative duration is rejected here rather than silently encoded as
// EncodeDuration would otherwise wrap it into a huge future offset.
func (b *Builder) SetExpiration(d time.Duration) *Builder {
	if d < 0 {
		b.latch(openpgp.InvalidArgumentError("signature expiration precedes creation time"))
		return b
	}
	return b.Set(subpacket.New(subpacket.TagSignatureExpirationTime, false, subpacket.EncodeDuration(d)), true)
}

// SetKeyExpiration sets the Key Expiration Time subpacket, relative to
// the signed-over key's own creation time. Same non-negativity
// requirement as SetExpiration.
func (b *Builder) SetKeyExpiration(d time.Duration) *Builder {
	if d < 0 {
		b.latch(openpgp.InvalidArgumentError("key expiration precedes key creation time"))
		return b
	}
	return b.Set(subpacket.New(subpacket.TagKeyExpirationTime, false, subpacket.EncodeDuration(d)), true)
}

// latch records the first validation error a setter encounters;
// subsequent setter calls are no-ops once b.err is set, and
// Finalize/FinalizeWithHash report it instead of building a signature.
func (b *Builder) latch(err error) {
	if b.err == nil {
		b.err = err
	}
}

// SetKeyFlags sets the Key Flags subpacket.
func (b *Builder) SetKeyFlags(f subpacket.KeyFlags) *Builder {
	return b.Set(subpacket.New(subpacket.TagKeyFlags, false, f.Encode()), true)
}

// SetPrimaryUserID marks the certified user-id as primary.
func (b *Builder) SetPrimaryUserID(primary bool) *Builder {
	v := byte(0)
	if primary {
		v = 1
	}
	return b.Set(subpacket.New(subpacket.TagPrimaryUserID, false, []byte{v}), true)
}

// SetRevocationReason sets the Reason-For-Revocation subpacket (only
// meaningful on a revocation-typed signature).
func (b *Builder) SetRevocationReason(r subpacket.ReasonForRevocation) *Builder {
	return b.Set(subpacket.New(subpacket.TagReasonForRevocation, false, r.Encode()), true)
}

// SetIssuer explicitly sets the (unhashed) Issuer subpacket; if this
// is never called, Finalize adds one from its issuer argument when
// that is non-nil (spec §4.4, matching the teacher's SignKey.sign
// always adding one).
func (b *Builder) SetIssuer(id openpgp.KeyID) *Builder {
	return b.Set(subpacket.New(subpacket.TagIssuer, false, []byte(id)), false)
}

// SetIssuerFingerprint explicitly sets the Issuer Fingerprint
// subpacket.
func (b *Builder) SetIssuerFingerprint(fp openpgp.Fingerprint) *Builder {
	return b.Set(subpacket.New(subpacket.TagIssuerFingerprint, false, append([]byte{4}, fp...)), true)
}

// AddEmbeddedSignature attaches a primary-key-binding signature's raw
// body to an unhashed Embedded Signature subpacket (used for signing
// subkeys, spec §4.4).
func (b *Builder) AddEmbeddedSignature(raw []byte) *Builder {
	return b.Set(subpacket.New(subpacket.TagEmbeddedSignature, false, raw), false)
}

// SetIntendedRecipient adds an Intended Recipient Fingerprint subpacket
// (crypto-refresh §5.2.3.36), binding a document signature to the
// recipient(s) it was meant for so a copy-paste into a different
// encrypted message is detectable.
func (b *Builder) SetIntendedRecipient(fp openpgp.Fingerprint) *Builder {
	return b.Set(subpacket.New(subpacket.TagIntendedRecipient, false, append([]byte{4}, fp...)), true)
}

// hasTag reports whether the hashed or unhashed set already carries
// tag.
func (b *Builder) hasTag(tag subpacket.Tag) bool {
	for _, sp := range b.hashed {
		if sp.Tag == tag {
			return true
		}
	}
	for _, sp := range b.unhashed {
		if sp.Tag == tag {
			return true
		}
	}
	return false
}

// Finalize fills in the defaults spec §4.4 names (creation time from
// refTime, issuer, issuer fingerprint) if absent, checks time
// coherence via checkTimeCoherence, hashes signedData through signer's
// hash algorithm, and signs the resulting digest with signer.
//
// signedData is the signature-domain-specific prefix (e.g. a public
// key's §5.5.2 body wrapped in the 0x99 pseudo-header, or a user-id's
// 0xB4-prefixed body, or nothing for a binary-document signature) that
// must be hashed before the signature's own trailer.
func (b *Builder) Finalize(signer crypto.SignerKey, issuer openpgp.KeyID, issuerFP openpgp.Fingerprint, signedData []byte, hasher func(algo int) (crypto.Hash, error), refTime time.Time) (*Signature, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.hasTag(subpacket.TagSignatureCreationTime) {
		b.SetCreationTime(refTime)
	}
	if !b.hasTag(subpacket.TagIssuer) && issuer != nil {
		b.SetIssuer(issuer)
	}
	if !b.hasTag(subpacket.TagIssuerFingerprint) && issuerFP != nil {
		b.SetIssuerFingerprint(issuerFP)
	}

	sig := &Signature{
		Version:    4,
		Type:       b.sigType,
		PubKeyAlgo: b.pubKeyAlgo,
		HashAlgo:   b.hashAlgo,
		Hashed:     subpacket.NewArea(b.hashed),
		Unhashed:   subpacket.NewArea(b.unhashed),
	}

	if err := checkTimeCoherence(sig, refTime); err != nil {
		return nil, err
	}

	h, err := hasher(int(b.hashAlgo))
	if err != nil {
		return nil, err
	}
	h.Write(signedData)
	h.Write(sig.DataToHash())
	digest := h.Sum(nil)

	mpis, err := signer.Sign(digest, int(b.hashAlgo))
	if err != nil {
		return nil, err
	}
	sig.HashPrefix[0], sig.HashPrefix[1] = digest[0], digest[1]
	sig.MPIs = mpis
	return sig, nil
}

// FinalizeWithHash is like Finalize but for a caller that has already
// been feeding the signed data into h incrementally as it streamed,
// rather than holding it in memory to hash in one shot (the Signer
// filter in serialize/stream: a running per-signer hash is fed every
// byte of literal-data payload as it's written, long before the
// signature itself can be built). It completes the hash with the
// signature's own trailer and signs the result.
func (b *Builder) FinalizeWithHash(signer crypto.SignerKey, issuer openpgp.KeyID, issuerFP openpgp.Fingerprint, h crypto.Hash, refTime time.Time) (*Signature, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.hasTag(subpacket.TagSignatureCreationTime) {
		b.SetCreationTime(refTime)
	}
	if !b.hasTag(subpacket.TagIssuer) && issuer != nil {
		b.SetIssuer(issuer)
	}
	if !b.hasTag(subpacket.TagIssuerFingerprint) && issuerFP != nil {
		b.SetIssuerFingerprint(issuerFP)
	}

	sig := &Signature{
		Version:    4,
		Type:       b.sigType,
		PubKeyAlgo: b.pubKeyAlgo,
		HashAlgo:   b.hashAlgo,
		Hashed:     subpacket.NewArea(b.hashed),
		Unhashed:   subpacket.NewArea(b.unhashed),
	}

	if err := checkTimeCoherence(sig, refTime); err != nil {
		return nil, err
	}

	h.Write(sig.DataToHash())
	digest := h.Sum(nil)

	mpis, err := signer.Sign(digest, int(b.hashAlgo))
	if err != nil {
		return nil, err
	}
	sig.HashPrefix[0], sig.HashPrefix[1] = digest[0], digest[1]
	sig.MPIs = mpis
	return sig, nil
}

// checkTimeCoherence enforces spec §4.4's rule that a signature must
// not claim to expire before it was created, and also rejects a
// signature with no creation time or one created more than 24 hours
// after refTime. It does not examine a Key Expiration Time subpacket;
// SetKeyExpiration only rejects a negative duration.
func checkTimeCoherence(sig *Signature, refTime time.Time) error {
	created, ok := sig.Created()
	if !ok {
		return openpgp.SignatureError("signature missing creation time")
	}
	if expires, ok := sig.ExpiresAt(); ok && expires.Before(created) {
		return openpgp.InvalidArgumentError("signature expiration precedes creation time")
	}
	if created.After(refTime.Add(24 * time.Hour)) {
		return openpgp.SignatureError("signature creation time is implausibly far in the future")
	}
	return nil
}
