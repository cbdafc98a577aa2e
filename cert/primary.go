package cert

import (
	"bytes"
	"sort"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/packet"
)

// PrimarySelection is the result of evaluating spec §4.6 at one
// reference time: the chosen primary user id (nil if none is live),
// the active self-signature that governs key flags/preferences/
// expiration, and whether the primary key itself is revoked.
type PrimarySelection struct {
	PrimaryUserID *ComponentBinding[*packet.UserID]
	Signature     *packet.Signature
	Revoked       bool
}

// liveSignature returns the newest self-signature in sigs whose
// creation is at-or-before t, its validity period (if any) hasn't
// elapsed by t, and whose hash algorithm the policy still accepts at
// t; or nil if none qualifies.
func liveSignature(sigs []*packet.Signature, policy openpgp.Policy, t time.Time) *packet.Signature {
	for _, sig := range sigs { // already sorted newest-first by canonicalization
		created, ok := sig.Created()
		if !ok || created.After(t) {
			continue
		}
		if exp, ok := sig.ExpiresAt(); ok && !t.Before(exp) {
			continue
		}
		cutoff, accepted := policy.HashCutoff(openpgp.HashAlgorithm(sig.HashAlgo))
		if !accepted {
			continue // algorithm banned outright
		}
		if cutoff != nil && !t.Before(*cutoff) {
			continue // past the algorithm's cutoff
		}
		return sig
	}
	return nil
}

// isRevokedAt implements the revocation half of spec §4.6: hard
// revocations are retroactive and permanent; soft revocations apply
// only from their creation time onward and are overridden by any
// self-signature newer than them.
func isRevokedAt(revocations []*packet.Signature, activeSigCreated time.Time, haveActiveSig bool, t time.Time) bool {
	for _, rev := range revocations {
		if rev.RevocationReason().IsHard() {
			return true
		}
	}
	for _, rev := range revocations {
		created, ok := rev.Created()
		if !ok || created.After(t) {
			continue
		}
		if haveActiveSig && created.Before(activeSigCreated) {
			continue // overridden by a later self-signature
		}
		return true
	}
	return false
}

// ActivePrimarySignature implements spec §4.6 in full: live user-id
// computation, primary-user-id selection, and the 3-way active-
// signature preference order.
func ActivePrimarySignature(c *Cert, policy openpgp.Policy, t time.Time) (PrimarySelection, error) {
	type candidate struct {
		binding   *ComponentBinding[*packet.UserID]
		live      *packet.Signature
		revoked   bool
		primary   bool
	}

	var candidates []candidate
	for _, b := range c.UserIDs {
		live := liveSignature(b.SelfSignatures, policy, t)
		if live == nil {
			continue
		}
		candidates = append(candidates, candidate{
			binding: b,
			live:    live,
			revoked: isRevokedAt(b.SelfRevocations, mustCreated(live), true, t),
			primary: live.PrimaryUserID(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.revoked != b.revoked {
			return !a.revoked // not-revoked first
		}
		if a.primary != b.primary {
			return a.primary // primary_userid true first
		}
		ta, tb := mustCreated(a.live), mustCreated(b.live)
		if !ta.Equal(tb) {
			return ta.After(tb) // newest first
		}
		return a.binding.Component.Value < b.binding.Component.Value
	})

	directKey := liveSignature(c.PrimarySelfSignatures, policy, t)

	var sel PrimarySelection
	if len(candidates) > 0 {
		top := candidates[0]
		sel.PrimaryUserID = top.binding

		switch {
		case !top.revoked:
			sel.Signature = top.live // (a)
		case directKey != nil:
			sel.Signature = directKey // (b)
		default:
			sel.Signature = top.live // (c), even though revoked
		}
	} else if directKey != nil {
		sel.Signature = directKey
	}

	sel.Revoked = isRevokedAt(c.PrimarySelfRevocations, mustCreated(sel.Signature), sel.Signature != nil, t)
	return sel, nil
}

func mustCreated(sig *packet.Signature) time.Time {
	if sig == nil {
		return time.Time{}
	}
	t, _ := sig.Created()
	return t
}

// IsDesignatedRevoker reports whether fp is named as a designated
// revoker in sig, the Revocation Key subpacket mechanism spec §4.6
// uses to let third-party revocations count as hard.
func IsDesignatedRevoker(sig *packet.Signature, fp openpgp.Fingerprint) bool {
	for _, rk := range sig.DesignatedRevokers() {
		if bytes.Equal(rk.Fingerprint, fp) {
			return true
		}
	}
	return false
}

// ThirdPartyRevocationStatus classifies a third-party revocation
// against the active primary self-signature: authenticated (the
// issuer is a designated revoker named there, and the policy
// authenticates it) counts as hard; anything else is merely
// could-be-revoked, left to the caller/policy to treat as suspicious
// (spec §4.6, DESIGN.md Open Question 1).
func ThirdPartyRevocationStatus(sel PrimarySelection, rev *packet.Signature, policy openpgp.Policy) (hard bool) {
	if sel.Signature == nil {
		return false
	}
	issuerFP, ok := rev.IssuerFingerprint()
	if !ok {
		return false
	}
	if !IsDesignatedRevoker(sel.Signature, issuerFP) {
		return false
	}
	return policy.AuthenticatesDesignatedRevokers()
}
