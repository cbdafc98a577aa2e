package stream

import (
	"io"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// SigningKey is one signer's configuration within a Signer filter.
type SigningKey struct {
	Key               crypto.SignerKey
	HashAlgo          openpgp.HashAlgorithm
	Issuer            openpgp.KeyID
	IssuerFingerprint openpgp.Fingerprint
}

// SignerOptions configures a Signer filter (spec §4.8).
type SignerOptions struct {
	Keys               []SigningKey
	Type               packet.SignatureType // default SigTypeBinary
	Created            time.Time            // default time.Now()
	IntendedRecipients []openpgp.Fingerprint
	Detached           bool
	HashFactory        crypto.HashFactory
}

// Signer hashes every byte written to it under one running hash
// context per configured signing key, emitting the matching one-pass
// signature packets up front (unless Detached) and the terminal
// signature packets on Finalize, bracketing whatever sits between them
// in the message (spec §4.8). It is grounded in the teacher's own
// SignKey.sign, generalized from a single one-shot signer over an
// in-memory buffer to N concurrent running hashes over a streamed
// payload.
type Signer struct {
	sink   io.Writer
	opts   SignerOptions
	hashes []crypto.Hash
}

// NewSigner starts a Signer filter writing into sink.
func NewSigner(sink io.Writer, opts SignerOptions) (*Signer, error) {
	if len(opts.Keys) == 0 {
		return nil, openpgp.InvalidArgumentError("signer filter requires at least one signing key")
	}
	if opts.Created.IsZero() {
		opts.Created = time.Now()
	}
	s := &Signer{sink: sink, opts: opts}
	for _, k := range opts.Keys {
		h, err := opts.HashFactory(int(k.HashAlgo))
		if err != nil {
			return nil, err
		}
		s.hashes = append(s.hashes, h)
	}
	if !opts.Detached {
		if err := s.writeOnePass(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Signer) sigType() packet.SignatureType {
	if s.opts.Type != 0 {
		return s.opts.Type
	}
	return packet.SigTypeBinary
}

// writeOnePass emits one One-Pass Signature packet per signer in
// configuration order; only the last one (nearest the signed data) has
// Nested=false, so a single-pass verifier knows it has seen every
// one-pass header before the payload begins (RFC 4880 §5.4).
func (s *Signer) writeOnePass() error {
	for i, k := range s.opts.Keys {
		ops := &packet.OnePassSig{
			Version:    3,
			Type:       s.sigType(),
			HashAlgo:   k.HashAlgo,
			PubKeyAlgo: openpgp.PublicKeyAlgorithm(k.Key.PublicKeyAlgo()),
			Issuer:     k.Issuer,
			Nested:     i != len(s.opts.Keys)-1,
		}
		body := ops.PacketBody()
		if err := packet.WriteHeader(s.sink, packet.TagOnePassSig, int64(len(body))); err != nil {
			return err
		}
		if _, err := s.sink.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// Write feeds p to every signer's running hash and, unless this Signer
// is detached, forwards it to the inner sink unmodified.
func (s *Signer) Write(p []byte) (int, error) {
	if !s.opts.Detached {
		if _, err := s.sink.Write(p); err != nil {
			return 0, err
		}
	}
	for _, h := range s.hashes {
		h.Write(p)
	}
	return len(p), nil
}

// Finalize emits one Signature packet per signer, in reverse
// configuration order so the signature nearest the one-pass packet
// that announced it comes first, then returns the inner sink.
func (s *Signer) Finalize() (io.Writer, error) {
	for i := len(s.opts.Keys) - 1; i >= 0; i-- {
		k := s.opts.Keys[i]
		b := packet.NewBuilder(s.sigType(), openpgp.PublicKeyAlgorithm(k.Key.PublicKeyAlgo()), k.HashAlgo)
		b.SetCreationTime(s.opts.Created)
		for _, fp := range s.opts.IntendedRecipients {
			b.SetIntendedRecipient(fp)
		}
		sig, err := b.FinalizeWithHash(k.Key, k.Issuer, k.IssuerFingerprint, s.hashes[i], s.opts.Created)
		if err != nil {
			return nil, err
		}
		body := sig.PacketBody()
		if err := packet.WriteHeader(s.sink, packet.TagSignature, int64(len(body))); err != nil {
			return nil, err
		}
		if _, err := s.sink.Write(body); err != nil {
			return nil, err
		}
	}
	return s.sink, nil
}
