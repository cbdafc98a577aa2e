package stream

import (
	"bytes"
	"io"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/internal/log"
	"github.com/dirkz/sequoia-sub000/packet"
)

// Options configures a Reader: the crypto backends it uses to open
// containers, and the two caller-supplied helpers spec §4.9 calls out
// by name, SecretKey and Verification. SymmetricFactory, AEADFactory
// and HashFactory may be left nil if the message never needs that
// primitive (e.g. an unencrypted signed message needs no
// SymmetricFactory or AEADFactory).
type Options struct {
	SecretKey        SecretKeyHelper
	Verification     VerificationHelper
	SymmetricFactory crypto.SymmetricFactory
	AEADFactory      crypto.AEADFactory
	HashFactory      crypto.HashFactory
}

// Reader exposes an OpenPGP message's innermost Literal Data as a
// single byte stream, transparently unwrapping encryption,
// compression and one-pass signature verification along the way (spec
// §4.9). It implements io.Reader; Signatures becomes valid once a Read
// call has returned io.EOF.
type Reader struct {
	opts    Options
	cursors []*packet.Cursor

	pkesks []*packet.PKESK
	skesks []*packet.SKESK

	lit  io.Reader
	sigs []SignatureResult
	err  error
}

// NewReader starts a Reader over src, an OpenPGP message's raw binary
// packet stream (already stripped of ASCII armor, if any, by the
// caller — see package armor).
func NewReader(src io.Reader, opts Options) *Reader {
	cur := packet.NewCursor(src, opts.HashFactory)
	return &Reader{opts: opts, cursors: []*packet.Cursor{cur}}
}

// Read implements io.Reader. Once the returned error is non-nil, every
// subsequent Read call returns an error too (spec §7): a failed
// integrity check or signature-verification bookkeeping failure
// latches exactly like the MDC/AEAD failures described in §4.9.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if r.err != nil {
			return 0, r.err
		}
		if r.lit != nil {
			n, err := r.lit.Read(p)
			if err == io.EOF {
				r.lit = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			if err != nil {
				r.err = err
				return n, err
			}
			return n, nil
		}
		if err := r.advance(); err != nil {
			r.err = err
			if err != io.EOF {
				log.L.WithField("err", err).Warn("latching Reader: fatal error advancing the message")
			}
			return 0, err
		}
	}
}

// Signatures returns every signature this Reader has observed and
// verified so far, in the order encountered. It is complete only once
// Read has returned io.EOF.
func (r *Reader) Signatures() []SignatureResult {
	return r.sigs
}

// advance walks packets at the current container depth until it finds
// a Literal Data body (sets r.lit and returns nil) or exhausts the
// whole message (returns io.EOF).
func (r *Reader) advance() error {
	for {
		cur := r.cursors[len(r.cursors)-1]
		pkt, err := cur.Next()
		if err == io.EOF {
			if len(r.cursors) == 1 {
				return io.EOF
			}
			r.cursors = r.cursors[:len(r.cursors)-1]
			continue
		}
		if err != nil {
			return err
		}

		switch p := pkt.(type) {
		case *packet.PKESK:
			r.pkesks = append(r.pkesks, p)
		case *packet.SKESK:
			r.skesks = append(r.skesks, p)
		case *packet.CompressedData:
			dc, err := p.Decompressor()
			if err != nil {
				return err
			}
			nc, err := cur.Recurse(dc)
			if err != nil {
				return err
			}
			r.cursors = append(r.cursors, nc)
		case *packet.SEIP:
			algo, key, err := r.resolveSessionKey()
			if err != nil {
				return err
			}
			sr := newSEIPReader(p, algo, key, r.opts.SymmetricFactory, r.opts.HashFactory)
			nc, err := cur.Recurse(sr)
			if err != nil {
				return err
			}
			r.cursors = append(r.cursors, nc)
		case *packet.AED:
			_, key, err := r.resolveSessionKey()
			if err != nil {
				return err
			}
			ar, err := newAEDReader(p, key, r.opts.AEADFactory)
			if err != nil {
				return err
			}
			nc, err := cur.Recurse(ar)
			if err != nil {
				return err
			}
			r.cursors = append(r.cursors, nc)
		case *packet.LiteralData:
			r.lit = bytes.NewReader(p.Body)
			return nil
		case *packet.Signature:
			r.sigs = append(r.sigs, verifyOnePass(cur, p, r.opts.Verification))
		}
		// OnePassSig packets need no explicit handling here: Cursor.Next
		// already ran its hashing side effect via observe.
	}
}

// resolveSessionKey invokes the caller's SecretKeyHelper over whatever
// PKESK/SKESK packets have been accumulated since the last container
// was entered, then clears them: any PKESK/SKESK following a container
// belongs to a deeper nested encryption layer, not this one.
func (r *Reader) resolveSessionKey() (openpgp.SymmetricAlgorithm, []byte, error) {
	if r.opts.SecretKey == nil {
		return 0, nil, openpgp.InvalidArgumentError("message is encrypted but no SecretKey helper was configured")
	}
	algo, key, ok, err := r.opts.SecretKey(r.pkesks, r.skesks)
	r.pkesks, r.skesks = nil, nil
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, openpgp.InvalidArgumentError("no usable decryption key or password")
	}
	return algo, key, nil
}
