package stream

import (
	"bytes"
	"io"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/armor"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// ClearsignOptions configures a Clearsign filter (spec Supplement C.1).
type ClearsignOptions struct {
	Key               crypto.SignerKey
	HashAlgo          openpgp.HashAlgorithm
	Issuer            openpgp.KeyID
	IssuerFingerprint openpgp.Fingerprint
	Created           time.Time
	HashFactory       crypto.HashFactory
}

var clearsignHashNames = map[openpgp.HashAlgorithm]string{
	openpgp.HashMD5:      "MD5",
	openpgp.HashSHA1:     "SHA1",
	openpgp.HashSHA256:   "SHA256",
	openpgp.HashSHA384:   "SHA384",
	openpgp.HashSHA512:   "SHA512",
	openpgp.HashSHA224:   "SHA224",
	openpgp.HashSHA3_256: "SHA3-256",
	openpgp.HashSHA3_512: "SHA3-512",
}

// Clearsign produces an RFC 4880 §7 cleartext signature framework
// stream: everything written to it is copied out dash-escaped and
// CRLF-normalized, bracketed ahead of time by the
// "-----BEGIN PGP SIGNED MESSAGE-----"/"Hash:" header and, on Finalize,
// followed by an ASCII-armored detached signature over the
// line-by-line canonicalized text (trailing whitespace stripped, lines
// joined by CRLF, no trailing newline hashed). Grounded on the
// teacher's own Clearsign method in signkey.go, generalized from its
// single hardcoded SHA-256 signer to whatever SignerKey/HashAlgo this
// filter is configured with, and from its one-shot io.Pipe goroutine to
// the Filter interface's incremental Write/Finalize shape.
type Clearsign struct {
	sink  io.Writer
	opts  ClearsignOptions
	hash  crypto.Hash
	buf   []byte
	first bool
}

// NewClearsign starts a Clearsign filter, immediately writing the
// cleartext header into sink.
func NewClearsign(sink io.Writer, opts ClearsignOptions) (*Clearsign, error) {
	if opts.Created.IsZero() {
		opts.Created = time.Now()
	}
	if opts.HashAlgo == 0 {
		opts.HashAlgo = openpgp.HashSHA256
	}
	h, err := opts.HashFactory(int(opts.HashAlgo))
	if err != nil {
		return nil, err
	}
	name, ok := clearsignHashNames[opts.HashAlgo]
	if !ok {
		return nil, openpgp.UnsupportedError("hash algorithm has no registered cleartext armor header name")
	}
	if _, err := sink.Write([]byte("-----BEGIN PGP SIGNED MESSAGE-----\nHash: " + name + "\n\n")); err != nil {
		return nil, err
	}
	return &Clearsign{sink: sink, opts: opts, hash: h, first: true}, nil
}

// Write buffers p until complete lines accumulate; each complete line
// is canonicalized, hashed, and emitted dash-escaped as it's found.
func (c *Clearsign) Write(p []byte) (int, error) {
	total := len(p)
	c.buf = append(c.buf, p...)
	for {
		i := bytes.IndexByte(c.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(c.buf[:i], "\r")
		if err := c.emitLine(line); err != nil {
			return 0, err
		}
		c.buf = c.buf[i+1:]
	}
	return total, nil
}

func (c *Clearsign) emitLine(line []byte) error {
	line = trimTrailingWhitespace(line)
	if !c.first {
		c.hash.Write([]byte("\r\n"))
	}
	c.first = false
	c.hash.Write(line)

	out := make([]byte, 0, len(line)+4)
	if len(line) > 0 && line[0] == '-' {
		out = append(out, '-', ' ')
	}
	out = append(out, line...)
	out = append(out, '\r', '\n')
	_, err := c.sink.Write(out)
	return err
}

func trimTrailingWhitespace(line []byte) []byte {
	i := len(line)
	for i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
		i--
	}
	return line[:i]
}

// Finalize flushes any unterminated trailing line, then writes the
// ASCII-armored detached signature and returns the inner sink.
func (c *Clearsign) Finalize() (io.Writer, error) {
	if len(c.buf) > 0 {
		if err := c.emitLine(c.buf); err != nil {
			return nil, err
		}
		c.buf = nil
	}

	b := packet.NewBuilder(packet.SigTypeText, openpgp.PublicKeyAlgorithm(c.opts.Key.PublicKeyAlgo()), c.opts.HashAlgo)
	sig, err := b.FinalizeWithHash(c.opts.Key, c.opts.Issuer, c.opts.IssuerFingerprint, c.hash, c.opts.Created)
	if err != nil {
		return nil, err
	}
	body := sig.PacketBody()

	var buf bytes.Buffer
	if err := packet.WriteHeader(&buf, packet.TagSignature, int64(len(body))); err != nil {
		return nil, err
	}
	buf.Write(body)

	aw := armor.NewWriter(c.sink, armor.KindSignature, nil)
	if _, err := aw.Write(buf.Bytes()); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	return c.sink, nil
}
