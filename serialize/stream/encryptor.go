package stream

import (
	"encoding/binary"
	"io"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// Recipient configures one public-key recipient of an Encryptor filter.
type Recipient struct {
	Key   crypto.PKEncryption
	KeyID openpgp.KeyID // defaults to openpgp.WildcardKeyID (hidden recipient) if nil

	// HasChecksum selects the RFC 4880 §5.1 "algorithm octet, session
	// key, two-octet checksum" shape used by classical algorithms such
	// as RSA, versus the bare "algorithm octet, session key" shape an
	// AEAD-style key wrap (ECDH) already authenticates on its own.
	HasChecksum bool
}

// EncryptorOptions configures an Encryptor filter (spec §4.8).
type EncryptorOptions struct {
	Recipients []Recipient
	Passwords  [][]byte

	SymmetricAlgo openpgp.SymmetricAlgorithm
	AEADAlgo      openpgp.AEADAlgorithm // zero selects SEIP+MDC instead of AED

	SymmetricFactory crypto.SymmetricFactory
	AEADFactory      crypto.AEADFactory
	HashFactory      crypto.HashFactory // only used to build the SEIP path's SHA-1 MDC context
	Rand             crypto.Random

	// S2KHashAlgo/S2KCount configure the iterated-and-salted S2K (mode
	// 3) protecting each password's SKESK packet. Default to SHA-256
	// and a generous fixed count, matching the teacher's own choice of
	// a single hardcoded S2K shape in signkey.go rather than surfacing
	// every S2K knob.
	S2KHashAlgo int
	S2KCount    byte
}

// aedChunkSizeOct encodes a fixed 4096-byte plaintext chunk size
// (2^(c+6) with c=6), the size spec §4.8 names for the AED container.
const aedChunkSizeOct = 6

// Encryptor is the terminal filter of a message: it emits one PKESK
// per recipient and one SKESK per password, then a SEIP or AED
// container whose body is everything written to it afterward (spec
// §4.8). Grounded in RFC 4880 §5.1/§5.3/§5.13 and crypto-refresh
// §5.16, generalized the way Signer generalizes the teacher's one-shot
// signature construction to a streamed payload: the teacher never
// encrypts messages itself, so this filter follows the packet formats
// directly rather than any one teacher method.
type Encryptor struct {
	sink io.Writer
	opts EncryptorOptions

	sessionKey []byte

	seip *seipState
	aed  *aedState
}

type seipState struct {
	body   io.WriteCloser
	stream crypto.CipherStream
	mdc    crypto.Hash
}

type aedState struct {
	aead      crypto.AEAD
	iv        []byte
	chunkSize int
	assocData []byte
	sink      io.WriteCloser

	buf      []byte
	chunkIdx uint64
	total    uint64
}

// NewEncryptor starts an Encryptor filter writing into sink.
func NewEncryptor(sink io.Writer, opts EncryptorOptions) (*Encryptor, error) {
	if len(opts.Recipients) == 0 && len(opts.Passwords) == 0 {
		return nil, openpgp.InvalidArgumentError("encryptor filter requires at least one recipient or password")
	}
	if opts.S2KHashAlgo == 0 {
		opts.S2KHashAlgo = int(openpgp.HashSHA256)
	}
	if opts.S2KCount == 0 {
		opts.S2KCount = 0x60
	}

	keySize, err := packet.SymmetricKeySize(opts.SymmetricAlgo)
	if err != nil {
		return nil, err
	}

	e := &Encryptor{sink: sink, opts: opts, sessionKey: make([]byte, keySize)}
	if err := opts.Rand.Fill(e.sessionKey); err != nil {
		return nil, err
	}

	for _, r := range opts.Recipients {
		if err := e.writePKESK(r, keySize); err != nil {
			return nil, err
		}
	}
	for _, pw := range opts.Passwords {
		if err := e.writeSKESK(pw, keySize); err != nil {
			return nil, err
		}
	}

	if opts.AEADAlgo == 0 {
		if err := e.startSEIP(); err != nil {
			return nil, err
		}
	} else {
		if err := e.startAED(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Encryptor) writePKESK(r Recipient, keySize int) error {
	keyID := r.KeyID
	if keyID == nil {
		keyID = openpgp.WildcardKeyID
	}
	quantity := make([]byte, 0, 1+keySize+2)
	quantity = append(quantity, byte(e.opts.SymmetricAlgo))
	quantity = append(quantity, e.sessionKey...)
	if r.HasChecksum {
		var sum uint16
		for _, b := range e.sessionKey {
			sum += uint16(b)
		}
		quantity = append(quantity, byte(sum>>8), byte(sum))
	}
	mpis, err := r.Key.Encrypt(quantity, e.opts.Rand)
	if err != nil {
		return err
	}
	pk := &packet.PKESK{
		Version: 3,
		KeyID:   keyID,
		Algo:    openpgp.PublicKeyAlgorithm(r.Key.PublicKeyAlgo()),
		MPIs:    mpis,
	}
	return writePacket(e.sink, packet.TagPKESK, pk.PacketBody())
}

func (e *Encryptor) writeSKESK(passphrase []byte, keySize int) error {
	salt := make([]byte, 8)
	if err := e.opts.Rand.Fill(salt); err != nil {
		return err
	}
	s2k := packet.S2K{Mode: 3, HashAlgo: e.opts.S2KHashAlgo, Salt: salt, Count: e.opts.S2KCount, CipherKeySize: keySize}
	derived, err := s2k.DeriveKey(passphrase)
	if err != nil {
		return err
	}

	if e.opts.AEADAlgo == 0 {
		cipher, err := e.opts.SymmetricFactory(int(e.opts.SymmetricAlgo), derived)
		if err != nil {
			return err
		}
		iv := make([]byte, cipher.BlockSize())
		stream := cipher.NewCFBEncrypter(iv)
		plain := append([]byte{byte(e.opts.SymmetricAlgo)}, e.sessionKey...)
		enc := make([]byte, len(plain))
		stream.XORKeyStream(enc, plain)
		sk := &packet.SKESK{Version: 4, SymAlgo: e.opts.SymmetricAlgo, S2K: s2k, EncryptedData: enc}
		return writePacket(e.sink, packet.TagSKESK, sk.PacketBody())
	}

	aead, err := e.opts.AEADFactory(int(e.opts.AEADAlgo), int(e.opts.SymmetricAlgo), derived)
	if err != nil {
		return err
	}
	iv := make([]byte, aead.IVSize())
	if err := e.opts.Rand.Fill(iv); err != nil {
		return err
	}
	ad := []byte{0xC3, 6, byte(e.opts.SymmetricAlgo), byte(e.opts.AEADAlgo)}
	ct := aead.Seal(iv, ad, e.sessionKey)
	sk := &packet.SKESK{Version: 6, SymAlgo: e.opts.SymmetricAlgo, AEADAlgo: e.opts.AEADAlgo, S2K: s2k, IV: iv, EncryptedData: ct}
	return writePacket(e.sink, packet.TagSKESK, sk.PacketBody())
}

func writePacket(w io.Writer, tag packet.Tag, body []byte) error {
	if err := packet.WriteHeader(w, tag, int64(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// startSEIP writes the SEIP container header, the CFB quick-check
// prefix (blockSize random octets plus the last two repeated, RFC 4880
// §5.13; no CFB resynchronization), and starts the running MDC hash
// over that prefix.
func (e *Encryptor) startSEIP() error {
	body := packet.NewPartialBodyWriter(e.sink, packet.TagSEIP, 13)
	if _, err := body.Write([]byte{1}); err != nil {
		return err
	}
	cipher, err := e.opts.SymmetricFactory(int(e.opts.SymmetricAlgo), e.sessionKey)
	if err != nil {
		return err
	}
	bs := cipher.BlockSize()
	prefix := make([]byte, bs+2)
	if err := e.opts.Rand.Fill(prefix[:bs]); err != nil {
		return err
	}
	prefix[bs] = prefix[bs-2]
	prefix[bs+1] = prefix[bs-1]

	iv := make([]byte, bs)
	stream := cipher.NewCFBEncrypter(iv)
	mdcHash, err := e.opts.HashFactory(int(openpgp.HashSHA1))
	if err != nil {
		return err
	}
	mdcHash.Write(prefix)

	enc := make([]byte, len(prefix))
	stream.XORKeyStream(enc, prefix)
	if _, err := body.Write(enc); err != nil {
		return err
	}
	e.seip = &seipState{body: body, stream: stream, mdc: mdcHash}
	return nil
}

func (e *Encryptor) startAED() error {
	aead, err := e.opts.AEADFactory(int(e.opts.AEADAlgo), int(e.opts.SymmetricAlgo), e.sessionKey)
	if err != nil {
		return err
	}
	iv := make([]byte, aead.IVSize())
	if err := e.opts.Rand.Fill(iv); err != nil {
		return err
	}
	hdr := &packet.AED{Version: 1, SymAlgo: e.opts.SymmetricAlgo, AEADAlgo: e.opts.AEADAlgo, ChunkSizeOct: aedChunkSizeOct, IV: iv}
	body := packet.NewPartialBodyWriter(e.sink, packet.TagAED, 13)
	if _, err := body.Write([]byte{byte(hdr.Version), byte(hdr.SymAlgo), byte(hdr.AEADAlgo), hdr.ChunkSizeOct}); err != nil {
		return err
	}
	if _, err := body.Write(iv); err != nil {
		return err
	}
	e.aed = &aedState{
		aead:      aead,
		iv:        iv,
		chunkSize: hdr.ChunkSize(),
		assocData: hdr.AssociatedData(),
		sink:      body,
	}
	return nil
}

func (e *Encryptor) Write(p []byte) (int, error) {
	if e.seip != nil {
		e.seip.mdc.Write(p)
		enc := make([]byte, len(p))
		e.seip.stream.XORKeyStream(enc, p)
		if _, err := e.seip.body.Write(enc); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return e.aed.write(p)
}

func (a *aedState) nonce(idx uint64) []byte {
	n := append([]byte(nil), a.iv...)
	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], idx)
	off := len(n) - 8
	for i := 0; i < 8; i++ {
		n[off+i] ^= idxBytes[i]
	}
	return n
}

func (a *aedState) write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		room := a.chunkSize - len(a.buf)
		n := room
		if n > len(p) {
			n = len(p)
		}
		a.buf = append(a.buf, p[:n]...)
		p = p[n:]
		if len(a.buf) == a.chunkSize {
			if err := a.flush(false); err != nil {
				return 0, err
			}
		}
	}
	return total, nil
}

// flush seals the currently buffered chunk. The final call (final
// true) seals an empty-plaintext chunk whose associated data carries
// the total plaintext length, authenticating that no chunk was
// dropped from the end of the stream (crypto-refresh §5.16.1).
func (a *aedState) flush(final bool) error {
	ad := a.assocData
	if final {
		var lenBytes [8]byte
		binary.BigEndian.PutUint64(lenBytes[:], a.total)
		ad = append(append([]byte(nil), a.assocData...), lenBytes[:]...)
	}
	ct := a.aead.Seal(a.nonce(a.chunkIdx), ad, a.buf)
	if _, err := a.sink.Write(ct); err != nil {
		return err
	}
	a.total += uint64(len(a.buf))
	a.chunkIdx++
	a.buf = a.buf[:0]
	return nil
}

func (e *Encryptor) Finalize() (io.Writer, error) {
	if e.seip != nil {
		e.seip.mdc.Write(packet.MDCHeader[:])
		digest := e.seip.mdc.Sum(nil)
		mdcPlain := append(append([]byte(nil), packet.MDCHeader[:]...), digest...)
		enc := make([]byte, len(mdcPlain))
		e.seip.stream.XORKeyStream(enc, mdcPlain)
		if _, err := e.seip.body.Write(enc); err != nil {
			return nil, err
		}
		if err := e.seip.body.Close(); err != nil {
			return nil, err
		}
		return e.sink, nil
	}

	if len(e.aed.buf) > 0 {
		if err := e.aed.flush(false); err != nil {
			return nil, err
		}
	}
	if err := e.aed.flush(true); err != nil {
		return nil, err
	}
	if err := e.aed.sink.Close(); err != nil {
		return nil, err
	}
	return e.sink, nil
}
