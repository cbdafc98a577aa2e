package stream_test

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/armor"
	"github.com/dirkz/sequoia-sub000/crypto/std"
	"github.com/dirkz/sequoia-sub000/packet"
	"github.com/dirkz/sequoia-sub000/serialize/stream"
)

func genEd25519(t *testing.T, seedByte byte) (ed25519.PrivateKey, ed25519.PublicKey) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey)
}

// TestSignedLiteralMessageRoundTrip builds a full Literal+Signer+Armor
// stack, then parses the result back through the packet Cursor's
// one-pass-signature hashing side effects and verifies the signature,
// exercising the whole write path against the whole read path.
func TestSignedLiteralMessageRoundTrip(t *testing.T) {
	priv, pub := genEd25519(t, 7)
	issuerID := openpgp.KeyID([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	az := stream.NewArmor(&out, armor.KindMessage, nil)
	signer, err := stream.NewSigner(az, stream.SignerOptions{
		Keys: []stream.SigningKey{{
			Key:      &std.Ed25519Signer{Priv: priv},
			HashAlgo: openpgp.HashSHA256,
			Issuer:   issuerID,
		}},
		Created:     created,
		HashFactory: std.NewHash,
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	lit, err := stream.NewLiteral(signer, stream.LiteralOptions{FileName: "msg.txt", Created: created})
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}

	payload := []byte("hello, openpgp")
	if _, err := lit.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := stream.Finalize(lit); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	res, err := armor.ReadArmored(bytes.NewReader(out.Bytes()), armor.ModeStrict, nil)
	if err != nil {
		t.Fatalf("ReadArmored: %v", err)
	}
	if res.Kind != armor.KindMessage {
		t.Fatalf("kind = %v, want KindMessage", res.Kind)
	}

	cursor := packet.NewCursor(bytes.NewReader(res.Body), std.NewHash)
	var gotLiteral *packet.LiteralData
	var gotSig *packet.Signature
	for {
		pkt, err := cursor.Next()
		if err != nil {
			break
		}
		switch p := pkt.(type) {
		case *packet.OnePassSig:
			if p.Nested {
				t.Fatalf("single signer's one-pass packet must not be nested")
			}
		case *packet.LiteralData:
			gotLiteral = p
		case *packet.Signature:
			gotSig = p
		}
	}
	if gotLiteral == nil || !bytes.Equal(gotLiteral.Body, payload) {
		t.Fatalf("literal payload mismatch: %+v", gotLiteral)
	}
	if gotSig == nil {
		t.Fatal("no signature packet parsed")
	}
	digest, ok := cursor.FinalizeOnePass(gotSig)
	if !ok {
		t.Fatal("no matching one-pass hash for signature")
	}
	if err := gotSig.Verify(digest, &std.Ed25519Verifier{Pub: pub}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestCompressorZLIBRoundTrip(t *testing.T) {
	var out bytes.Buffer
	c, err := stream.NewCompressor(&out, packet.CompressionZLIB, 6)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	payload := bytes.Repeat([]byte("compress me please "), 50)
	if _, err := c.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := stream.Finalize(c); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	cursor := packet.NewCursor(bytes.NewReader(out.Bytes()), nil)
	pkt, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	cd, ok := pkt.(*packet.CompressedData)
	if !ok {
		t.Fatalf("got %T, want *packet.CompressedData", pkt)
	}
	if cd.Algo != packet.CompressionZLIB {
		t.Fatalf("algo = %v, want ZLIB", cd.Algo)
	}
	r, err := cd.Decompressor()
	if err != nil {
		t.Fatalf("Decompressor: %v", err)
	}
	var got bytes.Buffer
	if _, err := got.ReadFrom(r); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if !bytes.Equal(got.Bytes(), payload) {
		t.Fatalf("decompressed mismatch: got %d bytes, want %d", got.Len(), len(payload))
	}
}

func TestCompressorBZip2Unsupported(t *testing.T) {
	var out bytes.Buffer
	if _, err := stream.NewCompressor(&out, packet.CompressionBZip2, 0); err == nil {
		t.Fatal("expected error constructing a BZip2 compressor")
	}
}

func TestPadderAppendsPaddingPacket(t *testing.T) {
	var out bytes.Buffer
	p := stream.NewPadder(&out, func(n int64) int64 { return n + 5 }, std.Random{})
	if _, err := p.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := stream.Finalize(p); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("hello")) {
		t.Fatalf("padded output does not start with the plaintext")
	}
	cursor := packet.NewCursor(bytes.NewReader(out.Bytes()[5:]), nil)
	pkt, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if pkt.Tag() != packet.TagPadding {
		t.Fatalf("tag = %v, want Padding", pkt.Tag())
	}
	if len(pkt.PacketBody()) != 5 {
		t.Fatalf("padding length = %d, want 5", len(pkt.PacketBody()))
	}
}

func TestPADMENeverShrinks(t *testing.T) {
	for _, n := range []int64{0, 1, 2, 100, 1000, 65536, 1 << 20} {
		if got := stream.PADME(n); got < n {
			t.Fatalf("PADME(%d) = %d, shrank the length", n, got)
		}
	}
}

func TestEncryptorSEIPPasswordRoundTrip(t *testing.T) {
	password := []byte("correct horse battery staple")
	var out bytes.Buffer
	enc, err := stream.NewEncryptor(&out, stream.EncryptorOptions{
		Passwords:        [][]byte{password},
		SymmetricAlgo:    openpgp.SymmetricAES256,
		SymmetricFactory: std.NewSymmetricCipher,
		HashFactory:      std.NewHash,
		Rand:             std.Random{},
	})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	payload := []byte("a secret literal data packet body")
	if _, err := enc.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := stream.Finalize(enc); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	cursor := packet.NewCursor(bytes.NewReader(out.Bytes()), nil)
	pkt, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next (SKESK): %v", err)
	}
	sk, ok := pkt.(*packet.SKESK)
	if !ok {
		t.Fatalf("got %T, want *packet.SKESK", pkt)
	}
	algo, sessionKey, err := sk.DecryptSessionKey(password, std.NewSymmetricCipher)
	if err != nil {
		t.Fatalf("DecryptSessionKey: %v", err)
	}
	if algo != openpgp.SymmetricAES256 {
		t.Fatalf("algo = %v, want AES256", algo)
	}

	pkt, err = cursor.Next()
	if err != nil {
		t.Fatalf("Next (SEIP): %v", err)
	}
	seip, ok := pkt.(*packet.SEIP)
	if !ok {
		t.Fatalf("got %T, want *packet.SEIP", pkt)
	}

	cipher, err := std.NewSymmetricCipher(int(algo), sessionKey)
	if err != nil {
		t.Fatalf("NewSymmetricCipher: %v", err)
	}
	bs := cipher.BlockSize()
	iv := make([]byte, bs)
	cfb := cipher.NewCFBDecrypter(iv)
	encBody := seip.EncryptedBody()
	plain := make([]byte, len(encBody))
	cfb.XORKeyStream(plain, encBody)

	prefix := plain[:bs+2]
	if prefix[bs] != prefix[bs-2] || prefix[bs+1] != prefix[bs-1] {
		t.Fatal("CFB quick-check bytes do not match")
	}
	rest := plain[bs+2:]
	if len(rest) < 22 {
		t.Fatalf("decrypted body too short for a trailing MDC packet: %d", len(rest))
	}
	gotPayload := rest[:len(rest)-22]
	mdcBytes := rest[len(rest)-22:]
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("decrypted payload = %q, want %q", gotPayload, payload)
	}

	h, err := std.NewHash(int(openpgp.HashSHA1))
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	h.Write(prefix)
	h.Write(gotPayload)
	h.Write(mdcBytes[:2])
	digest := h.Sum(nil)
	if !bytes.Equal(digest, mdcBytes[2:]) {
		t.Fatal("MDC digest mismatch")
	}
}

func TestClearsignDashEscapesAndHashesNormalizedLines(t *testing.T) {
	priv, pub := genEd25519(t, 42)
	issuerID := openpgp.KeyID([]byte{8, 7, 6, 5, 4, 3, 2, 1})
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	cs, err := stream.NewClearsign(&out, stream.ClearsignOptions{
		Key:         &std.Ed25519Signer{Priv: priv},
		HashAlgo:    openpgp.HashSHA256,
		Issuer:      issuerID,
		Created:     created,
		HashFactory: std.NewHash,
	})
	if err != nil {
		t.Fatalf("NewClearsign: %v", err)
	}
	if _, err := cs.Write([]byte("-hello\ntrailing space   \nworld\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := stream.Finalize(cs); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	text := out.String()
	if !bytes.Contains(out.Bytes(), []byte("-----BEGIN PGP SIGNED MESSAGE-----\nHash: SHA256\n\n")) {
		t.Fatalf("missing cleartext header: %q", text)
	}
	if !bytes.Contains(out.Bytes(), []byte("- -hello\r\n")) {
		t.Fatalf("dash line not escaped: %q", text)
	}
	if !bytes.Contains(out.Bytes(), []byte("trailing space\r\n")) {
		t.Fatalf("trailing whitespace not stripped: %q", text)
	}
	if !bytes.Contains(out.Bytes(), []byte("-----BEGIN PGP SIGNATURE-----")) {
		t.Fatalf("missing trailing signature armor: %q", text)
	}

	sigStart := bytes.Index(out.Bytes(), []byte("-----BEGIN PGP SIGNATURE-----"))
	res, err := armor.ReadArmored(bytes.NewReader(out.Bytes()[sigStart:]), armor.ModeStrict, nil)
	if err != nil {
		t.Fatalf("ReadArmored: %v", err)
	}
	cursor := packet.NewCursor(bytes.NewReader(res.Body), nil)
	pkt, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	sig, ok := pkt.(*packet.Signature)
	if !ok {
		t.Fatalf("got %T, want *packet.Signature", pkt)
	}

	h, err := std.NewHash(int(openpgp.HashSHA256))
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	h.Write([]byte("-hello"))
	h.Write([]byte("\r\n"))
	h.Write([]byte("trailing space"))
	h.Write([]byte("\r\n"))
	h.Write([]byte("world"))
	h.Write(sig.DataToHash())
	digest := h.Sum(nil)
	if err := sig.Verify(digest, &std.Ed25519Verifier{Pub: pub}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
