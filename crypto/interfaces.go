// Package crypto declares the narrow interfaces through which the
// core (armor, packet, cert, serialize/stream, parse/stream) consumes
// cryptographic primitives. Spec §6 places the primitives themselves
// out of scope; this package is the contract, not an implementation.
// See package crypto/std for a reference backend.
package crypto

// Hash is a streaming hash context, mirroring stdlib hash.Hash but
// kept as its own interface so callers needn't import crypto/*
// packages to satisfy it.
type Hash interface {
	Write(p []byte) (int, error)
	// Sum appends the current hash to b and returns the resulting
	// slice, without mutating the underlying state (matches
	// hash.Hash.Sum's contract).
	Sum(b []byte) []byte
	Reset()
	Size() int
	Algo() int
}

// HashFactory constructs a fresh Hash for the given OpenPGP hash
// algorithm ID, or an error if unsupported.
type HashFactory func(algo int) (Hash, error)

// SymmetricCipher is a block cipher used in OpenPGP's CFB framing
// (SEIP) and in secret-key packet string-to-key protection.
type SymmetricCipher interface {
	KeySize() int
	BlockSize() int
	NewCFBEncrypter(iv []byte) CipherStream
	NewCFBDecrypter(iv []byte) CipherStream
}

// CipherStream is a keystream cipher (block cipher in CFB mode, in
// this module's usage).
type CipherStream interface {
	XORKeyStream(dst, src []byte)
}

// SymmetricFactory constructs a SymmetricCipher bound to key for the
// given OpenPGP symmetric algorithm ID.
type SymmetricFactory func(algo int, key []byte) (SymmetricCipher, error)

// AEAD is an authenticated-encryption-with-associated-data primitive,
// used by the AED container (spec §4.2, §4.8, §4.9).
type AEAD interface {
	IVSize() int
	TagSize() int
	Seal(nonce, aad, plaintext []byte) (ciphertext []byte)
	Open(nonce, aad, ciphertextAndTag []byte) (plaintext []byte, err error)
}

// AEADFactory constructs an AEAD bound to key for the given OpenPGP
// AEAD algorithm ID and underlying symmetric algorithm ID.
type AEADFactory func(aeadAlgo, symmetricAlgo int, key []byte) (AEAD, error)

// SignerKey produces a signature over a digest already computed by
// the caller (the packet layer owns the hash-trailer construction; see
// spec §4.4).
type SignerKey interface {
	// Sign returns the algorithm-specific MPI encoding of the
	// signature over digest (which was hashed with the algorithm named
	// by hashAlgo).
	Sign(digest []byte, hashAlgo int) (mpis [][]byte, err error)
	PublicKeyAlgo() int
}

// VerifierKey verifies a signature produced by the corresponding
// SignerKey.
type VerifierKey interface {
	Verify(digest []byte, hashAlgo int, mpis [][]byte) (ok bool, err error)
	PublicKeyAlgo() int
}

// PKEncryption encrypts a session key to a recipient's public key for
// a PKESK packet.
type PKEncryption interface {
	Encrypt(sessionKey []byte, rand Random) (mpis [][]byte, err error)
	PublicKeyAlgo() int
}

// PKDecryption decrypts a PKESK's MPIs back into a session key.
type PKDecryption interface {
	Decrypt(mpis [][]byte) (sessionKey []byte, err error)
	PublicKeyAlgo() int
}

// Random is a cryptographically secure random source (spec §5
// "Randomness").
type Random interface {
	Fill(buf []byte) error
}
