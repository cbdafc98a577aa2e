// Package openpgp implements the core of an OpenPGP (RFC 4880) toolkit:
// ASCII armor, a streaming packet parser, a canonicalized certificate
// model, and a streaming message-building pipeline layering
// compression, signing and encryption.
//
// Raw cryptographic primitives (hashing, symmetric ciphers, AEAD,
// public-key operations) are consumed through the narrow interfaces in
// package crypto; this package and its siblings never perform crypto
// directly. See package crypto/std for a reference backend.
package openpgp
