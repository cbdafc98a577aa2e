package openpgp

import "fmt"

// StructuralError indicates a structural violation in packet bytes:
// spec error kind MalformedPacket.
type StructuralError string

func (e StructuralError) Error() string {
	return "openpgp: malformed packet: " + string(e)
}

// UnsupportedError indicates an unknown or unsupported algorithm,
// packet version, or feature: spec error kinds UnsupportedPacketVersion
// and UnsupportedAlgorithm.
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return "openpgp: unsupported: " + string(e)
}

// SignatureError indicates that signature verification failed: spec
// error kind InvalidSignature.
type SignatureError string

func (e SignatureError) Error() string {
	return "openpgp: invalid signature: " + string(e)
}

// InvalidArgumentError indicates caller misuse, such as building an
// encryptor with no recipients: spec error kind InvalidArgument.
type InvalidArgumentError string

func (e InvalidArgumentError) Error() string {
	return "openpgp: invalid argument: " + string(e)
}

// PolicyError indicates that the injected Policy rejected a primitive
// at the time it was used: spec error kind PolicyRejected. No code in
// this module constructs it; canonicalization and primary-signature
// selection consult only Policy.HashCutoff.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("openpgp: policy rejected: %s", e.Reason)
}

// MalformedCertError indicates a keyring was read where a single Cert
// was expected, or that a merge was attempted between Certs with
// different primary fingerprints.
type MalformedCertError string

func (e MalformedCertError) Error() string {
	return "openpgp: malformed cert: " + string(e)
}

// IntegrityError is returned once a streaming decryptor/verifier has
// detected a failed MDC or AEAD tag check; per spec §7 and §4.9 it
// latches: once returned, every subsequent read on the same stream
// must also return an error.
type IntegrityError string

func (e IntegrityError) Error() string {
	return "openpgp: integrity check failed: " + string(e)
}

// ErrNoBindingSignature reports that no self-signature is live at a
// requested reference time. No accessor in this module returns it:
// cert.ActivePrimarySignature reports that case as a PrimarySelection
// with a nil Signature and a nil error.
type ErrNoBindingSignature struct{}

func (ErrNoBindingSignature) Error() string {
	return "openpgp: no binding signature at reference time"
}
