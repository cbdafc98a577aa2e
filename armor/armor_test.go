package armor_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dirkz/sequoia-sub000/armor"
)

// TestRoundTripWorkedVector is spec §8 scenario 1: a 12-byte body
// armored as KindFile must produce this exact framing, byte for byte,
// and decode back to the original bytes.
func TestRoundTripWorkedVector(t *testing.T) {
	body := []byte("Hello world!")
	want := "-----BEGIN PGP ARMORED FILE-----\n" +
		"\n" +
		"SGVsbG8gd29ybGQh\n" +
		"=s4Gu\n" +
		"-----END PGP ARMORED FILE-----\n"

	var buf bytes.Buffer
	w := armor.NewWriter(&buf, armor.KindFile, nil)
	if _, err := w.Write(body); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.String() != want {
		t.Fatalf("armored output =\n%q\nwant\n%q", buf.String(), want)
	}

	kind := armor.KindFile
	res, err := armor.ReadArmored(&buf, armor.ModeStrict, &kind)
	if err != nil {
		t.Fatalf("ReadArmored: %v", err)
	}
	if res.Kind != armor.KindFile {
		t.Fatalf("Kind = %v, want KindFile", res.Kind)
	}
	if !bytes.Equal(res.Body, body) {
		t.Fatalf("Body = %q, want %q", res.Body, body)
	}
}

// TestCRC24OfEmptyString checks the spec-named boundary value
// (CRC-24 of the empty string is the algorithm's initial register,
// 0xB704CE) indirectly: an explicit zero-length Write starts framing
// with no body, so the trailer must encode 0xB704CE as base64.
func TestCRC24OfEmptyString(t *testing.T) {
	var buf bytes.Buffer
	w := armor.NewWriter(&buf, armor.KindFile, nil)
	if _, err := w.Write(nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := "-----BEGIN PGP ARMORED FILE-----\n" +
		"\n" +
		"=twTO\n" +
		"-----END PGP ARMORED FILE-----\n"
	if buf.String() != want {
		t.Fatalf("armored output =\n%q\nwant\n%q", buf.String(), want)
	}

	kind := armor.KindFile
	res, err := armor.ReadArmored(&buf, armor.ModeStrict, &kind)
	if err != nil {
		t.Fatalf("ReadArmored: %v", err)
	}
	if len(res.Body) != 0 {
		t.Fatalf("Body = %q, want empty", res.Body)
	}
}

// TestLineWrappingAt64Chars exercises the universal property that
// every body line of armored output carries at most 64 base64
// characters (spec §8's named invariant), using a body long enough to
// span several lines.
func TestLineWrappingAt64Chars(t *testing.T) {
	body := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 10)

	var buf bytes.Buffer
	w := armor.NewWriter(&buf, armor.KindMessage, nil)
	if _, err := w.Write(body); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	sawBodyLine := false
	for _, line := range lines {
		if strings.HasPrefix(line, "-----") || strings.HasPrefix(line, "=") || line == "" {
			continue
		}
		sawBodyLine = true
		if len(line) > 64 {
			t.Fatalf("body line %q exceeds 64 characters (%d)", line, len(line))
		}
	}
	if !sawBodyLine {
		t.Fatal("expected at least one base64 body line")
	}

	kind := armor.KindMessage
	res, err := armor.ReadArmored(&buf, armor.ModeStrict, &kind)
	if err != nil {
		t.Fatalf("ReadArmored: %v", err)
	}
	if !bytes.Equal(res.Body, body) {
		t.Fatal("round trip through a multi-line body did not reproduce the original bytes")
	}
}

// TestRoundTripArbitraryBytes exercises spec §8's general round-trip
// property (ArmorReader(ArmorWriter(b)) = b) across a handful of
// lengths that straddle the base64 3-byte group boundary.
func TestRoundTripArbitraryBytes(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 5, 6, 17, 100} {
		body := make([]byte, n)
		for i := range body {
			body[i] = byte(i * 7)
		}

		var buf bytes.Buffer
		w := armor.NewWriter(&buf, armor.KindSignature, []armor.Header{{Key: "Version", Value: "test"}})
		if _, err := w.Write(body); err != nil {
			t.Fatalf("n=%d: Write: %v", n, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("n=%d: Close: %v", n, err)
		}

		kind := armor.KindSignature
		res, err := armor.ReadArmored(&buf, armor.ModeStrict, &kind)
		if err != nil {
			t.Fatalf("n=%d: ReadArmored: %v", n, err)
		}
		if !bytes.Equal(res.Body, body) {
			t.Fatalf("n=%d: round trip mismatch: got %x want %x", n, res.Body, body)
		}
		if len(res.Headers) != 1 || res.Headers[0].Key != "Version" || res.Headers[0].Value != "test" {
			t.Fatalf("n=%d: headers not preserved: %+v", n, res.Headers)
		}
	}
}

// TestWriterEmitsNothingWithoutWrite is the spec's carve-out: a Writer
// that is only Closed, never Written to (not even a zero-length
// Write), emits no framing at all.
func TestWriterEmitsNothingWithoutWrite(t *testing.T) {
	var buf bytes.Buffer
	w := armor.NewWriter(&buf, armor.KindFile, nil)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

// TestBadCRCIsRejected corrupts the trailer of a well-formed armor
// block and checks the reader reports ErrBadCRC rather than silently
// accepting a mismatched body.
func TestBadCRCIsRejected(t *testing.T) {
	var buf bytes.Buffer
	w := armor.NewWriter(&buf, armor.KindFile, nil)
	if _, err := w.Write([]byte("Hello world!")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	corrupted := strings.Replace(buf.String(), "=s4Gu", "=AAAA", 1)
	kind := armor.KindFile
	_, err := armor.ReadArmored(strings.NewReader(corrupted), armor.ModeStrict, &kind)
	if err != armor.ErrBadCRC {
		t.Fatalf("ReadArmored = %v, want ErrBadCRC", err)
	}
}
