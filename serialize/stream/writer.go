// Package stream implements the streaming OpenPGP message writer (spec
// §4.8): a stack of composable filters, each owning the sink directly
// beneath it, transforming bytes written at the top on their way down
// to the ultimate byte sink. Grounded on
// original_source/openpgp/src/serialize/stream.rs's filter-stack
// design, re-expressed the way the teacher builds up a signature or
// key packet incrementally in signkey.go rather than in one shot.
package stream

import "io"

// Filter is one layer of the writer stack. Writing to a Filter
// transforms the bytes and forwards them (immediately or, for
// buffering filters like the compressor, eventually) to the sink it
// was constructed with. Finalize flushes whatever trailer this layer
// owes the wire format (a signature, an MDC, an armor footer, ...) and
// returns the sink one layer down, so the caller can keep unwinding the
// stack without needing to remember its shape.
type Filter interface {
	io.Writer

	// Finalize completes this filter only: it must not recurse into
	// whatever it wraps. The returned io.Writer is the next filter down
	// (itself also possibly a Filter, for Finalize to detect via type
	// assertion) or a bare io.Writer if this was the bottom of the
	// stack.
	Finalize() (io.Writer, error)
}

// Finalize drains the whole stack starting at top: it repeatedly calls
// Finalize on each layer until it reaches something that isn't a
// Filter (the ultimate byte sink, or an io.Writer a caller supplied
// directly). A writer stack that is simply dropped without calling
// Finalize may leave a truncated message on the wire (no trailing
// signature, no MDC, no armor footer) — spec §4.8 calls this a caller
// error, not something this package guards against.
func Finalize(top io.Writer) error {
	next := top
	for {
		f, ok := next.(Filter)
		if !ok {
			return nil
		}
		n, err := f.Finalize()
		if err != nil {
			return err
		}
		if n == nil {
			return nil
		}
		next = n
	}
}
