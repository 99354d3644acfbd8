package ar

import (
	"log/slog"

	"golang.org/x/text/encoding"
)

// Option configures an Archive.
type Option func(*Archive)

// WithFormat chooses the format for an archive being built. Loading an
// existing stream overrides it with the detected format.
func WithFormat(v Variant) Option {
	return func(a *Archive) {
		a.variant = v
		a.variantKnown = true
	}
}

// WithLogger sets the structured logger used for debug tracing of loads,
// saves and member classification. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithEncoding sets the text encoding used to convert member name bytes to
// and from logical names. The default passes name bytes through unchanged,
// which is 8-bit clean.
func WithEncoding(enc encoding.Encoding) Option {
	return func(a *Archive) {
		a.enc = enc
	}
}
