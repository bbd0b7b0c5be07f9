// Package diag provides the error taxonomy and structured logging shared
// by every stage of the metallib transcoder: bit cursor, bitstream parser,
// AIR decoder, SPIR-V builder, and lowering.
package diag

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Sentinel errors for the four-way taxonomy the decoder surfaces.
// Every package-level error wraps one of these via fmt.Errorf("%w: ...", ...)
// so callers can classify failures with errors.Is regardless of which
// layer produced them.
var (
	// ErrTruncated is returned when a read runs past the end of the
	// backing buffer or a declared block length overruns it.
	ErrTruncated = errors.New("truncated or out-of-bounds read")

	// ErrMalformedStream is returned for structurally invalid bitcode:
	// bad abbreviation shapes, unknown reserved ids, scope underflow.
	ErrMalformedStream = errors.New("malformed bitcode stream")

	// ErrSemanticMismatch is returned when a record code is unrecognized
	// for its enclosing block, or a reference never resolves.
	ErrSemanticMismatch = errors.New("semantic mismatch")

	// ErrLoweringGap is returned when an AIR type, constant, or
	// instruction has no defined SPIR-V mapping.
	ErrLoweringGap = errors.New("no SPIR-V lowering for this AIR construct")
)

// Logger wraps a *logrus.Logger the way saferwall-pe's Options.Logger
// threads a logger through construction, giving every package a place
// to report tolerated semantic-mismatch/lowering-gap diagnostics
// without aborting a tolerant decode.
type Logger struct {
	entry *logrus.Logger
}

// NewLogger returns a Logger with sane defaults (text formatter, Info level).
func NewLogger() *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: l}
}

// NewNopLogger returns a Logger that discards everything, for callers
// that don't want decode diagnostics on stderr (e.g. library embedders).
func NewNopLogger() *Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return &Logger{entry: l}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Tolerate logs a tolerated semantic-mismatch or lowering-gap diagnostic
// with structured fields, rather than aborting the decode.
func (l *Logger) Tolerate(stage string, err error) {
	if l == nil {
		return
	}
	l.entry.WithFields(logrus.Fields{
		"stage": stage,
	}).WithError(err).Warn("tolerated diagnostic")
}

// Debugf logs a formatted debug-level message, mirroring the ad hoc
// debug(&format!(...)) calls scattered through the original bitstream
// parser.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Debugf(format, args...)
}

// SetVerbose raises the logger to Debug level, the way cmd/metallibc and
// cmd/airdump's --verbose flag does.
func (l *Logger) SetVerbose(verbose bool) {
	if l == nil {
		return
	}
	if verbose {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
}

// Wrap annotates err with a message and returns nil if err is nil,
// matching the %w-wrapping idiom used at every pipeline stage.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
