// Package airlines transcodes Apple .metallib shader containers into
// SPIR-V binaries: unwrap the container, decode the embedded AIR
// bitcode module, lower it to SPIR-V. Transcode and TranscodeFile are
// the package's two entry points; every lower-level package
// (bitcode, air, spirv, lower, metallib) is usable standalone for
// tooling that only needs one stage.
package airlines

import (
	"fmt"

	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/lower"
	"github.com/gogpu/airlines/metallib"
	"github.com/gogpu/airlines/spirv"
)

// Options configures a full metallib-to-SPIR-V run.
type Options struct {
	// SPIRVVersion is the target SPIR-V version; the zero value
	// defaults to 1.0.
	SPIRVVersion spirv.Version

	// Debug keeps OpName/OpMemberName debug information. Names are
	// currently always emitted when available; Debug is reserved for a
	// strip-on-release mode.
	Debug bool

	// Tolerant degrades unresolvable AIR constructs (a lowering gap, an
	// unresolved forward reference) into logged warnings instead of a
	// hard failure, mirroring air.Options.Tolerant.
	Tolerant bool

	Logger *diag.Logger
}

// DefaultOptions returns the zero-configuration default: SPIR-V 1.0,
// fatal-on-mismatch, a no-op logger.
func DefaultOptions() Options {
	return Options{
		SPIRVVersion: spirv.Version{Major: 1, Minor: 0},
		Logger:       diag.NewNopLogger(),
	}
}

func (o Options) normalize() Options {
	if o.Logger == nil {
		o.Logger = diag.NewNopLogger()
	}
	if o.SPIRVVersion.Major == 0 {
		o.SPIRVVersion = spirv.Version{Major: 1, Minor: 0}
	}
	return o
}

// TranscodeFile opens a .metallib container at path, decodes its AIR
// module, and lowers it to a SPIR-V binary.
func TranscodeFile(path string, opts Options) ([]byte, error) {
	file, err := metallib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	return Transcode(file.Bitcode(), opts)
}

// Transcode decodes raw AIR bitcode (already unwrapped from any
// metallib container, or read directly as a bare bitcode-wrapper/raw
// bitstream file) and lowers it to a SPIR-V binary.
func Transcode(bitcodeBytes []byte, opts Options) ([]byte, error) {
	opts = opts.normalize()

	module, err := air.Decode(bitcodeBytes, air.Options{Logger: opts.Logger, Tolerant: opts.Tolerant})
	if err != nil {
		return nil, fmt.Errorf("decoding AIR module: %w", err)
	}

	spv, err := lower.Lower(module, lower.Options{
		Version:  opts.SPIRVVersion,
		Logger:   opts.Logger,
		Tolerant: opts.Tolerant,
	})
	if err != nil {
		return nil, fmt.Errorf("lowering AIR to SPIR-V: %w", err)
	}

	return spv, nil
}

// DecodeModule exposes the intermediate AIR module for tooling (e.g.
// cmd/airdump) that wants to inspect the decode without also lowering.
func DecodeModule(bitcodeBytes []byte, opts Options) (*air.Module, error) {
	opts = opts.normalize()
	return air.Decode(bitcodeBytes, air.Options{Logger: opts.Logger, Tolerant: opts.Tolerant})
}
