// Package metallib parses the ".metallib" container format: a small
// little-endian header describing a compiled Metal shader library,
// followed by the embedded AIR bitcode the rest of this module decodes.
package metallib

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/airlines/internal/diag"
)

// Magic is the 4-byte signature every metallib file begins with.
const Magic = "MTLB"

// TargetPlatform identifies the GPU platform a library was compiled for.
type TargetPlatform uint16

const (
	PlatformMacOS TargetPlatform = 0x8001
	PlatformIOS   TargetPlatform = 0x0001
)

func (p TargetPlatform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformIOS:
		return "iOS"
	default:
		return fmt.Sprintf("TargetPlatform(0x%04x)", uint16(p))
	}
}

// LibraryType identifies the kind of library the file stores.
type LibraryType uint8

const (
	LibraryExecutable LibraryType = iota
	LibraryCoreImage
	LibraryDynamic
	LibrarySymbolCompanion
)

func (t LibraryType) String() string {
	switch t {
	case LibraryExecutable:
		return "Executable"
	case LibraryCoreImage:
		return "CoreImage"
	case LibraryDynamic:
		return "Dynamic"
	case LibrarySymbolCompanion:
		return "SymbolCompanion"
	default:
		return fmt.Sprintf("LibraryType(%d)", uint8(t))
	}
}

// TargetOSType identifies the OS a library targets. Unknown carries no
// version, and its header bytes are entirely absent from the wire
// format rather than zero-filled.
type TargetOSType uint8

const (
	TargetOSUnknown          TargetOSType = 0x00
	TargetOSMacOS            TargetOSType = 0x81
	TargetOSIOS              TargetOSType = 0x82
	TargetOSTvOS             TargetOSType = 0x83
	TargetOSWatchOS          TargetOSType = 0x84
	TargetOSBridgeOS         TargetOSType = 0x85
	TargetOSMacCatalyst      TargetOSType = 0x86
	TargetOSIOSSimulator     TargetOSType = 0x87
	TargetOSTvOSSimulator    TargetOSType = 0x88
	TargetOSWatchOSSimulator TargetOSType = 0x89
)

func (t TargetOSType) String() string {
	switch t {
	case TargetOSUnknown:
		return "Unknown"
	case TargetOSMacOS:
		return "macOS"
	case TargetOSIOS:
		return "iOS"
	case TargetOSTvOS:
		return "tvOS"
	case TargetOSWatchOS:
		return "watchOS"
	case TargetOSBridgeOS:
		return "bridgeOS"
	case TargetOSMacCatalyst:
		return "macCatalyst"
	case TargetOSIOSSimulator:
		return "iOSSimulator"
	case TargetOSTvOSSimulator:
		return "tvOSSimulator"
	case TargetOSWatchOSSimulator:
		return "watchOSSimulator"
	default:
		return fmt.Sprintf("TargetOSType(0x%02x)", uint8(t))
	}
}

// TargetOS is the target OS and, unless it's Unknown, its version.
type TargetOS struct {
	Type  TargetOSType
	Major uint16
	Minor uint16
}

// Version is a major.minor pair.
type Version struct {
	Major uint16
	Minor uint16
}

// Signature is the decoded metallib header: enough to locate and size
// every section of the container, most importantly the embedded
// bitcode this module's decoders operate on.
type Signature struct {
	TargetPlatform TargetPlatform
	Version        Version
	LibraryType    LibraryType
	TargetOS       TargetOS

	FileSize uint64

	FunctionListOffset uint64
	FunctionListSize   uint64

	PublicMetadataOffset uint64
	PublicMetadataSize   uint64

	PrivateMetadataOffset uint64
	PrivateMetadataSize   uint64

	BitcodeOffset uint64
	BitcodeSize   uint64
}

// ParseSignature decodes the metallib header from the start of data.
func ParseSignature(data []byte) (Signature, error) {
	var sig Signature

	r := headerReader{data: data}

	magic, err := r.bytes(4)
	if err != nil {
		return sig, fmt.Errorf("reading metallib magic: %w", err)
	}
	if string(magic) != Magic {
		return sig, fmt.Errorf("%w: not a Metal library (magic %q)", diag.ErrMalformedStream, magic)
	}

	platformRaw, err := r.u16()
	if err != nil {
		return sig, fmt.Errorf("reading target platform: %w", err)
	}
	switch TargetPlatform(platformRaw) {
	case PlatformMacOS, PlatformIOS:
		sig.TargetPlatform = TargetPlatform(platformRaw)
	default:
		return sig, fmt.Errorf("%w: unrecognized target platform 0x%04x", diag.ErrMalformedStream, platformRaw)
	}

	major, err := r.u16()
	if err != nil {
		return sig, fmt.Errorf("reading version major: %w", err)
	}
	minor, err := r.u16()
	if err != nil {
		return sig, fmt.Errorf("reading version minor: %w", err)
	}
	sig.Version = Version{Major: major, Minor: minor}

	libTypeRaw, err := r.u8()
	if err != nil {
		return sig, fmt.Errorf("reading library type: %w", err)
	}
	if libTypeRaw > uint8(LibrarySymbolCompanion) {
		return sig, fmt.Errorf("%w: unrecognized library type %d", diag.ErrMalformedStream, libTypeRaw)
	}
	sig.LibraryType = LibraryType(libTypeRaw)

	osTypeRaw, err := r.u8()
	if err != nil {
		return sig, fmt.Errorf("reading target OS type: %w", err)
	}
	osType := TargetOSType(osTypeRaw)
	switch osType {
	case TargetOSUnknown, TargetOSMacOS, TargetOSIOS, TargetOSTvOS, TargetOSWatchOS,
		TargetOSBridgeOS, TargetOSMacCatalyst, TargetOSIOSSimulator, TargetOSTvOSSimulator,
		TargetOSWatchOSSimulator:
	default:
		return sig, fmt.Errorf("%w: unrecognized target OS type 0x%02x", diag.ErrMalformedStream, osTypeRaw)
	}

	sig.TargetOS.Type = osType
	if osType != TargetOSUnknown {
		osMajor, err := r.u16()
		if err != nil {
			return sig, fmt.Errorf("reading target OS major: %w", err)
		}
		osMinor, err := r.u16()
		if err != nil {
			return sig, fmt.Errorf("reading target OS minor: %w", err)
		}
		sig.TargetOS.Major = osMajor
		sig.TargetOS.Minor = osMinor
	}

	if sig.FileSize, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading file size: %w", err)
	}
	if sig.FunctionListOffset, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading function list offset: %w", err)
	}
	if sig.FunctionListSize, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading function list size: %w", err)
	}
	if sig.PublicMetadataOffset, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading public metadata offset: %w", err)
	}
	if sig.PublicMetadataSize, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading public metadata size: %w", err)
	}
	if sig.PrivateMetadataOffset, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading private metadata offset: %w", err)
	}
	if sig.PrivateMetadataSize, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading private metadata size: %w", err)
	}
	if sig.BitcodeOffset, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading bitcode offset: %w", err)
	}
	if sig.BitcodeSize, err = r.u64(); err != nil {
		return sig, fmt.Errorf("reading bitcode size: %w", err)
	}

	return sig, nil
}

// headerReader is a small byte-cursor local to header decoding; the
// bit-granular Cursor in package bitcode is overkill for a fixed
// byte-aligned struct like this one.
type headerReader struct {
	data []byte
	pos  int
}

func (r *headerReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", diag.ErrTruncated, n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *headerReader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *headerReader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *headerReader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
