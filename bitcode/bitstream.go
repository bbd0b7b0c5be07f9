package bitcode

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/airlines/internal/diag"
)

// WrapperMagic is the magic word at offset 0 of an optional LLVM
// bitcode wrapper header.
const WrapperMagic = 0x0B17C0DE

// RawMagic is the magic word LLVM IR bitcode starts with once any
// wrapper header has been stripped.
const RawMagic = 0x4243C0DE

// WrapperHeader is the (magic, version, offset, size, cpuType) header
// LLVM's optional bitcode wrapper prepends to a raw bitstream.
type WrapperHeader struct {
	Magic   uint32
	Version uint32
	Offset  uint32
	Size    uint32
	CPUType uint32
}

// Open detects whether content begins with a bitcode wrapper header or
// is a raw bitstream, and returns a Stream positioned at the start of
// the inner bitstream's content (past its format magic).
func Open(content []byte) (*Stream, error) {
	if len(content) < 4 {
		return nil, fmt.Errorf("%w: bitcode content too short", diag.ErrTruncated)
	}

	if len(content)%4 != 0 {
		return nil, fmt.Errorf("%w: bitstream length %d is not a multiple of 4", diag.ErrMalformedStream, len(content))
	}

	magic := binary.LittleEndian.Uint32(content)

	body := content
	if magic == WrapperMagic {
		if len(content) < 20 {
			return nil, fmt.Errorf("%w: truncated bitcode wrapper header", diag.ErrTruncated)
		}
		header := WrapperHeader{
			Magic:   magic,
			Version: binary.LittleEndian.Uint32(content[4:8]),
			Offset:  binary.LittleEndian.Uint32(content[8:12]),
			Size:    binary.LittleEndian.Uint32(content[12:16]),
			CPUType: binary.LittleEndian.Uint32(content[16:20]),
		}
		end := int(header.Offset) + int(header.Size)
		if end > len(content) {
			return nil, fmt.Errorf("%w: bitcode wrapper declares a range past end of file", diag.ErrTruncated)
		}
		body = content[header.Offset:end]
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: wrapped bitstream too short", diag.ErrTruncated)
		}
		magic = binary.LittleEndian.Uint32(body)
	}

	if magic != RawMagic {
		return nil, fmt.Errorf("%w: unrecognized bitstream magic 0x%08X", diag.ErrMalformedStream, magic)
	}

	cursor := NewCursor(body)
	if _, err := cursor.Read(32); err != nil { // consume the format magic
		return nil, err
	}

	return NewStream(cursor), nil
}
