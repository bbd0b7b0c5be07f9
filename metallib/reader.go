package metallib

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/gogpu/airlines/internal/diag"
)

// File is an opened metallib container: its decoded Signature plus the
// raw backing bytes the Bitcode subrange is sliced from.
type File struct {
	Signature Signature

	data mmap.MMap
	f    *os.File
}

// Open memory-maps path, parses its signature, and validates that the
// declared bitcode range actually fits inside the file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metallib %q: %w", path, err)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping metallib %q: %w", path, err)
	}

	file := &File{data: data, f: f}
	if err := file.parse(); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

// OpenBytes parses an already-loaded metallib buffer. The returned File
// owns no OS resources and Close is a no-op.
func OpenBytes(data []byte) (*File, error) {
	file := &File{data: mmap.MMap(data)}
	if err := file.parse(); err != nil {
		return nil, err
	}
	return file, nil
}

func (file *File) parse() error {
	sig, err := ParseSignature(file.data)
	if err != nil {
		return fmt.Errorf("parsing metallib signature: %w", err)
	}

	end := sig.BitcodeOffset + sig.BitcodeSize
	if end > uint64(len(file.data)) {
		return fmt.Errorf("%w: bitcode range [%d,%d) exceeds file length %d",
			diag.ErrTruncated, sig.BitcodeOffset, end, len(file.data))
	}

	file.Signature = sig
	return nil
}

// Bitcode returns the embedded AIR bitcode subrange, ready to be handed
// to bitcode.Open.
func (file *File) Bitcode() []byte {
	sig := file.Signature
	return file.data[sig.BitcodeOffset : sig.BitcodeOffset+sig.BitcodeSize]
}

// Close unmaps the file and releases its file handle. Safe to call on a
// File returned by OpenBytes, where it does nothing.
func (file *File) Close() error {
	if file.f == nil {
		return nil
	}
	if err := file.data.Unmap(); err != nil {
		return fmt.Errorf("unmapping metallib: %w", err)
	}
	return file.f.Close()
}
