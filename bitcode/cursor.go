// Package bitcode implements a bit-granular cursor, abbreviation tables,
// and the block/record stream parser for LLVM bitcode, the wire format
// Apple's AIR dialect is serialized in.
package bitcode

import (
	"fmt"

	"github.com/gogpu/airlines/internal/diag"
)

// blockSize is the cursor's refill granularity in bits (one 64-bit word).
const blockSize = 64

// Cursor is a bit-granular reader over an immutable byte buffer. Reads
// are little-endian at the byte level; the cursor maintains a lazily
// refilled 64-bit shift register so that reads of up to 32 bits never
// need more than one refill.
type Cursor struct {
	data []byte

	// bitPos is the position, in bits, of the next bit NOT yet loaded
	// into the shift register (i.e. where a refill would resume from).
	bitPos int

	// word is the shift register; bitsLeft is how many of its low bits
	// are valid.
	word     uint64
	bitsLeft int
}

// NewCursor wraps data for bit-granular reading, starting at bit 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Len returns the total length of the backing buffer in bits.
func (c *Cursor) Len() int { return len(c.data) * 8 }

// TellBit returns the absolute bit position of the next bit to be read.
func (c *Cursor) TellBit() int {
	return c.bitPos - c.bitsLeft
}

// Exhausted reports whether every bit of the buffer has been consumed.
func (c *Cursor) Exhausted() bool {
	return c.TellBit() >= c.Len()
}

func (c *Cursor) refill() {
	for c.bitsLeft <= blockSize-8 && c.bitPos < c.Len() {
		byteIdx := c.bitPos / 8
		if byteIdx >= len(c.data) {
			break
		}
		c.word |= uint64(c.data[byteIdx]) << c.bitsLeft
		c.bitsLeft += 8
		c.bitPos += 8
	}
}

// Read consumes n bits (1 <= n < 64) from the low end of the stream and
// returns them as an unsigned integer.
func (c *Cursor) Read(n int) (uint64, error) {
	if n <= 0 || n >= 64 {
		return 0, fmt.Errorf("%w: invalid read width %d", diag.ErrMalformedStream, n)
	}

	if c.bitsLeft < n {
		c.refill()
	}

	if c.bitsLeft < n {
		// One more refill could not satisfy the request: truncated.
		if c.bitsLeft == 0 {
			return 0, fmt.Errorf("%w: requested %d bits, stream exhausted", diag.ErrTruncated, n)
		}

		// Partial satisfy from what's left, then pull the remainder
		// from a second refill.
		part1 := c.word & ((1 << c.bitsLeft) - 1)
		bitsGot := c.bitsLeft
		c.word = 0
		c.bitsLeft = 0
		c.refill()

		remaining := n - bitsGot
		if c.bitsLeft < remaining {
			return 0, fmt.Errorf("%w: requested %d bits, only %d available", diag.ErrTruncated, n, bitsGot+c.bitsLeft)
		}

		part2 := c.word & ((1 << remaining) - 1)
		c.word >>= remaining
		c.bitsLeft -= remaining

		return part1 | (part2 << bitsGot), nil
	}

	mask := uint64(1)<<n - 1
	result := c.word & mask
	c.word >>= n
	c.bitsLeft -= n
	return result, nil
}

// ReadVBR reads a variable-bit-rate integer made of w-bit chunks: the
// high bit of each chunk is a continuation flag, and the low w-1 bits
// accumulate into the result, least-significant chunk first.
func (c *Cursor) ReadVBR(w int) (uint64, error) {
	if w < 2 || w > 32 {
		return 0, fmt.Errorf("%w: invalid VBR width %d", diag.ErrMalformedStream, w)
	}

	var result uint64
	var shift uint
	piece := uint64(1) << (w - 1)

	for {
		chunk, err := c.Read(w)
		if err != nil {
			return 0, err
		}

		result |= (chunk & (piece - 1)) << shift
		if chunk&piece == 0 {
			return result, nil
		}
		shift += uint(w - 1)
	}
}

// ReadSVBR reads a signed VBR integer: the low bit of the accumulated
// magnitude is the sign, and the remaining bits are the magnitude,
// negated when the sign bit is set.
func (c *Cursor) ReadSVBR(w int) (int64, error) {
	value, err := c.ReadVBR(w)
	if err != nil {
		return 0, err
	}
	if value&1 != 0 {
		return -int64(value >> 1), nil
	}
	return int64(value >> 1), nil
}

// Align32 discards bits until the bit position is a multiple of 32.
func (c *Cursor) Align32() {
	pos := c.TellBit()
	rem := pos % 32
	if rem == 0 {
		return
	}
	// Drain from the shift register first, then skip ahead.
	toSkip := 32 - rem
	for toSkip > 0 && c.bitsLeft > 0 {
		n := toSkip
		if n > c.bitsLeft {
			n = c.bitsLeft
		}
		c.word >>= uint(n)
		c.bitsLeft -= n
		toSkip -= n
	}
	if toSkip > 0 {
		c.bitPos += toSkip
	}
}

// SeekBit performs a bit-granular absolute seek: it rounds the target
// down to an 8-byte (64-bit) boundary, clears the shift register, then consumes the
// residual bits to reach the exact requested position.
func (c *Cursor) SeekBit(pos int) error {
	if pos < 0 || pos > c.Len() {
		return fmt.Errorf("%w: seek to bit %d out of bounds (len=%d)", diag.ErrTruncated, pos, c.Len())
	}

	aligned := (pos / 8 &^ 7) * 8
	c.bitPos = aligned
	c.word = 0
	c.bitsLeft = 0

	residual := pos - aligned
	if residual > 0 {
		if _, err := c.Read(residual); err != nil {
			return err
		}
	}
	return nil
}

// Seek performs a byte-granular seek, clearing the shift register.
func (c *Cursor) Seek(byteOffset int) error {
	return c.SeekBit(byteOffset * 8)
}
