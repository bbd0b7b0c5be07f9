package bitcode

// BitWriter is the inverse of Cursor: it accumulates bits LSB-first per
// byte, the same convention Cursor.Read consumes. It exists so tests
// across this module can build hand-crafted bitcode fixtures without
// depending on a real LLVM/Apple toolchain, the same way a hardware
// simulator test suite hand-assembles wire frames.
type BitWriter struct {
	bits []bool
}

// NewBitWriter returns an empty bit writer.
func NewBitWriter() *BitWriter {
	return &BitWriter{}
}

// WriteBits appends the low n bits of v, least-significant bit first.
func (w *BitWriter) WriteBits(v uint64, n int) {
	for i := 0; i < n; i++ {
		w.bits = append(w.bits, (v>>uint(i))&1 != 0)
	}
}

// WriteVBR writes v as a VBR-w sequence: w-bit chunks, high bit is the
// continuation flag, low w-1 bits carry the magnitude least-significant
// chunk first. Mirrors Cursor.ReadVBR exactly.
func (w *BitWriter) WriteVBR(v uint64, width int) {
	piece := uint64(1) << (width - 1)
	mask := piece - 1
	for {
		chunk := v & mask
		v >>= uint(width - 1)
		if v != 0 {
			w.WriteBits(chunk|piece, width)
		} else {
			w.WriteBits(chunk, width)
			return
		}
	}
}

// Align32 pads with zero bits until the bit position is 32-bit aligned.
func (w *BitWriter) Align32() {
	for len(w.bits)%32 != 0 {
		w.bits = append(w.bits, false)
	}
}

// AppendBytes appends raw bytes, each written little-endian-bit-first,
// at the writer's current (assumed byte-aligned) position.
func (w *BitWriter) AppendBytes(data []byte) {
	for _, b := range data {
		w.WriteBits(uint64(b), 8)
	}
}

// Bytes packs the accumulated bits into bytes, zero-padding the final
// byte if needed.
func (w *BitWriter) Bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, b := range w.bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// StreamWriter emits ENTER_SUBBLOCK/END_BLOCK/UNABBREV_RECORD entries at
// a single scope's abbreviation-id width. It deliberately never emits
// DEFINE_ABBREV or abbreviated records: every record this package's
// decoder needs to exercise can be expressed as UNABBREV_RECORD, which
// keeps fixture construction (and this helper) simple.
type StreamWriter struct {
	bw    *BitWriter
	width int
}

// NewStreamWriter starts a scope at the given abbreviation-id width (2
// for the implicit top-level scope, or whatever width a parent
// ENTER_SUBBLOCK declared).
func NewStreamWriter(width int) *StreamWriter {
	return &StreamWriter{bw: NewBitWriter(), width: width}
}

func (s *StreamWriter) abbrevID(id uint64) {
	s.bw.WriteBits(id, s.width)
}

// UnabbrevRecord emits UNABBREV_RECORD(code, fields...).
func (s *StreamWriter) UnabbrevRecord(code uint64, fields ...uint64) {
	s.abbrevID(uint64(UnabbrevRecord))
	s.bw.WriteVBR(code, 6)
	s.bw.WriteVBR(uint64(len(fields)), 6)
	for _, f := range fields {
		s.bw.WriteVBR(f, 6)
	}
}

// BeginSubblock emits ENTER_SUBBLOCK(blockID, newWidth) and returns a
// fresh StreamWriter for the nested scope's body. Pair with EndSubblock.
func (s *StreamWriter) BeginSubblock(blockID uint64, newWidth int) *StreamWriter {
	s.abbrevID(uint64(EnterSubblock))
	s.bw.WriteVBR(blockID, 8)
	s.bw.WriteVBR(uint64(newWidth), 4)
	s.bw.Align32()
	return NewStreamWriter(newWidth)
}

// EndSubblock closes child (emitting its END_BLOCK and aligning it),
// then splices its body into s with the 32-bit-word length LLVM's
// format requires.
func (s *StreamWriter) EndSubblock(child *StreamWriter) {
	child.abbrevID(uint64(EndBlock))
	child.bw.Align32()
	body := child.bw.Bytes()
	s.bw.WriteBits(uint64(len(body)/4), 32)
	s.bw.AppendBytes(body)
}

// Finish terminates the top-level scope (no END_BLOCK at top level; the
// decoder treats cursor exhaustion as end-of-stream) and prepends the
// raw-bitstream format magic, yielding a complete, 4-byte-aligned
// bitcode buffer ready for bitcode.Open.
func (s *StreamWriter) Finish() []byte {
	s.bw.Align32()
	out := make([]byte, 4)
	magic := uint32(RawMagic)
	out[0] = byte(magic)
	out[1] = byte(magic >> 8)
	out[2] = byte(magic >> 16)
	out[3] = byte(magic >> 24)
	return append(out, s.bw.Bytes()...)
}
