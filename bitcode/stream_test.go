package bitcode

import "testing"

// advanceAll drains the stream, returning every surfaced entry up to
// and including EndOfStream.
func advanceAll(t *testing.T, s *Stream) []StreamEntry {
	t.Helper()
	var entries []StreamEntry
	for {
		entry, err := s.Advance()
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		entries = append(entries, entry)
		if entry.Kind == EntryEndOfStream {
			return entries
		}
	}
}

func TestStreamVisitsEveryBlockAndRecordOnce(t *testing.T) {
	top := NewStreamWriter(2)

	outer := top.BeginSubblock(8, 3)
	outer.UnabbrevRecord(1, 10, 20)
	inner := outer.BeginSubblock(17, 4)
	inner.UnabbrevRecord(2, 7)
	outer.EndSubblock(inner)
	outer.UnabbrevRecord(3)
	top.EndSubblock(outer)

	cursor := NewCursor(top.Finish())
	if _, err := cursor.Read(32); err != nil { // skip the format magic
		t.Fatalf("Read magic: %v", err)
	}
	s := NewStream(cursor)

	entries := advanceAll(t, s)

	wantKinds := []StreamEntryKind{
		EntrySubBlock, // block 8
		EntryRecord,   // code 1
		EntrySubBlock, // block 17
		EntryRecord,   // code 2
		EntryEndBlock, // block 17
		EntryRecord,   // code 3
		EntryEndBlock, // block 8
		EntryEndOfStream,
	}
	if len(entries) != len(wantKinds) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if entries[i].Kind != kind {
			t.Errorf("entry %d: kind = %d, want %d", i, entries[i].Kind, kind)
		}
	}
	if entries[0].Block.BlockID != 8 || entries[2].Block.BlockID != 17 {
		t.Errorf("block ids = %d, %d; want 8, 17", entries[0].Block.BlockID, entries[2].Block.BlockID)
	}
	if entries[1].Record.Code != 1 || entries[3].Record.Code != 2 || entries[5].Record.Code != 3 {
		t.Errorf("record codes = %d, %d, %d; want 1, 2, 3",
			entries[1].Record.Code, entries[3].Record.Code, entries[5].Record.Code)
	}
	if !s.cursor.Exhausted() {
		t.Errorf("stream ended with %d bits unconsumed", s.cursor.Len()-s.cursor.TellBit())
	}
}

func TestStreamBlockLengthMatchesConsumedBits(t *testing.T) {
	top := NewStreamWriter(2)
	block := top.BeginSubblock(8, 3)
	block.UnabbrevRecord(1, 100, 200, 300)
	top.EndSubblock(block)

	cursor := NewCursor(top.Finish())
	if _, err := cursor.Read(32); err != nil {
		t.Fatalf("Read magic: %v", err)
	}
	s := NewStream(cursor)

	entry, err := s.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if entry.Kind != EntrySubBlock {
		t.Fatalf("first entry kind = %d, want sub-block", entry.Kind)
	}
	declared := entry.Block.LenBytes * 8
	start := s.cursor.TellBit()

	for entry.Kind != EntryEndBlock {
		entry, err = s.Advance()
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	if got := uint64(s.cursor.TellBit() - start); got != declared {
		t.Errorf("block consumed %d bits, declared %d", got, declared)
	}
}

// appendSubblock writes an ENTER_SUBBLOCK framing plus body (which must
// already end with END_BLOCK and be 32-bit aligned) into w.
func appendSubblock(w *BitWriter, width int, blockID uint64, newWidth int, body *BitWriter) {
	w.WriteBits(uint64(EnterSubblock), width)
	w.WriteVBR(blockID, 8)
	w.WriteVBR(uint64(newWidth), 4)
	w.Align32()
	b := body.Bytes()
	w.WriteBits(uint64(len(b)/4), 32)
	w.AppendBytes(b)
}

func TestStreamBlockInfoRegistersAbbrevs(t *testing.T) {
	// BLOCKINFO body: SETBID 8, then one abbreviation for block 8
	// shaped [Literal(5), Fixed(8)].
	info := NewBitWriter()
	info.WriteBits(uint64(UnabbrevRecord), 2)
	info.WriteVBR(uint64(BlockInfoSetBID), 6)
	info.WriteVBR(1, 6)
	info.WriteVBR(8, 6)
	info.WriteBits(uint64(DefineAbbrev), 2)
	info.WriteVBR(2, 5)  // two operands
	info.WriteBits(1, 1) // literal
	info.WriteVBR(5, 8)  // record code 5
	info.WriteBits(0, 1) // encoded
	info.WriteBits(1, 3) // Fixed
	info.WriteVBR(8, 5)  // width 8
	info.WriteBits(uint64(EndBlock), 2)
	info.Align32()

	// Block 8 body: one record through the BLOCKINFO-registered
	// abbreviation (first application id, 4).
	body := NewBitWriter()
	body.WriteBits(uint64(FirstApplicationAbbrevID), 3)
	body.WriteBits(42, 8)
	body.WriteBits(uint64(EndBlock), 3)
	body.Align32()

	top := NewBitWriter()
	appendSubblock(top, 2, uint64(BlockInfoID), 2, info)
	appendSubblock(top, 2, 8, 3, body)

	s := NewStream(NewCursor(top.Bytes()))
	entries := advanceAll(t, s)

	// The BLOCKINFO block and everything inside it is suppressed; only
	// block 8 and its abbreviated record surface.
	wantKinds := []StreamEntryKind{EntrySubBlock, EntryRecord, EntryEndBlock, EntryEndOfStream}
	if len(entries) != len(wantKinds) {
		t.Fatalf("got %d entries (%v), want %d", len(entries), entries, len(wantKinds))
	}
	record := entries[1].Record
	if record.Code != 5 {
		t.Errorf("record code = %d, want 5 (the abbreviation's literal)", record.Code)
	}
	if len(record.Fields) != 1 || record.Fields[0] != 42 {
		t.Errorf("record fields = %v, want [42]", record.Fields)
	}
	if record.AbbrevID == nil || *record.AbbrevID != FirstApplicationAbbrevID {
		t.Errorf("record abbrev id = %v, want %d", record.AbbrevID, FirstApplicationAbbrevID)
	}
}

func TestStreamDefineAbbrevInBlockInfoWithoutSetBIDFails(t *testing.T) {
	info := NewBitWriter()
	info.WriteBits(uint64(DefineAbbrev), 2)
	info.WriteVBR(1, 5)
	info.WriteBits(1, 1)
	info.WriteVBR(5, 8)
	info.WriteBits(uint64(EndBlock), 2)
	info.Align32()

	top := NewBitWriter()
	appendSubblock(top, 2, uint64(BlockInfoID), 2, info)

	s := NewStream(NewCursor(top.Bytes()))
	if _, err := s.Advance(); err == nil {
		t.Fatal("expected DEFINE_ABBREV before SETBID to fail")
	}
}

func TestStreamUnabbrevRecordAtTopLevelFails(t *testing.T) {
	w := NewBitWriter()
	w.WriteBits(uint64(UnabbrevRecord), 2)
	w.WriteVBR(1, 6)
	w.WriteVBR(0, 6)
	w.Align32()

	s := NewStream(NewCursor(w.Bytes()))
	if _, err := s.Advance(); err == nil {
		t.Fatal("expected UNABBREV_RECORD outside any block to fail")
	}
}

func TestStreamEndBlockAtTopLevelFails(t *testing.T) {
	w := NewBitWriter()
	w.WriteBits(uint64(EndBlock), 2)
	w.Align32()

	s := NewStream(NewCursor(w.Bytes()))
	if _, err := s.Advance(); err == nil {
		t.Fatal("expected END_BLOCK with empty scope stack to fail")
	}
}

func TestStreamZeroWidthBlockEntryFails(t *testing.T) {
	body := NewBitWriter()
	body.Align32()

	top := NewBitWriter()
	appendSubblock(top, 2, 8, 0, body)

	s := NewStream(NewCursor(top.Bytes()))
	if _, err := s.Advance(); err == nil {
		t.Fatal("expected abbrev-id width 0 on block entry to fail")
	}
}

func TestStreamUnknownAbbrevIDFails(t *testing.T) {
	body := NewBitWriter()
	body.WriteBits(uint64(FirstApplicationAbbrevID), 3) // no abbrevs defined
	body.WriteBits(uint64(EndBlock), 3)
	body.Align32()

	top := NewBitWriter()
	appendSubblock(top, 2, 8, 3, body)

	s := NewStream(NewCursor(top.Bytes()))
	if _, err := s.Advance(); err != nil {
		t.Fatalf("Advance (block entry): %v", err)
	}
	if _, err := s.Advance(); err == nil {
		t.Fatal("expected unknown abbreviation id to fail")
	}
}
