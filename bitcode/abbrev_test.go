package bitcode

import (
	"reflect"
	"testing"
)

func TestNewAbbrevParsesOperandSpecs(t *testing.T) {
	// [Literal(4), VBR(6), Array(Char6)]
	w := NewBitWriter()
	w.WriteVBR(4, 5)     // four operands (array elem spec counts)
	w.WriteBits(1, 1)    // literal
	w.WriteVBR(4, 8)     //   value 4
	w.WriteBits(0, 1)    // encoded
	w.WriteBits(2, 3)    //   VBR
	w.WriteVBR(6, 5)     //   width 6
	w.WriteBits(0, 1)    // encoded
	w.WriteBits(3, 3)    //   Array
	w.WriteBits(0, 1)    // elem: encoded
	w.WriteBits(4, 3)    //   Char6
	w.Align32()

	abbrev, err := NewAbbrev(NewCursor(w.Bytes()))
	if err != nil {
		t.Fatalf("NewAbbrev: %v", err)
	}

	want := []AbbrevOp{
		{Kind: OpLiteral, Literal: 4},
		{Kind: OpVBR, Width: 6},
		{Kind: OpArray, Elem: &AbbrevOp{Kind: OpChar6}},
	}
	if len(abbrev.Operands) != len(want) {
		t.Fatalf("got %d operands, want %d", len(abbrev.Operands), len(want))
	}
	for i, op := range abbrev.Operands {
		if op.Kind != want[i].Kind || op.Literal != want[i].Literal || op.Width != want[i].Width {
			t.Errorf("operand %d = %+v, want %+v", i, op, want[i])
		}
	}
	if abbrev.Operands[2].Elem.Kind != OpChar6 {
		t.Errorf("array elem kind = %d, want Char6", abbrev.Operands[2].Elem.Kind)
	}
}

func TestNewAbbrevRejectsZeroOperands(t *testing.T) {
	w := NewBitWriter()
	w.WriteVBR(0, 5)
	w.Align32()

	if _, err := NewAbbrev(NewCursor(w.Bytes())); err == nil {
		t.Fatal("expected zero-operand abbreviation to fail")
	}
}

func TestNewAbbrevRejectsArrayNotPenultimate(t *testing.T) {
	w := NewBitWriter()
	w.WriteVBR(3, 5)  // three operands, array first
	w.WriteBits(0, 1) // encoded
	w.WriteBits(3, 3) // Array at index 0 of 3
	w.Align32()

	if _, err := NewAbbrev(NewCursor(w.Bytes())); err == nil {
		t.Fatal("expected Array at non-penultimate index to fail")
	}
}

func TestNewAbbrevRejectsBlobNotLast(t *testing.T) {
	w := NewBitWriter()
	w.WriteVBR(2, 5)  // two operands, blob first
	w.WriteBits(0, 1) // encoded
	w.WriteBits(5, 3) // Blob at index 0 of 2
	w.Align32()

	if _, err := NewAbbrev(NewCursor(w.Bytes())); err == nil {
		t.Fatal("expected Blob at non-final index to fail")
	}
}

func TestNewAbbrevRejectsNestedArrayElem(t *testing.T) {
	w := NewBitWriter()
	w.WriteVBR(2, 5)  // [Array(Array)]
	w.WriteBits(0, 1)
	w.WriteBits(3, 3) // Array
	w.WriteBits(0, 1) // elem: encoded
	w.WriteBits(3, 3) //   Array again
	w.Align32()

	if _, err := NewAbbrev(NewCursor(w.Bytes())); err == nil {
		t.Fatal("expected Array-of-Array to fail")
	}
}

func TestAbbrevParseArrayOfFixed1(t *testing.T) {
	abbrev := &Abbrev{Operands: []AbbrevOp{
		{Kind: OpLiteral, Literal: 7},
		{Kind: OpArray, Elem: &AbbrevOp{Kind: OpFixed, Width: 1}},
	}}

	w := NewBitWriter()
	w.WriteVBR(4, 6)  // array length
	w.WriteBits(1, 1)
	w.WriteBits(0, 1)
	w.WriteBits(1, 1)
	w.WriteBits(1, 1)
	w.Align32()

	fields, err := abbrev.Parse(NewCursor(w.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Fields{7, 1, 0, 1, 1}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
}

func TestAbbrevParseChar6(t *testing.T) {
	abbrev := &Abbrev{Operands: []AbbrevOp{
		{Kind: OpLiteral, Literal: 1},
		{Kind: OpArray, Elem: &AbbrevOp{Kind: OpChar6}},
	}}

	// "aZ9._" through the fixed alphabet.
	indices := []uint64{0, 51, 61, 62, 63}
	w := NewBitWriter()
	w.WriteVBR(uint64(len(indices)), 6)
	for _, idx := range indices {
		w.WriteBits(idx, 6)
	}
	w.Align32()

	fields, err := abbrev.Parse(NewCursor(w.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := make([]byte, 0, len(fields)-1)
	for _, f := range fields[1:] {
		got = append(got, byte(f))
	}
	if string(got) != "aZ9._" {
		t.Errorf("decoded %q, want %q", got, "aZ9._")
	}
}

func TestAbbrevParseBlob(t *testing.T) {
	abbrev := &Abbrev{Operands: []AbbrevOp{
		{Kind: OpLiteral, Literal: 2},
		{Kind: OpBlob},
	}}

	w := NewBitWriter()
	w.WriteVBR(3, 6) // blob length
	w.Align32()
	w.AppendBytes([]byte{0xDE, 0xAD, 0xBF})
	w.Align32()

	cursor := NewCursor(w.Bytes())
	fields, err := abbrev.Parse(cursor)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Fields{2, 0xDE, 0xAD, 0xBF}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	if cursor.TellBit()%32 != 0 {
		t.Errorf("cursor not 32-bit aligned after blob: bit %d", cursor.TellBit())
	}
}

func TestAbbrevParseBlobZeroLength(t *testing.T) {
	abbrev := &Abbrev{Operands: []AbbrevOp{
		{Kind: OpLiteral, Literal: 2},
		{Kind: OpBlob},
	}}

	w := NewBitWriter()
	w.WriteVBR(0, 6)
	w.Align32()

	fields, err := abbrev.Parse(NewCursor(w.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Fields{2}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
}
