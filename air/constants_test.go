package air

import (
	"math"
	"testing"

	"github.com/gogpu/airlines/bitcode"
)

func TestDecodeConstantsBasicScalars(t *testing.T) {
	types := []*Type{
		{Kind: TypeInteger, IntWidth: 32},
		{Kind: TypeFloat},
	}

	top := bitcode.NewStreamWriter(2)
	block := top.BeginSubblock(uint64(bitcode.BlockConstants), 3)
	block.UnabbrevRecord(uint64(bitcode.ConstantSetType), 0)
	block.UnabbrevRecord(uint64(bitcode.ConstantInteger), 42)
	bits := math.Float32bits(3.5)
	block.UnabbrevRecord(uint64(bitcode.ConstantSetType), 1)
	block.UnabbrevRecord(uint64(bitcode.ConstantFloat), uint64(bits))
	top.EndSubblock(block)
	data := top.Finish()

	stream, err := bitcode.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entry, err := stream.Advance()
	if err != nil || entry.Kind != bitcode.EntrySubBlock {
		t.Fatalf("expected CONSTANTS_BLOCK sub-block, got %+v err=%v", entry, err)
	}

	table := make(map[uint64]*Constant)
	var maxID uint64
	if err := decodeConstants(stream, types, table, &maxID); err != nil {
		t.Fatalf("decodeConstants: %v", err)
	}

	// Each SETTYPE advances the counter too: SETTYPE=0, 42=1, SETTYPE=2, 3.5=3.
	if maxID != 4 {
		t.Fatalf("maxID = %d, want 4", maxID)
	}
	if table[1].Value.Kind != ConstantInteger || table[1].Value.Integer != 42 {
		t.Fatalf("table[1] = %+v", table[1])
	}
	if table[3].Value.Kind != ConstantFloat32 || table[3].Value.Float32 != 3.5 {
		t.Fatalf("table[3] = %+v", table[3])
	}
}

// TestDecodeConstantsSetTypeSkipAfterAggregate exercises the quirk where a
// SETTYPE immediately following an AGGREGATE record retypes the value that
// record just produced instead of opening a new slot: the constant-id
// counter must only advance once across the AGGREGATE+SETTYPE pair.
func TestDecodeConstantsSetTypeSkipAfterAggregate(t *testing.T) {
	types := []*Type{
		{Kind: TypeInteger, IntWidth: 32}, // 0
		{Kind: TypeStruct, StructName: "pair"}, // 1
	}

	top := bitcode.NewStreamWriter(2)
	block := top.BeginSubblock(uint64(bitcode.BlockConstants), 3)
	block.UnabbrevRecord(uint64(bitcode.ConstantSetType), 0)
	block.UnabbrevRecord(uint64(bitcode.ConstantInteger), 7)  // id 1 (the SETTYPE took id 0)
	block.UnabbrevRecord(uint64(bitcode.ConstantInteger), 9)  // id 2
	block.UnabbrevRecord(uint64(bitcode.ConstantAggregate), 1, 2) // id 3, untyped yet
	block.UnabbrevRecord(uint64(bitcode.ConstantSetType), 1)      // retypes id 3, no new slot
	block.UnabbrevRecord(uint64(bitcode.ConstantInteger), 11) // id 4
	top.EndSubblock(block)
	data := top.Finish()

	stream, err := bitcode.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := stream.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	table := make(map[uint64]*Constant)
	var maxID uint64
	if err := decodeConstants(stream, types, table, &maxID); err != nil {
		t.Fatalf("decodeConstants: %v", err)
	}

	if maxID != 5 {
		t.Fatalf("maxID = %d, want 5 (no id gap from the SETTYPE quirk)", maxID)
	}
	agg, ok := table[3]
	if !ok {
		t.Fatalf("expected constant 3 to exist")
	}
	if agg.Type != types[1] {
		t.Fatalf("constant 3 type = %+v, want retyped to struct", agg.Type)
	}
	if agg.Value.Kind != ConstantAggregate || len(agg.Value.Aggregate) != 2 {
		t.Fatalf("constant 3 value = %+v", agg.Value)
	}
	last, ok := table[4]
	if !ok || last.Value.Integer != 11 {
		t.Fatalf("constant 4 = %+v", last)
	}
}

func TestDecodeAggregateForwardReference(t *testing.T) {
	table := make(map[uint64]*Constant)
	result := decodeAggregate(table, bitcode.Fields{5, 6})
	if result.Kind != ConstantAggregate {
		t.Fatalf("got %+v", result)
	}
	if _, ok := table[5]; !ok {
		t.Fatal("expected placeholder for forward-referenced id 5")
	}
	if table[5].Value.Kind != ConstantUnresolved {
		t.Fatalf("placeholder 5 = %+v, want Unresolved", table[5].Value)
	}
}

func TestDecodeConstantDataArrayOfArrayReferences(t *testing.T) {
	table := map[uint64]*Constant{
		0: {Value: ConstantValue{Kind: ConstantInteger, Integer: 1}},
		1: {Value: ConstantValue{Kind: ConstantInteger, Integer: 2}},
	}
	container := &Type{Kind: TypeArray, Elem: &Type{Kind: TypeArray}}
	result, err := decodeConstantData(table, container, bitcode.Fields{0, 1})
	if err != nil {
		t.Fatalf("decodeConstantData: %v", err)
	}
	if result.Kind != ConstantArray || len(result.Array) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Array[0].Integer != 1 || result.Array[1].Integer != 2 {
		t.Fatalf("resolved elements = %+v", result.Array)
	}
}
