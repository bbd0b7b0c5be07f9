package lower

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/spirv"
)

func newTestModule() *air.Module {
	return &air.Module{
		Attributes:        map[uint64]*air.Attribute{},
		EntryTable:        map[uint64]*air.AttrEntry{},
		Constants:         map[uint64]*air.Constant{},
		MetadataKindTable: map[uint64]string{},
	}
}

func spirvWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

func newTestLowerer(m *air.Module) *lowerer {
	return &lowerer{
		module:            m,
		builder:           spirv.NewModuleBuilder(spirv.Version{Major: 1, Minor: 0}),
		opts:              DefaultOptions(),
		types:             map[*air.Type]uint32{},
		consts:            map[*air.Constant]uint32{},
		arrayLens:         map[uint64]uint32{},
		functionIDByIndex: map[uint64]uint32{},
	}
}

func TestLowerType_ScalarsAndVectors(t *testing.T) {
	m := newTestModule()
	l := newTestLowerer(m)

	floatTy := &air.Type{Kind: air.TypeFloat}
	boolTy := &air.Type{Kind: air.TypeInteger, IntWidth: 1}
	i32Ty := &air.Type{Kind: air.TypeInteger, IntWidth: 32}
	vecTy := &air.Type{Kind: air.TypeVector, Elem: floatTy, Length: 4}

	floatID, err := l.lowerType(floatTy)
	if err != nil {
		t.Fatalf("lowerType(float): %v", err)
	}
	boolID, err := l.lowerType(boolTy)
	if err != nil {
		t.Fatalf("lowerType(bool): %v", err)
	}
	i32ID, err := l.lowerType(i32Ty)
	if err != nil {
		t.Fatalf("lowerType(i32): %v", err)
	}
	vecID, err := l.lowerType(vecTy)
	if err != nil {
		t.Fatalf("lowerType(vec4): %v", err)
	}

	if floatID == 0 || boolID == 0 || i32ID == 0 || vecID == 0 {
		t.Fatalf("expected non-zero type ids, got float=%d bool=%d i32=%d vec=%d", floatID, boolID, i32ID, vecID)
	}
	if floatID == boolID || boolID == i32ID || i32ID == vecID {
		t.Fatalf("distinct types must get distinct ids: float=%d bool=%d i32=%d vec=%d", floatID, boolID, i32ID, vecID)
	}

	// Memoization: lowering the same *air.Type pointer twice must return
	// the same id rather than emitting a duplicate OpType.
	floatID2, err := l.lowerType(floatTy)
	if err != nil {
		t.Fatalf("second lowerType(float): %v", err)
	}
	if floatID2 != floatID {
		t.Fatalf("lowerType not memoized: got %d and %d for the same *air.Type", floatID, floatID2)
	}
}

func TestLowerType_StructReturnsID(t *testing.T) {
	m := newTestModule()
	l := newTestLowerer(m)

	structTy := &air.Type{
		Kind:       air.TypeStruct,
		StructName: "Vertex",
		Elements: []*air.Type{
			{Kind: air.TypeVector, Elem: &air.Type{Kind: air.TypeFloat}, Length: 4},
			{Kind: air.TypeVector, Elem: &air.Type{Kind: air.TypeFloat}, Length: 2},
		},
	}

	id, err := l.lowerType(structTy)
	if err != nil {
		t.Fatalf("lowerType(struct): %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero struct type id")
	}
}

func TestLowerConstant_IntegerBoolAndFloat(t *testing.T) {
	m := newTestModule()
	l := newTestLowerer(m)

	boolTy := &air.Type{Kind: air.TypeInteger, IntWidth: 1}
	i32Ty := &air.Type{Kind: air.TypeInteger, IntWidth: 32}
	floatTy := &air.Type{Kind: air.TypeFloat}

	boolConst := &air.Constant{Type: boolTy, Value: air.ConstantValue{Kind: air.ConstantInteger, Integer: 1}}
	intConst := &air.Constant{Type: i32Ty, Value: air.ConstantValue{Kind: air.ConstantInteger, Integer: 42}}
	floatConst := &air.Constant{Type: floatTy, Value: air.ConstantValue{Kind: air.ConstantFloat32, Float32: 1.5}}
	nullConst := &air.Constant{Type: i32Ty, Value: air.ConstantValue{Kind: air.ConstantNull}}

	ids := make(map[string]uint32)
	for name, c := range map[string]*air.Constant{
		"bool": boolConst, "int": intConst, "float": floatConst, "null": nullConst,
	} {
		id, err := l.lowerConstant(c)
		if err != nil {
			t.Fatalf("lowerConstant(%s): %v", name, err)
		}
		if id == 0 {
			t.Fatalf("lowerConstant(%s) returned id 0", name)
		}
		ids[name] = id
	}
}

func TestLowerConstant_ArrayAndAggregate(t *testing.T) {
	m := newTestModule()
	l := newTestLowerer(m)

	i32Ty := &air.Type{Kind: air.TypeInteger, IntWidth: 32}
	arrTy := &air.Type{Kind: air.TypeArray, Elem: i32Ty, Length: 2}

	arrConst := &air.Constant{
		Type: arrTy,
		Value: air.ConstantValue{
			Kind: air.ConstantArray,
			Array: []air.ConstantValue{
				{Kind: air.ConstantInteger, Integer: 1},
				{Kind: air.ConstantInteger, Integer: 2},
			},
		},
	}
	id, err := l.lowerConstant(arrConst)
	if err != nil {
		t.Fatalf("lowerConstant(array): %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero array constant id")
	}

	// Aggregate referencing two module-level constants by id.
	m.Constants[0] = &air.Constant{Type: i32Ty, Value: air.ConstantValue{Kind: air.ConstantInteger, Integer: 10}}
	m.Constants[1] = &air.Constant{Type: i32Ty, Value: air.ConstantValue{Kind: air.ConstantInteger, Integer: 20}}
	aggConst := &air.Constant{
		Type:  arrTy,
		Value: air.ConstantValue{Kind: air.ConstantAggregate, Aggregate: []uint64{0, 1}},
	}
	aggID, err := l.lowerConstant(aggConst)
	if err != nil {
		t.Fatalf("lowerConstant(aggregate): %v", err)
	}
	if aggID == 0 {
		t.Fatal("expected non-zero aggregate constant id")
	}
}

func TestLowerGlobal_WithAndWithoutInitializer(t *testing.T) {
	m := newTestModule()
	l := newTestLowerer(m)

	i32Ty := &air.Type{Kind: air.TypeInteger, IntWidth: 32}
	m.Constants[0] = &air.Constant{Type: i32Ty, Value: air.ConstantValue{Kind: air.ConstantInteger, Integer: 7}}

	withInit := &air.GlobalVariable{
		Name:       &air.TableString{Content: "g_counter"},
		Type:       i32Ty,
		IsConstant: true,
		InitID:     1, // references m.Constants[0]
	}
	id1, err := l.lowerGlobal(withInit)
	if err != nil {
		t.Fatalf("lowerGlobal(with init): %v", err)
	}
	if id1 == 0 {
		t.Fatal("expected non-zero global id")
	}

	noInit := &air.GlobalVariable{
		Name:       &air.TableString{Content: "g_scratch"},
		Type:       i32Ty,
		IsConstant: false,
		InitID:     0,
	}
	id2, err := l.lowerGlobal(noInit)
	if err != nil {
		t.Fatalf("lowerGlobal(no init): %v", err)
	}
	if id2 == 0 || id2 == id1 {
		t.Fatalf("expected a distinct non-zero id, got %d (first was %d)", id2, id1)
	}
}

// buildSimpleVertexModule constructs a tiny module by hand: one vertex
// entry function taking a float parameter and returning it plus a
// float constant (a BINOP add of the parameter and 1.0, then RET), with the
// air.vertex named-metadata descriptor a real Metal compiler front end
// would emit for it.
func buildSimpleVertexModule() *air.Module {
	m := newTestModule()
	m.UseRelativeIDs = false

	floatTy := &air.Type{Kind: air.TypeFloat}
	fnTy := &air.Type{Kind: air.TypeFunction, ReturnType: floatTy, Params: []*air.Type{floatTy}}
	m.Types = []*air.Type{floatTy, fnTy}

	oneConst := &air.Constant{Type: floatTy, Value: air.ConstantValue{Kind: air.ConstantFloat32, Float32: 1}}
	m.Constants[0] = oneConst

	// Value list order: the function first (id pre-allocated before any
	// constant/global), then the one module-level constant, matching
	// Module.finish's "globals/functions, then constants in id order".
	m.Values = append(m.Values, air.AirValue{Kind: air.AirValueFunction, ID: 0})
	m.Values = append(m.Values, air.AirValue{Kind: air.AirValueConstant, ID: 0})

	// n (module-wide value count) is 2; the function body's one
	// parameter becomes locals[0]. UseRelativeIDs is false, so raw
	// operand ids below are plain absolute indices into
	// moduleValueIDs++locals: 1 selects the constant (Values[1]), 2
	// selects the parameter (n+0), 3 selects the BINOP's own result
	// (n+1) once it has been produced.
	fn := &air.FunctionSignature{
		Name: &air.TableString{Content: "vertex_main"},
		Type: fnTy,
		Body: &air.FunctionBody{
			NumBlocks: 1,
			Instructions: []air.Instruction{
				{
					Kind:   air.InstBinOp,
					Code:   bitcode.FuncInstBinop,
					Fields: bitcode.Fields{uint64(bitcode.BinOpAdd), 0, 2, 1},
				},
				{
					Kind:   air.InstRet,
					Code:   bitcode.FuncInstRet,
					Fields: bitcode.Fields{0, 3},
				},
			},
		},
	}
	m.Functions = append(m.Functions, fn)

	// Named metadata: air.vertex -> [entryNode]
	// entryNode operands: [fn_ref, outputs_node]
	// fn_ref metadata VALUE resolves (via ConstantUnresolved) to function index 0.
	// outputs_node lists one value descriptor node: [role="air.position"].
	roleStrIdx := uint64(len(m.MetadataStrings))
	m.MetadataStrings = append(m.MetadataStrings, "air.position")

	fnRefID := uint64(len(m.MetadataConstants) + 1)
	m.MetadataConstants = append(m.MetadataConstants, air.MetadataConstant{
		Kind:  air.MetadataConstantValue,
		Value: air.ConstantValue{Kind: air.ConstantUnresolved, Unresolved: 0},
	})

	propListID := uint64(len(m.MetadataConstants) + 1)
	m.MetadataConstants = append(m.MetadataConstants, air.MetadataConstant{
		Kind:     air.MetadataConstantNode,
		Operands: bitcode.Fields{roleStrIdx},
	})

	outputsNodeID := uint64(len(m.MetadataConstants) + 1)
	m.MetadataConstants = append(m.MetadataConstants, air.MetadataConstant{
		Kind:     air.MetadataConstantNode,
		Operands: bitcode.Fields{propListID},
	})

	entryNodeID := uint64(len(m.MetadataConstants) + 1)
	m.MetadataConstants = append(m.MetadataConstants, air.MetadataConstant{
		Kind:     air.MetadataConstantNode,
		Operands: bitcode.Fields{fnRefID, outputsNodeID},
	})

	m.MetadataConstants = append(m.MetadataConstants, air.MetadataConstant{
		Kind:     air.MetadataConstantNode,
		Name:     "air.vertex",
		Operands: bitcode.Fields{entryNodeID},
	})

	return m
}

func TestLower_EndToEnd_VertexEntryPoint(t *testing.T) {
	m := buildSimpleVertexModule()

	spv, err := Lower(m, Options{Version: spirv.Version{Major: 1, Minor: 0}, Logger: diag.NewNopLogger()})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	words := spirvWords(spv)
	if len(words) < 5 {
		t.Fatalf("SPIR-V module too small: %d words", len(words))
	}
	if words[0] != spirv.MagicNumber {
		t.Fatalf("bad magic: got 0x%08X want 0x%08X", words[0], spirv.MagicNumber)
	}

	foundEntryPoint := false
	foundFunction := false
	offset := 5
	for offset < len(words) {
		word := words[offset]
		opcode := spirv.OpCode(word & 0xFFFF)
		wordCount := int(word >> 16)
		if wordCount == 0 {
			t.Fatalf("zero word count at offset %d", offset)
		}
		switch opcode {
		case spirv.OpEntryPoint:
			foundEntryPoint = true
		case spirv.OpFunction:
			foundFunction = true
		}
		offset += wordCount
	}

	if !foundEntryPoint {
		t.Error("expected an OpEntryPoint in the lowered module")
	}
	if !foundFunction {
		t.Error("expected an OpFunction in the lowered module")
	}
}

func TestLower_TolerantSkipsUnknownInstruction(t *testing.T) {
	m := newTestModule()
	floatTy := &air.Type{Kind: air.TypeFloat}
	fnTy := &air.Type{Kind: air.TypeFunction, ReturnType: &air.Type{Kind: air.TypeVoid}}

	fn := &air.FunctionSignature{
		Name: &air.TableString{Content: "weird"},
		Type: fnTy,
		Body: &air.FunctionBody{
			NumBlocks: 1,
			Instructions: []air.Instruction{
				{Kind: air.InstOther, Code: bitcode.FunctionCodes(999), Fields: bitcode.Fields{1, 2, 3}},
				{Kind: air.InstRet, Code: bitcode.FuncInstRet, Fields: bitcode.Fields{}},
			},
		},
	}
	_ = floatTy
	m.Functions = append(m.Functions, fn)
	m.Values = append(m.Values, air.AirValue{Kind: air.AirValueFunction, ID: 0})

	_, err := Lower(m, Options{Tolerant: true, Logger: diag.NewNopLogger()})
	if err != nil {
		t.Fatalf("Lower with Tolerant=true should not fail on an unknown instruction: %v", err)
	}

	_, err = Lower(m, Options{Tolerant: false, Logger: diag.NewNopLogger()})
	if err == nil {
		t.Fatal("Lower with Tolerant=false should fail on an unknown instruction")
	}
}
