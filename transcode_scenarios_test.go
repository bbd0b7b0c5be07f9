package airlines

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/spirv"
)

// spvInst is one decoded SPIR-V instruction: its opcode and operand
// words (without the leading word-count/opcode word).
type spvInst struct {
	op    spirv.OpCode
	words []uint32
}

// parseSPIRV splits a SPIR-V binary into its 5-word header and its
// instruction stream, failing the test on any framing error. It is the
// reference-parser half of the round-trip checks below.
func parseSPIRV(t *testing.T, spv []byte) ([]uint32, []spvInst) {
	t.Helper()

	if len(spv)%4 != 0 {
		t.Fatalf("SPIR-V length %d is not word-aligned", len(spv))
	}
	words := make([]uint32, len(spv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spv[i*4:])
	}
	if len(words) < 5 {
		t.Fatalf("SPIR-V too short: %d words", len(words))
	}
	if words[0] != spirv.MagicNumber {
		t.Fatalf("bad magic: got 0x%08X", words[0])
	}

	var insts []spvInst
	offset := 5
	for offset < len(words) {
		first := words[offset]
		wordCount := int(first >> 16)
		if wordCount == 0 || offset+wordCount > len(words) {
			t.Fatalf("bad word count %d at offset %d", wordCount, offset)
		}
		insts = append(insts, spvInst{
			op:    spirv.OpCode(first & 0xFFFF),
			words: words[offset+1 : offset+wordCount],
		})
		offset += wordCount
	}
	return words[:5], insts
}

// decodeSPIRVString decodes a nul-terminated string starting at
// words[idx], returning the string and the number of words it spans.
func decodeSPIRVString(words []uint32, idx int) (string, int) {
	var b []byte
	for i := idx; i < len(words); i++ {
		w := words[i]
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(b), i - idx + 1
			}
			b = append(b, c)
		}
	}
	return string(b), len(words) - idx
}

func findInsts(insts []spvInst, op spirv.OpCode) []spvInst {
	var out []spvInst
	for _, inst := range insts {
		if inst.op == op {
			out = append(out, inst)
		}
	}
	return out
}

func TestTranscode_EmptyModule(t *testing.T) {
	top := bitcode.NewStreamWriter(2)

	ident := top.BeginSubblock(uint64(bitcode.BlockIdentification), 3)
	ident.UnabbrevRecord(uint64(bitcode.IdentificationString), strFields("airlines")...)
	ident.UnabbrevRecord(uint64(bitcode.IdentificationEpoch), 0)
	top.EndSubblock(ident)

	mod := top.BeginSubblock(uint64(bitcode.BlockModule), 4)
	mod.UnabbrevRecord(uint64(bitcode.ModuleVersion), 1)
	mod.UnabbrevRecord(uint64(bitcode.ModuleTriple), strFields("air64-apple-macosx15.0.0")...)
	mod.UnabbrevRecord(uint64(bitcode.ModuleDataLayout), strFields("e-m:o-i64:64-f80:128-n8:16:32:64-S128")...)
	top.EndSubblock(mod)

	spv, err := Transcode(top.Finish(), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	header, insts := parseSPIRV(t, spv)
	if header[1] != 0x00010000 {
		t.Errorf("version word = 0x%08X, want 0x00010000 (SPIR-V 1.0)", header[1])
	}
	if header[3] != 1 {
		t.Errorf("bound = %d, want 1 (an empty module allocates no ids)", header[3])
	}

	// Shader transitively enables Matrix, so the closed set is what the
	// preamble's one AddCapability call actually emits.
	var caps []spirv.Capability
	for _, c := range findInsts(insts, spirv.OpCapability) {
		caps = append(caps, spirv.Capability(c.words[0]))
	}
	wantCaps := []spirv.Capability{spirv.CapabilityShader, spirv.CapabilityMatrix}
	if len(caps) != len(wantCaps) {
		t.Fatalf("capabilities = %v, want %v", caps, wantCaps)
	}
	for i := range wantCaps {
		if caps[i] != wantCaps[i] {
			t.Errorf("capabilities = %v, want %v (first-insertion order)", caps, wantCaps)
		}
	}

	mems := findInsts(insts, spirv.OpMemoryModel)
	if len(mems) != 1 {
		t.Fatalf("got %d OpMemoryModel, want 1", len(mems))
	}
	if spirv.AddressingModel(mems[0].words[0]) != spirv.AddressingModelLogical ||
		spirv.MemoryModel(mems[0].words[1]) != spirv.MemoryModelGLSL450 {
		t.Errorf("memory model = %v, want Logical/GLSL450", mems[0].words)
	}

	if eps := findInsts(insts, spirv.OpEntryPoint); len(eps) != 0 {
		t.Errorf("got %d entry points, want 0", len(eps))
	}
}

func TestTranscode_SingleIntegerConstant(t *testing.T) {
	top := bitcode.NewStreamWriter(2)
	mod := top.BeginSubblock(uint64(bitcode.BlockModule), 4)
	mod.UnabbrevRecord(uint64(bitcode.ModuleVersion), 1)

	typeBlock := mod.BeginSubblock(uint64(bitcode.BlockType), 4)
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeInteger), 32)
	mod.EndSubblock(typeBlock)

	constBlock := mod.BeginSubblock(uint64(bitcode.BlockConstants), 4)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantSetType), 0)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantInteger), 42)
	mod.EndSubblock(constBlock)

	top.EndSubblock(mod)

	spv, err := Transcode(top.Finish(), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	header, insts := parseSPIRV(t, spv)

	ints := findInsts(insts, spirv.OpTypeInt)
	if len(ints) != 1 {
		t.Fatalf("got %d OpTypeInt, want 1", len(ints))
	}
	if ints[0].words[0] != 1 || ints[0].words[1] != 32 || ints[0].words[2] != 0 {
		t.Errorf("OpTypeInt = %v, want [1, 32, 0]", ints[0].words)
	}

	consts := findInsts(insts, spirv.OpConstant)
	if len(consts) != 1 {
		t.Fatalf("got %d OpConstant, want 1", len(consts))
	}
	if consts[0].words[0] != 1 || consts[0].words[1] != 2 || consts[0].words[2] != 42 {
		t.Errorf("OpConstant = %v, want [1, 2, 42]", consts[0].words)
	}

	if header[3] != 3 {
		t.Errorf("bound = %d, want 3 (one past the constant's id)", header[3])
	}
}

func TestTranscode_NamedStruct(t *testing.T) {
	top := bitcode.NewStreamWriter(2)
	mod := top.BeginSubblock(uint64(bitcode.BlockModule), 4)
	mod.UnabbrevRecord(uint64(bitcode.ModuleVersion), 1)

	typeBlock := mod.BeginSubblock(uint64(bitcode.BlockType), 4)
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeFloat))
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeStructName), strFields("Point")...)
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeStructNamed), 0, 0, 0) // unpacked, [float, float]
	mod.EndSubblock(typeBlock)

	top.EndSubblock(mod)

	spv, err := Transcode(top.Finish(), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	_, insts := parseSPIRV(t, spv)

	floats := findInsts(insts, spirv.OpTypeFloat)
	if len(floats) != 1 || floats[0].words[1] != 32 {
		t.Fatalf("OpTypeFloat = %v, want one 32-bit entry", floats)
	}
	floatID := floats[0].words[0]
	if floatID != 1 {
		t.Errorf("OpTypeFloat id = %d, want 1", floatID)
	}

	structs := findInsts(insts, spirv.OpTypeStruct)
	if len(structs) != 1 {
		t.Fatalf("got %d OpTypeStruct, want 1", len(structs))
	}
	structID := structs[0].words[0]
	if structID != 2 {
		t.Errorf("OpTypeStruct id = %d, want 2", structID)
	}
	if len(structs[0].words) != 3 || structs[0].words[1] != floatID || structs[0].words[2] != floatID {
		t.Errorf("OpTypeStruct members = %v, want [%d, %d]", structs[0].words[1:], floatID, floatID)
	}

	foundName := false
	for _, name := range findInsts(insts, spirv.OpName) {
		s, _ := decodeSPIRVString(name.words, 1)
		if name.words[0] == structID && s == "Point" {
			foundName = true
		}
	}
	if !foundName {
		t.Errorf("no OpName %d \"Point\" emitted", structID)
	}

	memberNames := findInsts(insts, spirv.OpMemberName)
	if len(memberNames) != 2 {
		t.Errorf("got %d OpMemberName, want 2", len(memberNames))
	}
}

func TestTranscode_AggregateForwardReference(t *testing.T) {
	top := bitcode.NewStreamWriter(2)
	mod := top.BeginSubblock(uint64(bitcode.BlockModule), 4)
	mod.UnabbrevRecord(uint64(bitcode.ModuleVersion), 1)

	typeBlock := mod.BeginSubblock(uint64(bitcode.BlockType), 4)
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeInteger), 32) // type 0: i32
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeArray), 2, 0) // type 1: [2 x i32]
	mod.EndSubblock(typeBlock)

	// The aggregate references constant ids 2 and 3 before their
	// producers appear; the decoder must patch the placeholders once
	// the INTEGER records arrive.
	constBlock := mod.BeginSubblock(uint64(bitcode.BlockConstants), 4)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantSetType), 1)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantAggregate), 2, 3)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantSetType), 0)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantInteger), 7)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantInteger), 11)
	mod.EndSubblock(constBlock)

	top.EndSubblock(mod)

	spv, err := Transcode(top.Finish(), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	_, insts := parseSPIRV(t, spv)

	constsByID := make(map[uint32]spvInst)
	for _, c := range findInsts(insts, spirv.OpConstant) {
		constsByID[c.words[1]] = c
	}

	composites := findInsts(insts, spirv.OpConstantComposite)
	if len(composites) != 1 {
		t.Fatalf("got %d OpConstantComposite, want 1", len(composites))
	}
	members := composites[0].words[2:]
	if len(members) != 2 {
		t.Fatalf("composite has %d members, want 2", len(members))
	}
	wantValues := []uint32{7, 11}
	for i, memberID := range members {
		member, ok := constsByID[memberID]
		if !ok {
			t.Fatalf("composite member %d references id %d, which is not an OpConstant", i, memberID)
		}
		if member.words[2] != wantValues[i] {
			t.Errorf("member %d value = %d, want %d", i, member.words[2], wantValues[i])
		}
	}
}

// buildVertexEntryBitcode assembles a complete bitstream for a module
// with one vertex entry function float4 vmain(u32 vid) returning a
// constant position, described by the air.vertex metadata convention:
// one descriptor node [fn_ref, outputs, inputs], the output tagged
// air.position and the input air.vertex_id.
func buildVertexEntryBitcode(t *testing.T) []byte {
	t.Helper()

	const fnName = "vmain"
	oneBits := uint64(math.Float32bits(1.0))

	top := bitcode.NewStreamWriter(2)
	mod := top.BeginSubblock(uint64(bitcode.BlockModule), 4)
	mod.UnabbrevRecord(uint64(bitcode.ModuleVersion), 1)
	mod.UnabbrevRecord(uint64(bitcode.ModuleTriple), strFields("air64-apple-macosx15.0.0")...)

	typeBlock := mod.BeginSubblock(uint64(bitcode.BlockType), 4)
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeFloat))              // 0: float
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeVector), 4, 0)       // 1: float4
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeInteger), 32)        // 2: u32
	typeBlock.UnabbrevRecord(uint64(bitcode.TypeFunction), 0, 1, 2)  // 3: float4(u32)
	mod.EndSubblock(typeBlock)

	mod.UnabbrevRecord(uint64(bitcode.ModuleFunction), 0, uint64(len(fnName)), 3, 0, 0)

	constBlock := mod.BeginSubblock(uint64(bitcode.BlockConstants), 4)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantSetType), 1)
	constBlock.UnabbrevRecord(uint64(bitcode.ConstantData), oneBits, oneBits, oneBits, oneBits)
	mod.EndSubblock(constBlock)

	mdBlock := mod.BeginSubblock(uint64(bitcode.BlockMetadata), 4)
	// String pool: #0 "air.position", #1 "air.vertex_id". Their lengths,
	// 12 and 13, form a VBR-6 bit stream (12 | 13<<6 = 0x34C) held in
	// the two length bytes 0x4C, 0x03.
	stringsFields := []uint64{2, 2, 0x4C, 0x03}
	stringsFields = append(stringsFields, strFields("air.position")...)
	stringsFields = append(stringsFields, strFields("air.vertex_id")...)
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataStrings), stringsFields...)
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataValue), 3, 0)  // md 1: fn_ref -> function 0
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataNode), 0)      // md 2: output props [air.position]
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataNode), 2)      // md 3: outputs node
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataNode), 1)      // md 4: input props [air.vertex_id]
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataNode), 4)      // md 5: inputs node
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataNode), 1, 3, 5) // md 6: entry descriptor
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataName), strFields("air.vertex")...)
	mdBlock.UnabbrevRecord(uint64(bitcode.MetadataNamedNode), 6) // md 7: air.vertex
	mod.EndSubblock(mdBlock)

	fnBody := mod.BeginSubblock(uint64(bitcode.BlockFunction), 4)
	fnBody.UnabbrevRecord(uint64(bitcode.FuncDeclareBlocks), 1)
	// Relative operand: values so far = 2 module-wide + 1 parameter;
	// raw 2 selects the float4 constant (absolute value 1).
	fnBody.UnabbrevRecord(uint64(bitcode.FuncInstRet), 1, 2)
	mod.EndSubblock(fnBody)

	top.EndSubblock(mod)

	strtabBlock := top.BeginSubblock(uint64(bitcode.BlockStrtab), 3)
	strtabBlock.UnabbrevRecord(1, strFields(fnName)...)
	top.EndSubblock(strtabBlock)

	return top.Finish()
}

func TestTranscode_VertexEntryPoint(t *testing.T) {
	spv, err := Transcode(buildVertexEntryBitcode(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	_, insts := parseSPIRV(t, spv)

	caps := make(map[spirv.Capability]bool)
	for _, c := range findInsts(insts, spirv.OpCapability) {
		caps[spirv.Capability(c.words[0])] = true
	}
	if !caps[spirv.CapabilityShader] {
		t.Error("Shader capability missing")
	}

	eps := findInsts(insts, spirv.OpEntryPoint)
	if len(eps) != 1 {
		t.Fatalf("got %d OpEntryPoint, want 1", len(eps))
	}
	ep := eps[0]
	if spirv.ExecutionModel(ep.words[0]) != spirv.ExecutionModelVertex {
		t.Errorf("execution model = %d, want Vertex", ep.words[0])
	}
	name, nameWords := decodeSPIRVString(ep.words, 2)
	if name != "vmain" {
		t.Errorf("entry point name = %q, want %q", name, "vmain")
	}
	interfaceIDs := ep.words[2+nameWords:]
	if len(interfaceIDs) != 2 {
		t.Fatalf("interface list = %v, want 2 ids", interfaceIDs)
	}

	// Storage class by variable id.
	varStorage := make(map[uint32]spirv.StorageClass)
	for _, v := range findInsts(insts, spirv.OpVariable) {
		varStorage[v.words[1]] = spirv.StorageClass(v.words[2])
	}
	// BuiltIn decoration by variable id.
	varBuiltin := make(map[uint32]spirv.BuiltIn)
	for _, d := range findInsts(insts, spirv.OpDecorate) {
		if spirv.Decoration(d.words[1]) == spirv.DecorationBuiltIn {
			varBuiltin[d.words[0]] = spirv.BuiltIn(d.words[2])
		}
	}

	positionVars := 0
	vertexIndexVars := 0
	for id, builtin := range varBuiltin {
		switch builtin {
		case spirv.BuiltInPosition:
			positionVars++
			if varStorage[id] != spirv.StorageClassOutput {
				t.Errorf("BuiltIn Position variable %d has storage class %d, want Output", id, varStorage[id])
			}
			if !containsID(interfaceIDs, id) {
				t.Errorf("BuiltIn Position variable %d missing from interface list %v", id, interfaceIDs)
			}
		case spirv.BuiltInVertexIndex:
			vertexIndexVars++
			if varStorage[id] != spirv.StorageClassInput {
				t.Errorf("BuiltIn VertexIndex variable %d has storage class %d, want Input", id, varStorage[id])
			}
			if !containsID(interfaceIDs, id) {
				t.Errorf("BuiltIn VertexIndex variable %d missing from interface list %v", id, interfaceIDs)
			}
		}
	}
	if positionVars != 1 {
		t.Errorf("got %d BuiltIn Position variables, want exactly 1", positionVars)
	}
	if vertexIndexVars != 1 {
		t.Errorf("got %d BuiltIn VertexIndex variables, want exactly 1", vertexIndexVars)
	}
}

func containsID(ids []uint32, id uint32) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestTranscode_TypesDeclaredBeforeUse(t *testing.T) {
	spv, err := Transcode(buildVertexEntryBitcode(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	_, insts := parseSPIRV(t, spv)

	declared := make(map[uint32]bool)
	for _, inst := range insts {
		switch inst.op {
		case spirv.OpTypeVector, spirv.OpTypeArray, spirv.OpTypePointer:
			ref := inst.words[1]
			if inst.op == spirv.OpTypePointer {
				ref = inst.words[2]
			}
			if !declared[ref] {
				t.Errorf("%d references type id %d before its declaration", inst.op, ref)
			}
		case spirv.OpTypeStruct, spirv.OpTypeFunction:
			for _, ref := range inst.words[1:] {
				if !declared[ref] {
					t.Errorf("%d references type id %d before its declaration", inst.op, ref)
				}
			}
		}
		switch inst.op {
		case spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeInt, spirv.OpTypeFloat,
			spirv.OpTypeVector, spirv.OpTypeArray, spirv.OpTypeStruct,
			spirv.OpTypePointer, spirv.OpTypeFunction:
			declared[inst.words[0]] = true
		}
	}
}

func TestModuleBuilder_GeometryCapabilityClosureOrder(t *testing.T) {
	builder := spirv.NewModuleBuilder(spirv.Version1_0)
	builder.AddCapability(spirv.CapabilityGeometry)
	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	_, insts := parseSPIRV(t, builder.Build())

	var got []spirv.Capability
	for _, c := range findInsts(insts, spirv.OpCapability) {
		got = append(got, spirv.Capability(c.words[0]))
	}
	want := []spirv.Capability{spirv.CapabilityGeometry, spirv.CapabilityShader, spirv.CapabilityMatrix}
	if len(got) != len(want) {
		t.Fatalf("capabilities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("capabilities = %v, want %v (first-insertion order)", got, want)
		}
	}
}
