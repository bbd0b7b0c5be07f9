package lower

import (
	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/spirv"
)

// addressSpaceStorageClass maps an AIR pointer address space to a
// SPIR-V storage class. AIR inherits Metal Shading Language's address
// space numbering (device=1, constant=2, threadgroup=3); there is no
// public Apple documentation of the raw integers the bitcode records,
// so this table follows Metal's own convention on the assumption that
// AIR does too. Anything outside the known range falls back to
// Private, the most permissive SPIR-V storage class for shader-local
// data.
func addressSpaceStorageClass(space uint64) spirv.StorageClass {
	switch space {
	case 0:
		return spirv.StorageClassFunction
	case 1:
		return spirv.StorageClassStorageBuffer
	case 2:
		return spirv.StorageClassUniform
	case 3:
		return spirv.StorageClassWorkgroup
	default:
		return spirv.StorageClassPrivate
	}
}

// lowerType emits t, memoizing by pointer identity: AIR's type table
// is already deduplicated at decode time, so identical *air.Type
// pointers always denote the same entry.
func (l *lowerer) lowerType(t *air.Type) (uint32, error) {
	if id, ok := l.types[t]; ok {
		return id, nil
	}

	var id uint32
	var err error

	switch t.Kind {
	case air.TypeVoid:
		id = l.builder.AddTypeVoid()
	case air.TypeFloat:
		id = l.builder.AddTypeFloat(32)
	case air.TypeInteger:
		if t.IntWidth == 1 {
			id = l.builder.AddTypeBool()
		} else {
			// AIR integers carry no signedness; signed and unsigned ops
			// are distinguished at the instruction level, so the type is
			// declared unsigned and the opcode decides.
			id = l.builder.AddTypeInt(uint32(t.IntWidth), false)
		}
	case air.TypeMetadata:
		// Metadata never participates in a value's SPIR-V type; callers
		// lowering an operand never reach this case in practice.
		id = l.builder.AddTypeVoid()
	case air.TypePointer:
		var base uint32
		base, err = l.lowerType(t.Pointee)
		if err != nil {
			return 0, err
		}
		id = l.builder.AddTypePointer(addressSpaceStorageClass(t.AddrSpace), base)
	case air.TypeArray:
		var elem uint32
		elem, err = l.lowerType(t.Elem)
		if err != nil {
			return 0, err
		}
		id = l.builder.AddTypeArray(elem, l.arrayLengthConstant(t.Length))
	case air.TypeVector:
		var elem uint32
		elem, err = l.lowerType(t.Elem)
		if err != nil {
			return 0, err
		}
		id = l.builder.AddTypeVector(elem, uint32(t.Length))
	case air.TypeStruct:
		id, err = l.lowerStructType(t)
		if err != nil {
			return 0, err
		}
	case air.TypeFunction:
		var ret uint32
		ret, err = l.lowerType(t.ReturnType)
		if err != nil {
			return 0, err
		}
		params := make([]uint32, len(t.Params))
		for i, p := range t.Params {
			params[i], err = l.lowerType(p)
			if err != nil {
				return 0, err
			}
		}
		id = l.builder.AddTypeFunction(ret, params...)
	}

	l.types[t] = id
	return id, nil
}

// lowerStructType emits a struct's member types and annotates each
// member with a byte offset. AIR carries no precomputed layout, so the
// offsets come from typeSizeBytes's naive, unpadded packing.
func (l *lowerer) lowerStructType(t *air.Type) (uint32, error) {
	members := make([]uint32, len(t.Elements))
	for i, elem := range t.Elements {
		id, err := l.lowerType(elem)
		if err != nil {
			return 0, err
		}
		members[i] = id
	}

	id := l.builder.AddTypeStruct(members...)
	if t.StructName != "" {
		l.builder.AddName(id, t.StructName)
		// AIR's type table records no member names; emit empty ones so
		// tooling still sees one OpMemberName per member.
		for i := range t.Elements {
			l.builder.AddMemberName(id, uint32(i), "")
		}
	}
	if t.StructPacked {
		l.builder.AddDecorate(id, spirv.DecorationCPacked)
	}

	offset := uint32(0)
	for i, elem := range t.Elements {
		l.builder.AddMemberDecorate(id, uint32(i), spirv.DecorationOffset, offset)
		offset += typeSizeBytes(elem)
	}

	return id, nil
}

// arrayLengthConstant returns (creating if needed) a uint32 constant
// holding n, the id form OpTypeArray requires for its length operand.
func (l *lowerer) arrayLengthConstant(n uint64) uint32 {
	if id, ok := l.arrayLens[n]; ok {
		return id
	}
	u32 := l.builder.AddTypeInt(32, false)
	id := l.builder.AddConstant(u32, uint32(n))
	l.arrayLens[n] = id
	return id
}

// typeSizeBytes estimates t's size for struct member offset packing.
// It does not model alignment padding: AIR's own struct layout is not
// recoverable from the bitcode this decoder reads, so offsets are a
// best-effort sequential packing rather than a faithful reproduction
// of Metal's actual layout rules.
func typeSizeBytes(t *air.Type) uint32 {
	switch t.Kind {
	case air.TypeFloat:
		return 4
	case air.TypeInteger:
		if t.IntWidth <= 8 {
			return 1
		}
		return uint32((t.IntWidth + 7) / 8)
	case air.TypePointer:
		return 8
	case air.TypeVector:
		return typeSizeBytes(t.Elem) * uint32(t.Length)
	case air.TypeArray:
		return typeSizeBytes(t.Elem) * uint32(t.Length)
	case air.TypeStruct:
		var total uint32
		for _, elem := range t.Elements {
			total += typeSizeBytes(elem)
		}
		return total
	default:
		return 0
	}
}
