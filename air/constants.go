package air

import (
	"fmt"
	"math"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// ConstantKind tags the ConstantValue union.
type ConstantKind int

const (
	ConstantInteger ConstantKind = iota
	ConstantFloat32
	ConstantNull
	ConstantUndefined
	ConstantPoison
	ConstantArray
	ConstantAggregate
	ConstantPointer
	ConstantUnresolved
)

// ConstantValue is the decoded payload of one Constant table entry.
type ConstantValue struct {
	Kind ConstantKind

	Integer uint64
	Float32 float32
	Pointer uint64

	// Array holds homogeneous DATA-record elements, recursively
	// decoded under the element type.
	Array []ConstantValue

	// Aggregate holds forward-reference-tolerant ids into the owning
	// Module's Constants table.
	Aggregate []uint64

	// Unresolved carries the id of a constant referenced before it
	// was produced. The record that later produces that id fills the
	// same table entry in place; Module.finish reports any entry that
	// is still unresolved once the whole module has been decoded.
	Unresolved uint64
}

// Constant is one entry of the AIR constants table.
type Constant struct {
	Type  *Type
	Value ConstantValue
}

func placeholderConstant(id uint64) *Constant {
	return &Constant{Type: &Type{Kind: TypeVoid}, Value: ConstantValue{Kind: ConstantUnresolved, Unresolved: id}}
}

// decodeConstants decodes one CONSTANTS_BLOCK's records into table,
// continuing the shared maxID counter (AIR constant ids are a single
// module-wide space spanning the module-level block and every
// function-local block). The counter also advances on SETTYPE, with
// one quirk the wire format depends on: a SETTYPE immediately
// following an AGGREGATE or DATA record retypes the value that record
// just produced rather than starting a new slot.
func decodeConstants(s *bitcode.Stream, types []*Type, table map[uint64]*Constant, maxID *uint64) error {
	currentType := &Type{Kind: TypeVoid}
	skipCounterAfterSetType := false

	for {
		entry, err := s.Advance()
		if err != nil {
			return fmt.Errorf("decoding constants block: %w", err)
		}

		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return nil
		case bitcode.EntrySubBlock:
			return fmt.Errorf("%w: unexpected sub-block inside CONSTANTS_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			code := bitcode.ConstantsCode(record.Code)

			if code == bitcode.ConstantSetType {
				if len(record.Fields) < 1 {
					return fmt.Errorf("%w: SETTYPE missing type index", diag.ErrMalformedStream)
				}
				t, err := typeAt(types, record.Fields[0])
				if err != nil {
					return err
				}
				currentType = t
				if skipCounterAfterSetType {
					skipCounterAfterSetType = false
					if prev, ok := table[*maxID-1]; ok {
						prev.Type = t
					}
					continue
				}
				*maxID++
				continue
			}

			slot := func() *Constant {
				c, ok := table[*maxID]
				if !ok {
					c = placeholderConstant(*maxID)
					table[*maxID] = c
				}
				return c
			}

			switch code {
			case bitcode.ConstantInteger:
				if len(record.Fields) < 1 {
					return fmt.Errorf("%w: INTEGER constant missing value", diag.ErrMalformedStream)
				}
				c := slot()
				c.Type = currentType
				c.Value = ConstantValue{Kind: ConstantInteger, Integer: record.Fields[0]}
			case bitcode.ConstantNull:
				c := slot()
				c.Type = currentType
				c.Value = ConstantValue{Kind: ConstantNull}
			case bitcode.ConstantUndef:
				c := slot()
				c.Type = currentType
				c.Value = ConstantValue{Kind: ConstantUndefined}
			case bitcode.ConstantPoison:
				c := slot()
				c.Type = currentType
				c.Value = ConstantValue{Kind: ConstantPoison}
			case bitcode.ConstantFloat:
				if len(record.Fields) < 1 {
					return fmt.Errorf("%w: FLOAT constant missing bit pattern", diag.ErrMalformedStream)
				}
				c := slot()
				c.Type = currentType
				c.Value = ConstantValue{Kind: ConstantFloat32, Float32: math.Float32frombits(uint32(record.Fields[0]))}
			case bitcode.ConstantAggregate:
				aggregate := decodeAggregate(table, record.Fields)
				c := slot()
				c.Type = currentType
				c.Value = aggregate
				skipCounterAfterSetType = true
			case bitcode.ConstantData:
				value, err := decodeConstantData(table, currentType, record.Fields)
				if err != nil {
					return err
				}
				c := slot()
				c.Type = currentType
				c.Value = value
				skipCounterAfterSetType = true
			default:
				return fmt.Errorf("%w: unhandled CONSTANTS_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
			}

			*maxID++
		}
	}
}

// decodeAggregate builds an Aggregate constant referencing earlier (or
// not-yet-seen) constant ids, materializing forward references as
// Unresolved placeholders in table so they can be patched once their
// producer arrives.
func decodeAggregate(table map[uint64]*Constant, fields bitcode.Fields) ConstantValue {
	ids := make([]uint64, len(fields))
	for i, id := range fields {
		ids[i] = id
		if _, ok := table[id]; !ok {
			table[id] = placeholderConstant(id)
		}
	}
	return ConstantValue{Kind: ConstantAggregate, Aggregate: ids}
}

// decodeConstantData decodes a DATA record: a flat sequence of raw
// values, each reinterpreted per containerType's element type.
func decodeConstantData(table map[uint64]*Constant, containerType *Type, fields bitcode.Fields) (ConstantValue, error) {
	var elem *Type
	switch containerType.Kind {
	case TypeArray, TypeVector:
		elem = containerType.Elem
	default:
		return ConstantValue{}, fmt.Errorf("%w: DATA record under non-array/vector current type", diag.ErrSemanticMismatch)
	}

	elems := make([]ConstantValue, len(fields))
	for i, raw := range fields {
		elems[i] = decodeScalarConstant(table, elem, raw)
	}
	return ConstantValue{Kind: ConstantArray, Array: elems}, nil
}

// decodeScalarConstant interprets a raw record value under ty, used
// both for DATA elements and for METADATA VALUE records. An Array-typed
// element reinterprets raw as a reference into the constants table
// rather than a literal bit pattern.
func decodeScalarConstant(table map[uint64]*Constant, ty *Type, raw uint64) ConstantValue {
	switch ty.Kind {
	case TypeFloat:
		return ConstantValue{Kind: ConstantFloat32, Float32: math.Float32frombits(uint32(raw))}
	case TypeInteger:
		return ConstantValue{Kind: ConstantInteger, Integer: raw}
	case TypePointer:
		return ConstantValue{Kind: ConstantPointer, Pointer: raw}
	case TypeArray:
		if table != nil {
			if c, ok := table[raw]; ok {
				return c.Value
			}
		}
		return ConstantValue{Kind: ConstantUnresolved, Unresolved: raw}
	default:
		return ConstantValue{Kind: ConstantUnresolved, Unresolved: raw}
	}
}
