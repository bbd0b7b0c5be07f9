package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// TypeKind tags the Type union. AIR's type table is a flat, append-only
// list; composite kinds reference earlier entries by pointer rather
// than by index, since the table never needs to look an entry up by
// position once built.
type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeFloat
	TypeInteger
	TypePointer
	TypeArray
	TypeVector
	TypeStruct
	TypeFunction
	TypeMetadata
)

// Type is one entry of the AIR type table.
type Type struct {
	Kind TypeKind

	// Integer
	IntWidth uint64

	// Pointer
	AddrSpace uint64
	Pointee   *Type

	// Array / Vector
	Elem   *Type
	Length uint64

	// Struct
	StructName   string
	StructPacked bool
	Elements     []*Type

	// Function
	Vararg     bool
	ReturnType *Type
	Params     []*Type
}

// decodeTypes consumes a TYPE_BLOCK's records in order, building the
// flat type table: STRUCT_NAME buffers a name consumed by the next
// STRUCT_NAMED/ANON record, and every composite record indexes
// previously appended entries by position.
func decodeTypes(s *bitcode.Stream) ([]*Type, error) {
	var table []*Type
	var pendingStructName string

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding type table: %w", err)
		}

		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return table, nil
		case bitcode.EntrySubBlock:
			return nil, fmt.Errorf("%w: unexpected sub-block inside TYPE_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			t, err := decodeTypeRecord(table, bitcode.TypeCode(record.Code), record.Fields, &pendingStructName)
			if err != nil {
				return nil, err
			}
			if t != nil {
				table = append(table, t)
			}
		}
	}
}

func typeAt(table []*Type, idx uint64) (*Type, error) {
	if idx >= uint64(len(table)) {
		return nil, fmt.Errorf("%w: type index %d out of range (table has %d entries)", diag.ErrSemanticMismatch, idx, len(table))
	}
	return table[idx], nil
}

func decodeTypeRecord(table []*Type, code bitcode.TypeCode, fields bitcode.Fields, pendingStructName *string) (*Type, error) {
	switch code {
	case bitcode.TypeNumEntry:
		return nil, nil // capacity hint only
	case bitcode.TypeVoid:
		return &Type{Kind: TypeVoid}, nil
	case bitcode.TypeFloat:
		return &Type{Kind: TypeFloat}, nil
	case bitcode.TypeMetadata:
		return &Type{Kind: TypeMetadata}, nil
	case bitcode.TypeInteger:
		if len(fields) < 1 {
			return nil, fmt.Errorf("%w: INTEGER type record missing width", diag.ErrMalformedStream)
		}
		return &Type{Kind: TypeInteger, IntWidth: fields[0]}, nil
	case bitcode.TypePointer:
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: POINTER type record missing operands", diag.ErrMalformedStream)
		}
		pointee, err := typeAt(table, fields[0])
		if err != nil {
			return nil, err
		}
		return &Type{Kind: TypePointer, Pointee: pointee, AddrSpace: fields[1]}, nil
	case bitcode.TypeArray, bitcode.TypeVector:
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: ARRAY/VECTOR type record missing operands", diag.ErrMalformedStream)
		}
		elem, err := typeAt(table, fields[1])
		if err != nil {
			return nil, err
		}
		kind := TypeArray
		if code == bitcode.TypeVector {
			kind = TypeVector
		}
		return &Type{Kind: kind, Length: fields[0], Elem: elem}, nil
	case bitcode.TypeStructName:
		*pendingStructName = fieldsToString(fields)
		return nil, nil
	case bitcode.TypeStructNamed, bitcode.TypeStructAnon:
		if len(fields) < 1 {
			return nil, fmt.Errorf("%w: STRUCT type record missing packed flag", diag.ErrMalformedStream)
		}
		elements := make([]*Type, 0, len(fields)-1)
		for _, idx := range fields[1:] {
			elem, err := typeAt(table, idx)
			if err != nil {
				return nil, err
			}
			elements = append(elements, elem)
		}
		name := *pendingStructName
		*pendingStructName = ""
		return &Type{
			Kind:         TypeStruct,
			StructName:   name,
			StructPacked: fields[0] != 0,
			Elements:     elements,
		}, nil
	case bitcode.TypeFunction:
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: FUNCTION type record missing operands", diag.ErrMalformedStream)
		}
		ret, err := typeAt(table, fields[1])
		if err != nil {
			return nil, err
		}
		params := make([]*Type, 0, len(fields)-2)
		for _, idx := range fields[2:] {
			p, err := typeAt(table, idx)
			if err != nil {
				return nil, err
			}
			params = append(params, p)
		}
		return &Type{Kind: TypeFunction, Vararg: fields[0] != 0, ReturnType: ret, Params: params}, nil
	default:
		return nil, fmt.Errorf("%w: unhandled TYPE_BLOCK record code %d", diag.ErrSemanticMismatch, code)
	}
}

// fieldsToString renders a record's fields as a string, one byte per
// field, the encoding TRIPLE, DATALAYOUT, STRUCT_NAME, and similar
// textual records use.
func fieldsToString(fields bitcode.Fields) string {
	b := make([]byte, len(fields))
	for i, f := range fields {
		b[i] = byte(f)
	}
	return string(b)
}
