package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// MetadataConstantKind tags the MetadataConstant union.
type MetadataConstantKind int

const (
	MetadataConstantValue MetadataConstantKind = iota
	MetadataConstantNode
)

// MetadataConstant is one entry of the metadata constants table.
// Entries are appended in decode order; the dense 1-based id a node
// is referred to by elsewhere is its position in this slice plus one
// (index 0 is id 1).
type MetadataConstant struct {
	Kind MetadataConstantKind

	// Value
	Value ConstantValue

	// Node / NamedNode
	Name     string
	Operands bitcode.Fields
}

// decodeMetadataKindBlock decodes a METADATA_KIND_BLOCK into a table
// keyed by kind id.
func decodeMetadataKindBlock(s *bitcode.Stream) (map[uint64]string, error) {
	result := make(map[uint64]string)

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding metadata kind block: %w", err)
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return result, nil
		case bitcode.EntrySubBlock:
			return nil, fmt.Errorf("%w: unexpected sub-block inside METADATA_KIND_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			if bitcode.MetadataCodes(record.Code) != bitcode.MetadataKind {
				return nil, fmt.Errorf("%w: unexpected METADATA_KIND_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
			}
			if len(record.Fields) < 1 {
				return nil, fmt.Errorf("%w: KIND record missing id", diag.ErrMalformedStream)
			}
			result[record.Fields[0]] = fieldsToString(record.Fields[1:])
		}
	}
}

// decodeMetadataStrings decodes a METADATA_BLOCK STRINGS record: a
// count of strings, an offset to the character blob, a VBR-6 stream of
// per-string lengths packed one-byte-per-field, followed eventually by
// the flat character data. The length stream is decoded with its own
// bit cursor over just the length bytes.
func decodeMetadataStrings(fields bitcode.Fields) ([]string, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: STRINGS record missing count/offset", diag.ErrMalformedStream)
	}
	count := fields[0]
	offset := fields[1]

	if uint64(len(fields)) < 2+offset {
		return nil, fmt.Errorf("%w: STRINGS record truncated length stream", diag.ErrTruncated)
	}

	lengthBytes := make([]byte, offset)
	for i := uint64(0); i < offset; i++ {
		lengthBytes[i] = byte(fields[2+i])
	}

	cursor := bitcode.NewCursor(lengthBytes)

	result := make([]string, 0, count)
	pointer := uint64(0)
	for i := uint64(0); i < count; i++ {
		size, err := cursor.ReadVBR(6)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata string length %d: %w", i, err)
		}
		end := pointer + size
		base := offset + 2
		if base+end > uint64(len(fields)) {
			return nil, fmt.Errorf("%w: metadata string %d exceeds field bounds", diag.ErrTruncated, i)
		}
		b := make([]byte, size)
		for p := pointer; p < end; p++ {
			b[p-pointer] = byte(fields[base+p])
		}
		result = append(result, string(b))
		pointer = end
	}

	return result, nil
}

// decodeMetadataBlock decodes a METADATA_BLOCK, populating strings,
// the dense metadata-constants table, and the kind hints. constants is
// passed through so METADATA VALUE records can reinterpret Array-typed
// operands as references into the constants table, same as DATA
// records.
func decodeMetadataBlock(s *bitcode.Stream, types []*Type, constants map[uint64]*Constant) ([]string, []MetadataConstant, error) {
	var strings []string
	var table []MetadataConstant
	currentName := ""

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, nil, fmt.Errorf("decoding metadata block: %w", err)
		}

		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return strings, table, nil
		case bitcode.EntrySubBlock:
			return nil, nil, fmt.Errorf("%w: unexpected sub-block inside METADATA_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			switch bitcode.MetadataCodes(record.Code) {
			case bitcode.MetadataStrings:
				strings, err = decodeMetadataStrings(record.Fields)
				if err != nil {
					return nil, nil, err
				}
			case bitcode.MetadataIndexOffset, bitcode.MetadataIndex:
				// Index hints only; this decoder resolves metadata by
				// position and does not need them.
			case bitcode.MetadataValue:
				if len(record.Fields) < 2 {
					return nil, nil, fmt.Errorf("%w: VALUE record missing type/operand", diag.ErrMalformedStream)
				}
				ty, err := typeAt(types, record.Fields[0])
				if err != nil {
					return nil, nil, err
				}
				table = append(table, MetadataConstant{
					Kind:  MetadataConstantValue,
					Value: decodeScalarConstant(constants, ty, record.Fields[1]),
				})
			case bitcode.MetadataNode, bitcode.MetadataNamedNode:
				table = append(table, MetadataConstant{
					Kind:     MetadataConstantNode,
					Name:     currentName,
					Operands: record.Fields,
				})
				currentName = ""
			case bitcode.MetadataName:
				currentName = fieldsToString(record.Fields)
			default:
				return nil, nil, fmt.Errorf("%w: unhandled METADATA_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
			}
		}
	}
}
