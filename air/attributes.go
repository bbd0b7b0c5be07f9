package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// AttrPropertyKind tags the tagged-stream entries a GRP_CODE_ENTRY
// record carries after its id/param-index pair.
type AttrPropertyKind int

const (
	AttrWellKnown AttrPropertyKind = iota
	AttrStringValue
	AttrStringKeyValue
)

// AttrProperty is one decoded attribute-group property.
type AttrProperty struct {
	Kind      AttrPropertyKind
	WellKnown bitcode.AttributeKindCode
	Key       string
	Value     string
}

// Attribute is one PARAMATTR_GROUP_BLOCK entry: a group id, the
// parameter index it applies to, and its properties.
type Attribute struct {
	ID         uint64
	ParamIndex uint64
	Properties []AttrProperty
}

// AttrEntry is one PARAMATTR_BLOCK entry: an ordered set of attribute
// groups applied together to a call site or function.
type AttrEntry struct {
	Groups []*Attribute
}

// parseNullTerminatedString reads a string out of fields starting at
// startIdx, stopping at a zero field (exclusive), and returns the
// index of the terminator (len(fields) when there is none).
func parseNullTerminatedString(fields bitcode.Fields, startIdx uint64) (string, uint64) {
	var b []byte
	i := startIdx
	for i < uint64(len(fields)) {
		c := fields[i]
		if c == 0 {
			break
		}
		b = append(b, byte(c))
		i++
	}
	return string(b), i
}

// decodeAttribute parses one GRP_CODE_ENTRY record's tagged property
// stream.
func decodeAttribute(record bitcode.Record) (*Attribute, error) {
	code := bitcode.AttributeCode(record.Code)
	if code != bitcode.AttributeGrpCodeEntry {
		return nil, fmt.Errorf("%w: unexpected attribute record code %d", diag.ErrSemanticMismatch, record.Code)
	}

	fields := record.Fields
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: GRP_CODE_ENTRY missing id/paramidx", diag.ErrMalformedStream)
	}

	attr := &Attribute{ID: fields[0], ParamIndex: fields[1]}

	count := uint64(2)
	for count < uint64(len(fields)) {
		tag := fields[count]
		switch tag {
		case 0:
			count++
			if count >= uint64(len(fields)) {
				return nil, fmt.Errorf("%w: well-known attribute tag missing value", diag.ErrMalformedStream)
			}
			attr.Properties = append(attr.Properties, AttrProperty{
				Kind:      AttrWellKnown,
				WellKnown: bitcode.AttributeKindCode(fields[count]),
			})
		case 3:
			count++
			s, end := parseNullTerminatedString(fields, count)
			count = end
			attr.Properties = append(attr.Properties, AttrProperty{Kind: AttrStringValue, Value: s})
		case 4:
			count++
			key, keyEnd := parseNullTerminatedString(fields, count)
			count = keyEnd + 1
			val, valEnd := parseNullTerminatedString(fields, count)
			count = valEnd
			attr.Properties = append(attr.Properties, AttrProperty{Kind: AttrStringKeyValue, Key: key, Value: val})
		default:
			return nil, fmt.Errorf("%w: unknown attribute property tag %d", diag.ErrSemanticMismatch, tag)
		}
		count++
	}

	return attr, nil
}

// decodeAttributeGroup decodes a PARAMATTR_GROUP_BLOCK into a table
// keyed by group id.
func decodeAttributeGroup(s *bitcode.Stream) (map[uint64]*Attribute, error) {
	result := make(map[uint64]*Attribute)

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding attribute group: %w", err)
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return result, nil
		case bitcode.EntrySubBlock:
			return nil, fmt.Errorf("%w: unexpected sub-block inside PARAMATTR_GROUP_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			attr, err := decodeAttribute(entry.Record)
			if err != nil {
				return nil, err
			}
			result[attr.ID] = attr
		}
	}
}

// decodeEntryTable decodes a PARAMATTR_BLOCK into a table keyed by a
// monotonically assigned entry id, resolving each ENTRY record's group
// id list against attrs.
func decodeEntryTable(s *bitcode.Stream, attrs map[uint64]*Attribute) (map[uint64]*AttrEntry, error) {
	result := make(map[uint64]*AttrEntry)

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding attribute entry table: %w", err)
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return result, nil
		case bitcode.EntrySubBlock:
			return nil, fmt.Errorf("%w: unexpected sub-block inside PARAMATTR_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			if bitcode.AttributeCode(record.Code) != bitcode.AttributeEntry {
				return nil, fmt.Errorf("%w: unexpected PARAMATTR_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
			}
			groups := make([]*Attribute, 0, len(record.Fields))
			for _, id := range record.Fields {
				g, ok := attrs[id]
				if !ok {
					return nil, fmt.Errorf("%w: attribute entry references unknown group %d", diag.ErrSemanticMismatch, id)
				}
				groups = append(groups, g)
			}
			result[uint64(len(result))+1] = &AttrEntry{Groups: groups}
		}
	}
}
