// Package air decodes the AIR dialect of LLVM bitcode: Apple's shader
// compiler's module format, embedded inside a metallib container. It
// builds a fully-resolved, in-memory Module from a raw bitstream.
package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// Options configures decoding.
type Options struct {
	Logger   *diag.Logger
	Tolerant bool
}

// DefaultOptions returns the zero-configuration default: a no-op
// logger and fatal-on-mismatch semantics.
func DefaultOptions() Options {
	return Options{Logger: diag.NewNopLogger(), Tolerant: false}
}

// Module is the fully-decoded in-memory AIR module.
type Module struct {
	Identification Identification

	Version        uint64
	Triple         string
	DataLayout     string
	SourceFilename string

	Types      []*Type
	Attributes map[uint64]*Attribute
	EntryTable map[uint64]*AttrEntry

	GlobalVariables []*GlobalVariable
	Functions       []*FunctionSignature

	Constants      map[uint64]*Constant
	maxConstantsID uint64

	MetadataKindTable map[uint64]string
	MetadataStrings   []string
	MetadataConstants []MetadataConstant

	OperandBundleTags []string
	SyncScopeNames    []string

	// UseRelativeIDs mirrors LLVM's own rule: function bodies encode
	// most operands relative to the instruction's position once the
	// module format version requests it.
	UseRelativeIDs bool

	Values []AirValue

	vstOffsetHints []uint64
}

// Decode parses a complete AIR bitstream (already unwrapped from any
// metallib or bitcode-wrapper container) into a Module.
func Decode(data []byte, opts Options) (*Module, error) {
	if opts.Logger == nil {
		opts.Logger = diag.NewNopLogger()
	}

	stream, err := bitcode.Open(data)
	if err != nil {
		return nil, fmt.Errorf("opening AIR bitstream: %w", err)
	}

	m := &Module{
		Attributes:        make(map[uint64]*Attribute),
		EntryTable:        make(map[uint64]*AttrEntry),
		Constants:         make(map[uint64]*Constant),
		MetadataKindTable: make(map[uint64]string),
	}

	var strtab []byte

	for {
		entry, err := stream.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding AIR top level: %w", err)
		}

		switch entry.Kind {
		case bitcode.EntryEndOfStream:
			return m.finish(strtab, opts)
		case bitcode.EntryEndBlock:
			return nil, fmt.Errorf("%w: unexpected END_BLOCK at top level", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			return nil, fmt.Errorf("%w: unexpected record at top level", diag.ErrMalformedStream)
		case bitcode.EntrySubBlock:
			switch bitcode.BlockID(entry.Block.BlockID) {
			case bitcode.BlockIdentification:
				id, err := decodeIdentificationBlock(stream)
				if err != nil {
					return nil, err
				}
				m.Identification = id
			case bitcode.BlockModule:
				if err := m.decodeModuleBlock(stream); err != nil {
					return nil, err
				}
			case bitcode.BlockStrtab:
				blob, err := decodeStrtab(stream)
				if err != nil {
					return nil, err
				}
				strtab = blob
			default:
				if err := skipBlock(stream); err != nil {
					return nil, err
				}
			}
		}
	}
}

func (m *Module) decodeModuleBlock(s *bitcode.Stream) error {
	pendingFunctionBody := 0

	for {
		entry, err := s.Advance()
		if err != nil {
			return fmt.Errorf("decoding module block: %w", err)
		}

		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return nil
		case bitcode.EntrySubBlock:
			switch bitcode.BlockID(entry.Block.BlockID) {
			case bitcode.BlockType:
				types, err := decodeTypes(s)
				if err != nil {
					return err
				}
				m.Types = types
			case bitcode.BlockParamAttrGroup:
				attrs, err := decodeAttributeGroup(s)
				if err != nil {
					return err
				}
				m.Attributes = attrs
			case bitcode.BlockParamAttr:
				entries, err := decodeEntryTable(s, m.Attributes)
				if err != nil {
					return err
				}
				m.EntryTable = entries
			case bitcode.BlockConstants:
				if err := decodeConstants(s, m.Types, m.Constants, &m.maxConstantsID); err != nil {
					return err
				}
			case bitcode.BlockMetadataKind:
				kinds, err := decodeMetadataKindBlock(s)
				if err != nil {
					return err
				}
				m.MetadataKindTable = kinds
			case bitcode.BlockMetadata:
				strs, md, err := decodeMetadataBlock(s, m.Types, m.Constants)
				if err != nil {
					return err
				}
				if len(strs) > 0 {
					m.MetadataStrings = strs
				}
				m.MetadataConstants = append(m.MetadataConstants, md...)
			case bitcode.BlockOperandBundle:
				tags, err := decodeStringRecordList(s, 1)
				if err != nil {
					return err
				}
				m.OperandBundleTags = tags
			case bitcode.BlockSyncScopeNames:
				names, err := decodeStringRecordList(s, 1)
				if err != nil {
					return err
				}
				m.SyncScopeNames = names
			case bitcode.BlockFunction:
				body, err := decodeFunctionBody(s, m.Types, m.Constants, &m.maxConstantsID, &m.MetadataStrings, &m.MetadataConstants)
				if err != nil {
					return err
				}
				fn, err := m.nextBodylessFunction(pendingFunctionBody)
				if err != nil {
					return err
				}
				fn.Body = body
				pendingFunctionBody++
			default:
				if err := skipBlock(s); err != nil {
					return err
				}
			}
		case bitcode.EntryRecord:
			if err := m.decodeModuleRecord(entry.Record); err != nil {
				return err
			}
		}
	}
}

// nextBodylessFunction returns the nth (0-based, among functions that
// are not pure declarations) FunctionSignature, matching LLVM's
// convention that FUNCTION_BLOCKs appear in the same relative order as
// their defining (non-declaration) MODULE_CODE_FUNCTION records.
func (m *Module) nextBodylessFunction(n int) (*FunctionSignature, error) {
	seen := 0
	for _, fn := range m.Functions {
		if fn.IsDeclaration {
			continue
		}
		if seen == n {
			return fn, nil
		}
		seen++
	}
	return nil, fmt.Errorf("%w: FUNCTION_BLOCK %d has no matching function declaration", diag.ErrSemanticMismatch, n)
}

func (m *Module) decodeModuleRecord(record bitcode.Record) error {
	switch bitcode.ModuleCode(record.Code) {
	case bitcode.ModuleVersion:
		if len(record.Fields) < 1 {
			return fmt.Errorf("%w: VERSION record missing value", diag.ErrMalformedStream)
		}
		m.Version = record.Fields[0]
		m.UseRelativeIDs = m.Version >= 1
	case bitcode.ModuleTriple:
		m.Triple = fieldsToString(record.Fields)
	case bitcode.ModuleDataLayout:
		m.DataLayout = fieldsToString(record.Fields)
	case bitcode.ModuleSourceFilename:
		m.SourceFilename = fieldsToString(record.Fields)
	case bitcode.ModuleGlobalVar:
		g, err := decodeGlobalVariable(m.Types, record.Fields)
		if err != nil {
			return err
		}
		m.GlobalVariables = append(m.GlobalVariables, g)
		m.Values = append(m.Values, AirValue{Kind: AirValueGlobalVariable, ID: uint64(len(m.GlobalVariables) - 1)})
	case bitcode.ModuleFunction:
		fn, err := decodeFunctionSignature(m.Types, record.Fields)
		if err != nil {
			return err
		}
		m.Functions = append(m.Functions, fn)
		m.Values = append(m.Values, AirValue{Kind: AirValueFunction, ID: uint64(len(m.Functions) - 1)})
	case bitcode.ModuleVSTOffset:
		if len(record.Fields) > 0 {
			m.vstOffsetHints = append(m.vstOffsetHints, record.Fields[0])
		}
	default:
		return fmt.Errorf("%w: unhandled MODULE_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
	}
	return nil
}

// decodeStringRecordList decodes a block whose every record is a
// single string under the given code, used identically by
// OPERAND_BUNDLE_TAGS_BLOCK and SYNC_SCOPE_NAMES_BLOCK.
func decodeStringRecordList(s *bitcode.Stream, wantCode uint64) ([]string, error) {
	var result []string
	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, err
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return result, nil
		case bitcode.EntrySubBlock:
			return nil, fmt.Errorf("%w: unexpected sub-block in string-list block", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			if entry.Record.Code != wantCode {
				return nil, fmt.Errorf("%w: unexpected record code %d in string-list block", diag.ErrSemanticMismatch, entry.Record.Code)
			}
			result = append(result, fieldsToString(entry.Record.Fields))
		}
	}
}

// finish resolves string-table references, builds the flattened value
// list, and enforces that no constant placeholder was left dangling.
func (m *Module) finish(strtab []byte, opts Options) (*Module, error) {
	for _, g := range m.GlobalVariables {
		if err := g.Name.resolve(strtab); err != nil {
			return nil, fmt.Errorf("resolving global variable name: %w", err)
		}
	}
	for _, fn := range m.Functions {
		if err := fn.Name.resolve(strtab); err != nil {
			return nil, fmt.Errorf("resolving function name: %w", err)
		}
	}

	for id := uint64(0); id < m.maxConstantsID; id++ {
		if _, ok := m.Constants[id]; !ok {
			continue
		}
		m.Values = append(m.Values, AirValue{Kind: AirValueConstant, ID: id})
	}

	// An AGGREGATE forward reference leaves an Unresolved placeholder
	// in the table until the record producing that id fills it in; a
	// placeholder still Unresolved here was never produced. That is an
	// error, or a logged diagnostic in tolerant mode.
	for id, c := range m.Constants {
		if c.Value.Kind != ConstantUnresolved {
			continue
		}
		err := fmt.Errorf("%w: constant %d never resolved", diag.ErrSemanticMismatch, id)
		if opts.Tolerant {
			opts.Logger.Tolerate("air.finish", err)
			continue
		}
		return nil, err
	}

	return m, nil
}

// NamedMetadataNode returns the named-metadata node called name, the
// form air.vertex/air.fragment/air.compute entry points are recorded
// under.
func (m *Module) NamedMetadataNode(name string) (MetadataConstant, bool) {
	for _, c := range m.MetadataConstants {
		if c.Kind == MetadataConstantNode && c.Name == name {
			return c, true
		}
	}
	return MetadataConstant{}, false
}

// MetadataAt resolves a dense 1-based metadata id into the metadata
// constants table: id N is MetadataConstants[N-1].
func (m *Module) MetadataAt(id uint64) (MetadataConstant, bool) {
	if id == 0 || id > uint64(len(m.MetadataConstants)) {
		return MetadataConstant{}, false
	}
	return m.MetadataConstants[id-1], true
}

// MetadataString resolves a dense 0-based id into the module's
// metadata string pool (the STRINGS record's decoded entries).
func (m *Module) MetadataString(id uint64) (string, bool) {
	if id >= uint64(len(m.MetadataStrings)) {
		return "", false
	}
	return m.MetadataStrings[id], true
}
