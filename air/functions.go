package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// InstKind classifies a decoded function-body instruction by the
// SPIR-V shape it eventually lowers to. Operand resolution (relative
// vs. absolute value ids) is left to the lowering stage; this decoder
// only fixes the framing, per the record-code documentation's note
// that per-opcode semantics are out of this layer's scope.
type InstKind int

const (
	InstCast InstKind = iota
	InstBinOp
	InstCmp2
	InstGEP
	InstCall
	InstRet
	InstBr
	InstOther
)

// Instruction is one decoded FUNCTION_BLOCK instruction record.
type Instruction struct {
	Kind   InstKind
	Code   bitcode.FunctionCodes
	Fields bitcode.Fields
}

// FunctionBody is a decoded FUNCTION_BLOCK: its declared basic-block
// count plus the flat instruction stream (basic-block boundaries are
// implied by BR/RET/SWITCH terminators, not separately recorded).
type FunctionBody struct {
	NumBlocks    uint64
	Instructions []Instruction
}

func instKindForCode(code bitcode.FunctionCodes) InstKind {
	switch code {
	case bitcode.FuncInstCast:
		return InstCast
	case bitcode.FuncInstBinop:
		return InstBinOp
	case bitcode.FuncInstCmp2:
		return InstCmp2
	case bitcode.FuncInstGEP:
		return InstGEP
	case bitcode.FuncInstCall:
		return InstCall
	case bitcode.FuncInstRet:
		return InstRet
	case bitcode.FuncInstBr:
		return InstBr
	default:
		return InstOther
	}
}

// decodeFunctionBody decodes a FUNCTION_BLOCK. It dispatches nested
// CONSTANTS_BLOCK and METADATA_BLOCK sub-blocks into the module's
// shared tables (the constant id counter spans the whole module, not
// just one block) and skips anything else this decoder does not model
// in detail.
func decodeFunctionBody(s *bitcode.Stream, types []*Type, constants map[uint64]*Constant, maxConstID *uint64, metadataStrings *[]string, metadataConstants *[]MetadataConstant) (*FunctionBody, error) {
	body := &FunctionBody{}

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding function body: %w", err)
		}

		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return body, nil
		case bitcode.EntrySubBlock:
			switch bitcode.BlockID(entry.Block.BlockID) {
			case bitcode.BlockConstants:
				if err := decodeConstants(s, types, constants, maxConstID); err != nil {
					return nil, err
				}
			case bitcode.BlockMetadata:
				strs, md, err := decodeMetadataBlock(s, types, constants)
				if err != nil {
					return nil, err
				}
				if len(strs) > 0 {
					*metadataStrings = strs
				}
				*metadataConstants = append(*metadataConstants, md...)
			default:
				if err := skipBlock(s); err != nil {
					return nil, err
				}
			}
		case bitcode.EntryRecord:
			record := entry.Record
			code := bitcode.FunctionCodes(record.Code)
			if code == bitcode.FuncDeclareBlocks {
				if len(record.Fields) < 1 || record.Fields[0] == 0 {
					return nil, fmt.Errorf("%w: DECLAREBLOCKS with zero basic blocks", diag.ErrMalformedStream)
				}
				body.NumBlocks = record.Fields[0]
				continue
			}
			body.Instructions = append(body.Instructions, Instruction{
				Kind:   instKindForCode(code),
				Code:   code,
				Fields: record.Fields,
			})
		}
	}
}

// skipBlock discards every entry of a sub-block this decoder has no
// use for, recursing into nested sub-blocks so the stream ends up
// positioned right after the matching END_BLOCK.
func skipBlock(s *bitcode.Stream) error {
	for {
		entry, err := s.Advance()
		if err != nil {
			return fmt.Errorf("skipping block: %w", err)
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return nil
		case bitcode.EntrySubBlock:
			if err := skipBlock(s); err != nil {
				return err
			}
		}
	}
}
