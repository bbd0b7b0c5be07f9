package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// TableString is a (offset, size) reference into the module's STRTAB
// blob, resolved to its Content once the STRTAB_BLOCK has been
// decoded.
type TableString struct {
	Offset  uint64
	Size    uint64
	Content string
}

// resolve fills in Content by slicing blob, the decoded STRTAB_BLOCK
// payload.
func (t *TableString) resolve(blob []byte) error {
	end := t.Offset + t.Size
	if end > uint64(len(blob)) {
		return fmt.Errorf("%w: string table reference [%d,%d) exceeds blob length %d", diag.ErrTruncated, t.Offset, end, len(blob))
	}
	t.Content = string(blob[t.Offset:end])
	return nil
}

// GlobalVariable is one MODULE_CODE_GLOBALVAR declaration.
type GlobalVariable struct {
	Name       *TableString
	Type       *Type
	IsConstant bool

	// InitID is the raw initializer operand: 0 when the global has
	// none, otherwise the initializer's constant-table id plus one
	// (LLVM encodes "no initializer" as 0 and a real reference as
	// value+1).
	InitID uint64
}

// decodeGlobalVariable decodes one MODULE_CODE_GLOBALVAR record.
func decodeGlobalVariable(types []*Type, fields bitcode.Fields) (*GlobalVariable, error) {
	if len(fields) < 5 {
		return nil, fmt.Errorf("%w: GLOBALVAR record missing operands", diag.ErrMalformedStream)
	}

	ty, err := typeAt(types, fields[2])
	if err != nil {
		return nil, err
	}

	return &GlobalVariable{
		Name:       &TableString{Offset: fields[0], Size: fields[1]},
		Type:       ty,
		IsConstant: fields[3] != 0,
		InitID:     fields[4],
	}, nil
}

// FunctionSignature is one MODULE_CODE_FUNCTION declaration: the
// function's entry in the module's value list, before any body has
// been attached. Field layout mirrors GLOBALVAR's STRTAB-offset
// convention (offset, size, type, callingconv, isproto, ...).
type FunctionSignature struct {
	Name          *TableString
	Type          *Type
	CallingConv   uint64
	IsDeclaration bool
	Body          *FunctionBody
}

func decodeFunctionSignature(types []*Type, fields bitcode.Fields) (*FunctionSignature, error) {
	if len(fields) < 5 {
		return nil, fmt.Errorf("%w: FUNCTION record missing operands", diag.ErrMalformedStream)
	}

	ty, err := typeAt(types, fields[2])
	if err != nil {
		return nil, err
	}

	return &FunctionSignature{
		Name:          &TableString{Offset: fields[0], Size: fields[1]},
		Type:          ty,
		CallingConv:   fields[3],
		IsDeclaration: fields[4] != 0,
	}, nil
}
