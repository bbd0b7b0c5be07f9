package lower

import (
	"fmt"

	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/spirv"
)

// Field layout conventions over the already-framed
// air.Instruction.Fields slice. The decoder (air/functions.go) leaves
// per-opcode operand semantics unresolved, so each accessor below
// documents the position it reads:
//
//	InstCast:  [opcode, destTypeIndex, srcValueRaw]
//	InstBinOp: [opcode, typeIndex, lhsRaw, rhsRaw]
//	InstCmp2:  [typeIndex, lhsRaw, rhsRaw, predicate]
//	InstGEP:   [inbounds, baseTypeIndex, baseRaw, index0Raw, index1Raw, ...]
//	InstCall:  [paramAttrs, callingConv, fnTypeIndex, fnRaw, arg0Raw, ...]
//	InstRet:   [] | [typeIndex, valRaw]
//	InstBr:    [trueBlock] | [trueBlock, falseBlock, condRaw]

// typeByIndex bounds-checks a raw type-table operand before indexing;
// instruction records carry arbitrary VBR words, so a corrupt stream
// must surface as an error here rather than a panic.
func (fb *functionBuilder) typeByIndex(idx uint64) (*air.Type, error) {
	if idx >= uint64(len(fb.module.Types)) {
		return nil, fmt.Errorf("%w: instruction references type index %d (table has %d entries)", diag.ErrSemanticMismatch, idx, len(fb.module.Types))
	}
	return fb.module.Types[idx], nil
}

func (fb *functionBuilder) lowerCast(inst air.Instruction) error {
	if len(inst.Fields) < 3 {
		return fmt.Errorf("%w: CAST instruction missing operands", diag.ErrMalformedStream)
	}
	opcode := bitcode.CastOpCode(inst.Fields[0])
	destType, err := fb.typeByIndex(inst.Fields[1])
	if err != nil {
		return err
	}
	srcID, err := fb.resolveOperand(inst.Fields[2], fb.locals)
	if err != nil {
		return err
	}
	destTypeID, err := fb.lowerType(destType)
	if err != nil {
		return err
	}

	var op spirv.OpCode
	switch opcode {
	case bitcode.CastTrunc:
		op = spirv.OpUConvert
	case bitcode.CastZExt:
		op = spirv.OpUConvert
	case bitcode.CastSExt:
		op = spirv.OpSConvert
	case bitcode.CastFPToUI:
		op = spirv.OpConvertFToU
	case bitcode.CastFPToSI:
		op = spirv.OpConvertFToS
	case bitcode.CastUIToFP:
		op = spirv.OpConvertUToF
	case bitcode.CastSIToFP:
		op = spirv.OpConvertSToF
	case bitcode.CastFPTrunc, bitcode.CastFPExt:
		op = spirv.OpFConvert
	case bitcode.CastPtrToInt:
		op = spirv.OpConvertPtrToU
	case bitcode.CastIntToPtr:
		op = spirv.OpConvertUToPtr
	case bitcode.CastBitcast, bitcode.CastAddrSpaceCast:
		op = spirv.OpBitcast
	default:
		return fmt.Errorf("%w: unhandled cast opcode %d", diag.ErrLoweringGap, opcode)
	}

	result := fb.builder.AddUnaryOp(op, destTypeID, srcID)
	fb.locals = append(fb.locals, result)
	return nil
}

func (fb *functionBuilder) lowerBinOp(inst air.Instruction) error {
	if len(inst.Fields) < 4 {
		return fmt.Errorf("%w: BINOP instruction missing operands", diag.ErrMalformedStream)
	}
	opcode := bitcode.BinOpCode(inst.Fields[0])
	ty, err := fb.typeByIndex(inst.Fields[1])
	if err != nil {
		return err
	}
	lhsID, err := fb.resolveOperand(inst.Fields[2], fb.locals)
	if err != nil {
		return err
	}
	rhsID, err := fb.resolveOperand(inst.Fields[3], fb.locals)
	if err != nil {
		return err
	}
	typeID, err := fb.lowerType(ty)
	if err != nil {
		return err
	}

	isFloat := scalarKind(ty) == air.TypeFloat

	var op spirv.OpCode
	switch opcode {
	case bitcode.BinOpAdd:
		op = pick(isFloat, spirv.OpFAdd, spirv.OpIAdd)
	case bitcode.BinOpSub:
		op = pick(isFloat, spirv.OpFSub, spirv.OpISub)
	case bitcode.BinOpMul:
		op = pick(isFloat, spirv.OpFMul, spirv.OpIMul)
	case bitcode.BinOpUDiv:
		op = spirv.OpUDiv
	case bitcode.BinOpSDiv:
		op = pick(isFloat, spirv.OpFDiv, spirv.OpSDiv)
	case bitcode.BinOpURem:
		op = spirv.OpUMod
	case bitcode.BinOpSRem:
		op = pick(isFloat, spirv.OpFMod, spirv.OpSMod)
	case bitcode.BinOpShl:
		op = spirv.OpShiftLeftLogical
	case bitcode.BinOpLShr:
		op = spirv.OpShiftRightLogical
	case bitcode.BinOpAShr:
		op = spirv.OpShiftRightArithmetic
	case bitcode.BinOpAnd:
		op = spirv.OpBitwiseAnd
	case bitcode.BinOpOr:
		op = spirv.OpBitwiseOr
	case bitcode.BinOpXor:
		op = spirv.OpBitwiseXor
	default:
		return fmt.Errorf("%w: unhandled binop opcode %d", diag.ErrLoweringGap, opcode)
	}

	result := fb.builder.AddBinaryOp(op, typeID, lhsID, rhsID)
	fb.locals = append(fb.locals, result)
	return nil
}

func (fb *functionBuilder) lowerCmp2(inst air.Instruction) error {
	if len(inst.Fields) < 4 {
		return fmt.Errorf("%w: CMP2 instruction missing operands", diag.ErrMalformedStream)
	}
	ty, err := fb.typeByIndex(inst.Fields[0])
	if err != nil {
		return err
	}
	lhsID, err := fb.resolveOperand(inst.Fields[1], fb.locals)
	if err != nil {
		return err
	}
	rhsID, err := fb.resolveOperand(inst.Fields[2], fb.locals)
	if err != nil {
		return err
	}
	predicate := bitcode.CmpPredicate(inst.Fields[3])

	boolTypeID, err := fb.boolTypeFor(ty)
	if err != nil {
		return err
	}

	op, ok := cmpOpcode(predicate)
	if !ok {
		return fmt.Errorf("%w: unhandled compare predicate %d", diag.ErrLoweringGap, predicate)
	}

	result := fb.builder.AddBinaryOp(op, boolTypeID, lhsID, rhsID)
	fb.locals = append(fb.locals, result)
	return nil
}

func cmpOpcode(p bitcode.CmpPredicate) (spirv.OpCode, bool) {
	switch p {
	case bitcode.FCmpOEQ:
		return spirv.OpFOrdEqual, true
	case bitcode.FCmpONE:
		return spirv.OpFOrdNotEqual, true
	case bitcode.FCmpOLT:
		return spirv.OpFOrdLessThan, true
	case bitcode.FCmpOGT:
		return spirv.OpFOrdGreaterThan, true
	case bitcode.FCmpOLE:
		return spirv.OpFOrdLessThanEqual, true
	case bitcode.FCmpOGE:
		return spirv.OpFOrdGreaterThanEqual, true
	case bitcode.FCmpUEQ:
		return spirv.OpFUnordEqual, true
	case bitcode.FCmpUNE:
		return spirv.OpFUnordNotEqual, true
	case bitcode.FCmpULT:
		return spirv.OpFUnordLessThan, true
	case bitcode.FCmpUGT:
		return spirv.OpFUnordGreaterThan, true
	case bitcode.FCmpULE:
		return spirv.OpFUnordLessThanEqual, true
	case bitcode.FCmpUGE:
		return spirv.OpFUnordGreaterThanEqual, true
	case bitcode.ICmpEQ:
		return spirv.OpIEqual, true
	case bitcode.ICmpNE:
		return spirv.OpINotEqual, true
	case bitcode.ICmpUGT:
		return spirv.OpUGreaterThan, true
	case bitcode.ICmpUGE:
		return spirv.OpUGreaterThanEqual, true
	case bitcode.ICmpULT:
		return spirv.OpULessThan, true
	case bitcode.ICmpULE:
		return spirv.OpULessThanEqual, true
	case bitcode.ICmpSGT:
		return spirv.OpSGreaterThan, true
	case bitcode.ICmpSGE:
		return spirv.OpSGreaterThanEqual, true
	case bitcode.ICmpSLT:
		return spirv.OpSLessThan, true
	case bitcode.ICmpSLE:
		return spirv.OpSLessThanEqual, true
	default:
		return 0, false
	}
}

// boolTypeFor returns the bool (or bool-vector) type a comparison over
// operandType produces.
func (fb *functionBuilder) boolTypeFor(operandType *air.Type) (uint32, error) {
	if operandType.Kind == air.TypeVector {
		boolElem := fb.builder.AddTypeBool()
		return fb.builder.AddTypeVector(boolElem, uint32(operandType.Length)), nil
	}
	return fb.builder.AddTypeBool(), nil
}

// scalarKind returns t's own kind for a scalar, or its element's kind
// for a vector, the distinction lowerBinOp needs to pick the float or
// integer opcode variant.
func scalarKind(t *air.Type) air.TypeKind {
	if t.Kind == air.TypeVector {
		return t.Elem.Kind
	}
	return t.Kind
}

func pick(cond bool, ifTrue, ifFalse spirv.OpCode) spirv.OpCode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func (fb *functionBuilder) lowerGEP(inst air.Instruction) error {
	if len(inst.Fields) < 4 {
		return fmt.Errorf("%w: GEP instruction missing operands", diag.ErrMalformedStream)
	}
	baseType, err := fb.typeByIndex(inst.Fields[1])
	if err != nil {
		return err
	}
	baseID, err := fb.resolveOperand(inst.Fields[2], fb.locals)
	if err != nil {
		return err
	}

	indices := inst.Fields[3:]
	indexIDs := make([]uint32, len(indices))
	for i, raw := range indices {
		id, err := fb.resolveOperand(raw, fb.locals)
		if err != nil {
			return err
		}
		indexIDs[i] = id
	}

	resultElem := fb.gepResultType(baseType, indices[1:])
	resultElemID, err := fb.lowerType(resultElem)
	if err != nil {
		return err
	}
	resultType := fb.builder.AddTypePointer(spirv.StorageClassFunction, resultElemID)

	result := fb.builder.AddAccessChain(resultType, baseID, indexIDs...)
	fb.locals = append(fb.locals, result)
	return nil
}

// gepResultType walks baseType through the structural indices past the
// first (the first GEP index selects within an implicit outer array of
// baseType and never changes the pointee type, matching LLVM's own GEP
// semantics). Struct member selection needs the index's literal value;
// when it cannot be resolved to a constant this falls back to the
// struct's first member, the same best-effort posture typeSizeBytes
// takes for layout.
func (fb *functionBuilder) gepResultType(baseType *air.Type, indices []uint64) *air.Type {
	current := baseType
	for _, raw := range indices {
		switch current.Kind {
		case air.TypeArray, air.TypeVector:
			current = current.Elem
		case air.TypeStruct:
			if len(current.Elements) == 0 {
				return current
			}
			idx, ok := fb.constIndexValue(raw)
			if !ok || idx >= uint64(len(current.Elements)) {
				idx = 0
			}
			current = current.Elements[idx]
		default:
			return current
		}
	}
	return current
}

// constIndexValue attempts to resolve raw as a reference to an integer
// constant value, for struct-member GEP indices where the literal
// matters.
func (fb *functionBuilder) constIndexValue(raw uint64) (uint64, bool) {
	n := uint64(len(fb.moduleValueIDs))
	abs := fb.module.ResolveValueID(raw, n+uint64(len(fb.locals)))
	if abs >= uint64(len(fb.module.Values)) {
		return 0, false
	}
	v := fb.module.Values[abs]
	if v.Kind != air.AirValueConstant {
		return 0, false
	}
	c, ok := fb.module.Constants[v.ID]
	if !ok || c.Value.Kind != air.ConstantInteger {
		return 0, false
	}
	return c.Value.Integer, true
}

func (fb *functionBuilder) lowerCall(inst air.Instruction) error {
	if len(inst.Fields) < 4 {
		return fmt.Errorf("%w: CALL instruction missing operands", diag.ErrMalformedStream)
	}
	fnType, err := fb.typeByIndex(inst.Fields[2])
	if err != nil {
		return err
	}
	if fnType.Kind != air.TypeFunction {
		return fmt.Errorf("%w: CALL callee type is not a function type", diag.ErrSemanticMismatch)
	}
	fnID, err := fb.resolveOperand(inst.Fields[3], fb.locals)
	if err != nil {
		return err
	}

	args := inst.Fields[4:]
	argIDs := make([]uint32, len(args))
	for i, raw := range args {
		id, err := fb.resolveOperand(raw, fb.locals)
		if err != nil {
			return err
		}
		argIDs[i] = id
	}

	retTypeID, err := fb.lowerType(fnType.ReturnType)
	if err != nil {
		return err
	}

	result := fb.builder.AddFunctionCall(retTypeID, fnID, argIDs...)
	if fnType.ReturnType.Kind != air.TypeVoid {
		fb.locals = append(fb.locals, result)
	}
	return nil
}

func (fb *functionBuilder) lowerRet(inst air.Instruction) error {
	if len(inst.Fields) < 2 {
		fb.builder.AddReturn()
		return nil
	}
	valID, err := fb.resolveOperand(inst.Fields[1], fb.locals)
	if err != nil {
		return err
	}
	fb.builder.AddReturnValue(valID)
	return nil
}

func (fb *functionBuilder) lowerBr(inst air.Instruction) error {
	if len(inst.Fields) == 1 {
		target := fb.blockLabel(inst.Fields[0])
		fb.builder.AddBranch(target)
		return nil
	}
	if len(inst.Fields) < 3 {
		return fmt.Errorf("%w: BR instruction missing operands", diag.ErrMalformedStream)
	}
	trueLabel := fb.blockLabel(inst.Fields[0])
	falseLabel := fb.blockLabel(inst.Fields[1])
	condID, err := fb.resolveOperand(inst.Fields[2], fb.locals)
	if err != nil {
		return err
	}
	fb.builder.AddBranchConditional(condID, trueLabel, falseLabel)
	return nil
}

func (fb *functionBuilder) blockLabel(block uint64) uint32 {
	if block >= uint64(len(fb.labels)) {
		return fb.labels[len(fb.labels)-1]
	}
	return fb.labels[block]
}
