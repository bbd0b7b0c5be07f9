package lower

import (
	"fmt"

	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/spirv"
)

// lowerFunction emits fn's signature under the id pre-allocated for it
// by lowerValues, then its body if one was attached. A pure
// declaration (no FUNCTION_BLOCK matched to it, e.g. an external
// intrinsic AIR never actually calls from a compiled entry point) is
// left as an unused id: SPIR-V requires every OpFunction to carry a
// body, so a bodyless declaration cannot be emitted faithfully and is
// simply not referenced by anything this lowering produces.
func (l *lowerer) lowerFunction(fn *air.FunctionSignature, id uint32) error {
	if fn.IsDeclaration || fn.Body == nil {
		return nil
	}

	retTypeID, err := l.lowerType(fn.Type.ReturnType)
	if err != nil {
		return err
	}
	funcTypeID, err := l.lowerType(fn.Type)
	if err != nil {
		return err
	}

	l.builder.AddFunctionAt(id, funcTypeID, retTypeID, spirv.FunctionControlNone)
	if fn.Name != nil && fn.Name.Content != "" {
		l.builder.AddName(id, fn.Name.Content)
	}

	locals := make([]uint32, 0, len(fn.Type.Params)+len(fn.Body.Instructions))
	for _, paramType := range fn.Type.Params {
		paramTypeID, err := l.lowerType(paramType)
		if err != nil {
			return err
		}
		locals = append(locals, l.builder.AddFunctionParameter(paramTypeID))
	}

	fb := &functionBuilder{lowerer: l, fn: fn, locals: locals}
	if err := fb.lowerBody(); err != nil {
		return err
	}

	l.builder.AddFunctionEnd()
	return nil
}

// functionBuilder threads the per-function state a FUNCTION_BLOCK's
// flat instruction stream needs: the running locals list and the
// pre-allocated labels every basic block boundary resolves to.
type functionBuilder struct {
	*lowerer
	fn     *air.FunctionSignature
	locals []uint32
	labels []uint32
}

// lowerBody walks fn.Body's flat instruction stream, emitting the
// first block's label, every instruction in order, and a new label
// whenever a terminator (Ret/Br) hands control to the next
// declared block. Basic block boundaries are implicit in AIR's
// encoding, recoverable only by counting terminators against
// DECLAREBLOCKS' block count.
func (fb *functionBuilder) lowerBody() error {
	numBlocks := fb.fn.Body.NumBlocks
	if numBlocks == 0 {
		numBlocks = 1
	}
	fb.labels = make([]uint32, numBlocks)
	for i := range fb.labels {
		fb.labels[i] = fb.builder.AllocID()
	}

	fb.builder.AddLabelAt(fb.labels[0])
	block := 0

	for _, inst := range fb.fn.Body.Instructions {
		terminated, err := fb.lowerInstruction(inst)
		if err != nil {
			return err
		}
		if terminated {
			block++
			if block < len(fb.labels) {
				fb.builder.AddLabelAt(fb.labels[block])
			}
		}
	}

	return nil
}

// lowerInstruction lowers one FUNCTION_BLOCK instruction, returning
// true when it was a block terminator (Ret or Br).
func (fb *functionBuilder) lowerInstruction(inst air.Instruction) (bool, error) {
	switch inst.Kind {
	case air.InstCast:
		return false, fb.lowerCast(inst)
	case air.InstBinOp:
		return false, fb.lowerBinOp(inst)
	case air.InstCmp2:
		return false, fb.lowerCmp2(inst)
	case air.InstGEP:
		return false, fb.lowerGEP(inst)
	case air.InstCall:
		return false, fb.lowerCall(inst)
	case air.InstRet:
		return true, fb.lowerRet(inst)
	case air.InstBr:
		return true, fb.lowerBr(inst)
	default:
		// Instruction kinds not handled above produce no SPIR-V and
		// consume no value slot. Outside tolerant mode they fail with
		// ErrLoweringGap; in tolerant mode each occurrence is logged and
		// skipped so unrelated, fully-modeled functions still lower.
		if !fb.opts.Tolerant {
			return false, fmt.Errorf("%w: unhandled instruction code %d in function body", diag.ErrLoweringGap, inst.Code)
		}
		fb.opts.Logger.Tolerate("lower.instruction", fmt.Errorf("%w: code %d", diag.ErrLoweringGap, inst.Code))
		return false, nil
	}
}
