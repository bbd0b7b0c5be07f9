package lower

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/spirv"
)

// Apple's AIR emitter records one named metadata node per shader
// stage (air.vertex, air.fragment, air.compute), each a list of
// per-entry-function descriptor nodes shaped
// [fn_ref, outputs_node, inputs_node?]. Entry points are reconstructed
// entirely from that convention; nothing else in the module marks a
// function as an entry point.

type entryGroup struct {
	name      string
	execModel spirv.ExecutionModel
}

var entryGroups = []entryGroup{
	{"air.vertex", spirv.ExecutionModelVertex},
	{"air.fragment", spirv.ExecutionModelFragment},
	{"air.compute", spirv.ExecutionModelGLCompute},
}

// lowerEntryPoints walks every air.vertex/air.fragment/air.compute
// named metadata node present in the module and emits the
// corresponding OpEntryPoint, OpExecutionMode, and interface
// OpVariables. It returns the ids of every function it entered so
// callers can tell an empty module (no entry points at all) from one
// whose entry points all failed to resolve.
func (l *lowerer) lowerEntryPoints() ([]uint32, error) {
	var entered []uint32

	for _, group := range entryGroups {
		node, ok := l.module.NamedMetadataNode(group.name)
		if !ok {
			continue
		}
		for _, entryID := range node.Operands {
			fnID, err := l.lowerEntryPoint(entryID, group.execModel)
			if err != nil {
				if l.opts.Tolerant {
					l.opts.Logger.Tolerate("lower.entrypoint", err)
					continue
				}
				return entered, err
			}
			entered = append(entered, fnID)
		}
	}

	return entered, nil
}

func (l *lowerer) lowerEntryPoint(entryID uint64, execModel spirv.ExecutionModel) (uint32, error) {
	entry, ok := l.module.MetadataAt(entryID)
	if !ok || entry.Kind != air.MetadataConstantNode {
		return 0, fmt.Errorf("%w: entry descriptor %d is not a metadata node", diag.ErrSemanticMismatch, entryID)
	}
	if len(entry.Operands) < 2 {
		return 0, fmt.Errorf("%w: entry descriptor missing fn_ref/outputs operands", diag.ErrMalformedStream)
	}

	fnIndex, err := l.resolveFunctionRef(entry.Operands[0])
	if err != nil {
		return 0, err
	}
	fn := l.module.Functions[fnIndex]
	fnID, ok := l.functionIDByIndex[fnIndex]
	if !ok {
		return 0, fmt.Errorf("%w: entry function %d was never lowered", diag.ErrSemanticMismatch, fnIndex)
	}

	var interfaceIDs []uint32

	if len(entry.Operands) > 2 && entry.Operands[2] != 0 {
		inputs, err := l.lowerShaderIO(entry.Operands[2], fn.Type, nil, spirv.StorageClassInput)
		if err != nil {
			return 0, err
		}
		interfaceIDs = append(interfaceIDs, inputs...)
	}

	outputs, err := l.lowerShaderIO(entry.Operands[1], nil, fn.Type.ReturnType, spirv.StorageClassOutput)
	if err != nil {
		return 0, err
	}
	interfaceIDs = append(interfaceIDs, outputs...)

	name := ""
	if fn.Name != nil {
		name = fn.Name.Content
	}
	l.builder.AddEntryPoint(execModel, fnID, name, interfaceIDs)

	if execModel == spirv.ExecutionModelFragment {
		l.builder.AddExecutionMode(fnID, spirv.ExecutionModeOriginUpperLeft)
	}

	return fnID, nil
}

// resolveFunctionRef resolves a fn_ref metadata VALUE entry to an
// absolute index into module.Functions. The AIR decoder records a
// metadata VALUE whose declared type is a function type as an
// unresolved scalar (air.decodeScalarConstant has no function-constant
// case), carrying the raw operand through untouched; this lowering
// takes that raw operand as the function's own absolute index, the
// simplest reading consistent with fn_ref always naming a function
// defined earlier in the same module.
func (l *lowerer) resolveFunctionRef(id uint64) (uint64, error) {
	md, ok := l.module.MetadataAt(id)
	if !ok || md.Kind != air.MetadataConstantValue {
		return 0, fmt.Errorf("%w: fn_ref %d is not a metadata value", diag.ErrSemanticMismatch, id)
	}
	if md.Value.Kind != air.ConstantUnresolved {
		return 0, fmt.Errorf("%w: fn_ref %d did not resolve to a function reference", diag.ErrSemanticMismatch, id)
	}
	idx := md.Value.Unresolved
	if idx >= uint64(len(l.module.Functions)) {
		return 0, fmt.Errorf("%w: fn_ref %d out of range", diag.ErrSemanticMismatch, idx)
	}
	return idx, nil
}

// lowerShaderIO resolves a values-info metadata node (one of
// outputs_node / vertex_inputs_node) into interface OpVariables, one
// per listed value, in declaration order. inputContainer (for
// parameters) and outputContainer (for the return type) are mutually
// exclusive: whichever side is being lowered supplies its type
// container, the other is nil.
func (l *lowerer) lowerShaderIO(nodeID uint64, inputContainer *air.Type, outputContainer *air.Type, storageClass spirv.StorageClass) ([]uint32, error) {
	node, ok := l.module.MetadataAt(nodeID)
	if !ok || node.Kind != air.MetadataConstantNode {
		return nil, fmt.Errorf("%w: values-info %d is not a metadata node", diag.ErrSemanticMismatch, nodeID)
	}

	var ids []uint32
	for i, propListID := range node.Operands {
		id, err := l.lowerShaderIOValue(i, propListID, inputContainer, outputContainer, storageClass)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *lowerer) lowerShaderIOValue(index int, propListID uint64, inputContainer *air.Type, outputContainer *air.Type, storageClass spirv.StorageClass) (uint32, error) {
	propNode, ok := l.module.MetadataAt(propListID)
	if !ok || propNode.Kind != air.MetadataConstantNode || len(propNode.Operands) < 1 {
		return 0, fmt.Errorf("%w: value descriptor %d is malformed", diag.ErrSemanticMismatch, propListID)
	}

	role, ok := l.module.MetadataString(propNode.Operands[0])
	if !ok {
		return 0, fmt.Errorf("%w: value descriptor %d role is not a string", diag.ErrSemanticMismatch, propListID)
	}

	location, argName, err := parseIOProperties(l.module, propNode.Operands)
	if err != nil {
		return 0, err
	}

	var elemType *air.Type
	if inputContainer != nil {
		if index >= len(inputContainer.Params) {
			return 0, fmt.Errorf("%w: input index %d out of range", diag.ErrSemanticMismatch, index)
		}
		elemType = inputContainer.Params[index]
	} else if outputContainer.Kind == air.TypeStruct {
		if index >= len(outputContainer.Elements) {
			return 0, fmt.Errorf("%w: output index %d out of range", diag.ErrSemanticMismatch, index)
		}
		elemType = outputContainer.Elements[index]
	} else {
		elemType = outputContainer
	}

	typeID, err := l.lowerType(elemType)
	if err != nil {
		return 0, err
	}
	pointerType := l.builder.AddTypePointer(storageClass, typeID)
	varID := l.builder.AddVariable(pointerType, storageClass)

	if argName != "" {
		l.builder.AddName(varID, argName)
	}

	if builtin, ok := roleBuiltin(role); ok {
		l.builder.AddDecorate(varID, spirv.DecorationBuiltIn, uint32(builtin))
	} else {
		loc := uint32(index)
		if location != nil {
			loc = *location
		}
		l.builder.AddDecorate(varID, spirv.DecorationLocation, loc)
	}

	return varID, nil
}

// roleBuiltin maps a property-list role string to the SPIR-V BuiltIn
// it denotes, following Metal's own stage-attribute naming for the
// vertex/instance index inputs. Any other role (e.g. air.vertex_output)
// is a plain user varying, decorated with Location rather than
// BuiltIn.
func roleBuiltin(role string) (spirv.BuiltIn, bool) {
	switch role {
	case "air.position":
		return spirv.BuiltInPosition, true
	case "air.vertex_id":
		return spirv.BuiltInVertexIndex, true
	case "air.instance_id":
		return spirv.BuiltInInstanceIndex, true
	default:
		return 0, false
	}
}

// parseIOProperties walks a value descriptor's property tags: count
// starts at 1 (index 0 already consumed as the role string), each
// iteration reads one string and dispatches on it, then unconditionally
// advances count by one more before the next string is read.
func parseIOProperties(module *air.Module, properties []uint64) (*uint32, string, error) {
	var location *uint32
	var argName string

	count := 1
	for count < len(properties) {
		s, ok := module.MetadataString(properties[count])
		if !ok {
			return nil, "", fmt.Errorf("%w: property tag %d is not a string", diag.ErrSemanticMismatch, properties[count])
		}

		switch {
		case strings.Contains(s, "user(locn"):
			if loc, ok := parseUserLocation(s); ok {
				location = &loc
			}
		case s == "air.arg_type_name":
			count++
		case s == "air.arg_name":
			count++
			if count < len(properties) {
				name, ok := module.MetadataString(properties[count])
				if ok {
					argName = name
				}
			}
		}

		count++
	}

	return location, argName, nil
}

// parseUserLocation extracts N out of a "user(locnN)" property string.
func parseUserLocation(s string) (uint32, bool) {
	start := strings.Index(s, "user(locn")
	if start < 0 {
		return 0, false
	}
	rest := s[start+len("user(locn"):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(rest[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
