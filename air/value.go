package air

// AirValueKind tags the Value-list union described by the module's
// value-numbering scheme: every operand an instruction references is
// an index into this ordered list.
type AirValueKind int

const (
	AirValueConstant AirValueKind = iota
	AirValueGlobalVariable
	AirValueFunction
)

// AirValue is one entry of the module's value list.
type AirValue struct {
	Kind AirValueKind
	ID   uint64
}

// ResolveValueID turns a raw operand id into an absolute index into
// Module.Values. Apple's compiler (like upstream LLVM from the
// relative-value-id era onward) encodes most operands relative to the
// instruction's position once the module format version requests it:
// the stored value is `valueCountAtUse - operand` rather than the
// absolute index directly. UseRelativeIDs is derived from the module
// version field, matching the VERSION >= 1 rule LLVM's bitcode reader
// applies.
func (m *Module) ResolveValueID(raw uint64, valueCountAtUse uint64) uint64 {
	if !m.UseRelativeIDs {
		return raw
	}
	if raw > valueCountAtUse {
		return 0
	}
	return valueCountAtUse - raw
}
