// Package lower translates a decoded AIR module into a SPIR-V binary:
// one pass over the module emits types, constants, globals, and
// function bodies, then a second pass over named metadata reconstructs
// entry points, since AIR carries no first-class entry-point node,
// only a metadata convention the Metal compiler front end leaves
// behind.
package lower

import (
	"fmt"

	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/spirv"
)

// Options configures lowering.
type Options struct {
	Version  spirv.Version
	Logger   *diag.Logger
	Tolerant bool
}

// DefaultOptions targets SPIR-V 1.0, the floor every Vulkan
// implementation accepts.
func DefaultOptions() Options {
	return Options{Version: spirv.Version{Major: 1, Minor: 0}, Logger: diag.NewNopLogger()}
}

// lowerer holds the state threaded through one module's lowering pass.
type lowerer struct {
	module  *air.Module
	builder *spirv.ModuleBuilder
	opts    Options

	types     map[*air.Type]uint32
	consts    map[*air.Constant]uint32
	arrayLens map[uint64]uint32

	// moduleValueIDs parallels module.Values: moduleValueIDs[i] is the
	// SPIR-V id produced for module.Values[i].
	moduleValueIDs []uint32

	// functionIDByIndex maps a function's position in module.Functions
	// to the SPIR-V id pre-allocated for it, the lookup
	// lowerEntryPoints needs once it has resolved a fn_ref to a plain
	// function index.
	functionIDByIndex map[uint64]uint32
}

// Lower translates module into a SPIR-V binary.
func Lower(module *air.Module, opts Options) ([]byte, error) {
	if opts.Logger == nil {
		opts.Logger = diag.NewNopLogger()
	}
	if opts.Version.Major == 0 {
		opts.Version = spirv.Version{Major: 1, Minor: 0}
	}

	l := &lowerer{
		module:            module,
		builder:           spirv.NewModuleBuilder(opts.Version),
		opts:              opts,
		types:             make(map[*air.Type]uint32),
		consts:            make(map[*air.Constant]uint32),
		arrayLens:         make(map[uint64]uint32),
		functionIDByIndex: make(map[uint64]uint32),
	}

	l.builder.AddCapability(spirv.CapabilityShader)
	l.builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	// Emit the whole type table in declaration order before any value
	// references it: composite entries only ever point backwards, so
	// this also guarantees forward-reference-free output for types a
	// value never touches (a named struct the shader declares but no
	// global instantiates still appears, with its OpName).
	for _, t := range module.Types {
		if _, err := l.lowerType(t); err != nil {
			return nil, err
		}
	}

	if err := l.lowerValues(); err != nil {
		return nil, err
	}

	entryPoints, err := l.lowerEntryPoints()
	if err != nil {
		if opts.Tolerant {
			opts.Logger.Tolerate("lower.entrypoints", err)
		} else {
			return nil, err
		}
	}
	if len(entryPoints) == 0 {
		l.opts.Logger.Debugf("no air.vertex/air.fragment/air.compute named metadata found")
	}

	return l.builder.Build(), nil
}

// lowerValues emits every entry of the module's value list in order,
// recording the SPIR-V id each produces in moduleValueIDs so
// instruction operands (which reference values by module-wide id) can
// be resolved uniformly regardless of whether they name a constant, a
// global, or a function.
func (l *lowerer) lowerValues() error {
	l.moduleValueIDs = make([]uint32, len(l.module.Values))

	// Functions are pre-allocated ids up front (without emitting their
	// OpFunction body yet) so OP_CALL operands referencing a function
	// declared later in the module resolve without a forward-patch pass.
	for i, v := range l.module.Values {
		if v.Kind != air.AirValueFunction {
			continue
		}
		id := l.builder.AllocID()
		l.moduleValueIDs[i] = id
		l.functionIDByIndex[v.ID] = id
	}

	for i, v := range l.module.Values {
		switch v.Kind {
		case air.AirValueConstant:
			c, ok := l.module.Constants[v.ID]
			if !ok {
				return fmt.Errorf("%w: value list references missing constant %d", diag.ErrSemanticMismatch, v.ID)
			}
			id, err := l.lowerConstant(c)
			if err != nil {
				return err
			}
			l.moduleValueIDs[i] = id
		case air.AirValueGlobalVariable:
			g := l.module.GlobalVariables[v.ID]
			id, err := l.lowerGlobal(g)
			if err != nil {
				return err
			}
			l.moduleValueIDs[i] = id
		case air.AirValueFunction:
			// id already allocated above; body emitted below.
		}
	}

	for i, v := range l.module.Values {
		if v.Kind != air.AirValueFunction {
			continue
		}
		fn := l.module.Functions[v.ID]
		if err := l.lowerFunction(fn, l.moduleValueIDs[i]); err != nil {
			return err
		}
	}

	return nil
}

// resolveOperand maps a raw FUNCTION_BLOCK operand to the SPIR-V id it
// denotes. locals holds every value the current function has produced
// so far, in order (parameters first, then one entry per value-
// producing instruction already lowered); the count of module-wide
// values plus len(locals) is the "values produced so far" total
// Module.ResolveValueID's relative-id convention is defined against.
func (l *lowerer) resolveOperand(raw uint64, locals []uint32) (uint32, error) {
	n := uint64(len(l.moduleValueIDs))
	abs := l.module.ResolveValueID(raw, n+uint64(len(locals)))
	if abs < n {
		return l.moduleValueIDs[abs], nil
	}
	localIdx := abs - n
	if localIdx >= uint64(len(locals)) {
		return 0, fmt.Errorf("%w: operand %d resolves to out-of-range local value %d", diag.ErrSemanticMismatch, raw, abs)
	}
	return locals[localIdx], nil
}
