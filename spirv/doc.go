// Package spirv assembles SPIR-V binary modules: the Khronos-standard
// opcode/capability/decoration/storage-class numeric tables, a
// low-level binary ModuleBuilder, and the capability transitive-closure
// rules a lowering stage needs to emit a valid module.
//
// SPIR-V is the standard intermediate language for GPU shaders, used by
// Vulkan, OpenCL, and other APIs.
//
// # Binary writer
//
// ModuleBuilder accumulates a module section by section and assembles
// the final word stream in the layout the SPIR-V specification
// mandates:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_0)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//
//	floatType := builder.AddTypeFloat(32)
//	vec4Type := builder.AddTypeVector(floatType, 4)
//
//	binary := builder.Build()
//
// IDs are dense uint32s allocated sequentially from 1; Build stamps the
// header's bound as one past the maximum allocated id. Primitive and
// aggregate types are interned by structural equality, so repeated
// requests for the same shape reuse one id; struct types are always
// fresh, since two structurally identical structs are distinct SPIR-V
// types.
//
// # Capabilities
//
// AddCapability computes the fixed point of the specification's
// implied-capability rules: adding Geometry also enables Shader and
// (through Shader) Matrix, in first-required order. Duplicate adds are
// no-ops.
//
// # Module layout
//
// Build emits, in order: the 5-word header (magic, version, generator,
// bound, schema); capabilities; extensions; extended-instruction-set
// imports; the memory model; entry points; execution modes; debug
// strings and names; decorations; types, constants, and global
// variables; function bodies. Each instruction's first word packs
// (word count << 16) | opcode.
//
// SPIR-V specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
