package spirv

import "testing"

func TestCloseCapabilitiesGeometryImpliesShaderAndMatrix(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityGeometry)

	want := []Capability{CapabilityGeometry, CapabilityShader, CapabilityMatrix}
	if len(builder.capEnabled) != len(want) {
		t.Fatalf("capEnabled = %v, want %v", builder.capEnabled, want)
	}
	for i, c := range want {
		if builder.capEnabled[i] != c {
			t.Fatalf("capEnabled = %v, want %v", builder.capEnabled, want)
		}
	}
}

func TestAddCapabilityIdempotent(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	builder.AddCapability(CapabilityMatrix)
	builder.AddCapability(CapabilityShader)

	if len(builder.capabilities) != 2 {
		t.Fatalf("got %d OpCapability instructions, want 2 (Shader, Matrix)", len(builder.capabilities))
	}
	if !builder.HasCapability(CapabilityMatrix) {
		t.Error("expected Matrix to be enabled via Shader's closure")
	}
}

func TestCloseCapabilitiesKernelFamily(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityPipes)

	if !builder.HasCapability(CapabilityKernel) {
		t.Error("expected Pipes to imply Kernel")
	}
}

func TestCloseCapabilitiesInt64Atomics(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityInt64Atomics)

	if !builder.HasCapability(CapabilityInt64) {
		t.Error("expected Int64Atomics to imply Int64")
	}
}
