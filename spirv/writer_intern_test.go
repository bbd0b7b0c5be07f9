package spirv

import "testing"

func TestAddTypeInterningReusesID(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	f1 := builder.AddTypeFloat(32)
	f2 := builder.AddTypeFloat(32)
	if f1 != f2 {
		t.Errorf("AddTypeFloat(32) twice: got %d and %d, want same ID", f1, f2)
	}

	f64 := builder.AddTypeFloat(64)
	if f64 == f1 {
		t.Error("AddTypeFloat(64) should not reuse the float32 ID")
	}

	if len(builder.types) != 2 {
		t.Fatalf("got %d OpType instructions, want 2 (one per distinct width)", len(builder.types))
	}
}

func TestAddTypeVectorInterning(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	floatType := builder.AddTypeFloat(32)

	v1 := builder.AddTypeVector(floatType, 4)
	v2 := builder.AddTypeVector(floatType, 4)
	v3 := builder.AddTypeVector(floatType, 3)

	if v1 != v2 {
		t.Errorf("identical vec4 requests got different IDs: %d, %d", v1, v2)
	}
	if v3 == v1 {
		t.Error("vec3 should not reuse the vec4 ID")
	}
}

func TestAddTypeStructAlwaysFresh(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	floatType := builder.AddTypeFloat(32)

	s1 := builder.AddTypeStruct(floatType, floatType)
	s2 := builder.AddTypeStruct(floatType, floatType)
	if s1 == s2 {
		t.Error("AddTypeStruct should never intern; each call must allocate a fresh ID")
	}
}
