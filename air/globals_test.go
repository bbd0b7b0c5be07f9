package air

import (
	"testing"

	"github.com/gogpu/airlines/bitcode"
)

func TestDecodeGlobalVariable(t *testing.T) {
	types := []*Type{{Kind: TypeInteger, IntWidth: 32}}
	fields := bitcode.Fields{3, 5, 0, 1, 7}
	g, err := decodeGlobalVariable(types, fields)
	if err != nil {
		t.Fatalf("decodeGlobalVariable: %v", err)
	}
	if g.Name.Offset != 3 || g.Name.Size != 5 {
		t.Errorf("name ref = %+v", g.Name)
	}
	if g.Type != types[0] {
		t.Errorf("type = %+v", g.Type)
	}
	if !g.IsConstant || g.InitID != 7 {
		t.Errorf("g = %+v", g)
	}
}

func TestDecodeGlobalVariableRejectsShortRecord(t *testing.T) {
	if _, err := decodeGlobalVariable(nil, bitcode.Fields{1, 2}); err == nil {
		t.Fatal("expected error for truncated GLOBALVAR record")
	}
}

func TestTableStringResolve(t *testing.T) {
	ts := &TableString{Offset: 2, Size: 3}
	if err := ts.resolve([]byte("xxfooxx")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ts.Content != "foo" {
		t.Fatalf("Content = %q, want foo", ts.Content)
	}
}

func TestTableStringResolveOutOfRange(t *testing.T) {
	ts := &TableString{Offset: 5, Size: 10}
	if err := ts.resolve([]byte("short")); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestDecodeFunctionSignature(t *testing.T) {
	types := []*Type{{Kind: TypeFunction}}
	fields := bitcode.Fields{0, 4, 0, 0, 1}
	fn, err := decodeFunctionSignature(types, fields)
	if err != nil {
		t.Fatalf("decodeFunctionSignature: %v", err)
	}
	if fn.Type != types[0] {
		t.Errorf("type = %+v", fn.Type)
	}
	if !fn.IsDeclaration {
		t.Error("expected IsDeclaration true")
	}
}
