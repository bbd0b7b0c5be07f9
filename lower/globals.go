package lower

import (
	"github.com/gogpu/airlines/air"
	"github.com/gogpu/airlines/spirv"
)

// lowerGlobal emits a GlobalVariable as an OpVariable. AIR's
// GLOBALVAR record stores the
// pointee's type directly (no separate address-space field this
// decoder models), so the storage class defaults from IsConstant:
// read-only globals get UniformConstant, everything else Private.
func (l *lowerer) lowerGlobal(g *air.GlobalVariable) (uint32, error) {
	pointeeID, err := l.lowerType(g.Type)
	if err != nil {
		return 0, err
	}

	storageClass := spirv.StorageClassPrivate
	if g.IsConstant {
		storageClass = spirv.StorageClassUniformConstant
	}
	pointerType := l.builder.AddTypePointer(storageClass, pointeeID)

	var id uint32
	if g.InitID > 0 {
		init, ok := l.module.Constants[g.InitID-1]
		if !ok {
			id = l.builder.AddVariable(pointerType, storageClass)
		} else {
			initID, err := l.lowerConstant(init)
			if err != nil {
				return 0, err
			}
			id = l.builder.AddVariableWithInit(pointerType, storageClass, initID)
		}
	} else {
		id = l.builder.AddVariable(pointerType, storageClass)
	}

	if g.Name != nil && g.Name.Content != "" {
		l.builder.AddName(id, g.Name.Content)
	}

	return id, nil
}
