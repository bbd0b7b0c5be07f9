package lower

import (
	"github.com/gogpu/airlines/air"
)

// lowerConstant emits c's value under c's type. Results are memoized
// per table entry so an aggregate member referenced both by its
// composite and by the value list resolves to one id.
func (l *lowerer) lowerConstant(c *air.Constant) (uint32, error) {
	if id, ok := l.consts[c]; ok {
		return id, nil
	}
	typeID, err := l.lowerType(c.Type)
	if err != nil {
		return 0, err
	}
	id, err := l.lowerConstantValue(c.Type, typeID, c.Value)
	if err != nil {
		return 0, err
	}
	l.consts[c] = id
	return id, nil
}

func (l *lowerer) lowerConstantValue(t *air.Type, typeID uint32, v air.ConstantValue) (uint32, error) {
	switch v.Kind {
	case air.ConstantInteger:
		if t.Kind == air.TypeInteger && t.IntWidth == 1 {
			if v.Integer != 0 {
				return l.builder.AddConstantTrue(typeID), nil
			}
			return l.builder.AddConstantFalse(typeID), nil
		}
		return l.builder.AddConstant(typeID, uint32(v.Integer)), nil
	case air.ConstantFloat32:
		return l.builder.AddConstantFloat32(typeID, v.Float32), nil
	case air.ConstantNull, air.ConstantUndefined, air.ConstantPoison:
		// SPIR-V has no direct undef/poison constant; OpConstantNull is
		// the closest representable value and is always well-formed.
		return l.builder.AddConstantNull(typeID), nil
	case air.ConstantPointer:
		// A raw pointer bit-pattern constant has no SPIR-V literal form;
		// collapse to the type's null value.
		return l.builder.AddConstantNull(typeID), nil
	case air.ConstantArray:
		elemType := t.Elem
		constituents := make([]uint32, len(v.Array))
		elemTypeID, err := l.lowerType(elemType)
		if err != nil {
			return 0, err
		}
		for i, elem := range v.Array {
			id, err := l.lowerConstantValue(elemType, elemTypeID, elem)
			if err != nil {
				return 0, err
			}
			constituents[i] = id
		}
		return l.builder.AddConstantComposite(typeID, constituents...), nil
	case air.ConstantAggregate:
		constituents := make([]uint32, 0, len(v.Aggregate))
		for _, id := range v.Aggregate {
			member, ok := l.module.Constants[id]
			if !ok {
				continue
			}
			memberID, err := l.lowerConstant(member)
			if err != nil {
				return 0, err
			}
			constituents = append(constituents, memberID)
		}
		return l.builder.AddConstantComposite(typeID, constituents...), nil
	default:
		// ConstantUnresolved reaching here is a reference that never
		// resolved; the AIR decoder already reported it (and only lets it
		// through in tolerant mode), so fall back to null rather than
		// fail lowering outright.
		return l.builder.AddConstantNull(typeID), nil
	}
}
