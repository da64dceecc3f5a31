package flatten

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// IDMap is the dense state-id assignment over the flattened blocks.
type IDMap map[ir.BlockID]int64

func (m IDMap) idOf(b ir.BlockID) (int64, bool) {
	v, ok := m[b]
	return v, ok
}

// NextState computes the next-state expression for a rewritten
// terminator. The builder's current insertion point is where the
// comparison/select chain is emitted. ok is false when no next-state
// expression can be computed and the original terminator must be
// preserved unchanged (or, for the entry block, flattening must abort).
func NextState(b *ir.Builder, term ir.Term, ids IDMap) (ir.ValueID, bool) {
	switch t := term.(type) {
	case *ir.Br:
		id, ok := ids.idOf(t.Target)
		if !ok {
			return ir.InvalidValue, false
		}
		return b.ConstInt(ir.TypeI32, id), true

	case *ir.CondBr:
		thenID, thenOK := ids.idOf(t.Then)
		elseID, elseOK := ids.idOf(t.Else)
		if !thenOK || !elseOK {
			// Asymmetric: half-flattening would give the flattened
			// successor a second predecessor, so the branch stays.
			return ir.InvalidValue, false
		}
		thenConst := b.ConstInt(ir.TypeI32, thenID)
		elseConst := b.ConstInt(ir.TypeI32, elseID)
		return b.Select(ir.TypeI32, t.Cond, thenConst, elseConst), true

	case *ir.Switch:
		return nextStateForSwitch(b, t, ids)

	default:
		return ir.InvalidValue, false
	}
}

func nextStateForSwitch(b *ir.Builder, t *ir.Switch, ids IDMap) (ir.ValueID, bool) {
	anyFlattened := false
	if _, ok := ids.idOf(t.Default); ok {
		anyFlattened = true
	}
	for _, c := range t.Cases {
		if _, ok := ids.idOf(c.Target); ok {
			anyFlattened = true
		}
	}
	if !anyFlattened {
		return ir.InvalidValue, false
	}

	defaultID := int64(0)
	if id, ok := ids.idOf(t.Default); ok {
		defaultID = id
	}
	acc := b.ConstInt(ir.TypeI32, defaultID)

	for _, c := range t.Cases {
		caseID, ok := ids.idOf(c.Target)
		if !ok {
			continue
		}
		caseVal := b.ConstInt(ir.TypeI32, c.Value)
		cmp := b.ICmp(ir.ICmpEQ, t.Cond, caseVal)
		idConst := b.ConstInt(ir.TypeI32, caseID)
		acc = b.Select(ir.TypeI32, cmp, idConst, acc)
	}
	return acc, true
}
