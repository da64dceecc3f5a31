package flatten

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// Demote runs the two-step demotion in place: phi removal, then
// cross-block SSA spill. After Demote returns, no instruction's value is
// read from a block other than the one defining it except through
// memory, the precondition Flatten needs before it may freely rewire the
// CFG around a dispatcher.
func Demote(fn *ir.Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	removePhis(fn, entry)
	demoteCrossBlockValues(fn, entry)
}

// removePhis lowers every phi to a stack slot: stores at each
// predecessor's terminator, loads at each use.
func removePhis(fn *ir.Function, entry *ir.Block) {
	for _, b := range fn.Blocks {
		var phis []*ir.Phi
		for _, instr := range b.Instrs {
			if p, ok := instr.(*ir.Phi); ok {
				phis = append(phis, p)
			}
		}
		for _, p := range phis {
			slot := allocaAtEntryStart(fn, entry, p.Type, "phi.slot")
			storeUndefAtEntryEnd(fn, entry, slot, p.Type)

			for _, in := range p.Incoming {
				pred := fn.Block(in.Pred)
				if pred == nil {
					continue
				}
				insertStoreBeforeTerminator(pred, slot, in.Value)
			}

			replaceUsesWithLoads(fn, p.ID, slot, p.Type)
			removeInstr(b, p)
		}
	}
}

// demoteCrossBlockValues spills every value with a use outside its
// defining block: a store immediately after the definition, a load
// immediately before each external use.
func demoteCrossBlockValues(fn *ir.Function, entry *ir.Block) {
	type spillCandidate struct {
		block *ir.Block
		instr ir.Instr
	}
	var candidates []spillCandidate

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if isAlloca(instr) {
				continue
			}
			if instr.Result() == ir.InvalidValue {
				continue
			}
			if hasCrossBlockUse(fn, b, instr.Result()) {
				candidates = append(candidates, spillCandidate{block: b, instr: instr})
			}
		}
	}

	for _, c := range candidates {
		instr := c.instr
		resultType := resultTypeOf(instr)
		slot := allocaAtEntryStart(fn, entry, resultType, "spill.slot")

		idx := c.block.IndexOfInstr(instr)
		store := &ir.Store{Addr: slot, Value: instr.Result()}
		c.block.InsertInstrAt(idx+1, store)

		for _, u := range ir.FindUses(fn, instr.Result()) {
			if u.Instr == store {
				continue
			}
			loadVal := insertLoadForUse(fn, u, slot, resultType)
			u.Set(loadVal)
		}
	}
}

func isAlloca(instr ir.Instr) bool {
	_, ok := instr.(*ir.Alloca)
	return ok
}

func hasCrossBlockUse(fn *ir.Function, defBlock *ir.Block, id ir.ValueID) bool {
	for _, u := range ir.FindUses(fn, id) {
		if u.Block != defBlock {
			return true
		}
	}
	return false
}

func resultTypeOf(instr ir.Instr) ir.Type {
	switch v := instr.(type) {
	case *ir.ConstInt:
		return v.Type
	case *ir.Alloca:
		return ir.TypePtr
	case *ir.Load:
		return v.Type
	case *ir.GEP:
		return ir.TypePtr
	case *ir.BitCast:
		return v.Type
	case *ir.Binary:
		return v.Type
	case *ir.ICmp:
		return ir.TypeI32
	case *ir.Select:
		return v.Type
	case *ir.Call:
		return v.Type
	case *ir.GlobalAddr:
		return ir.TypePtr
	case *ir.Undef:
		return v.Type
	case *ir.Phi:
		return v.Type
	default:
		return ir.TypeI32
	}
}

func allocaAtEntryStart(fn *ir.Function, entry *ir.Block, t ir.Type, name string) ir.ValueID {
	id := fn.AllocValue()
	entry.InsertInstrAt(0, &ir.Alloca{ID: id, ElemType: t, Name: name})
	return id
}

// storeUndefAtEntryEnd defines the slot on every path that reaches a
// phi-block without passing through one of its direct predecessors: once
// the dispatcher is in place, a block can be entered from blocks that
// were never its IR predecessors.
func storeUndefAtEntryEnd(fn *ir.Function, entry *ir.Block, slot ir.ValueID, t ir.Type) {
	undefID := fn.AllocValue()
	entry.AppendInstr(&ir.Undef{ID: undefID, Type: t})
	entry.AppendInstr(&ir.Store{Addr: slot, Value: undefID})
}

func insertStoreBeforeTerminator(b *ir.Block, slot, value ir.ValueID) {
	b.AppendInstr(&ir.Store{Addr: slot, Value: value})
}

func replaceUsesWithLoads(fn *ir.Function, id ir.ValueID, slot ir.ValueID, t ir.Type) {
	for _, u := range ir.FindUses(fn, id) {
		loadVal := insertLoadForUse(fn, u, slot, t)
		u.Set(loadVal)
	}
}

// insertLoadForUse inserts a fresh load of slot immediately before the
// instruction (or terminator) that uses it and returns the load's result
// id. A use by a phi is the one placement exception: the incoming value
// must be available at the end of the corresponding predecessor, so the
// load goes there instead of in front of the phi.
func insertLoadForUse(fn *ir.Function, u ir.Use, slot ir.ValueID, t ir.Type) ir.ValueID {
	loadID := fn.AllocValue()
	load := &ir.Load{ID: loadID, Type: t, Addr: slot}
	switch instr := u.Instr.(type) {
	case nil:
		// Use is in the terminator: the load goes at the end of the
		// instruction list, immediately before the terminator executes.
		u.Block.AppendInstr(load)
	case *ir.Phi:
		pred := fn.Block(instr.Incoming[u.Index].Pred)
		if pred == nil {
			u.Block.InsertInstrAt(0, load)
			break
		}
		pred.AppendInstr(load)
	default:
		idx := u.Block.IndexOfInstr(instr)
		u.Block.InsertInstrAt(idx, load)
	}
	return loadID
}

func removeInstr(b *ir.Block, target ir.Instr) {
	idx := b.IndexOfInstr(target)
	if idx >= 0 {
		b.RemoveInstrAt(idx)
	}
}
