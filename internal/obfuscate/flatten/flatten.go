package flatten

import (
	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
)

// Shuffle permutes n elements in place, matching randsrc.Source.Shuffle's
// signature. Flatten accepts one directly rather than a randsrc.Source so
// this package does not need to import randsrc for the one method it uses.
type Shuffle func(n int, swap func(i, j int))

// Flatten rewires fn in place into a dispatcher-driven state machine. fn
// must already be gated (Gate(fn).Eligible) and demoted (Demote(fn) has
// run). shuffle, if non-nil, randomizes the dense id assignment order.
// Returns an error if the entry's initial state cannot be computed, in
// which case the caller must restore the function.
func Flatten(fn *ir.Function, shuffle Shuffle) error {
	entry := fn.Entry()
	if entry == nil {
		return errors.Errorf("flatten: function %s has no entry block", fn.Name)
	}

	targets := make([]*ir.Block, 0, len(fn.Blocks)-1)
	for _, b := range fn.Blocks {
		if b != entry {
			targets = append(targets, b)
		}
	}
	if shuffle != nil {
		shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	}

	ids := make(IDMap, len(targets))
	for i, b := range targets {
		ids[b.ID] = int64(i + 1)
	}

	// State slot at the first insertion point of entry.
	stateSlot := fn.AllocValue()
	entry.InsertInstrAt(0, &ir.Alloca{ID: stateSlot, ElemType: ir.TypeI32, Name: "cff.state"})

	// Dispatch and Default blocks. Their names double as the
	// already-flattened marker Gate checks for.
	b := ir.NewBuilder(fn)
	dispatch := b.CreateBlock(DispatchBlockName)
	def := b.CreateBlock(DefaultBlockName)
	def.Term = &ir.Unreachable{}

	// Initial state, computed from the entry's original terminator.
	origEntryTerm := entry.Term
	b.SetInsertPoint(entry)
	initState, ok := NextState(b, origEntryTerm, ids)
	if !ok {
		return errors.Errorf("flatten: function %s: entry terminator has no computable initial state; aborting", fn.Name)
	}
	b.Store(stateSlot, initState)
	entry.Term = &ir.Br{Target: dispatch.ID}

	// Dispatcher switch, one case per target block.
	b.SetInsertPoint(dispatch)
	loaded := b.Load(ir.TypeI32, stateSlot)
	cases := make([]ir.SwitchCase, 0, len(targets))
	for _, blk := range targets {
		cases = append(cases, ir.SwitchCase{Value: ids[blk.ID], Target: blk.ID})
	}
	dispatch.Term = &ir.Switch{Cond: loaded, Cases: cases, Default: def.ID}

	// Per-block terminator rewrite.
	for _, blk := range targets {
		rewriteBlockTerminator(fn, blk, stateSlot, dispatch.ID, ids)
	}

	// Remove now-unreachable blocks.
	pruneUnreachable(fn)

	return nil
}

func rewriteBlockTerminator(fn *ir.Function, blk *ir.Block, stateSlot ir.ValueID, dispatch ir.BlockID, ids IDMap) {
	switch blk.Term.(type) {
	case *ir.Ret, *ir.Unreachable:
		return
	}

	b := ir.NewBuilder(fn)
	b.SetInsertPoint(blk)
	next, ok := NextState(b, blk.Term, ids)
	if !ok {
		// Original terminator preserved unchanged: a branch to an unmapped
		// target, an asymmetric conditional branch, or a switch with no
		// flattened successor.
		return
	}
	b.Store(stateSlot, next)
	blk.Term = &ir.Br{Target: dispatch}
}

// pruneUnreachable removes blocks no longer reachable from the entry.
func pruneUnreachable(fn *ir.Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	reachable := make(map[ir.BlockID]bool)
	var visit func(id ir.BlockID)
	visit = func(id ir.BlockID) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		blk := fn.Block(id)
		if blk == nil || blk.Term == nil {
			return
		}
		for _, s := range blk.Term.Successors() {
			visit(s)
		}
	}
	visit(entry.ID)

	kept := fn.Blocks[:0:0]
	for _, b := range fn.Blocks {
		if reachable[b.ID] {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept
}
