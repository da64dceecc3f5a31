package verify

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
)

// Result reports every problem found in a function. A verified function has
// an empty Errors slice.
type Result struct {
	Function string
	Errors   []error
}

func (r *Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) fail(format string, args ...interface{}) {
	r.Errors = append(r.Errors, errors.Errorf(format, args...))
}

// VerifyFunction runs the structural and dominance checks a transformed
// function must pass: every block terminated, every branch target
// resolvable, every operand either a parameter or dominated by its
// defining instruction.
func VerifyFunction(fn *ir.Function) *Result {
	res := &Result{Function: fn.Name}
	if fn.Declaration {
		return res
	}
	if len(fn.Blocks) == 0 {
		res.fail("function %s has no blocks", fn.Name)
		return res
	}

	blockIDs := make(map[ir.BlockID]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		blockIDs[b.ID] = true
	}

	for _, b := range fn.Blocks {
		if b.Term == nil {
			res.fail("block %d (%s) has no terminator", b.ID, b.Name)
			continue
		}
		for _, s := range b.Term.Successors() {
			if !blockIDs[s] {
				res.fail("block %d terminator references unknown block %d", b.ID, s)
			}
		}
	}

	verifyPhiPredecessors(fn, res, blockIDs)

	cfg := BuildCFG(fn)
	dom := ComputeDominators(cfg)
	verifyDominance(fn, cfg, dom, res)

	return res
}

func verifyPhiPredecessors(fn *ir.Function, res *Result, blockIDs map[ir.BlockID]bool) {
	cfg := BuildCFG(fn)
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			phi, ok := instr.(*ir.Phi)
			if !ok {
				continue
			}
			preds := cfg.Preds(b.ID)
			predSet := make(map[ir.BlockID]bool, len(preds))
			for _, p := range preds {
				predSet[p] = true
			}
			seen := make(map[ir.BlockID]bool)
			for _, in := range phi.Incoming {
				if !blockIDs[in.Pred] {
					res.fail("phi %%%d in block %d has incoming edge from unknown block %d", phi.ID, b.ID, in.Pred)
					continue
				}
				if !predSet[in.Pred] && cfg.Reachable(b.ID) {
					res.fail("phi %%%d in block %d has incoming edge from non-predecessor block %d", phi.ID, b.ID, in.Pred)
				}
				seen[in.Pred] = true
			}
			if cfg.Reachable(b.ID) {
				for _, p := range preds {
					if !seen[p] {
						res.fail("phi %%%d in block %d is missing an incoming value for predecessor %d", phi.ID, b.ID, p)
					}
				}
			}
		}
	}
}

// verifyDominance checks that every operand referencing an instruction
// result is either a parameter or defined in a block that dominates the
// use: the core SSA invariant, holding both before flattening (sanity of
// the input) and after (cross-block values now travel through memory, so
// what remains in SSA form must still dominate its uses).
func verifyDominance(fn *ir.Function, cfg *CFG, dom *Dominators, res *Result) {
	defBlock := make(map[ir.ValueID]ir.BlockID)
	for _, p := range fn.Params {
		defBlock[p.ID] = cfg.Entry
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if r := instr.Result(); r != ir.InvalidValue {
				defBlock[r] = b.ID
			}
		}
	}

	checkOperand := func(useBlock ir.BlockID, op ir.ValueID) {
		if op == ir.InvalidValue {
			return
		}
		db, ok := defBlock[op]
		if !ok {
			res.fail("value %%%d used in block %d has no definition in the function", op, useBlock)
			return
		}
		if !cfg.Reachable(useBlock) {
			return
		}
		if db == useBlock {
			return
		}
		if !dom.Dominates(db, useBlock) {
			res.fail("value %%%d defined in block %d does not dominate its use in block %d", op, db, useBlock)
		}
	}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if phi, ok := instr.(*ir.Phi); ok {
				for _, in := range phi.Incoming {
					if in.Value == ir.InvalidValue {
						continue
					}
					db, ok := defBlock[in.Value]
					if !ok {
						res.fail("phi %%%d incoming value %%%d has no definition", phi.ID, in.Value)
						continue
					}
					if cfg.Reachable(in.Pred) && !dom.Dominates(db, in.Pred) {
						res.fail("phi %%%d incoming value %%%d does not dominate predecessor block %d", phi.ID, in.Value, in.Pred)
					}
				}
				continue
			}
			for _, op := range instr.Operands() {
				checkOperand(b.ID, op)
			}
		}
		if b.Term != nil {
			for _, op := range b.Term.Operands() {
				checkOperand(b.ID, op)
			}
		}
	}
}

// VerifyModule verifies every non-declaration function and aggregates the
// per-function results.
func VerifyModule(m *ir.Module) []*Result {
	out := make([]*Result, 0, len(m.Functions))
	for _, fn := range m.Functions {
		if fn.Declaration {
			continue
		}
		out = append(out, VerifyFunction(fn))
	}
	return out
}

// ModuleOK reports whether every function in the results verified cleanly.
func ModuleOK(results []*Result) bool {
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}

// HasPhi reports whether fn contains any Phi instruction; the demoter's
// postcondition is that it does not.
func HasPhi(fn *ir.Function) bool {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if _, ok := instr.(*ir.Phi); ok {
				return true
			}
		}
	}
	return false
}

// DispatcherShape reports whether fn has the shape flattening leaves
// behind: exactly one block whose terminator is a Switch loaded from a
// stack slot in that same block, and exactly one block whose terminator
// is Unreachable (the default block).
func DispatcherShape(fn *ir.Function) error {
	allocas := make(map[ir.ValueID]bool)
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if a, ok := instr.(*ir.Alloca); ok {
				allocas[a.ID] = true
			}
		}
	}

	var dispatchers, defaults int
	for _, b := range fn.Blocks {
		switch term := b.Term.(type) {
		case *ir.Switch:
			dispatchers++
			if !condIsStackLoad(b, term.Cond, allocas) {
				return errors.Errorf("dispatcher block %d does not switch over a stack slot loaded in the same block", b.ID)
			}
		case *ir.Unreachable:
			defaults++
		}
	}
	if dispatchers != 1 {
		return errors.Errorf("expected exactly 1 dispatcher block, found %d", dispatchers)
	}
	if defaults != 1 {
		return errors.Errorf("expected exactly 1 unreachable default block, found %d", defaults)
	}
	return nil
}

// condIsStackLoad reports whether cond is the result of a load, emitted in
// b itself, whose address is one of the function's stack slots. The slot's
// alloca lives in the entry block, not in the dispatcher.
func condIsStackLoad(b *ir.Block, cond ir.ValueID, allocas map[ir.ValueID]bool) bool {
	for _, instr := range b.Instrs {
		if l, ok := instr.(*ir.Load); ok && l.ID == cond && allocas[l.Addr] {
			return true
		}
	}
	return false
}

// SingleEntryEdge checks that in a flattened function, given the
// dispatcher's block id, every block other than the entry and the
// dispatcher itself has exactly one predecessor: the dispatcher.
func SingleEntryEdge(fn *ir.Function, dispatcher ir.BlockID, entry ir.BlockID) error {
	cfg := BuildCFG(fn)
	for _, b := range fn.Blocks {
		if b.ID == entry || b.ID == dispatcher {
			continue
		}
		preds := cfg.Preds(b.ID)
		if len(preds) == 0 {
			continue // unreachable, or the Default block
		}
		if len(preds) != 1 || preds[0] != dispatcher {
			return fmt.Errorf("block %d has predecessors %v, want exactly [%d]", b.ID, preds, dispatcher)
		}
	}
	return nil
}
