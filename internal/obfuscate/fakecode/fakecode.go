// Package fakecode inserts a branch guarded by a constant-false
// predicate: dead code a reader must rule out but the program never
// executes. It is deliberately minimal; it exists so the report's
// fake-code counters have a real, if trivial, source.
package fakecode

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// Stats counts what InsertGuardedNoop added.
type Stats struct {
	BlocksInserted       int
	ConditionalsInserted int
}

// InsertGuardedNoop appends one never-taken block to fn's entry, reached
// through a conditional branch on a constant-false predicate. It never
// changes fn's observable behavior.
func InsertGuardedNoop(fn *ir.Function) Stats {
	entry := fn.Entry()
	if entry == nil {
		return Stats{}
	}
	origTerm := entry.Term

	b := ir.NewBuilder(fn)
	dead := b.CreateBlock("fakecode.dead")
	dead.Term = &ir.Unreachable{}

	cont := b.CreateBlock("fakecode.cont")
	cont.Term = origTerm

	b.SetInsertPoint(entry)
	falseConst := b.ConstInt(ir.TypeI32, 0)
	entry.Term = &ir.CondBr{Cond: falseConst, Then: dead.ID, Else: cont.ID}

	// The moved terminator's successors now arrive via cont, so phis that
	// named the entry as a predecessor must name cont instead.
	if cont.Term != nil {
		for _, succID := range cont.Term.Successors() {
			succ := fn.Block(succID)
			if succ == nil {
				continue
			}
			for _, instr := range succ.Instrs {
				phi, ok := instr.(*ir.Phi)
				if !ok {
					continue
				}
				for i := range phi.Incoming {
					if phi.Incoming[i].Pred == entry.ID {
						phi.Incoming[i].Pred = cont.ID
					}
				}
			}
		}
	}

	return Stats{BlocksInserted: 1, ConditionalsInserted: 1}
}
