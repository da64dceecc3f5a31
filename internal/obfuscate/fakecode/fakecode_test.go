package fakecode

import (
	"testing"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/verify"
)

func TestInsertGuardedNoopAddsConstantFalseBranch(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32)
	b := ir.NewBuilder(fn)
	b.CreateBlock("entry")
	v := b.ConstInt(ir.TypeI32, 0)
	b.RetValue(v)

	stats := InsertGuardedNoop(fn)
	if stats.BlocksInserted != 1 || stats.ConditionalsInserted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	cb, ok := fn.Entry().Term.(*ir.CondBr)
	if !ok {
		t.Fatalf("expected entry to end in a conditional branch, got %T", fn.Entry().Term)
	}
	guard := false
	for _, instr := range fn.Entry().Instrs {
		if c, isConst := instr.(*ir.ConstInt); isConst && c.ID == cb.Cond && c.Value == 0 {
			guard = true
		}
	}
	if !guard {
		t.Fatal("expected the branch to be guarded by a constant-false predicate")
	}

	res := verify.VerifyFunction(fn)
	if !res.OK() {
		t.Fatalf("expected the function to still verify, got %v", res.Errors)
	}
}

func TestInsertGuardedNoopRewritesPhiPredecessors(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32)
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	join := b.CreateBlock("join")
	b.SetInsertPoint(entry)
	zero := b.ConstInt(ir.TypeI32, 0)
	b.Br(join.ID)
	b.SetInsertPoint(join)
	p := b.Phi(ir.TypeI32)
	ir.AddIncoming(p, entry.ID, zero)
	b.RetValue(p.ID)

	InsertGuardedNoop(fn)

	if p.Incoming[0].Pred == entry.ID {
		t.Fatal("expected the phi's incoming edge to follow the split-off terminator")
	}
	res := verify.VerifyFunction(fn)
	if !res.OK() {
		t.Fatalf("expected the function to still verify, got %v", res.Errors)
	}
}
