package flatten

import (
	"testing"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
)

func TestNextStateUnconditionalBranch(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeVoid)
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	target := b.CreateBlock("target")
	ids := IDMap{target.ID: 5}

	b.SetInsertPoint(entry)
	v, ok := NextState(b, &ir.Br{Target: target.ID}, ids)
	if !ok {
		t.Fatal("expected computable next state")
	}
	ci, ok := entry.Instrs[len(entry.Instrs)-1].(*ir.ConstInt)
	if !ok || ci.ID != v || ci.Value != 5 {
		t.Fatalf("expected emitted const 5, got %+v", ci)
	}
}

func TestNextStateUnconditionalBranchUnmappedTargetAborts(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeVoid)
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	target := b.CreateBlock("target")
	ids := IDMap{} // target has no id

	b.SetInsertPoint(entry)
	_, ok := NextState(b, &ir.Br{Target: target.ID}, ids)
	if ok {
		t.Fatal("expected next-state computation to fail for an unmapped branch target")
	}
}

func TestNextStateConditionalBranchBothMapped(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, ir.Param{ID: 1, Type: ir.TypeI32})
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	thenBlk := b.CreateBlock("then")
	elseBlk := b.CreateBlock("else")
	ids := IDMap{thenBlk.ID: 1, elseBlk.ID: 2}

	b.SetInsertPoint(entry)
	_, ok := NextState(b, &ir.CondBr{Cond: 1, Then: thenBlk.ID, Else: elseBlk.ID}, ids)
	if !ok {
		t.Fatal("expected computable next state when both successors are mapped")
	}
	last := entry.Instrs[len(entry.Instrs)-1]
	if _, ok := last.(*ir.Select); !ok {
		t.Fatalf("expected a select instruction, got %T", last)
	}
}

func TestNextStateConditionalBranchAsymmetricPreserved(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, ir.Param{ID: 1, Type: ir.TypeI32})
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	thenBlk := b.CreateBlock("then")
	elseBlk := b.CreateBlock("else")
	ids := IDMap{thenBlk.ID: 1} // elseBlk unmapped

	b.SetInsertPoint(entry)
	_, ok := NextState(b, &ir.CondBr{Cond: 1, Then: thenBlk.ID, Else: elseBlk.ID}, ids)
	if ok {
		t.Fatal("asymmetric conditional branches must be preserved, not half-flattened")
	}
}

func TestNextStateSwitchFoldsToNestedSelects(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, ir.Param{ID: 1, Type: ir.TypeI32})
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	c0 := b.CreateBlock("c0")
	c1 := b.CreateBlock("c1")
	def := b.CreateBlock("def")
	ids := IDMap{c0.ID: 1, c1.ID: 2, def.ID: 3}

	sw := &ir.Switch{
		Cond:    1,
		Default: def.ID,
		Cases: []ir.SwitchCase{
			{Value: 0, Target: c0.ID},
			{Value: 1, Target: c1.ID},
		},
	}

	b.SetInsertPoint(entry)
	_, ok := NextState(b, sw, ids)
	if !ok {
		t.Fatal("expected computable next state for a fully flattened switch")
	}
	selects := 0
	for _, instr := range entry.Instrs {
		if _, ok := instr.(*ir.Select); ok {
			selects++
		}
	}
	if selects != len(sw.Cases) {
		t.Fatalf("expected %d nested selects (one per case), got %d", len(sw.Cases), selects)
	}
}

func TestNextStateSwitchNoFlattenedSuccessorPreserved(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, ir.Param{ID: 1, Type: ir.TypeI32})
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	c0 := b.CreateBlock("c0")
	def := b.CreateBlock("def")
	ids := IDMap{} // nothing flattened

	sw := &ir.Switch{Cond: 1, Default: def.ID, Cases: []ir.SwitchCase{{Value: 0, Target: c0.ID}}}
	b.SetInsertPoint(entry)
	_, ok := NextState(b, sw, ids)
	if ok {
		t.Fatal("expected switch to be preserved unchanged when no successor is flattened")
	}
}

func TestNextStateReturnAndUnreachableNeverComputed(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeVoid)
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	b.SetInsertPoint(entry)

	if _, ok := NextState(b, &ir.Ret{}, IDMap{}); ok {
		t.Fatal("return terminators must never produce a next-state expression")
	}
	if _, ok := NextState(b, &ir.Unreachable{}, IDMap{}); ok {
		t.Fatal("unreachable terminators must never produce a next-state expression")
	}
}
