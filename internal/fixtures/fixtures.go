// Package fixtures builds small example modules by hand with
// internal/ir.Builder, for use by the CLI's -fixture flag and by the
// driver, interp and plugin tests: construct a minimal module, run the
// passes, assert on shape and output.
package fixtures

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// Names lists the fixture names the CLI's -fixture flag accepts.
var Names = []string{"empty", "hello", "branch", "switch", "loop", "indirect"}

// Build returns the named fixture module, or nil if name is unknown.
func Build(name string) *ir.Module {
	switch name {
	case "empty":
		return Empty()
	case "hello":
		return Hello()
	case "branch":
		return Branch()
	case "switch":
		return Switch()
	case "loop":
		return Loop()
	case "indirect":
		return Indirect()
	default:
		return nil
	}
}

// Empty is a module with one function int main(){return 0;} and no
// string globals.
func Empty() *ir.Module {
	m := ir.NewModule("empty")
	fn := ir.NewFunction("main", ir.TypeI32)
	m.Functions = append(m.Functions, fn)
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	zero := b.ConstInt(ir.TypeI32, 0)
	_ = entry
	b.RetValue(zero)
	return m
}

// Hello is a module with a global byte array "hello\n\0" used by one
// call to a print-like runtime function.
func Hello() *ir.Module {
	m := ir.NewModule("hello")
	g := &ir.GlobalVariable{
		Name:     "str.hello",
		Constant: true,
		HasInit:  true,
		Data:     append([]byte("hello\n"), 0),
		Linkage:  ir.LinkageInternal,
	}
	m.Globals = append(m.Globals, g)

	fn := ir.NewFunction("main", ir.TypeI32)
	m.Functions = append(m.Functions, fn)
	b := ir.NewBuilder(fn)
	b.CreateBlock("entry")
	addr := b.GlobalAddr(g.Name)
	b.Call(ir.TypeVoid, "puts", addr)
	zero := b.ConstInt(ir.TypeI32, 0)
	b.RetValue(zero)
	return m
}

// Branch is "if (x>0) return 1; else return -1;" as unoptimized IR: a
// parameter compared against zero, a conditional branch to two distinct
// return blocks.
func Branch() *ir.Module {
	m := ir.NewModule("branch")
	x := ir.Param{ID: 1, Name: "x", Type: ir.TypeI32}
	fn := ir.NewFunction("classify", ir.TypeI32, x)
	m.Functions = append(m.Functions, fn)

	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	zero := b.ConstInt(ir.TypeI32, 0)
	cond := b.ICmp(ir.ICmpSLT, zero, x.ID) // 0 < x, i.e. x > 0
	thenBlk := b.CreateBlock("then")
	elseBlk := b.CreateBlock("else")
	b.SetInsertPoint(entry)
	b.CondBr(cond, thenBlk.ID, elseBlk.ID)

	b.SetInsertPoint(thenBlk)
	one := b.ConstInt(ir.TypeI32, 1)
	b.RetValue(one)

	b.SetInsertPoint(elseBlk)
	negOne := b.ConstInt(ir.TypeI32, -1)
	b.RetValue(negOne)

	return m
}

// Switch is a 4-case switch on a parameter, plus default, each case
// returning a distinct constant.
func Switch() *ir.Module {
	m := ir.NewModule("switchmod")
	x := ir.Param{ID: 1, Name: "x", Type: ir.TypeI32}
	fn := ir.NewFunction("dispatch", ir.TypeI32, x)
	m.Functions = append(m.Functions, fn)

	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")

	caseBlocks := make([]*ir.Block, 4)
	for i := range caseBlocks {
		caseBlocks[i] = b.CreateBlock("case")
	}
	defaultBlk := b.CreateBlock("default")

	b.SetInsertPoint(entry)
	cases := make([]ir.SwitchCase, len(caseBlocks))
	for i, cb := range caseBlocks {
		cases[i] = ir.SwitchCase{Value: int64(i), Target: cb.ID}
	}
	entry.Term = &ir.Switch{Cond: x.ID, Cases: cases, Default: defaultBlk.ID}

	for i, cb := range caseBlocks {
		b.SetInsertPoint(cb)
		v := b.ConstInt(ir.TypeI32, int64(10+i))
		b.RetValue(v)
	}
	b.SetInsertPoint(defaultBlk)
	d := b.ConstInt(ir.TypeI32, -1)
	b.RetValue(d)

	return m
}

// Loop is int s=0; for(int i=0;i<10;i++) s+=i; return s; an SSA
// induction variable and accumulator threaded through header phis.
func Loop() *ir.Module {
	m := ir.NewModule("loopmod")
	fn := ir.NewFunction("sumTo10", ir.TypeI32)
	m.Functions = append(m.Functions, fn)

	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	header := b.CreateBlock("header")
	body := b.CreateBlock("body")
	exit := b.CreateBlock("exit")

	b.SetInsertPoint(entry)
	zeroI := b.ConstInt(ir.TypeI32, 0)
	zeroS := b.ConstInt(ir.TypeI32, 0)
	b.Br(header.ID)

	b.SetInsertPoint(header)
	iPhi := b.Phi(ir.TypeI32)
	sPhi := b.Phi(ir.TypeI32)
	ten := b.ConstInt(ir.TypeI32, 10)
	cond := b.ICmp(ir.ICmpSLT, iPhi.ID, ten)
	header.Term = &ir.CondBr{Cond: cond, Then: body.ID, Else: exit.ID}

	b.SetInsertPoint(body)
	newS := b.Binary(ir.TypeI32, ir.OpAdd, sPhi.ID, iPhi.ID)
	one := b.ConstInt(ir.TypeI32, 1)
	newI := b.Binary(ir.TypeI32, ir.OpAdd, iPhi.ID, one)
	b.Br(header.ID)

	ir.AddIncoming(iPhi, entry.ID, zeroI)
	ir.AddIncoming(iPhi, body.ID, newI)
	ir.AddIncoming(sPhi, entry.ID, zeroS)
	ir.AddIncoming(sPhi, body.ID, newS)

	b.SetInsertPoint(exit)
	b.RetValue(sPhi.ID)

	return m
}

// Indirect is a module whose one function contains an indirect branch (a
// computed goto): ineligible for flattening, nothing for string
// encryption to find.
func Indirect() *ir.Module {
	m := ir.NewModule("indirectmod")
	fn := ir.NewFunction("computedGoto", ir.TypeI32)
	m.Functions = append(m.Functions, fn)

	b := ir.NewBuilder(fn)
	entry := b.CreateBlock("entry")
	target := b.CreateBlock("target")

	b.SetInsertPoint(entry)
	addr := b.GlobalAddr("computedGoto") // stand-in blockaddress operand
	entry.Term = &ir.IndirectBr{Addr: addr, Possible: []ir.BlockID{target.ID}}

	b.SetInsertPoint(target)
	v := b.ConstInt(ir.TypeI32, 7)
	b.RetValue(v)

	return m
}
