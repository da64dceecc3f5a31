package stringenc

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// DecryptStubName is the decrypt routine's function name, fixed so
// EnsureDecryptStub can recognize an already-present stub and stay
// idempotent per module.
const DecryptStubName = "chakravyuha_decrypt_string"

// EnsureDecryptStub returns the module's decrypt-stub function, creating
// it if absent: a private void(dest *u8, src *u8, length i32) function
// with a four-block body (entry, loop_header, loop_body, loop_exit) and
// an explicit induction-variable Phi in loop_header. The stub is an
// ordinary function in the module, eligible for flattening like any
// other.
func EnsureDecryptStub(m *ir.Module, key byte) *ir.Function {
	if fn := m.Function(DecryptStubName); fn != nil {
		return fn
	}

	dest := ir.Param{ID: 1, Name: "dest", Type: ir.TypePtr}
	src := ir.Param{ID: 2, Name: "src", Type: ir.TypePtr}
	length := ir.Param{ID: 3, Name: "length", Type: ir.TypeI32}
	fn := ir.NewFunction(DecryptStubName, ir.TypeVoid, dest, src, length)
	fn.Linkage = ir.LinkagePrivate
	fn.NoInline = true
	fn.NoThrow = true

	b := ir.NewBuilder(fn)

	entry := b.CreateBlock("entry")
	zero := b.ConstInt(ir.TypeI32, 0)

	header := b.CreateBlock("loop_header")
	body := b.CreateBlock("loop_body")
	exit := b.CreateBlock("loop_exit")

	b.SetInsertPoint(entry)
	b.Br(header.ID)

	b.SetInsertPoint(header)
	idx := b.Phi(ir.TypeI32)
	ir.AddIncoming(idx, entry.ID, zero)
	cond := b.ICmp(ir.ICmpSLT, idx.ID, length.ID)
	b.CondBr(cond, body.ID, exit.ID)

	b.SetInsertPoint(body)
	srcElem := b.GEP(src.ID, idx.ID, 1)
	loaded := b.Load(ir.TypeI8, srcElem)
	keyConst := b.ConstInt(ir.TypeI8, int64(key))
	decrypted := b.Binary(ir.TypeI8, ir.OpXor, loaded, keyConst)
	destElem := b.GEP(dest.ID, idx.ID, 1)
	b.Store(destElem, decrypted)
	one := b.ConstInt(ir.TypeI32, 1)
	next := b.Binary(ir.TypeI32, ir.OpAdd, idx.ID, one)
	ir.AddIncoming(idx, body.ID, next)
	b.Br(header.ID)

	b.SetInsertPoint(exit)
	b.Ret()

	m.Functions = append(m.Functions, fn)
	return fn
}
