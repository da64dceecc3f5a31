package stringenc

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
)

// Stats accumulates the per-global counters the run report carries:
// strings encrypted and original/ciphertext byte totals.
type Stats struct {
	StringsEncrypted    int
	OriginalByteTotal   int
	CiphertextByteTotal int
}

// Encrypt runs the full encryption procedure over m: collects eligible globals and
// rewrites each global's instruction uses in place, synthesizing the
// decrypt stub the first time a rewrite actually needs it. key is the
// module's single per-run XOR key.
func Encrypt(m *ir.Module, key byte, opts Options) (Stats, []error) {
	var stats Stats
	var warnings []error

	for _, g := range Collect(m, opts) {
		ok, err := encryptGlobal(m, g, key)
		if err != nil {
			warnings = append(warnings, err)
		}
		if ok {
			stats.StringsEncrypted++
			stats.OriginalByteTotal += len(g.Data)
			stats.CiphertextByteTotal += len(g.Data)
		}
	}
	return stats, warnings
}

// functionUses is every rewritable occurrence of one string global within
// one function: the GlobalAddr instructions that materialize its address,
// and every use of those address values.
type functionUses struct {
	fn    *ir.Function
	addrs []*ir.GlobalAddr
	uses  []ir.Use
}

// encryptGlobal replaces one plaintext global with its ciphertext twin
// and redirects every use through a decrypt-on-demand buffer. Every use
// is gathered and checked before anything is mutated: the module must
// never end up with some functions redirected at the ciphertext while the
// plaintext global survives for the rest, so an unrewritable use skips
// the whole global up front.
func encryptGlobal(m *ir.Module, g *ir.GlobalVariable, key byte) (bool, error) {
	if len(g.ConstUsers) > 0 {
		// Constant-expression users cannot be rewritten
		// instruction-by-instruction. Skip safely rather than erase the
		// original.
		return false, errors.Errorf("stringenc: global %s has %d constant-expression users; skipped (fail-safe)", g.Name, len(g.ConstUsers))
	}

	var pending []functionUses
	for _, fn := range m.Functions {
		if fn.Declaration {
			continue
		}
		addrs := globalAddrInstrs(fn, g.Name)
		if len(addrs) == 0 {
			continue
		}
		if fn.Entry() == nil {
			return false, errors.Errorf("stringenc: global %s is used in function %s, which has no entry block; skipped", g.Name, fn.Name)
		}
		var uses []ir.Use
		for _, ga := range addrs {
			uses = append(uses, ir.FindUses(fn, ga.ID)...)
		}
		pending = append(pending, functionUses{fn: fn, addrs: addrs, uses: uses})
	}

	// C[i] = P[i] XOR K, length-preserving: the trailing NUL encrypts to
	// 0 XOR K like every other byte.
	cipher := make([]byte, len(g.Data))
	for i, c := range g.Data {
		cipher[i] = c ^ key
	}

	// The ciphertext replacement, retained against dead-global
	// elimination.
	encName := g.Name + ".enc"
	enc := &ir.GlobalVariable{
		Name:     encName,
		Constant: true,
		HasInit:  true,
		Data:     cipher,
		Linkage:  ir.LinkageInternal,
	}
	m.Globals = append(m.Globals, enc)
	m.AddCompilerUsed(encName)

	if len(pending) > 0 {
		EnsureDecryptStub(m, key)
	}

	// Per-use buffer + decrypt call + use redirection, then erase the
	// now-dead address instructions so nothing in the module still
	// names g.
	for _, p := range pending {
		rewriteUses(p.fn, enc, len(cipher), p.uses)
		for _, ga := range p.addrs {
			eraseInstr(p.fn, ga)
		}
	}

	// Every use rewritten: erase the plaintext global.
	m.RemoveGlobal(g)
	return true, nil
}

// globalAddrInstrs returns every GlobalAddr in fn that materializes name's
// address.
func globalAddrInstrs(fn *ir.Function, name string) []*ir.GlobalAddr {
	var out []*ir.GlobalAddr
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if ga, ok := instr.(*ir.GlobalAddr); ok && ga.Name == name {
				out = append(out, ga)
			}
		}
	}
	return out
}

// rewriteUses allocates a per-use stack buffer, decrypts into it, and
// redirects each use to the buffer pointer.
func rewriteUses(fn *ir.Function, enc *ir.GlobalVariable, length int, uses []ir.Use) {
	for _, u := range uses {
		block := u.Block
		insertAt := len(block.Instrs)
		switch instr := u.Instr.(type) {
		case nil:
			// Terminator use: the decrypt sequence splices in at the end
			// of the instruction list, immediately before the terminator
			// executes.
		case *ir.Phi:
			// A phi's operand must be available at the end of the
			// corresponding predecessor, not at the phi itself.
			pred := fn.Block(instr.Incoming[u.Index].Pred)
			if pred == nil {
				continue
			}
			block = pred
			insertAt = len(pred.Instrs)
		default:
			insertAt = block.IndexOfInstr(instr)
		}

		// Per-use buffer, allocated at the use site so each concurrent
		// use's buffer sits textually next to its consumer. A shared
		// scratch buffer would be wrong: loops and reentrancy need every
		// use to observe its own plaintext.
		scratch := &scratchBuilder{fn: fn, block: block, insertAt: insertAt}
		bufAddr := scratch.alloca(ir.TypeI8, fmt.Sprintf("%s.buf", enc.Name), length)
		srcAddr := scratch.globalAddr(enc.Name)
		srcElem := scratch.gep(srcAddr, scratch.constInt(ir.TypeI32, 0), 1)
		lengthConst := scratch.constInt(ir.TypeI32, int64(length))
		scratch.call(ir.TypeVoid, DecryptStubName, bufAddr, srcElem, lengthConst)

		u.Set(bufAddr)
	}
}

func eraseInstr(fn *ir.Function, target ir.Instr) {
	for _, b := range fn.Blocks {
		if idx := b.IndexOfInstr(target); idx >= 0 {
			b.RemoveInstrAt(idx)
			return
		}
	}
}

// scratchBuilder inserts a short, fixed sequence of instructions at a
// specific index within an existing block rather than at the block's
// tail, the shape Builder (an append-only cursor) doesn't support. The
// use rewriter needs it because it must splice code in front of an
// already-existing user instruction.
type scratchBuilder struct {
	fn       *ir.Function
	block    *ir.Block
	insertAt int
}

func (s *scratchBuilder) insert(instr ir.Instr) ir.ValueID {
	s.block.InsertInstrAt(s.insertAt, instr)
	s.insertAt++
	return instr.Result()
}

func (s *scratchBuilder) alloca(t ir.Type, name string, length int) ir.ValueID {
	return s.insert(&ir.Alloca{ID: s.fn.AllocValue(), ElemType: t, Name: fmt.Sprintf("%s[%d]", name, length)})
}

func (s *scratchBuilder) globalAddr(name string) ir.ValueID {
	return s.insert(&ir.GlobalAddr{ID: s.fn.AllocValue(), Name: name})
}

func (s *scratchBuilder) constInt(t ir.Type, v int64) ir.ValueID {
	return s.insert(&ir.ConstInt{ID: s.fn.AllocValue(), Type: t, Value: v})
}

func (s *scratchBuilder) gep(base, index ir.ValueID, elemSize int64) ir.ValueID {
	return s.insert(&ir.GEP{ID: s.fn.AllocValue(), Base: base, Index: index, ElemSize: elemSize})
}

func (s *scratchBuilder) call(t ir.Type, callee string, args ...ir.ValueID) ir.ValueID {
	id := ir.InvalidValue
	if t != ir.TypeVoid {
		id = s.fn.AllocValue()
	}
	return s.insert(&ir.Call{ID: id, Type: t, Callee: callee, Args: args})
}
