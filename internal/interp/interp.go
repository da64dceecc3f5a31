// Package interp evaluates internal/ir modules directly, so tests can
// compare a program's observable output before and after a transformation
// instead of settling for structural checks. It covers exactly the
// instruction and terminator set the obfuscation passes emit; anything
// outside that set (an indirect branch, an indirect call) is an execution
// error, mirroring what the passes themselves refuse to touch.
package interp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
)

const (
	// cellSize is the memory region handed to every alloca. Generous on
	// purpose: Alloca carries an element type but no count, so a decrypt
	// buffer's byte length is not recoverable from the IR alone.
	cellSize = 1024
	maxSteps = 1 << 20
	maxDepth = 64
)

// Machine executes a module's functions over a flat byte memory. Globals
// are copied into memory at construction; allocas grab fresh regions as
// they execute. The machine never mutates the module it runs.
type Machine struct {
	mod     *ir.Module
	mem     []byte
	globals map[string]int64
	steps   int

	// Extern handles calls to functions the module does not define (a
	// print-like runtime, say): it receives the callee name and evaluated
	// arguments and returns the call's result. nil makes every external
	// call return 0.
	Extern func(callee string, args []int64) int64
}

// New builds a machine over m, laying out every global's initializer in
// memory.
func New(m *ir.Module) *Machine {
	mc := &Machine{
		mod:     m,
		mem:     make([]byte, 16), // keep address 0 out of circulation
		globals: make(map[string]int64),
	}
	for _, g := range m.Globals {
		addr := mc.allocate(len(g.Data))
		copy(mc.mem[addr:], g.Data)
		mc.globals[g.Name] = addr
	}
	return mc
}

func (mc *Machine) allocate(n int) int64 {
	if n < cellSize {
		n = cellSize
	}
	addr := int64(len(mc.mem))
	mc.mem = append(mc.mem, make([]byte, n)...)
	return addr
}

// ReadCString reads memory at addr up to (not including) the first NUL.
func (mc *Machine) ReadCString(addr int64) string {
	var out []byte
	for addr >= 0 && addr < int64(len(mc.mem)) && mc.mem[addr] != 0 {
		out = append(out, mc.mem[addr])
		addr++
	}
	return string(out)
}

// Run executes the named function with the given arguments and returns
// its result (0 for void functions).
func (mc *Machine) Run(name string, args ...int64) (int64, error) {
	mc.steps = 0
	return mc.call(name, args, 0)
}

func (mc *Machine) call(name string, args []int64, depth int) (int64, error) {
	if depth > maxDepth {
		return 0, errors.Errorf("interp: call depth limit exceeded at %s", name)
	}
	fn := mc.mod.Function(name)
	if fn == nil || fn.Declaration || len(fn.Blocks) == 0 {
		if mc.Extern != nil {
			return mc.Extern(name, args), nil
		}
		return 0, nil
	}
	if len(args) != len(fn.Params) {
		return 0, errors.Errorf("interp: %s expects %d arguments, got %d", name, len(fn.Params), len(args))
	}

	vals := make(map[ir.ValueID]int64)
	types := make(map[ir.ValueID]ir.Type)
	for i, p := range fn.Params {
		vals[p.ID] = args[i]
		types[p.ID] = p.Type
	}

	blk := fn.Entry()
	prev := ir.InvalidBlock
	for {
		mc.steps++
		if mc.steps > maxSteps {
			return 0, errors.Errorf("interp: step limit exceeded in %s", name)
		}

		// Phis read their incoming values simultaneously, against the
		// state the predecessor left behind, before any of them commit.
		type phiResult struct {
			id ir.ValueID
			v  int64
			t  ir.Type
		}
		var pending []phiResult
		for _, instr := range blk.Instrs {
			p, ok := instr.(*ir.Phi)
			if !ok {
				continue
			}
			in, ok := p.IncomingFor(prev)
			if !ok {
				return 0, errors.Errorf("interp: phi %%%d in %s has no incoming value for block %d", p.ID, name, prev)
			}
			pending = append(pending, phiResult{id: p.ID, v: vals[in], t: p.Type})
		}
		for _, pr := range pending {
			vals[pr.id] = pr.v
			types[pr.id] = pr.t
		}

		for _, instr := range blk.Instrs {
			if _, ok := instr.(*ir.Phi); ok {
				continue
			}
			if err := mc.eval(instr, vals, types, depth); err != nil {
				return 0, errors.Wrapf(err, "interp: in %s, block %d", name, blk.ID)
			}
		}

		next, ret, done, err := mc.terminate(blk, vals)
		if err != nil {
			return 0, errors.Wrapf(err, "interp: in %s", name)
		}
		if done {
			return ret, nil
		}
		prev = blk.ID
		blk = fn.Block(next)
		if blk == nil {
			return 0, errors.Errorf("interp: %s branched to unknown block %d", name, next)
		}
	}
}

func (mc *Machine) eval(instr ir.Instr, vals map[ir.ValueID]int64, types map[ir.ValueID]ir.Type, depth int) error {
	set := func(id ir.ValueID, v int64, t ir.Type) {
		vals[id] = v
		types[id] = t
	}

	switch v := instr.(type) {
	case *ir.ConstInt:
		set(v.ID, v.Value, v.Type)
	case *ir.GlobalAddr:
		addr, ok := mc.globals[v.Name]
		if !ok {
			return errors.Errorf("address of unknown global %s", v.Name)
		}
		set(v.ID, addr, ir.TypePtr)
	case *ir.Undef:
		set(v.ID, 0, v.Type)
	case *ir.Alloca:
		set(v.ID, mc.allocate(0), ir.TypePtr)
	case *ir.Load:
		n, err := mc.load(vals[v.Addr], v.Type)
		if err != nil {
			return err
		}
		set(v.ID, n, v.Type)
	case *ir.Store:
		t, ok := types[v.Value]
		if !ok {
			t = ir.TypeI64
		}
		return mc.store(vals[v.Addr], vals[v.Value], t)
	case *ir.GEP:
		set(v.ID, vals[v.Base]+vals[v.Index]*v.ElemSize, ir.TypePtr)
	case *ir.BitCast:
		set(v.ID, vals[v.Value], v.Type)
	case *ir.Binary:
		n, err := evalBinary(v.Op, vals[v.LHS], vals[v.RHS])
		if err != nil {
			return err
		}
		if v.Type == ir.TypeI8 {
			n &= 0xff
		}
		set(v.ID, n, v.Type)
	case *ir.ICmp:
		set(v.ID, evalICmp(v.Pred, vals[v.LHS], vals[v.RHS]), ir.TypeI32)
	case *ir.Select:
		if vals[v.Cond] != 0 {
			set(v.ID, vals[v.True], v.Type)
		} else {
			set(v.ID, vals[v.False], v.Type)
		}
	case *ir.Call:
		if v.Indirect {
			return errors.New("indirect call is not executable")
		}
		args := make([]int64, len(v.Args))
		for i, a := range v.Args {
			args[i] = vals[a]
		}
		r, err := mc.call(v.Callee, args, depth+1)
		if err != nil {
			return err
		}
		if v.ID != ir.InvalidValue {
			set(v.ID, r, v.Type)
		}
	default:
		return errors.Errorf("unknown instruction %T", instr)
	}
	return nil
}

func evalBinary(op ir.BinOp, lhs, rhs int64) (int64, error) {
	switch op {
	case ir.OpAdd:
		return lhs + rhs, nil
	case ir.OpSub:
		return lhs - rhs, nil
	case ir.OpXor:
		return lhs ^ rhs, nil
	case ir.OpAnd:
		return lhs & rhs, nil
	case ir.OpOr:
		return lhs | rhs, nil
	case ir.OpMul:
		return lhs * rhs, nil
	default:
		return 0, errors.Errorf("unknown binary op %v", op)
	}
}

func evalICmp(pred ir.ICmpPred, lhs, rhs int64) int64 {
	var r bool
	switch pred {
	case ir.ICmpEQ:
		r = lhs == rhs
	case ir.ICmpNE:
		r = lhs != rhs
	case ir.ICmpSLT:
		r = lhs < rhs
	}
	if r {
		return 1
	}
	return 0
}

func (mc *Machine) terminate(blk *ir.Block, vals map[ir.ValueID]int64) (next ir.BlockID, ret int64, done bool, err error) {
	switch t := blk.Term.(type) {
	case *ir.Br:
		return t.Target, 0, false, nil
	case *ir.CondBr:
		if vals[t.Cond] != 0 {
			return t.Then, 0, false, nil
		}
		return t.Else, 0, false, nil
	case *ir.Switch:
		cond := vals[t.Cond]
		for _, c := range t.Cases {
			if c.Value == cond {
				return c.Target, 0, false, nil
			}
		}
		return t.Default, 0, false, nil
	case *ir.Ret:
		if t.HasValue {
			return ir.InvalidBlock, vals[t.Value], true, nil
		}
		return ir.InvalidBlock, 0, true, nil
	case *ir.Unreachable:
		return ir.InvalidBlock, 0, false, errors.Errorf("reached unreachable in block %d", blk.ID)
	case nil:
		return ir.InvalidBlock, 0, false, errors.Errorf("block %d has no terminator", blk.ID)
	default:
		return ir.InvalidBlock, 0, false, errors.Errorf("unsupported terminator %T", blk.Term)
	}
}

// width of a typed memory access in bytes: i8 is a single byte, everything
// else occupies a full 8-byte slot (allocas hand out disjoint regions, so
// over-wide integer slots cannot collide).
func width(t ir.Type) int64 {
	if t == ir.TypeI8 {
		return 1
	}
	return 8
}

func (mc *Machine) load(addr int64, t ir.Type) (int64, error) {
	w := width(t)
	if addr < 0 || addr+w > int64(len(mc.mem)) {
		return 0, errors.Errorf("load of %d bytes at out-of-range address %d", w, addr)
	}
	if w == 1 {
		return int64(mc.mem[addr]), nil
	}
	return int64(binary.LittleEndian.Uint64(mc.mem[addr:])), nil
}

func (mc *Machine) store(addr, val int64, t ir.Type) error {
	w := width(t)
	if addr < 0 || addr+w > int64(len(mc.mem)) {
		return errors.Errorf("store of %d bytes at out-of-range address %d", w, addr)
	}
	if w == 1 {
		mc.mem[addr] = byte(val)
		return nil
	}
	binary.LittleEndian.PutUint64(mc.mem[addr:], uint64(val))
	return nil
}
