package ir

// Instr is any non-terminating instruction. Every concrete instruction
// implements Operands/SetOperand so generic passes (use-rewriting, demotion,
// cloning) never need a type switch to find a value's operands. This
// mirrors the host-toolkit convention of exposing an instruction's
// operand list uniformly rather than per-opcode accessors.
type Instr interface {
	mirInstr()
	// Result returns the ValueID this instruction defines, or InvalidValue
	// if it has no result (e.g. Store).
	Result() ValueID
	// Operands returns the ValueIDs this instruction reads, in a stable
	// order matching SetOperand's indexing.
	Operands() []ValueID
	// SetOperand rewrites the operand at idx. Implementations must accept
	// any idx in range [0, len(Operands())).
	SetOperand(idx int, v ValueID)
}

// ConstInt materializes a constant integer value.
type ConstInt struct {
	ID    ValueID
	Type  Type
	Value int64
}

func (*ConstInt) mirInstr()            {}
func (c *ConstInt) Result() ValueID    { return c.ID }
func (*ConstInt) Operands() []ValueID  { return nil }
func (*ConstInt) SetOperand(int, ValueID) {}

// GlobalAddr materializes the address of a module-scope global.
type GlobalAddr struct {
	ID   ValueID
	Name string
}

func (*GlobalAddr) mirInstr()           {}
func (g *GlobalAddr) Result() ValueID   { return g.ID }
func (*GlobalAddr) Operands() []ValueID { return nil }
func (*GlobalAddr) SetOperand(int, ValueID) {}

// Undef materializes an undefined value of the given type, used as the
// initial store into a phi-demotion alloca before any predecessor has run.
type Undef struct {
	ID   ValueID
	Type Type
}

func (*Undef) mirInstr()           {}
func (u *Undef) Result() ValueID   { return u.ID }
func (*Undef) Operands() []ValueID { return nil }
func (*Undef) SetOperand(int, ValueID) {}

// Alloca reserves a stack slot of the given element type. Used both for
// user-level locals and for flattening's dispatch-state slot and phi
// demotion slots.
type Alloca struct {
	ID       ValueID
	ElemType Type
	Name     string
}

func (*Alloca) mirInstr()           {}
func (a *Alloca) Result() ValueID   { return a.ID }
func (*Alloca) Operands() []ValueID { return nil }
func (*Alloca) SetOperand(int, ValueID) {}

// Load reads the value stored at Addr.
type Load struct {
	ID   ValueID
	Type Type
	Addr ValueID
}

func (*Load) mirInstr()         {}
func (l *Load) Result() ValueID { return l.ID }
func (l *Load) Operands() []ValueID {
	return []ValueID{l.Addr}
}
func (l *Load) SetOperand(idx int, v ValueID) {
	if idx == 0 {
		l.Addr = v
	}
}

// Store writes Value to Addr. Stores have no result.
type Store struct {
	Addr  ValueID
	Value ValueID
}

func (*Store) mirInstr()         {}
func (*Store) Result() ValueID   { return InvalidValue }
func (s *Store) Operands() []ValueID {
	return []ValueID{s.Addr, s.Value}
}
func (s *Store) SetOperand(idx int, v ValueID) {
	switch idx {
	case 0:
		s.Addr = v
	case 1:
		s.Value = v
	}
}

// GEP computes Base + Index*ElemSize (a byte-addressed pointer offset, the
// only addressing mode the core models, enough to express per-byte
// string decryption and array-of-bytes indexing).
type GEP struct {
	ID       ValueID
	Base     ValueID
	Index    ValueID
	ElemSize int64
}

func (*GEP) mirInstr()         {}
func (g *GEP) Result() ValueID { return g.ID }
func (g *GEP) Operands() []ValueID {
	return []ValueID{g.Base, g.Index}
}
func (g *GEP) SetOperand(idx int, v ValueID) {
	switch idx {
	case 0:
		g.Base = v
	case 1:
		g.Index = v
	}
}

// BitCast reinterprets a pointer value's static type without changing its
// bits.
type BitCast struct {
	ID    ValueID
	Type  Type
	Value ValueID
}

func (*BitCast) mirInstr()         {}
func (b *BitCast) Result() ValueID { return b.ID }
func (b *BitCast) Operands() []ValueID {
	return []ValueID{b.Value}
}
func (b *BitCast) SetOperand(idx int, v ValueID) {
	if idx == 0 {
		b.Value = v
	}
}

// BinOp enumerates the binary opcodes the core models.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpXor
	OpAnd
	OpOr
	OpMul
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpXor:
		return "xor"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpMul:
		return "mul"
	default:
		return "?"
	}
}

// Binary computes LHS op RHS.
type Binary struct {
	ID   ValueID
	Type Type
	Op   BinOp
	LHS  ValueID
	RHS  ValueID
}

func (*Binary) mirInstr()         {}
func (b *Binary) Result() ValueID { return b.ID }
func (b *Binary) Operands() []ValueID {
	return []ValueID{b.LHS, b.RHS}
}
func (b *Binary) SetOperand(idx int, v ValueID) {
	switch idx {
	case 0:
		b.LHS = v
	case 1:
		b.RHS = v
	}
}

// ICmpPred enumerates the integer comparison predicates next-state folding
// and dispatcher-check blocks need.
type ICmpPred int

const (
	ICmpEQ ICmpPred = iota
	ICmpNE
	ICmpSLT
)

// ICmp compares LHS and RHS, producing an i1-shaped i32 0/1 result.
type ICmp struct {
	ID   ValueID
	Pred ICmpPred
	LHS  ValueID
	RHS  ValueID
}

func (*ICmp) mirInstr()         {}
func (c *ICmp) Result() ValueID { return c.ID }
func (c *ICmp) Operands() []ValueID {
	return []ValueID{c.LHS, c.RHS}
}
func (c *ICmp) SetOperand(idx int, v ValueID) {
	switch idx {
	case 0:
		c.LHS = v
	case 1:
		c.RHS = v
	}
}

// Select computes Cond != 0 ? True : False. The one non-branching
// conditional value in the IR; next-state folding for multi-way terminators
// builds nested chains of these.
type Select struct {
	ID    ValueID
	Type  Type
	Cond  ValueID
	True  ValueID
	False ValueID
}

func (*Select) mirInstr()         {}
func (s *Select) Result() ValueID { return s.ID }
func (s *Select) Operands() []ValueID {
	return []ValueID{s.Cond, s.True, s.False}
}
func (s *Select) SetOperand(idx int, v ValueID) {
	switch idx {
	case 0:
		s.Cond = v
	case 1:
		s.True = v
	case 2:
		s.False = v
	}
}

// Call invokes Callee (a function name) with Args, binding the result to
// ID unless the callee returns void. When Indirect is set, the callee is
// the computed address held in IndirectFn instead.
type Call struct {
	ID         ValueID
	Type       Type
	Callee     string
	Args       []ValueID
	Indirect   bool // true: callee is a computed address, held in IndirectFn
	IndirectFn ValueID
}

func (*Call) mirInstr()         {}
func (c *Call) Result() ValueID { return c.ID }
func (c *Call) Operands() []ValueID {
	ops := make([]ValueID, len(c.Args))
	copy(ops, c.Args)
	if c.Indirect {
		ops = append(ops, c.IndirectFn)
	}
	return ops
}
func (c *Call) SetOperand(idx int, v ValueID) {
	if idx < len(c.Args) {
		c.Args[idx] = v
		return
	}
	if c.Indirect && idx == len(c.Args) {
		c.IndirectFn = v
	}
}

// PhiIncoming is one (predecessor, value) pair of a Phi.
type PhiIncoming struct {
	Pred  BlockID
	Value ValueID
}

// Phi selects among incoming values based on which predecessor branched
// into the block. Demoter eliminates these by spilling to a stack slot
// before flattening runs, since a dispatcher-driven block no longer has a
// fixed, syntactically apparent predecessor set.
type Phi struct {
	ID       ValueID
	Type     Type
	Incoming []PhiIncoming
}

func (*Phi) mirInstr()         {}
func (p *Phi) Result() ValueID { return p.ID }
func (p *Phi) Operands() []ValueID {
	ops := make([]ValueID, len(p.Incoming))
	for i, in := range p.Incoming {
		ops[i] = in.Value
	}
	return ops
}
func (p *Phi) SetOperand(idx int, v ValueID) {
	if idx >= 0 && idx < len(p.Incoming) {
		p.Incoming[idx].Value = v
	}
}

// IncomingFor returns the value p takes when control arrives from pred, and
// whether pred is present among its incoming edges.
func (p *Phi) IncomingFor(pred BlockID) (ValueID, bool) {
	for _, in := range p.Incoming {
		if in.Pred == pred {
			return in.Value, true
		}
	}
	return InvalidValue, false
}
