package ir

// Builder is an insertion-cursor IR builder: it tracks a "current" block
// and appends instructions to it. Passes that synthesize new code (the
// decrypt stub, the dispatcher switch, per-use decryption buffers) drive
// the module through a Builder rather than hand-splicing instruction
// slices.
type Builder struct {
	Fn      *Function
	current *Block
}

// NewBuilder creates a builder with no current block. Callers must call
// SetInsertPoint (or CreateBlock, which also sets it) before emitting.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Fn: fn}
}

// CreateBlock appends a new, empty block to Fn and makes it current.
func (b *Builder) CreateBlock(name string) *Block {
	blk := &Block{ID: b.Fn.AllocBlock(), Name: name, Parent: b.Fn}
	b.Fn.Blocks = append(b.Fn.Blocks, blk)
	b.current = blk
	return blk
}

// SetInsertPoint moves the cursor to the end of blk's instruction list.
func (b *Builder) SetInsertPoint(blk *Block) {
	b.current = blk
}

// Current returns the block new instructions are appended to.
func (b *Builder) Current() *Block {
	return b.current
}

func (b *Builder) emit(instr Instr) {
	b.current.AppendInstr(instr)
}

// ConstInt emits a constant integer value.
func (b *Builder) ConstInt(t Type, v int64) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&ConstInt{ID: id, Type: t, Value: v})
	return id
}

// Alloca emits a stack slot reservation.
func (b *Builder) Alloca(t Type, name string) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&Alloca{ID: id, ElemType: t, Name: name})
	return id
}

// Load emits a load from addr.
func (b *Builder) Load(t Type, addr ValueID) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&Load{ID: id, Type: t, Addr: addr})
	return id
}

// Store emits a store of value to addr.
func (b *Builder) Store(addr, value ValueID) {
	b.emit(&Store{Addr: addr, Value: value})
}

// GEP emits a byte-addressed pointer offset base + index*elemSize.
func (b *Builder) GEP(base, index ValueID, elemSize int64) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&GEP{ID: id, Base: base, Index: index, ElemSize: elemSize})
	return id
}

// BitCast emits a no-op pointer reinterpretation.
func (b *Builder) BitCast(t Type, v ValueID) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&BitCast{ID: id, Type: t, Value: v})
	return id
}

// Binary emits a two-operand arithmetic/bitwise instruction.
func (b *Builder) Binary(t Type, op BinOp, lhs, rhs ValueID) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&Binary{ID: id, Type: t, Op: op, LHS: lhs, RHS: rhs})
	return id
}

// ICmp emits an integer comparison.
func (b *Builder) ICmp(pred ICmpPred, lhs, rhs ValueID) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&ICmp{ID: id, Pred: pred, LHS: lhs, RHS: rhs})
	return id
}

// Select emits a ternary value selection.
func (b *Builder) Select(t Type, cond, ifTrue, ifFalse ValueID) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&Select{ID: id, Type: t, Cond: cond, True: ifTrue, False: ifFalse})
	return id
}

// Call emits a direct call. Pass TypeVoid for calls with no result.
func (b *Builder) Call(t Type, callee string, args ...ValueID) ValueID {
	id := InvalidValue
	if t != TypeVoid {
		id = b.Fn.AllocValue()
	}
	b.emit(&Call{ID: id, Type: t, Callee: callee, Args: args})
	return id
}

// GlobalAddr emits the address of a module-scope global.
func (b *Builder) GlobalAddr(name string) ValueID {
	id := b.Fn.AllocValue()
	b.emit(&GlobalAddr{ID: id, Name: name})
	return id
}

// Phi reserves a value id for a phi node the caller will populate with
// AddIncoming; returned separately from emission since phis are typically
// created before all predecessors are known.
func (b *Builder) Phi(t Type) *Phi {
	p := &Phi{ID: b.Fn.AllocValue(), Type: t}
	b.emit(p)
	return p
}

// AddIncoming appends a (pred, value) edge to a phi built by Builder.Phi.
func AddIncoming(p *Phi, pred BlockID, value ValueID) {
	p.Incoming = append(p.Incoming, PhiIncoming{Pred: pred, Value: value})
}

// Br sets the current block's terminator to an unconditional branch.
func (b *Builder) Br(target BlockID) {
	b.current.Term = &Br{Target: target}
}

// CondBr sets the current block's terminator to a conditional branch.
func (b *Builder) CondBr(cond ValueID, then, els BlockID) {
	b.current.Term = &CondBr{Cond: cond, Then: then, Else: els}
}

// Ret sets the current block's terminator to a void return.
func (b *Builder) Ret() {
	b.current.Term = &Ret{}
}

// RetValue sets the current block's terminator to a value-returning return.
func (b *Builder) RetValue(v ValueID) {
	b.current.Term = &Ret{Value: v, HasValue: true}
}
