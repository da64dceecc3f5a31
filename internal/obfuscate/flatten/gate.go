// Package flatten implements Control-Flow Flattening (CFF): replacing a
// function's structured CFG with a dispatcher-driven state machine.
package flatten

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// MinBlockCount is the eligibility threshold: a single-block function has
// nothing to dispatch over.
const MinBlockCount = 2

// DispatchBlockName and DefaultBlockName are the names Flatten gives the
// blocks it synthesizes. Gate recognizes them as the marker of an
// already-flattened function: a once-flattened function's terminators are
// all drawn from the supported set, so without the marker a second pass
// would happily fold the dispatcher into a new dispatcher and leave two
// unreachable default blocks behind.
const (
	DispatchBlockName = "cff.dispatch"
	DefaultBlockName  = "cff.default"
)

// GateResult reports whether a function is eligible and, if not, why:
// the one-line reason the driver logs for skipped functions.
type GateResult struct {
	Eligible bool
	Reason   string
}

// Gate decides eligibility: a definition (not a declaration or
// intrinsic), not already flattened, block count >= 2, no
// exception-handling pad, and every terminator drawn from the supported
// set (Br, CondBr, Switch, Ret, Unreachable).
func Gate(fn *ir.Function) GateResult {
	if fn.Declaration {
		return GateResult{Reason: "function is a declaration, not a definition"}
	}
	if fn.Intrinsic {
		return GateResult{Reason: "function is an intrinsic"}
	}
	if len(fn.Blocks) < MinBlockCount {
		return GateResult{Reason: "block count below threshold"}
	}
	for _, b := range fn.Blocks {
		if b.Name == DispatchBlockName || b.Name == DefaultBlockName {
			return GateResult{Reason: "function is already flattened"}
		}
		if b.EHPad {
			return GateResult{Reason: "function contains an exception-handling pad"}
		}
		if b.Term == nil {
			return GateResult{Reason: "block has no terminator"}
		}
		switch b.Term.(type) {
		case *ir.Br, *ir.CondBr, *ir.Switch, *ir.Ret, *ir.Unreachable:
			// supported
		default:
			return GateResult{Reason: "function contains an unsupported terminator (indirect branch, callbr, or invoke)"}
		}
	}
	return GateResult{Eligible: true}
}
