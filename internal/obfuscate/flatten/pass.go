package flatten

import (
	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/randsrc"
	"github.com/0bVdnt/LLVM-Passes/internal/verify"
)

// FunctionResult reports what happened to a single function under Run.
type FunctionResult struct {
	Function        string
	Flattened       bool
	FlattenedBlocks int
	Skipped         bool
	Reason          string
	RolledBack      bool
}

// Run flattens every eligible function in m, cloning each before mutation
// and rolling back to the clone on verification failure or internal
// invariant violation. src supplies the optional
// id-shuffle entropy and is only consulted when shuffleEnabled is true;
// with shuffleEnabled false (or a nil src) ids follow block order.
func Run(m *ir.Module, src randsrc.Source, shuffleEnabled bool) []FunctionResult {
	var results []FunctionResult
	for _, fn := range m.Functions {
		results = append(results, RunFunction(fn, src, shuffleEnabled))
	}
	return results
}

// RunFunction runs gate -> clone -> demote -> flatten -> verify ->
// commit-or-rollback for a single function, replacing fn's contents in
// place with the flattened form on success.
func RunFunction(fn *ir.Function, src randsrc.Source, shuffleEnabled bool) FunctionResult {
	gr := Gate(fn)
	if !gr.Eligible {
		return FunctionResult{Function: fn.Name, Skipped: true, Reason: gr.Reason}
	}

	original := ir.CloneFunction(fn)
	flattenedBlocks := len(fn.Blocks) - 1 // the dense-id targets, every block but entry

	var shuffle Shuffle
	if shuffleEnabled && src != nil {
		shuffle = src.Shuffle
	}

	ok, reason := attemptFlatten(fn, shuffle)
	if !ok {
		restoreFrom(fn, original)
		return FunctionResult{Function: fn.Name, Skipped: true, Reason: reason}
	}

	res := verify.VerifyFunction(fn)
	if !res.OK() {
		restoreFrom(fn, original)
		return FunctionResult{
			Function:   fn.Name,
			RolledBack: true,
			Reason:     errors.Errorf("verification failed after flattening: %v", res.Errors).Error(),
		}
	}

	return FunctionResult{Function: fn.Name, Flattened: true, FlattenedBlocks: flattenedBlocks}
}

func attemptFlatten(fn *ir.Function, shuffle Shuffle) (ok bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			reason = errors.Errorf("internal invariant violation during flattening: %v", r).Error()
		}
	}()

	Demote(fn)
	if err := Flatten(fn, shuffle); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// restoreFrom replaces fn's mutable fields with clone's, in place, so
// callers that hold a *ir.Function pointer see the rolled-back function
// without needing to update any external reference to fn.
func restoreFrom(fn *ir.Function, clone *ir.Function) {
	fn.Blocks = clone.Blocks
	for _, b := range fn.Blocks {
		b.Parent = fn
	}
}
