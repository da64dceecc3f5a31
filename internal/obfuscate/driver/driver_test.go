package driver

import (
	"testing"

	"github.com/0bVdnt/LLVM-Passes/internal/fixtures"
	"github.com/0bVdnt/LLVM-Passes/internal/interp"
	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/randsrc"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/report"
	"github.com/0bVdnt/LLVM-Passes/internal/verify"
)

func newDriver(cfg Config) *Driver {
	return New(cfg, randsrc.NewSeededSource(1), report.New("", "", "medium", cfg.Cycles))
}

// run executes fn in a fresh machine over m and returns its result.
// Execution never mutates the module, so tests can run the same module
// before and after transforming it.
func run(t *testing.T, m *ir.Module, fn string, args ...int64) int64 {
	t.Helper()
	v, err := interp.New(m).Run(fn, args...)
	if err != nil {
		t.Fatalf("executing %s%v: %v", fn, args, err)
	}
	return v
}

// capturePuts executes main and returns everything the module printed
// through the puts runtime call.
func capturePuts(t *testing.T, m *ir.Module) string {
	t.Helper()
	mc := interp.New(m)
	var out string
	mc.Extern = func(callee string, args []int64) int64 {
		if callee == "puts" {
			out += mc.ReadCString(args[0])
		}
		return 0
	}
	if ret, err := mc.Run("main"); err != nil || ret != 0 {
		t.Fatalf("executing main: ret=%d err=%v", ret, err)
	}
	return out
}

// TestEmptyStringTableUntouched: a module with no string globals and a
// single-block main gives string encryption nothing to do and flattening
// nothing eligible; main still exits 0.
func TestEmptyStringTableUntouched(t *testing.T) {
	m := fixtures.Empty()
	d := newDriver(Config{EnableStringEncrypt: true, EnableFlatten: true, Cycles: 1})
	ok, _, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify, diagnostics: %v", diags)
	}
	if len(m.Globals) != 0 {
		t.Fatalf("expected no globals in a string-free module, got %d", len(m.Globals))
	}
	if got := run(t, m, "main"); got != 0 {
		t.Fatalf("main() = %d after the run, want 0", got)
	}
}

// TestHelloWorldStringEncrypted: the plaintext global is deleted, a
// length-preserving ciphertext twin appears, and the transformed program
// still prints exactly what the original printed.
func TestHelloWorldStringEncrypted(t *testing.T) {
	m := fixtures.Hello()
	before := capturePuts(t, m)
	if before != "hello\n" {
		t.Fatalf("pre-transform output %q, want %q", before, "hello\n")
	}

	d := newDriver(Config{EnableStringEncrypt: true, Cycles: 1})
	ok, changed, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify, diagnostics: %v", diags)
	}
	if !changed {
		t.Fatal("expected the module to be marked changed")
	}
	if m.Global("str.hello") != nil {
		t.Fatal("expected the original plaintext global to be deleted")
	}
	enc := m.Global("str.hello.enc")
	if enc == nil {
		t.Fatal("expected an encrypted replacement global")
	}
	if len(enc.Data) != len("hello\n")+1 {
		t.Fatalf("expected length-preserving ciphertext, got %d bytes", len(enc.Data))
	}

	if after := capturePuts(t, m); after != before {
		t.Fatalf("post-transform output %q, want %q", after, before)
	}
}

// TestBranchOnInputFlattened: a two-way branch becomes a dispatcher with
// two cases, one per branch target, both return blocks survive, and
// execution still yields 1 for x=5 and -1 for x=-7.
func TestBranchOnInputFlattened(t *testing.T) {
	m := fixtures.Branch()
	pre5 := run(t, m, "classify", 5)
	preNeg := run(t, m, "classify", -7)

	d := newDriver(Config{EnableFlatten: true, Cycles: 1})
	ok, _, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify, diagnostics: %v", diags)
	}
	fn := m.Function("classify")
	if err := verify.DispatcherShape(fn); err != nil {
		t.Fatalf("dispatcher shape invariant violated: %v", err)
	}
	var dispatchCases int
	for _, b := range fn.Blocks {
		if sw, ok := b.Term.(*ir.Switch); ok {
			dispatchCases = len(sw.Cases)
		}
	}
	if dispatchCases != 2 {
		t.Fatalf("expected a dispatcher with 2 cases, got %d", dispatchCases)
	}
	var rets int
	for _, b := range fn.Blocks {
		if _, ok := b.Term.(*ir.Ret); ok {
			rets++
		}
	}
	if rets != 2 {
		t.Fatalf("expected both return blocks to survive, got %d", rets)
	}

	if got := run(t, m, "classify", 5); got != 1 || got != pre5 {
		t.Fatalf("classify(5) = %d after flattening, want 1 (pre-transform %d)", got, pre5)
	}
	if got := run(t, m, "classify", -7); got != -1 || got != preNeg {
		t.Fatalf("classify(-7) = %d after flattening, want -1 (pre-transform %d)", got, preNeg)
	}
}

// TestSwitchFourCasesFlattened: a 4-case switch folds into the
// dispatcher and every case value (plus the default) returns the same
// integer as before flattening.
func TestSwitchFourCasesFlattened(t *testing.T) {
	m := fixtures.Switch()
	inputs := []int64{0, 1, 2, 3, 9}
	pre := make([]int64, len(inputs))
	for i, x := range inputs {
		pre[i] = run(t, m, "dispatch", x)
	}

	d := newDriver(Config{EnableFlatten: true, Cycles: 1})
	ok, _, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify, diagnostics: %v", diags)
	}
	fn := m.Function("dispatch")
	if err := verify.DispatcherShape(fn); err != nil {
		t.Fatalf("dispatcher shape invariant violated: %v", err)
	}

	for i, x := range inputs {
		if got := run(t, m, "dispatch", x); got != pre[i] {
			t.Fatalf("dispatch(%d) = %d after flattening, want %d", x, got, pre[i])
		}
	}
}

// TestLoopWithInductionVariableFlattened: the loop's header phis are
// demoted to memory, none survive flattening, and the sum still comes out
// to 45.
func TestLoopWithInductionVariableFlattened(t *testing.T) {
	m := fixtures.Loop()
	if pre := run(t, m, "sumTo10"); pre != 45 {
		t.Fatalf("sumTo10() = %d before flattening, want 45", pre)
	}

	d := newDriver(Config{EnableFlatten: true, Cycles: 1})
	ok, _, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify, diagnostics: %v", diags)
	}
	fn := m.Function("sumTo10")
	if verify.HasPhi(fn) {
		t.Fatal("expected no phi nodes after flattening")
	}

	if got := run(t, m, "sumTo10"); got != 45 {
		t.Fatalf("sumTo10() = %d after flattening, want 45", got)
	}
}

// TestIneligibleFunctionSkipped: string encryption proceeds, flattening
// skips the indirect-branch function with a logged reason, and the module
// is left byte-for-byte untouched.
func TestIneligibleFunctionSkipped(t *testing.T) {
	m := fixtures.Indirect()
	before := ir.Dump(m)

	d := newDriver(Config{EnableStringEncrypt: true, EnableFlatten: true, Cycles: 1})
	ok, _, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify even with a skipped function, diagnostics: %v", diags)
	}
	foundSkipReason := false
	for _, diag := range diags {
		if diag != "" {
			foundSkipReason = true
		}
	}
	if !foundSkipReason {
		t.Fatal("expected a logged reason for the skipped function")
	}
	if after := ir.Dump(m); after != before {
		t.Fatalf("expected the ineligible module to be untouched:\n%s\n--- vs ---\n%s", before, after)
	}
}

// TestDriverIdempotentStringEncryption: running string encryption twice
// does not re-encrypt an already-encrypted global.
func TestDriverIdempotentStringEncryption(t *testing.T) {
	m := fixtures.Hello()
	cfg := Config{EnableStringEncrypt: true, Cycles: 1}
	d1 := newDriver(cfg)
	d1.Run(m)

	countEnc := func() int {
		n := 0
		for _, g := range m.Globals {
			if g.Name == "str.hello.enc" {
				n++
			}
		}
		return n
	}
	if countEnc() != 1 {
		t.Fatalf("expected exactly 1 encrypted global after first run, got %d", countEnc())
	}

	d2 := newDriver(cfg)
	ok, changed, _ := d2.Run(m)
	if !ok {
		t.Fatal("expected module to still verify after a second encryption run")
	}
	if changed {
		t.Fatal("expected the second encryption run to be a no-op: no eligible plaintext strings remain")
	}
	if countEnc() != 1 {
		t.Fatalf("expected still exactly 1 encrypted global, got %d", countEnc())
	}
}

// TestMultiCycleFlattenIsIdempotent: the default configuration runs more
// than one obfuscation cycle, and a function flattened in cycle 1 is
// recognized and skipped in later cycles. The dispatcher shape must hold
// after every cycle count, and execution must keep matching the original.
func TestMultiCycleFlattenIsIdempotent(t *testing.T) {
	for _, cycles := range []int{2, 3} {
		m := fixtures.Branch()
		d := newDriver(Config{EnableFlatten: true, Cycles: cycles})
		ok, _, diags := d.Run(m)
		if !ok {
			t.Fatalf("cycles=%d: expected module to verify, diagnostics: %v", cycles, diags)
		}
		fn := m.Function("classify")
		if err := verify.DispatcherShape(fn); err != nil {
			t.Fatalf("cycles=%d: dispatcher shape invariant violated: %v", cycles, err)
		}
		if got := run(t, m, "classify", 5); got != 1 {
			t.Fatalf("cycles=%d: classify(5) = %d, want 1", cycles, got)
		}
		if got := run(t, m, "classify", -7); got != -1 {
			t.Fatalf("cycles=%d: classify(-7) = %d, want -1", cycles, got)
		}
	}
}

// TestMultiCycleDefaultConfigPreservesHelloOutput exercises the cycle
// count the default "medium" level requests, with both core passes on,
// end to end.
func TestMultiCycleDefaultConfigPreservesHelloOutput(t *testing.T) {
	m := fixtures.Hello()
	before := capturePuts(t, m)

	d := newDriver(Config{EnableStringEncrypt: true, EnableFlatten: true, Cycles: 2})
	ok, _, diags := d.Run(m)
	if !ok {
		t.Fatalf("expected module to verify, diagnostics: %v", diags)
	}
	stub := m.Function("chakravyuha_decrypt_string")
	if stub == nil {
		t.Fatal("expected the decrypt stub to exist")
	}
	if err := verify.DispatcherShape(stub); err != nil {
		t.Fatalf("decrypt stub dispatcher shape invariant violated after 2 cycles: %v", err)
	}

	if after := capturePuts(t, m); after != before {
		t.Fatalf("post-transform output %q, want %q", after, before)
	}
}

// TestDeterminismUnderFixedSeed: two runs over identically-built modules
// with equal seeds produce byte-identical output.
func TestDeterminismUnderFixedSeed(t *testing.T) {
	dump := func() string {
		m := fixtures.Hello()
		d := New(
			Config{EnableStringEncrypt: true, EnableFlatten: true, ShuffleFlattenIDs: true, Cycles: 1},
			randsrc.NewSeededSource(99),
			report.New("", "", "medium", 1),
		)
		ok, _, diags := d.Run(m)
		if !ok {
			t.Fatalf("expected module to verify, diagnostics: %v", diags)
		}
		return ir.Dump(m)
	}
	if a, b := dump(), dump(); a != b {
		t.Fatalf("expected byte-identical output under a fixed seed:\n%s\n--- vs ---\n%s", a, b)
	}
}
