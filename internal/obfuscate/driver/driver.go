// Package driver orchestrates one obfuscation run over a module: string
// encryption first, then control-flow flattening per function, then the
// fake-code stub, then module verification. The passes run in a fixed
// order with each pass's outcome logged before the next starts; string
// encryption goes first because the allocas and calls it introduces have
// trivial dominance, which flattening then demotes like any other code.
package driver

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/colors"
	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/fakecode"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/flatten"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/randsrc"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/report"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/stringenc"
	"github.com/0bVdnt/LLVM-Passes/internal/verify"
)

// Config selects which passes Run executes and with what options.
// internal/config.Options is translated into one of these by
// internal/compiler before the driver ever runs.
type Config struct {
	EnableStringEncrypt bool
	EnableFlatten       bool
	EnableFakeCode      bool
	ShuffleFlattenIDs   bool
	StringEncryptOpts   stringenc.Options
	Cycles              int
	Debug               bool
}

// Driver runs the obfuscation pipeline and reports outcomes through a
// report.Aggregator.
type Driver struct {
	Config Config
	Source randsrc.Source
	Report *report.Aggregator
}

// New builds a Driver. rep may be nil, in which case New allocates a
// throwaway aggregator (a module run outside the CLI, e.g. from a test,
// that doesn't care about the report).
func New(cfg Config, src randsrc.Source, rep *report.Aggregator) *Driver {
	if rep == nil {
		rep = report.New("", "", "medium", cfg.Cycles)
	}
	rep.EnableStringEncryption(cfg.EnableStringEncrypt)
	rep.EnableFlatten(cfg.EnableFlatten)
	rep.EnableFakeCode(cfg.EnableFakeCode)
	return &Driver{Config: cfg, Source: src, Report: rep}
}

// Run executes string encryption, then flattening, then the fake-code
// stub, once per requested cycle, then verifies the whole module. A
// panicking pass is recovered into a diagnostic rather than aborting the
// run: a single malformed function must never take down a batch
// obfuscation job.
func (d *Driver) Run(m *ir.Module) (ok bool, changed bool, diagnostics []string) {
	cycles := d.Config.Cycles
	if cycles < 1 {
		cycles = 1
	}

	for cycle := 1; cycle <= cycles; cycle++ {
		d.debugf(colors.CYAN, "[cycle %d/%d] running obfuscation passes", cycle, cycles)

		if d.Config.EnableStringEncrypt {
			if d.runStringEncrypt(m, &diagnostics) {
				changed = true
			}
		}
		if d.Config.EnableFlatten {
			if d.runFlatten(m, &diagnostics) {
				changed = true
			}
		}
		if d.Config.EnableFakeCode {
			d.runFakeCode(m, &diagnostics)
			changed = true
		}
	}

	results := verify.VerifyModule(m)
	if !verify.ModuleOK(results) {
		for _, r := range results {
			if !r.OK() {
				for _, e := range r.Errors {
					diagnostics = append(diagnostics, fmt.Sprintf("verify: function %s: %v", r.Function, e))
				}
			}
		}
		d.debugf(colors.RED, "module failed verification after the obfuscation run")
		return false, changed, diagnostics
	}

	d.debugf(colors.GREEN, "module verified successfully")
	return true, changed, diagnostics
}

func (d *Driver) runStringEncrypt(m *ir.Module, diagnostics *[]string) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			*diagnostics = append(*diagnostics, errors.Errorf("string encryption panicked: %v", r).Error())
		}
	}()

	stats, warnings, mutated := stringenc.Run(m, d.Source, d.Config.StringEncryptOpts)
	d.Report.AddStringsEncrypted(int64(stats.StringsEncrypted))
	d.Report.AddOriginalStringBytes(int64(stats.OriginalByteTotal))
	d.Report.AddObfuscatedStringBytes(int64(stats.CiphertextByteTotal))
	for _, w := range warnings {
		*diagnostics = append(*diagnostics, w.Error())
	}
	d.debugf(colors.PURPLE, "string encryption: %d strings encrypted", stats.StringsEncrypted)
	return mutated
}

func (d *Driver) runFlatten(m *ir.Module, diagnostics *[]string) (changed bool) {
	results := flatten.Run(m, d.Source, d.Config.ShuffleFlattenIDs)
	for _, r := range results {
		switch {
		case r.Flattened:
			d.Report.AddFlattenedFunction()
			d.Report.AddFlattenedBlocks(int64(r.FlattenedBlocks))
			changed = true
			d.debugf(colors.GREEN, "flatten: %s flattened (%d blocks)", r.Function, r.FlattenedBlocks)
		case r.RolledBack:
			d.Report.AddSkippedFunction()
			*diagnostics = append(*diagnostics, fmt.Sprintf("flatten: %s rolled back: %s", r.Function, r.Reason))
		case r.Skipped:
			d.Report.AddSkippedFunction()
			*diagnostics = append(*diagnostics, fmt.Sprintf("flatten: %s skipped: %s", r.Function, r.Reason))
			d.debugf(colors.RED, "flatten: %s skipped: %s", r.Function, r.Reason)
		}
	}
	return changed
}

func (d *Driver) runFakeCode(m *ir.Module, diagnostics *[]string) {
	defer func() {
		if r := recover(); r != nil {
			*diagnostics = append(*diagnostics, errors.Errorf("fake code insertion panicked: %v", r).Error())
		}
	}()

	for _, fn := range m.Functions {
		if fn.Declaration || len(fn.Blocks) == 0 {
			continue
		}
		stats := fakecode.InsertGuardedNoop(fn)
		d.Report.AddFakeCode(int64(stats.BlocksInserted), 0, int64(stats.ConditionalsInserted), int64(stats.BlocksInserted))
	}
}

func (d *Driver) debugf(c colors.COLOR, format string, args ...interface{}) {
	if !d.Config.Debug {
		return
	}
	c.Printf(format+"\n", args...)
}
