// Package compiler is the standalone driver's entry point: translate
// internal/config.Options into an internal/obfuscate/driver.Config, run
// it over a module, and return a Result. Options in, Result out, no
// caller-visible plumbing of the pipeline it runs.
package compiler

import (
	"github.com/0bVdnt/LLVM-Passes/colors"
	"github.com/0bVdnt/LLVM-Passes/internal/config"
	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/driver"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/randsrc"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/report"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/stringenc"
)

// Options carries everything one obfuscation run needs: the module to
// transform and the configuration to run it under.
type Options struct {
	Module *ir.Module
	Config config.Options
}

// Result reports one run's outcome: a success flag plus whatever output
// the caller asked for.
type Result struct {
	Success     bool
	Changed     bool
	Diagnostics []string
	Report      *report.Aggregator
}

// Run builds a driver.Config from opts.Config, runs it over opts.Module,
// and returns a Result. No file I/O happens here; the caller already has
// the parsed module and writes the transformed one back out itself (see
// main.go).
func Run(opts Options) Result {
	src := sourceFor(opts.Config)
	rep := report.New("", "", opts.Config.ObfuscationLevel, opts.Config.Cycles())

	cfg := driver.Config{
		EnableStringEncrypt: opts.Config.StringEncrypt.Enabled,
		EnableFlatten:       opts.Config.ControlFlowFlatten.Enabled,
		EnableFakeCode:      opts.Config.FakeCode.Enabled,
		ShuffleFlattenIDs:   opts.Config.ControlFlowFlatten.ShuffleIDs && opts.Config.Seed != nil,
		StringEncryptOpts: stringenc.Options{
			NamePrefixFilter: opts.Config.StringEncrypt.NamePrefixFilter,
		},
		Cycles: opts.Config.Cycles(),
		Debug:  opts.Config.Debug,
	}

	if cfg.Debug {
		colors.CYAN.Printf("chakravyuha: running with level=%s cycles=%d seed=%v\n",
			opts.Config.ObfuscationLevel, cfg.Cycles, opts.Config.Seed)
	}

	d := driver.New(cfg, src, rep)
	ok, changed, diagnostics := d.Run(opts.Module)
	return Result{Success: ok, Changed: changed, Diagnostics: diagnostics, Report: rep}
}

func sourceFor(cfg config.Options) randsrc.Source {
	if cfg.Seed != nil {
		return randsrc.NewSeededSource(*cfg.Seed)
	}
	return randsrc.CryptoSource{}
}
