package stringenc

import (
	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/randsrc"
)

// Run is the module-pass entry point the driver invokes: draws this
// module's key from src and runs the full collect/synthesize/rewrite
// procedure. The key is module-scoped, not process-scoped: a fresh one
// is drawn on every Run call, never cached across modules. Returns
// whether the module was mutated, for PreservedAnalyses.
func Run(m *ir.Module, src randsrc.Source, opts Options) (Stats, []error, bool) {
	key := src.KeyByte()
	stats, warnings := Encrypt(m, key, opts)
	return stats, warnings, stats.StringsEncrypted > 0
}
