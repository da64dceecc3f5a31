// Package stringenc implements String Encryption (SE): collecting eligible
// string globals, synthesizing a shared decrypt stub, and rewriting every
// instruction use to decrypt on demand into a per-use stack buffer.
package stringenc

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// Options configures the collector's eligibility filter.
type Options struct {
	// NamePrefixFilter, when non-empty, additionally restricts eligible
	// globals to those whose name has this prefix (typically ".str", the
	// name most compilers give string-literal globals). A heuristic, off
	// by default: content recognition alone decides eligibility.
	NamePrefixFilter string
}

// Collect returns the ordered list of globals eligible for encryption: a
// constant global, with an initializer, recognized as a NUL-terminated
// byte string.
func Collect(m *ir.Module, opts Options) []*ir.GlobalVariable {
	var out []*ir.GlobalVariable
	for _, g := range m.Globals {
		if !eligible(g, opts) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func eligible(g *ir.GlobalVariable, opts Options) bool {
	if !g.Constant || !g.HasInit {
		return false
	}
	if !g.IsString() {
		return false
	}
	if opts.NamePrefixFilter != "" && !hasPrefix(g.Name, opts.NamePrefixFilter) {
		return false
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
