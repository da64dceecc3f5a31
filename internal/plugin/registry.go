// Package plugin models the host plugin contract: pass names recognized
// by a text pipeline, a plugin-info record, and a registration table
// mapping pipeline element names to pass constructors. An explicit map,
// no open dispatch.
package plugin

import (
	"github.com/pkg/errors"

	"github.com/0bVdnt/LLVM-Passes/internal/ir"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/driver"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/randsrc"
	"github.com/0bVdnt/LLVM-Passes/internal/obfuscate/report"
)

const (
	PassStringEncrypt = "chakravyuha-string-encrypt"
	PassFlatten       = "chakravyuha-control-flow-flatten"
	PassAll           = "chakravyuha-all"
)

// PreservedAnalyses is the two-outcome result a pass returns to the host:
// "none preserved" when it mutated IR, "all preserved" otherwise.
type PreservedAnalyses int

const (
	PreservedNone PreservedAnalyses = iota
	PreservedAll
)

func (p PreservedAnalyses) String() string {
	if p == PreservedAll {
		return "all preserved"
	}
	return "none preserved"
}

// Pass is the host-invoked entry point. AnalysisManager is left as an
// opaque capability this project never populates (no analysis results
// flow between passes here); it exists so the signature matches what a
// real host plugin would call.
type Pass func(m *ir.Module, am *AnalysisManager) (PreservedAnalyses, error)

// AnalysisManager is an intentionally empty placeholder for the host's
// analysis cache. The passes never query it; the signature accepts one so
// a real host can pass its own.
type AnalysisManager struct{}

// PassConstructor builds a Pass bound to a specific driver configuration
// and randomness source: the pipeline-name-to-pass-constructor mapping
// the plugin-info record declares.
type PassConstructor func(src randsrc.Source, rep *report.Aggregator) Pass

// Info is the plugin-info record: name and version. The registration
// callback the host calls to populate its own pipeline-name table is
// RegisterCallback.
type Info struct {
	Name    string
	Version string
}

// DefaultInfo is this plugin's identity.
var DefaultInfo = Info{Name: "Chakravyuha", Version: "1.0.0"}

var registry = map[string]PassConstructor{
	PassStringEncrypt: stringEncryptConstructor,
	PassFlatten:       flattenConstructor,
	PassAll:           allConstructor,
}

// Lookup resolves a pipeline element name to its pass constructor, the
// operation a host's "-load-pass-plugin" style registration callback
// performs for every name in the pipeline text.
func Lookup(name string) (PassConstructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("plugin: unknown pass name %q", name)
	}
	return ctor, nil
}

// RegisterCallback mirrors the host's expected "registration callback"
// shape: a function the host calls once per recognized pipeline name to
// obtain a runnable Pass.
func RegisterCallback(name string, src randsrc.Source, rep *report.Aggregator) (Pass, error) {
	ctor, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return ctor(src, rep), nil
}

func stringEncryptConstructor(src randsrc.Source, rep *report.Aggregator) Pass {
	cfg := driver.Config{EnableStringEncrypt: true, Cycles: 1}
	return boundDriverPass(cfg, src, rep)
}

func flattenConstructor(src randsrc.Source, rep *report.Aggregator) Pass {
	cfg := driver.Config{EnableFlatten: true, Cycles: 1}
	return boundDriverPass(cfg, src, rep)
}

func allConstructor(src randsrc.Source, rep *report.Aggregator) Pass {
	cfg := driver.Config{EnableStringEncrypt: true, EnableFlatten: true, Cycles: 1}
	return boundDriverPass(cfg, src, rep)
}

func boundDriverPass(cfg driver.Config, src randsrc.Source, rep *report.Aggregator) Pass {
	return func(m *ir.Module, _ *AnalysisManager) (PreservedAnalyses, error) {
		d := driver.New(cfg, src, rep)
		ok, changed, diagnostics := d.Run(m)
		if !ok {
			return PreservedNone, errors.Errorf("chakravyuha: module failed verification: %v", diagnostics)
		}
		if !changed {
			return PreservedAll, nil
		}
		return PreservedNone, nil
	}
}
