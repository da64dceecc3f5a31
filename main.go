// Command chakravyuha is the standalone runner for the obfuscation
// passes. There is no bundled host optimizer to load a plugin into, so
// this binary builds a fixture module, runs the configured passes over
// it, and maps the result to an exit code.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/0bVdnt/LLVM-Passes/internal/compiler"
	"github.com/0bVdnt/LLVM-Passes/internal/config"
	"github.com/0bVdnt/LLVM-Passes/internal/fixtures"
	"github.com/0bVdnt/LLVM-Passes/internal/ir"
)

const version = "1.0.0"

func main() {
	fixture := flag.String("fixture", "hello", "fixture module to run: "+strings.Join(fixtures.Names, "|"))
	configPath := flag.String("config", "", "YAML config file (internal/config.Options); overrides defaults")
	level := flag.String("level", "", "obfuscation level override: low|medium|high")
	seed := flag.Int64("seed", 0, "fixed seed for reproducible output (0 = unset, non-deterministic)")
	hasSeed := flag.Bool("deterministic", false, "honor -seed even when it is 0")
	passes := flag.String("passes", "", "comma-separated pass overrides: string-encrypt,control-flow-flatten,fake-code")
	dumpIR := flag.Bool("dump-ir", false, "print the transformed module's textual IR to stdout")
	dumpConfig := flag.Bool("dump-config", false, "print the effective configuration as YAML and exit")
	reportPath := flag.String("report", "", "write the JSON run report to this path (empty: stdout)")
	debug := flag.Bool("d", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chakravyuha %s\n", version)
		return
	}

	m := fixtures.Build(*fixture)
	if m == nil {
		fmt.Fprintf(os.Stderr, "unknown fixture %q; choices: %s\n", *fixture, strings.Join(fixtures.Names, ", "))
		os.Exit(1)
	}

	opts, err := loadOptions(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *level != "" {
		opts.ObfuscationLevel = *level
	}
	if *hasSeed || *seed != 0 {
		s := *seed
		opts.Seed = &s
	}
	if *passes != "" {
		applyPassOverrides(&opts, *passes)
	}
	opts.Debug = *debug

	if *dumpConfig {
		data, err := opts.Encode()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	result := compiler.Run(compiler.Options{Module: m, Config: opts})

	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, "chakravyuha:", d)
	}

	if *dumpIR {
		fmt.Println(ir.Dump(m))
	}

	if err := emitReport(result, *reportPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if !result.Success {
		os.Exit(1)
	}
}

// loadOptions returns config.Default() when path is empty rather than
// erroring on an absent -config flag.
func loadOptions(path string) (config.Options, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyPassOverrides(opts *config.Options, passes string) {
	enabled := map[string]bool{}
	for _, p := range strings.Split(passes, ",") {
		enabled[strings.TrimSpace(p)] = true
	}
	opts.StringEncrypt.Enabled = enabled["string-encrypt"]
	opts.ControlFlowFlatten.Enabled = enabled["control-flow-flatten"]
	opts.FakeCode.Enabled = enabled["fake-code"]
}

func emitReport(result compiler.Result, path string) error {
	data, err := result.Report.JSON()
	if err != nil {
		return fmt.Errorf("chakravyuha: marshal report: %w", err)
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("chakravyuha: write report %s: %w", path, err)
	}
	return nil
}
