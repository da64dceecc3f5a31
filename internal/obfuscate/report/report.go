// Package report aggregates obfuscation run statistics and emits them as
// JSON, with byte-count formatting from github.com/dustin/go-humanize and
// a per-run identifier from github.com/google/uuid. The aggregator may be
// fed concurrently across modules, so each emitted document gets a
// distinguishing id rather than sharing one process-wide report.
package report

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// InputParameters is the report's "inputParameters" object. There is no
// targetPlatform field: the obfuscator never learns a native target, it
// transforms IR in place and leaves platform selection to whatever
// consumes the module afterwards.
type InputParameters struct {
	ObfuscationLevel            string `json:"obfuscationLevel"`
	RequestedCycles             int    `json:"requestedCycles"`
	EnableStringEncryption      bool   `json:"enableStringEncryption"`
	EnableControlFlowFlattening bool   `json:"enableControlFlowFlattening"`
	EnableFakeCodeInsertion     bool   `json:"enableFakeCodeInsertion"`
}

// StringEncryptionMetrics is the report's "stringEncryption" object.
type StringEncryptionMetrics struct {
	Count  int64  `json:"count"`
	Method string `json:"method"`
}

// FlattenMetrics is the report's "controlFlowFlattening" object.
type FlattenMetrics struct {
	FlattenedFunctions int64 `json:"flattenedFunctions"`
	FlattenedBlocks    int64 `json:"flattenedBlocks"`
	SkippedFunctions   int64 `json:"skippedFunctions"`
}

// FakeCodeMetrics is the report's "fakeCodeInsertion" object.
type FakeCodeMetrics struct {
	TotalBogusInstructions int64 `json:"totalBogusInstructions"`
	FakeBlocks             int64 `json:"fakeBlocks"`
	FakeLoops              int64 `json:"fakeLoops"`
	FakeConditionals       int64 `json:"fakeConditionals"`
}

// ObfuscationMetrics is the report's "obfuscationMetrics" object.
type ObfuscationMetrics struct {
	CyclesCompleted    int                     `json:"cyclesCompleted"`
	PassesRun          []string                `json:"passesRun"`
	StringEncryption   StringEncryptionMetrics `json:"stringEncryption"`
	ControlFlowFlatten FlattenMetrics          `json:"controlFlowFlattening"`
	FakeCodeInsertion  FakeCodeMetrics         `json:"fakeCodeInsertion"`
}

// Document is the top-level JSON shape emitted by Aggregator.JSON. There
// is no binary-size tracking: no linker stage runs downstream of the
// obfuscator.
type Document struct {
	RunID                string             `json:"runId"`
	Timestamp            string             `json:"timestamp"`
	InputFile            string             `json:"inputFile"`
	OutputFile           string             `json:"outputFile"`
	InputParameters      InputParameters    `json:"inputParameters"`
	OriginalStringData   string             `json:"originalIRStringDataSize"`
	ObfuscatedStringData string             `json:"obfuscatedIRStringDataSize"`
	CompilationTime      float64            `json:"compilationTimeSeconds"`
	ObfuscationMethods   []string           `json:"obfuscationMethods"`
	ObfuscationMetrics   ObfuscationMetrics `json:"obfuscationMetrics"`
}

// Aggregator collects counters with atomic fields so concurrent runs
// across modules never race. There is deliberately no package-level
// singleton: callers that want per-module isolation construct one
// Aggregator per module, and a host that drives modules concurrently
// stays safe either way.
type Aggregator struct {
	inputFile  string
	outputFile string
	level      string
	cycles     int

	stringEncryptionEnabled bool
	flattenEnabled          bool
	fakeCodeEnabled         bool

	stringsEncrypted   int64
	origStringBytes    int64
	obfStringBytes     int64
	flattenedFunctions int64
	flattenedBlocks    int64
	skippedFunctions   int64

	fakeBlocks       int64
	fakeLoops        int64
	fakeConditionals int64
	fakeInstructions int64

	start time.Time
}

// New creates an aggregator for one obfuscation run.
func New(inputFile, outputFile, level string, cycles int) *Aggregator {
	return &Aggregator{
		inputFile:  inputFile,
		outputFile: outputFile,
		level:      level,
		cycles:     cycles,
		start:      time.Now(),
	}
}

func (a *Aggregator) EnableStringEncryption(on bool) { a.stringEncryptionEnabled = on }
func (a *Aggregator) EnableFlatten(on bool)          { a.flattenEnabled = on }
func (a *Aggregator) EnableFakeCode(on bool)         { a.fakeCodeEnabled = on }

func (a *Aggregator) AddStringsEncrypted(n int64)  { atomic.AddInt64(&a.stringsEncrypted, n) }
func (a *Aggregator) AddOriginalStringBytes(n int64) { atomic.AddInt64(&a.origStringBytes, n) }
func (a *Aggregator) AddObfuscatedStringBytes(n int64) { atomic.AddInt64(&a.obfStringBytes, n) }
func (a *Aggregator) AddFlattenedFunction()         { atomic.AddInt64(&a.flattenedFunctions, 1) }
func (a *Aggregator) AddFlattenedBlocks(n int64)    { atomic.AddInt64(&a.flattenedBlocks, n) }
func (a *Aggregator) AddSkippedFunction()           { atomic.AddInt64(&a.skippedFunctions, 1) }
func (a *Aggregator) AddFakeCode(blocks, loops, conditionals, instrs int64) {
	atomic.AddInt64(&a.fakeBlocks, blocks)
	atomic.AddInt64(&a.fakeLoops, loops)
	atomic.AddInt64(&a.fakeConditionals, conditionals)
	atomic.AddInt64(&a.fakeInstructions, instrs)
}

func (a *Aggregator) obfuscationMethods() []string {
	var methods []string
	if a.stringEncryptionEnabled {
		methods = append(methods, "String Encryption (XOR)")
	}
	if a.flattenEnabled {
		methods = append(methods, "Control Flow Flattening")
	}
	if a.fakeCodeEnabled {
		methods = append(methods, "Fake Code Insertion")
		if atomic.LoadInt64(&a.fakeLoops) > 0 {
			methods = append(methods, "Fake Loop Insertion")
		}
		if atomic.LoadInt64(&a.fakeConditionals) > 0 {
			methods = append(methods, "Fake Conditional Insertion")
		}
	}
	return methods
}

func (a *Aggregator) passesRun() []string {
	var passes []string
	if a.stringEncryptionEnabled {
		passes = append(passes, "chakravyuha-string-encrypt")
	}
	if a.flattenEnabled {
		passes = append(passes, "chakravyuha-control-flow-flatten")
	}
	return passes
}

// Document builds the report's JSON-serializable snapshot.
func (a *Aggregator) Document(runID uuid.UUID) Document {
	method := "N/A"
	if atomic.LoadInt64(&a.stringsEncrypted) > 0 {
		method = "XOR with dynamic per-run key"
	}
	return Document{
		RunID:      runID.String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		InputFile:  a.inputFile,
		OutputFile: a.outputFile,
		InputParameters: InputParameters{
			ObfuscationLevel:            a.level,
			RequestedCycles:             a.cycles,
			EnableStringEncryption:      a.stringEncryptionEnabled,
			EnableControlFlowFlattening: a.flattenEnabled,
			EnableFakeCodeInsertion:     a.fakeCodeEnabled,
		},
		OriginalStringData:   humanize.Bytes(uint64(atomic.LoadInt64(&a.origStringBytes))),
		ObfuscatedStringData: humanize.Bytes(uint64(atomic.LoadInt64(&a.obfStringBytes))),
		CompilationTime:      time.Since(a.start).Seconds(),
		ObfuscationMethods:   a.obfuscationMethods(),
		ObfuscationMetrics: ObfuscationMetrics{
			CyclesCompleted: a.cycles,
			PassesRun:       a.passesRun(),
			StringEncryption: StringEncryptionMetrics{
				Count:  atomic.LoadInt64(&a.stringsEncrypted),
				Method: method,
			},
			ControlFlowFlatten: FlattenMetrics{
				FlattenedFunctions: atomic.LoadInt64(&a.flattenedFunctions),
				FlattenedBlocks:    atomic.LoadInt64(&a.flattenedBlocks),
				SkippedFunctions:   atomic.LoadInt64(&a.skippedFunctions),
			},
			FakeCodeInsertion: FakeCodeMetrics{
				TotalBogusInstructions: atomic.LoadInt64(&a.fakeInstructions),
				FakeBlocks:             atomic.LoadInt64(&a.fakeBlocks),
				FakeLoops:              atomic.LoadInt64(&a.fakeLoops),
				FakeConditionals:       atomic.LoadInt64(&a.fakeConditionals),
			},
		},
	}
}

// JSON renders the report as indented JSON, tagging the run with a fresh
// uuid.
func (a *Aggregator) JSON() ([]byte, error) {
	return json.MarshalIndent(a.Document(uuid.New()), "", "  ")
}
