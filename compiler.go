package shadercombo

import (
	"context"
	"fmt"
)

// CompileFlag is one of the independent flag bits recognised by the
// compiler adapter contract.
type CompileFlag uint32

const (
	FlagPartialPrecision CompileFlag = 1 << iota
	FlagSkipValidation
	FlagNoPreshader
	FlagAvoidFlowControl
	FlagPreferFlowControl
	FlagSkipOptimization
)

// Macro is one preprocessor definition passed to the back end, in the
// order FormatCommand emits them as text.
type Macro struct {
	Name  string
	Value string
}

// CompileRequest is everything the compiler adapter needs to turn one
// combo into bytecode.
type CompileRequest struct {
	Source        []byte
	FileName      string
	Macros        []Macro
	TargetProfile string
	Flags         CompileFlag
	IncludeCache  *IncludeCache
}

// CompileResult is the success arm of the adapter contract: bytecode plus
// an optional listing that may carry warnings even on success.
type CompileResult struct {
	Bytecode []byte
	Listing  string
}

// Compiler is the HLSL back end, an external collaborator: the embedder
// supplies its own implementation (in-process or over IPC) satisfying this
// contract.
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
}

// macrosForCombo builds the macro list FormatCommand emits as text: every
// define in declaration order, plus the synthetic SHADERCOMBO macro carrying
// the combo-in-entry index in lowercase hex.
func macrosForCombo(e *ShaderEntry, c Combo) []Macro {
	macros := make([]Macro, 0, len(e.Defines)+1)
	macros = append(macros, Macro{Name: "SHADERCOMBO", Value: formatHex(c.ComboIndex)})
	for i, d := range e.Defines {
		macros = append(macros, Macro{Name: d.Name, Value: formatInt(c.Values[i])})
	}
	return macros
}

func formatHex(v uint64) string {
	if v == 0 {
		return "0"
	}
	const digits = "0123456789abcdef"
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

func formatInt(v int64) string {
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	var buf [20]byte
	i := len(buf)
	if u == 0 {
		i--
		buf[i] = '0'
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// UnimplementedCompiler is a placeholder Compiler for driving the engine
// without a real HLSL back end wired in: every call fails with a listing
// explaining that no adapter is configured.
type UnimplementedCompiler struct{}

func (UnimplementedCompiler) Compile(context.Context, CompileRequest) (CompileResult, error) {
	return CompileResult{}, fmt.Errorf("no compiler adapter configured")
}

// newCompileRequest builds the request for one combo of entry e, given the
// already-loaded source bytes and the run's global flags.
func newCompileRequest(e *ShaderEntry, c Combo, source []byte, cache *IncludeCache, flags CompileFlag) CompileRequest {
	return CompileRequest{
		Source:        source,
		FileName:      e.SourceFile,
		Macros:        macrosForCombo(e, c),
		TargetProfile: e.CommandSuffix,
		Flags:         flags,
		IncludeCache:  cache,
	}
}
