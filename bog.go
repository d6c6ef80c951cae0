// Package bog is the host-embedding surface for the Bog scripting language:
// compile source or load a .bogc module, run it on a VM, register native
// functions, and render accumulated diagnostics to a sink.
//
// Grounded on the teacher's top-level package shape (cli/main.go and
// runtime/executor wire lexer -> parser -> planner -> executor behind a
// handful of exported entry points) collapsed into Bog's own pipeline:
// tokenizer -> parser -> compiler -> vm.
package bog

import (
	"fmt"
	"io"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/compiler"
	"github.com/dasimmet/bog/internal/config"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/parser"
	"github.com/dasimmet/bog/internal/value"
	"github.com/dasimmet/bog/internal/vm"
)

// FailureKind is the disjoint set of ways a compile-and-run pipeline can
// fail, per spec.md §6/§7.
type FailureKind uint8

const (
	TokenizeError FailureKind = iota
	ParseError
	CompileError
	RuntimeError
	MalformedByteCode
	OutOfMemory
	IoError
)

func (k FailureKind) String() string {
	switch k {
	case TokenizeError:
		return "TokenizeError"
	case ParseError:
		return "ParseError"
	case CompileError:
		return "CompileError"
	case RuntimeError:
		return "RuntimeError"
	case MalformedByteCode:
		return "MalformedByteCode"
	case OutOfMemory:
		return "OutOfMemory"
	case IoError:
		return "IoError"
	default:
		return "UnknownError"
	}
}

// Failure wraps a pipeline error with its classified Kind, the module
// name/path, and (when available) the diagnostics accumulated before the
// failure so a host can render them with Render.
type Failure struct {
	Kind   FailureKind
	Module string
	Diags  []diag.Entry
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s in %s: %v", f.Kind, f.Module, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Options configures both compilation (import/call-depth bounds passed
// through to the VM) and execution. It is the in-memory form of
// internal/config's JSON-loadable document.
type Options = config.Options

// LoadOptions parses and validates a JSON options document (spec.md §6's
// host configuration, ambient-stack addition of SPEC_FULL.md §6).
func LoadOptions(data []byte) (Options, error) {
	return config.Load(data)
}

// Module is a compiled, runnable Bog program plus the name it was compiled
// under, ready to pass to Run or to encode with Encode.
type Module struct {
	name string
	mod  *bytecode.Module
}

// Compile tokenizes, parses, and lowers src into a runnable Module. The
// first error encountered classifies as TokenizeError, ParseError, or
// CompileError per spec.md §7's distinct kinds; diagnostics accumulated up
// to that point are carried on the returned Failure.
func Compile(moduleName string, src []byte) (*Module, error) {
	var diags diag.List

	tree, err := parser.Parse(src, &diags)
	if err != nil {
		kind := ParseError
		if _, ok := err.(*parser.LexError); ok {
			kind = TokenizeError
		}
		return nil, &Failure{Kind: kind, Module: moduleName, Diags: diags.Entries, Err: err}
	}

	mod, err := compiler.Compile(tree, moduleName, &diags)
	if err != nil {
		return nil, &Failure{Kind: CompileError, Module: moduleName, Diags: diags.Entries, Err: err}
	}
	return &Module{name: moduleName, mod: mod}, nil
}

// Decode loads a previously-encoded .bogc module.
func Decode(r io.Reader, moduleName string) (*Module, error) {
	mod, _, err := bytecode.Read(r, moduleName)
	if err != nil {
		return nil, &Failure{Kind: MalformedByteCode, Module: moduleName, Err: err}
	}
	return &Module{name: moduleName, mod: mod}, nil
}

// Encode writes m's bytecode form to w, returning its content hash.
func (m *Module) Encode(w io.Writer) ([32]byte, error) {
	return bytecode.Write(w, m.mod, nil)
}

// VM is a single Bog interpreter instance: a register stack, heap, native
// registry, and import cache. Not safe for concurrent use (spec.md §5);
// create one VM per goroutine.
type VM struct {
	inner *vm.VM
}

// NewVM creates a VM configured by opts.
func NewVM(opts Options) *VM {
	return &VM{inner: vm.New(vm.Options{
		ImportFiles:   opts.ImportFiles,
		Repl:          opts.Repl,
		MaxImportSize: opts.MaxImportSize,
		MaxCallDepth:  opts.MaxCallDepth,
	})}
}

// RegisterNative associates name with a host function, callable from
// scripts that reference it by name.
func (v *VM) RegisterNative(name string, argCount int, variadic bool, fn value.NativeFunc) {
	v.inner.RegisterNative(name, argCount, variadic, fn)
}

// Run executes m to completion on v and returns its final value. A runtime
// failure is classified via vm.Error's Kind and re-wrapped as a *Failure.
func (v *VM) Run(m *Module) (value.Value, error) {
	res, err := v.inner.Run(m.mod)
	if err != nil {
		return value.None, wrapVMError(m.name, err)
	}
	return res, nil
}

// CallFunction calls the function bound to key on a map-typed Value (the
// shape a module returns when it exports a record of functions), e.g. a
// host resuming a coroutine-style callback stored under "on_tick".
func (v *VM) CallFunction(moduleName string, m value.Value, key value.Value, args []value.Value) (value.Value, error) {
	if m.Kind != value.KMap {
		return value.None, &Failure{Kind: RuntimeError, Module: moduleName, Err: fmt.Errorf("CallFunction: value of kind %s is not a map", m.Kind)}
	}
	fn, err := value.Get(m, key)
	if err != nil {
		return value.None, &Failure{Kind: RuntimeError, Module: moduleName, Err: err}
	}
	res, err := v.inner.CallValue(fn, args)
	if err != nil {
		return value.None, wrapVMError(moduleName, err)
	}
	return res, nil
}

func wrapVMError(moduleName string, err error) error {
	if ve, ok := err.(*vm.Error); ok {
		var kind FailureKind
		switch ve.Kind {
		case vm.MalformedByteCode:
			kind = MalformedByteCode
		case vm.OutOfMemory:
			kind = OutOfMemory
		case vm.IoError:
			kind = IoError
		default:
			kind = RuntimeError
		}
		return &Failure{Kind: kind, Module: moduleName, Err: ve}
	}
	return &Failure{Kind: RuntimeError, Module: moduleName, Err: err}
}

// Render writes f's diagnostics to w in "file:line:col: kind: message" form,
// the host-facing rendering spec.md §6 names. A failure without diagnostics
// is written as one "module: error" line, with no line or column.
func Render(w io.Writer, f *Failure, src []byte) error {
	if len(f.Diags) > 0 {
		if err := diag.Render(w, f.Module, src, f.Diags); err != nil {
			return err
		}
		return nil
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", f.Module, f.Error())
	return err
}
