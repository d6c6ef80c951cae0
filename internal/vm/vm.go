// Package vm implements Bog's register-based bytecode interpreter: the
// register stack, call-frame discipline, opcode dispatch loop, import
// subsystem, and garbage collector hookup described in spec.md §4.5-§4.7.
//
// Grounded on the teacher's runtime/lexer/lexer.go debug-logger setup
// (log/slog, level gated by an environment variable) and runtime/executor's
// session-lifecycle discipline (push/pop a frame around re-entrant
// execution) generalized from "shell session" to "VM call frame".
package vm

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/invariant"
	"github.com/dasimmet/bog/internal/value"
)

// Options configures a VM instance (spec.md §6 host embedding surface).
type Options struct {
	// ImportFiles enables the import(...) subsystem reading from disk.
	ImportFiles bool
	// Repl changes module-level Discard to surface its operand as the
	// module result instead of requiring an explicit Return.
	Repl bool
	// MaxImportSize bounds a single imported source/bytecode file, in
	// bytes. Zero selects the spec default (1 MiB).
	MaxImportSize uint32
	// MaxCallDepth bounds nested Call frames. Zero selects the spec
	// default (512).
	MaxCallDepth int
	// Importer loads a module by id when ImportFiles is true. Hosts that
	// don't embed a filesystem can supply a custom resolver (e.g. an
	// in-memory map); nil with ImportFiles true falls back to reading
	// id+".bogc", then id+".bog", relative to the current directory.
	Importer Importer
	Logger   *slog.Logger
}

const (
	defaultMaxImportSize = 1 << 20
	defaultMaxCallDepth  = 512
)

func (o Options) withDefaults() Options {
	if o.MaxImportSize == 0 {
		o.MaxImportSize = defaultMaxImportSize
	}
	if o.MaxCallDepth == 0 {
		o.MaxCallDepth = defaultMaxCallDepth
	}
	if o.Logger == nil {
		level := slog.LevelWarn
		if os.Getenv("BOG_DEBUG_VM") != "" {
			level = slog.LevelDebug
		}
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return o
}

// Kind classifies a VM-surfaced failure, matching spec.md §6's distinct
// failure kinds for everything past tokenize/parse/compile.
type Kind uint8

const (
	RuntimeError Kind = iota
	MalformedByteCode
	OutOfMemory
	IoError
)

func (k Kind) String() string {
	switch k {
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

// Error is a classified VM failure. Line is the most recent LineInfo-marked
// source offset, usable the same way diag.Entry.Offset is.
type Error struct {
	Kind Kind
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at offset %d: %v", e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, line int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Line: line, Err: fmt.Errorf(format, args...)}
}

// frame is one call's activation record (spec.md §4.5 "Call frame").
type frame struct {
	module   *bytecode.Module
	dec      bytecode.Decoder
	sp       int
	line     int
	retReg   byte
	captures []*value.Value
	this     value.Value
	hasThis  bool
}

// VM is one interpreter instance. Its register stack, imported-modules
// cache, and native registry are not safe for concurrent use; run separate
// VM instances on separate goroutines (spec.md §5).
type VM struct {
	opts Options

	heap    *value.Heap
	natives map[string]value.Native

	stack  []value.Value
	frames []frame

	lastGet value.Value

	loaded     map[string]value.Value
	loading    map[string]bool
	loadedHash map[[32]byte]value.Value
}

func New(opts Options) *VM {
	return &VM{
		opts:       opts.withDefaults(),
		heap:       value.NewHeap(),
		natives:    make(map[string]value.Native),
		loaded:     make(map[string]value.Value),
		loading:    make(map[string]bool),
		loadedHash: make(map[[32]byte]value.Value),
	}
}

// RegisterNative associates name with a host-supplied function, callable
// from scripts via BuildNative.
func (m *VM) RegisterNative(name string, argCount int, variadic bool, fn value.NativeFunc) {
	m.natives[name] = value.Native{Name: name, Fn: fn, ArgCount: argCount, Variadic: variadic}
}

// NativeNames returns every registered native's name, for diagnostics'
// "did you mean" suggestions on an unresolved BuildNative lookup.
func (m *VM) NativeNames() []string {
	names := make([]string, 0, len(m.natives))
	for n := range m.natives {
		names = append(names, n)
	}
	return names
}

// Run executes module from its Entry point to completion and returns the
// module's final value.
func (m *VM) Run(module *bytecode.Module) (value.Value, error) {
	m.pushFrame(module, module.Entry, len(m.stack), nil, value.None, false, 0)
	return m.exec()
}

// CallValue implements value.Interp, letting a registered native invoke a
// Bog function or native value with host-supplied arguments.
func (m *VM) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	switch fn.Kind {
	case value.KNative:
		return m.callNative(fn.Obj.Nat, args)
	case value.KFunc:
		return m.callFunc(fn.Obj.Func, args)
	default:
		return value.None, fmt.Errorf("value of kind %s is not callable", fn.Kind)
	}
}

func (m *VM) growStack(n int) {
	for len(m.stack) < n {
		m.stack = append(m.stack, value.None)
	}
}

func (m *VM) reg(f *frame, r byte) value.Value {
	m.ensureReg(f, r)
	return m.stack[f.sp+int(r)]
}

func (m *VM) setReg(f *frame, r byte, v value.Value) {
	m.ensureReg(f, r)
	m.stack[f.sp+int(r)] = m.heap.Track(v)
}

func (m *VM) curFrame() *frame {
	invariant.Invariant(len(m.frames) > 0, "curFrame: frame stack empty")
	return &m.frames[len(m.frames)-1]
}
