package vm_test

import (
	"bytes"
	"testing"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/compiler"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/parser"
	"github.com/dasimmet/bog/internal/value"
	"github.com/dasimmet/bog/internal/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run compiles and executes src on a fresh VM, failing the test on any
// pipeline error so scenario tests can assert only on the resulting value.
func run(t *testing.T, src string, opts vm.Options) value.Value {
	t.Helper()
	var diags diag.List
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err, "parse: %s", diag.RenderString("t.bog", []byte(src), diags.Entries))

	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err, "compile: %s", diag.RenderString("t.bog", []byte(src), diags.Entries))

	m := vm.New(opts)
	result, err := m.Run(module)
	require.NoError(t, err)
	return result
}

// TestScenarios exercises spec.md §8's concrete scenario list end to end.
func TestScenarios(t *testing.T) {
	t.Run("let and arithmetic", func(t *testing.T) {
		v := run(t, "let x = 1 + 2\nreturn x", vm.Options{})
		assert.Equal(t, value.KInt, v.Kind)
		assert.Equal(t, int64(3), v.IntVal())
	})

	t.Run("for loop over a list", func(t *testing.T) {
		v := run(t, "let xs = [1,2,3]\nlet s = 0\nfor (let v in xs) s += v\nreturn s", vm.Options{})
		assert.Equal(t, int64(6), v.IntVal())
	})

	t.Run("nested function calls", func(t *testing.T) {
		v := run(t, "fn pow(x) x * x\nreturn pow(pow(2))", vm.Options{})
		assert.Equal(t, int64(16), v.IntVal())
	})

	t.Run("error value surfaces at module boundary", func(t *testing.T) {
		v := run(t, `error("oops")`, vm.Options{})
		require.Equal(t, value.KErr, v.Kind)
		assert.Equal(t, "oops", v.ErrInner().StrVal())
	})
}

func TestImportDisabledIsRuntimeError(t *testing.T) {
	var diags diag.List
	src := `import("m.bog")`
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{ImportFiles: false})
	_, err = m.Run(module)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

func TestNegativeShiftIsRuntimeError(t *testing.T) {
	var diags diag.List
	src := "return 1 << -1"
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{})
	_, err = m.Run(module)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

func TestDiscardErrIsRuntimeError(t *testing.T) {
	var diags diag.List
	src := "error(\"boom\")\nreturn 1"
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{})
	_, err = m.Run(module)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

func TestImportMemoization(t *testing.T) {
	var diags diag.List
	src := `let a = import("m")
let b = import("m")
return a == b`
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{
		ImportFiles: true,
		Importer:    stubImporter{src: []byte("return 42")},
	})
	result, err := m.Run(module)
	require.NoError(t, err)
	assert.Equal(t, value.True, result)
}

type stubImporter struct{ src []byte }

func (s stubImporter) Resolve(id string) ([]byte, bool, error) {
	return s.src, false, nil
}

func TestIteratorExhaustion(t *testing.T) {
	v := run(t, `let xs = []
let s = 0
for (let x in xs) s += x
return s`, vm.Options{})
	assert.Equal(t, value.KInt, v.Kind)
	assert.Equal(t, int64(0), v.IntVal())
}

func TestStackBalanceAfterReturn(t *testing.T) {
	var diags diag.List
	src := "fn add(a, b) a + b\nreturn add(1, 2)"
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{})
	_, err = m.Run(module)
	require.NoError(t, err)
	// A second Run on the same VM must not accumulate stale frames/registers
	// from the first (spec.md §8 "stack balance").
	_, err = m.Run(module)
	require.NoError(t, err)
}

func TestIntAddOverflowIsRuntimeError(t *testing.T) {
	var diags diag.List
	src := "return 9223372036854775807 + 1"
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{})
	_, err = m.Run(module)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

func TestIntMulOverflowIsRuntimeError(t *testing.T) {
	var diags diag.List
	src := "return 9223372036854775807 * 2"
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{})
	_, err = m.Run(module)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

func TestIntPowOverflowIsRuntimeError(t *testing.T) {
	var diags diag.List
	src := "return 2 ** 63"
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	m := vm.New(vm.Options{})
	_, err = m.Run(module)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

func TestIntSubDoesNotOverflowAtBoundary(t *testing.T) {
	// math.MinInt64 - 0 must not trip the overflow check it shares code
	// paths with.
	v := run(t, "return -9223372036854775807 - 1 - 0", vm.Options{})
	assert.Equal(t, value.KInt, v.Kind)
}

// TestCallValueClosureHasNoThis guards the re-entrant native-callback
// boundary: a closure invoked via CallValue (e.g. from a registered native
// calling back into script) starts its frame the same way a top-level Run
// does, with hasThis=false, so LoadThis surfaces the documented RuntimeError
// rather than silently reading none.
func TestCallValueClosureHasNoThis(t *testing.T) {
	b := bytecode.NewBuilder()
	entry := uint32(b.Len())
	b.LoadThis(0)
	b.Return(0)
	module := b.Finish("t.bog", entry)

	m := vm.New(vm.Options{})
	fn := value.NewFunc(value.Func{ArgCount: 0, Entry: entry, Module: module})
	_, err := m.CallValue(fn, nil)
	require.Error(t, err)
	ve, ok := err.(*vm.Error)
	require.True(t, ok)
	assert.Equal(t, vm.RuntimeError, ve.Kind)
}

// TestImportContentHashMemoization covers SPEC_FULL.md §4.6: two distinct
// import ids resolving to byte-identical compiled modules run the imported
// module's top level only once, keyed by content hash rather than id.
func TestImportContentHashMemoization(t *testing.T) {
	b := bytecode.NewBuilder()
	nameRef := b.String("bump")
	entry := uint32(b.Len())
	b.BuildNative(0, nameRef)
	b.Call(1, 0, 2, 0)
	b.Return(1)
	imported := b.Finish("imported.bog", entry)

	var buf bytes.Buffer
	_, err := bytecode.Write(&buf, imported, nil)
	require.NoError(t, err)
	blob := buf.Bytes()

	var diags diag.List
	src := `let a = import("one")
let b = import("two")
return a == b`
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)

	calls := 0
	m := vm.New(vm.Options{
		ImportFiles: true,
		Importer:    bytecodeImporter{blob: blob},
	})
	m.RegisterNative("bump", 0, false, func(i value.Interp, args []value.Value) (value.Value, error) {
		calls++
		return value.Int(int64(calls)), nil
	})
	result, err := m.Run(module)
	require.NoError(t, err)
	assert.Equal(t, value.True, result)
	assert.Equal(t, 1, calls, "identical content imported under two ids runs its top level once")
}

type bytecodeImporter struct{ blob []byte }

func (b bytecodeImporter) Resolve(id string) ([]byte, bool, error) {
	return b.blob, true, nil
}
