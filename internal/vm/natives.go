package vm

import (
	"fmt"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/value"
)

func (m *VM) callNative(n value.Native, args []value.Value) (value.Value, error) {
	if !n.Variadic && len(args) != n.ArgCount {
		return value.None, fmt.Errorf("native %q expects %d argument(s), got %d", n.Name, n.ArgCount, len(args))
	}
	if n.Variadic && len(args) < n.ArgCount {
		return value.None, fmt.Errorf("native %q expects at least %d argument(s), got %d", n.Name, n.ArgCount, len(args))
	}
	return n.Fn(m, args)
}

// callFunc invokes a closure re-entrantly, running a nested exec loop to
// completion. Used by CallValue, i.e. when a native calls back into a Bog
// function value.
func (m *VM) callFunc(fn value.Func, args []value.Value) (value.Value, error) {
	if len(m.frames) >= m.opts.MaxCallDepth {
		return value.None, fail(RuntimeError, 0, "max call depth %d exceeded", m.opts.MaxCallDepth)
	}
	if len(args) != fn.ArgCount {
		return value.None, fmt.Errorf("function expects %d argument(s), got %d", fn.ArgCount, len(args))
	}
	module, ok := fn.Module.(*bytecode.Module)
	if !ok {
		return value.None, fmt.Errorf("internal: function value's module reference is not a *bytecode.Module")
	}
	sp := len(m.stack)
	m.growStack(sp + len(args))
	copy(m.stack[sp:], args)
	m.pushFrame(module, fn.Entry, sp, fn.Captures, value.None, false, 0)
	return m.exec()
}
