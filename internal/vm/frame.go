package vm

import (
	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/invariant"
	"github.com/dasimmet/bog/internal/value"
)

// pushFrame starts a new call frame at entry within module, based at sp.
// For a bytecode Call, sp is the caller's own sp plus argBaseReg, so the
// callee's registers 0.. physically alias the caller's contiguous argument
// registers (spec.md §4.5: "set sp += argBaseReg") — no argument copy is
// needed. For Run/import/re-entrant-native-call entry points, sp is the
// current stack top instead, giving the new frame a disjoint window.
func (m *VM) pushFrame(module *bytecode.Module, entry uint32, sp int, captures []*value.Value, this value.Value, hasThis bool, retReg byte) {
	invariant.Precondition(sp >= 0, "pushFrame: sp must be non-negative, got %d", sp)
	invariant.Precondition(int(entry) <= len(module.Code), "pushFrame: entry %d past end of code (len %d)", entry, len(module.Code))
	m.growStack(sp)
	m.frames = append(m.frames, frame{
		module:   module,
		dec:      bytecode.NewDecoder(module.Code, int(entry)),
		sp:       sp,
		captures: captures,
		this:     this,
		hasThis:  hasThis,
		retReg:   retReg,
	})
}

// popFrame discards the top frame and truncates the register stack back to
// its start.
func (m *VM) popFrame() {
	invariant.Invariant(len(m.frames) > 0, "popFrame: no frame to pop")
	top := &m.frames[len(m.frames)-1]
	invariant.Invariant(top.sp <= len(m.stack), "popFrame: frame sp %d past stack top %d", top.sp, len(m.stack))
	m.stack = m.stack[:top.sp]
	m.frames = m.frames[:len(m.frames)-1]
}

// ensureReg grows the register stack so index f.sp+int(r) is valid.
func (m *VM) ensureReg(f *frame, r byte) {
	need := f.sp + int(r) + 1
	m.growStack(need)
}

// gcRoots marks every live register across all frames, every frame's
// captures and bound this, and the cross-call lastGet/loaded-module cache,
// as required by value.Heap.Collect's markRoots callback.
func (m *VM) gcRoots(mark func(*value.Object)) {
	for _, v := range m.stack {
		markRoot(v, mark)
	}
	for _, f := range m.frames {
		for _, c := range f.captures {
			if c != nil {
				markRoot(*c, mark)
			}
		}
		if f.hasThis {
			markRoot(f.this, mark)
		}
	}
	markRoot(m.lastGet, mark)
	for _, v := range m.loaded {
		markRoot(v, mark)
	}
	for _, v := range m.loadedHash {
		markRoot(v, mark)
	}
}

func markRoot(v value.Value, mark func(*value.Object)) {
	if v.Obj != nil {
		mark(v.Obj)
	}
}

// maybeCollect runs a collection pass if the heap has crossed its
// allocation threshold (spec.md §4.7: "collection may run at any allocation
// site").
func (m *VM) maybeCollect() {
	if m.heap.ShouldCollect() {
		m.heap.Collect(m.gcRoots)
	}
}

// copyValue implements the Copy opcode's "new value copied from B": scalar
// kinds and func/native/iterator handles are copied by Go value assignment
// same as Move, but tuple/list/map get a freshly allocated Object so
// mutating the copy (Set on a list/map) never affects the original.
func (m *VM) copyValue(v value.Value) value.Value {
	switch v.Kind {
	case value.KTuple:
		return value.NewTuple(append([]value.Value(nil), v.Obj.Tuple...))
	case value.KList:
		return value.NewList(append([]value.Value(nil), v.Obj.List...))
	case value.KMap:
		fresh := value.NewEmptyMap()
		src := v.Obj.Map
		for i := 0; i < src.Len(); i++ {
			k, val := src.Pair(i)
			fresh.Set(k, val)
		}
		return value.NewMap(fresh)
	default:
		return v
	}
}
