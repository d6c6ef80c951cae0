package value

// Heap is Bog's precise mark-sweep collector (spec.md §4.7). It owns every
// composite Value's *Object, linked intrusively so sweep needs no separate
// bookkeeping slice.
//
// Grounded on the teacher's runtime/executor/session_runtime.go lifecycle
// pattern (track every live session, tear down whichever are no longer
// reachable at scope exit) adapted from session objects to heap objects:
// the VM is the "session" here, its register stack and frame captures are
// the roots.
type Heap struct {
	head      *Object
	count     int
	threshold int
}

const defaultGCThreshold = 4096

func NewHeap() *Heap {
	return &Heap{threshold: defaultGCThreshold}
}

// Alloc links a freshly built Object into the heap so it becomes eligible
// for collection, and returns it unchanged (a convenience for call sites
// that already constructed the Object via New*).
func (h *Heap) Alloc(obj *Object) *Object {
	obj.next = h.head
	h.head = obj
	h.count++
	return obj
}

// Track is called after constructing a Value via New*/NewErr/etc. to
// register its Object with this heap. Call sites that build Values via
// those constructors directly (bypassing a VM-owned Heap) are fine too —
// an unreachable-from-any-heap Object is simply never collected, which
// matches a host embedding that doesn't care about long-running GC
// pressure (e.g. one-shot script evaluation).
func (h *Heap) Track(v Value) Value {
	if v.Obj != nil {
		h.Alloc(v.Obj)
	}
	return v
}

// ShouldCollect reports whether the live object count has crossed the
// collection threshold. The VM calls this at allocation sites (spec.md
// §4.7: "collection may run at any allocation site").
func (h *Heap) ShouldCollect() bool { return h.count >= h.threshold }

// Collect performs a full mark-sweep pass. markRoots is called once and
// must invoke mark(obj) for every root Object (register-stack slots,
// frame captures/this, anything else the VM considers live).
func (h *Heap) Collect(markRoots func(mark func(*Object))) {
	markRoots(markDeep)

	var live *Object
	liveCount := 0
	for obj := h.head; obj != nil; {
		next := obj.next
		if obj.marked {
			obj.marked = false
			obj.next = live
			live = obj
			liveCount++
		}
		obj = next
	}
	h.head = live
	h.count = liveCount
	if h.threshold < h.count*2 {
		h.threshold = h.count * 2
	}
	if h.threshold < defaultGCThreshold {
		h.threshold = defaultGCThreshold
	}
}

// markDeep marks obj and transitively every Object it references.
func markDeep(obj *Object) {
	if obj == nil || obj.marked {
		return
	}
	obj.marked = true
	switch obj.Kind {
	case KTuple:
		markSlice(obj.Tuple)
	case KList:
		markSlice(obj.List)
	case KMap:
		if obj.Map != nil {
			for i := 0; i < obj.Map.Len(); i++ {
				k, v := obj.Map.Pair(i)
				markValue(k)
				markValue(v)
			}
		}
	case KErr:
		markValue(obj.Err)
	case KFunc:
		for _, c := range obj.Func.Captures {
			if c != nil {
				markValue(*c)
			}
		}
	case KIterator:
		markValue(obj.Iter.Over)
	}
}

func markSlice(vs []Value) {
	for _, v := range vs {
		markValue(v)
	}
}

func markValue(v Value) {
	if v.Obj != nil {
		markDeep(v.Obj)
	}
}
