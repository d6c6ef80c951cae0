package value

import "strconv"

// Map is an insertion-order-preserving mapping from Value to Value, keyed
// by value equality (spec.md §3: "iteration order is insertion order").
// Lookup is accelerated by a canonical string encoding of the key; real
// Value equality (Eql) still arbitrates any encoding collision.
type Map struct {
	keys  []Value
	vals  []Value
	index map[string][]int // canonical key -> indices into keys/vals (collisions rare)
}

func NewEmptyMap() *Map {
	return &Map{index: make(map[string][]int)}
}

func canonicalKey(v Value) string {
	switch v.Kind {
	case KNone:
		return "n:"
	case KBool:
		return "b:" + strconv.FormatBool(v.BoolVal())
	case KInt, KNum:
		// Eql compares int and num numerically, so both share one encoding.
		f := numeric(v)
		if f == 0 {
			f = 0 // fold -0 into 0
		}
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	case KStr:
		return "s:" + v.StrVal()
	default:
		// Composite keys (tuple etc.) are rare; fall back to a shared
		// bucket and let Eql disambiguate.
		return "x:" + v.Kind.String()
	}
}

func (m *Map) Len() int { return len(m.keys) }

func (m *Map) find(key Value) int {
	for _, idx := range m.index[canonicalKey(key)] {
		if Eql(m.keys[idx], key) {
			return idx
		}
	}
	return -1
}

func (m *Map) Get(key Value) (Value, bool) {
	idx := m.find(key)
	if idx < 0 {
		return None, false
	}
	return m.vals[idx], true
}

func (m *Map) Set(key, val Value) {
	if idx := m.find(key); idx >= 0 {
		m.vals[idx] = val
		return
	}
	ck := canonicalKey(key)
	m.index[ck] = append(m.index[ck], len(m.keys))
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

// Keys returns the keys in insertion order. Callers must not mutate the
// returned slice.
func (m *Map) Keys() []Value { return m.keys }

// Pair returns the i-th key/value pair in insertion order.
func (m *Map) Pair(i int) (Value, Value) { return m.keys[i], m.vals[i] }

// Equal reports order-independent equality: same set of key/value pairs.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.keys {
		ov, ok := o.Get(k)
		if !ok || !Eql(m.vals[i], ov) {
			return false
		}
	}
	return true
}
