package value_test

import (
	"testing"

	"github.com/dasimmet/bog/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqlAcrossKinds(t *testing.T) {
	assert.True(t, value.Eql(value.Int(3), value.Int(3)))
	assert.True(t, value.Eql(value.Int(3), value.Num(3)))
	assert.True(t, value.Eql(value.Str("a"), value.Str("a")))
	assert.True(t, value.Eql(
		value.NewList([]value.Value{value.Int(1), value.Int(2)}),
		value.NewList([]value.Value{value.Int(1), value.Int(2)}),
	))
}

func TestGetListIndex(t *testing.T) {
	list := value.NewList([]value.Value{value.Int(10), value.Int(20), value.Int(30)})
	v, err := value.Get(list, value.Int(1))
	require.NoError(t, err)
	assert.Equal(t, int64(20), v.IntVal())
}

func TestGetNegativeIndexWraps(t *testing.T) {
	list := value.NewList([]value.Value{value.Int(10), value.Int(20), value.Int(30)})
	v, err := value.Get(list, value.Int(-1))
	require.NoError(t, err)
	assert.Equal(t, int64(30), v.IntVal())
}

func TestGetOutOfRangeIsError(t *testing.T) {
	list := value.NewList([]value.Value{value.Int(1)})
	_, err := value.Get(list, value.Int(5))
	require.Error(t, err)
}

func TestSetMutatesSharedBacking(t *testing.T) {
	list := value.NewList([]value.Value{value.Int(1), value.Int(2)})
	alias := list // Move semantics: same *Object
	err := value.Set(list, value.Int(0), value.Int(99))
	require.NoError(t, err)

	got, err := value.Get(alias, value.Int(0))
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.IntVal())
}

func TestInContainer(t *testing.T) {
	list := value.NewList([]value.Value{value.Str("a"), value.Str("b")})
	ok, err := value.In(value.Str("b"), list)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = value.In(value.Str("z"), list)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestErrValue(t *testing.T) {
	e := value.NewErr(value.Str("boom"))
	assert.True(t, e.IsErr())
	assert.Equal(t, "boom", e.ErrInner().StrVal())
}

func TestToDisplayString(t *testing.T) {
	assert.Equal(t, "3", value.ToDisplayString(value.Int(3)))
	assert.Equal(t, "none", value.ToDisplayString(value.None))
	assert.Equal(t, "true", value.ToDisplayString(value.True))
}
