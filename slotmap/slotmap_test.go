package slotmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	m := New[string](4)

	id := m.Insert("first")
	require.False(t, id.IsNil())
	require.Equal(t, uint32(1), id.Version)
	require.Equal(t, 1, m.Len())
	require.True(t, m.Contains(id))

	v := m.Get(id)
	require.NotNil(t, v)
	require.Equal(t, "first", *v)

	removed, ok := m.Remove(id)
	require.True(t, ok)
	require.Equal(t, "first", removed)
	require.Equal(t, 0, m.Len())
	require.False(t, m.Contains(id))
	require.Nil(t, m.Get(id))
}

func TestZeroIDNeverOccupied(t *testing.T) {
	m := New[int](0)
	m.Insert(7)

	require.False(t, m.Contains(ID{}))
	require.Nil(t, m.Get(ID{}))

	_, ok := m.Remove(ID{})
	require.False(t, ok)
}

func TestStaleHandle(t *testing.T) {
	m := New[int](0)

	id := m.Insert(1)
	_, ok := m.Remove(id)
	require.True(t, ok)

	// reuse the slot
	reused := m.Insert(2)
	require.Equal(t, id.Index, reused.Index)
	require.NotEqual(t, id.Version, reused.Version)

	require.Nil(t, m.Get(id))
	require.False(t, m.Contains(id))
	_, ok = m.Remove(id)
	require.False(t, ok)

	v := m.Get(reused)
	require.NotNil(t, v)
	require.Equal(t, 2, *v)
}

func TestOutOfRangeHandle(t *testing.T) {
	m := New[int](0)
	m.Insert(1)

	bogus := ID{Index: 99, Version: 1}
	require.Nil(t, m.Get(bogus))
	require.False(t, m.Contains(bogus))

	_, ok := m.Remove(bogus)
	require.False(t, ok)

	called := false
	m.ApplyAt(bogus, func(ID, *int) { called = true })
	require.False(t, called)
}

func TestSwapRemoveBookkeeping(t *testing.T) {
	m := New[string](0)

	a := m.Insert("a")
	b := m.Insert("b")
	c := m.Insert("c")

	// removing the middle entry swaps the last one into its place
	removed, ok := m.Remove(b)
	require.True(t, ok)
	require.Equal(t, "b", removed)
	require.Equal(t, 2, m.Len())

	va := m.Get(a)
	require.NotNil(t, va)
	require.Equal(t, "a", *va)

	vc := m.Get(c)
	require.NotNil(t, vc)
	require.Equal(t, "c", *vc)

	// the freed slot is reused first
	d := m.Insert("d")
	require.Equal(t, b.Index, d.Index)

	vd := m.Get(d)
	require.NotNil(t, vd)
	require.Equal(t, "d", *vd)
}

func TestVersionsIncreaseByTwoPerReuse(t *testing.T) {
	m := New[int](0)

	id := m.Insert(0)
	seen := map[uint32]struct{}{id.Version: {}}

	for i := 1; i <= 1000; i++ {
		_, ok := m.Remove(id)
		require.True(t, ok)

		next := m.Insert(i)
		require.Equal(t, id.Index, next.Index)
		require.Equal(t, id.Version+2, next.Version)
		require.False(t, m.Contains(id))

		_, dup := seen[next.Version]
		require.False(t, dup)
		seen[next.Version] = struct{}{}

		id = next
	}

	require.Len(t, seen, 1001)
}

func TestApplyAt(t *testing.T) {
	m := New[int](0)
	id := m.Insert(41)

	m.ApplyAt(id, func(got ID, v *int) {
		require.Equal(t, id, got)
		*v++
	})

	v := m.Get(id)
	require.NotNil(t, v)
	require.Equal(t, 42, *v)
}

func TestForEach(t *testing.T) {
	m := New[int](0)
	ids := make(map[ID]int)
	for i := 0; i < 10; i++ {
		ids[m.Insert(i)] = i
	}

	count := 0
	m.ForEach(func(id ID, v *int) {
		require.Equal(t, ids[id], *v)
		count++
	})
	require.Equal(t, 10, count)
}
