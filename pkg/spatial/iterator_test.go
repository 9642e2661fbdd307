package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemsAtIterator(t *testing.T) {
	m := NewMultiSpatialMap[unit]()
	for id := uint32(1); id <= 3; id++ {
		require.NoError(t, m.Add(unit{id: id}, pt(1, 1)))
	}

	t.Run("Walks Once", func(t *testing.T) {
		it := m.GetItemsAt(pt(1, 1))
		require.Equal(t, 3, it.Len())
		var got []uint32
		for it.Next() {
			got = append(got, it.Current().ID())
		}
		require.Equal(t, []uint32{1, 2, 3}, got)
		require.False(t, it.Next())
		require.Equal(t, unit{}, it.Current())
		require.ErrorIs(t, it.Reset(), ErrResetNotSupported)
		require.Empty(t, it.ToSlice())
	})

	t.Run("Read Methods On Returned Value", func(t *testing.T) {
		require.Equal(t, 3, m.GetItemsAt(pt(1, 1)).Len())
		require.Equal(t, unit{}, m.GetItemsAt(pt(1, 1)).Current())
		require.ErrorIs(t, m.GetItemsAt(pt(1, 1)).Reset(), ErrResetNotSupported)

		lm, err := NewLayeredSpatialMap[unit](2)
		require.NoError(t, err)
		require.Equal(t, -1, lm.GetLayersInMask(AllLayers).Layer())
		require.Nil(t, lm.GetLayersInMask(AllLayers).Current())
		require.ErrorIs(t, lm.GetItemsAt(pt(1, 1), AllLayers).Reset(), ErrResetNotSupported)
	})

	t.Run("Empty Position", func(t *testing.T) {
		it := m.GetItemsAt(pt(8, 8))
		require.Zero(t, it.Len())
		require.False(t, it.Next())
		for range it.All() {
			t.Fatal("unexpected item")
		}
	})

	t.Run("All Stops Early", func(t *testing.T) {
		it := m.GetItemsAt(pt(1, 1))
		it.Next()
		var got []uint32
		for u := range it.All() {
			got = append(got, u.ID())
			break
		}
		require.Equal(t, []uint32{2}, got)
	})
}

func TestHotPathAllocations(t *testing.T) {
	m := NewMultiSpatialMap[unit]()
	for id := uint32(1); id <= 8; id++ {
		require.NoError(t, m.Add(unit{id: id}, pt(int(id%2), 0)))
	}
	layered, err := NewLayeredSpatialMap[unit](3, WithMultiItemLayers(AllLayers))
	require.NoError(t, err)
	for id := uint32(1); id <= 6; id++ {
		require.NoError(t, layered.Add(unit{id: id, layer: int(id % 3)}, pt(0, 0)))
	}

	var sum uint32
	t.Run("Items At", func(t *testing.T) {
		allocs := testing.AllocsPerRun(200, func() {
			it := m.GetItemsAt(pt(1, 0))
			for it.Next() {
				sum += it.Current().ID()
			}
		})
		require.Zero(t, allocs)
	})

	t.Run("Layered Items At", func(t *testing.T) {
		allocs := testing.AllocsPerRun(200, func() {
			it := layered.GetItemsAt(pt(0, 0), AllLayers)
			for it.Next() {
				sum += it.Current().ID()
			}
		})
		require.Zero(t, allocs)
	})

	t.Run("Rejected Try Move", func(t *testing.T) {
		single := NewSpatialMap[unit]()
		require.NoError(t, single.Add(unit{id: 1}, pt(0, 0)))
		require.NoError(t, single.Add(unit{id: 2}, pt(1, 0)))
		allocs := testing.AllocsPerRun(200, func() {
			if single.TryMove(unit{id: 2}, pt(0, 0)) {
				sum++
			}
		})
		require.Zero(t, allocs)
	})
}

func BenchmarkGetItemsAt(b *testing.B) {
	m := NewMultiSpatialMap[unit]()
	for id := uint32(0); id < 1024; id++ {
		_ = m.Add(unit{id: id}, pt(int(id%32), int(id/32%8)))
	}
	b.ReportAllocs()
	b.ResetTimer()
	var sum uint32
	for i := 0; i < b.N; i++ {
		it := m.GetItemsAt(pt(i%32, i%8))
		for it.Next() {
			sum += it.Current().ID()
		}
	}
	_ = sum
}

func BenchmarkTryMove(b *testing.B) {
	m := NewSpatialMap[unit](WithCapacity(1024))
	for id := uint32(0); id < 1024; id++ {
		_ = m.Add(unit{id: id}, pt(int(id%64), int(id/64)))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint32(i % 1024)
		_ = m.TryMoveByID(id, pt(i%80, i%40))
	}
}

func BenchmarkLayeredItemsAt(b *testing.B) {
	m := MustNewLayeredSpatialMap[unit](8, WithMultiItemLayers(AllLayers))
	for id := uint32(0); id < 1024; id++ {
		_ = m.Add(unit{id: id, layer: int(id % 8)}, pt(int(id%16), 0))
	}
	b.ReportAllocs()
	b.ResetTimer()
	var sum uint32
	for i := 0; i < b.N; i++ {
		it := m.GetItemsAt(pt(i%16, 0), AllLayers)
		for it.Next() {
			sum += it.Current().ID()
		}
	}
	_ = sum
}
