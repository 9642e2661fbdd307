package spatial

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/gridkit/pkg/geometry"
	"github.com/zeusync/gridkit/pkg/observability/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errBlocked = errors.New("blocked by terrain")

func TestAutoSyncSpatialMap(t *testing.T) {
	t.Run("Setter Moves Item", func(t *testing.T) {
		m := NewAutoSyncSpatialMap[*mob]()
		events := recordEvents[*mob](m)
		e := newMob(1, 0, pt(2, 3))
		require.NoError(t, m.Add(e))

		require.NoError(t, e.SetPosition(pt(4, 4)))
		p, ok := m.GetPositionOf(e)
		require.True(t, ok)
		require.Equal(t, pt(4, 4), p)
		got, ok := m.GetItemAt(pt(4, 4))
		require.True(t, ok)
		require.Same(t, e, got)
		require.Equal(t, []string{"add 1 (2,3)", "move 1 (2,3) (4,4)"}, events.lines)
	})

	t.Run("Setter Rejected When Occupied", func(t *testing.T) {
		m := NewAutoSyncSpatialMap[*mob]()
		a, b := newMob(1, 0, pt(0, 0)), newMob(2, 0, pt(1, 0))
		require.NoError(t, m.Add(a))
		require.NoError(t, m.Add(b))

		err := b.SetPosition(pt(0, 0))
		require.ErrorIs(t, err, ErrPositionOccupied)
		var mapErr *MapError
		require.ErrorAs(t, err, &mapErr)
		require.Equal(t, uint32(2), mapErr.ID)
		require.Equal(t, pt(1, 0), b.Position())

		require.ErrorIs(t, m.Move(b, pt(0, 0)), ErrPositionOccupied)
		require.False(t, m.TryMove(b, pt(0, 0)))
		require.Equal(t, pt(1, 0), b.Position())
		requireConsistent(t, m.inner)
	})

	t.Run("Add Uses Own Position", func(t *testing.T) {
		m := NewAutoSyncSpatialMap[*mob]()
		require.True(t, m.CanAdd(newMob(1, 0, pt(7, 7))))
		require.True(t, m.TryAdd(newMob(1, 0, pt(7, 7))))
		require.False(t, m.TryAdd(newMob(2, 0, pt(7, 7))))
		require.ErrorIs(t, m.Add(newMob(1, 0, pt(8, 8))), ErrDuplicateID)
		require.True(t, m.ContainsPosition(pt(7, 7)))
		require.Equal(t, 1, m.Count())
	})

	t.Run("Remove Stops Tracking", func(t *testing.T) {
		m := NewAutoSyncSpatialMap[*mob]()
		e := newMob(1, 0, pt(0, 0))
		require.NoError(t, m.Add(e))
		require.Equal(t, 1, e.Observers())

		require.NoError(t, m.Remove(e))
		require.Zero(t, e.Observers())
		require.NoError(t, e.SetPosition(pt(3, 3)))
		require.False(t, m.ContainsPosition(pt(3, 3)))
		require.Zero(t, m.Count())
		require.ErrorIs(t, m.Remove(e), ErrIDNotFound)
		require.ErrorIs(t, m.Move(e, pt(1, 1)), ErrIDNotFound)
	})

	t.Run("Remove Variants And Clear", func(t *testing.T) {
		m := NewAutoSyncMultiSpatialMap[*mob]()
		mobs := []*mob{newMob(1, 0, pt(0, 0)), newMob(2, 0, pt(0, 0)), newMob(3, 0, pt(1, 1)), newMob(4, 0, pt(2, 2))}
		for _, e := range mobs {
			require.NoError(t, m.Add(e))
		}

		require.Equal(t, []uint32{1, 2}, ids(m.RemoveAt(pt(0, 0))))
		require.Zero(t, mobs[0].Observers())
		require.Zero(t, mobs[1].Observers())

		removed, err := m.RemoveByID(3)
		require.NoError(t, err)
		require.Same(t, mobs[2], removed)
		require.Zero(t, mobs[2].Observers())
		require.False(t, m.TryRemove(mobs[2]))

		m.Clear()
		require.Zero(t, mobs[3].Observers())
		require.Zero(t, m.Count())
	})
}

func TestAutoSyncMoveAll(t *testing.T) {
	t.Run("All Or Nothing", func(t *testing.T) {
		m := NewAutoSyncAdvancedSpatialMap[*mob](Bounded(2))
		a, b, c := newMob(1, 0, pt(0, 0)), newMob(2, 0, pt(0, 0)), newMob(3, 0, pt(5, 5))
		for _, e := range []*mob{a, b, c} {
			require.NoError(t, m.Add(e))
		}

		require.ErrorIs(t, m.MoveAll(pt(0, 0), pt(5, 5)), ErrInvalidOperation)
		require.Equal(t, pt(0, 0), a.Position())
		require.Equal(t, pt(0, 0), b.Position())

		moved, ok := m.TryMoveAll(pt(0, 0), pt(5, 5))
		require.False(t, ok)
		require.Equal(t, []uint32{1}, ids(moved))
		require.Equal(t, pt(5, 5), a.Position())

		require.Equal(t, []uint32{2}, ids(m.MoveValid(pt(0, 0), pt(6, 6))))
		require.Equal(t, pt(6, 6), b.Position())
		requireConsistent(t, m.inner)
	})

	t.Run("Rolls Back When A Setter Refuses", func(t *testing.T) {
		m := NewAutoSyncMultiSpatialMap[*mob]()
		a, b := newMob(1, 0, pt(0, 0)), newMob(2, 0, pt(0, 0))
		require.NoError(t, m.Add(a))
		require.NoError(t, m.Add(b))
		b.ObservePosition(PositionHooks{
			Changing: func(_, to geometry.Point) error {
				if to == pt(9, 9) {
					return errBlocked
				}
				return nil
			},
		})

		require.ErrorIs(t, m.MoveAll(pt(0, 0), pt(9, 9)), errBlocked)
		require.Equal(t, pt(0, 0), a.Position())
		require.Equal(t, pt(0, 0), b.Position())
		require.ElementsMatch(t, []uint32{1, 2}, ids(m.GetItemsAt(pt(0, 0)).ToSlice()))
		require.False(t, m.ContainsPosition(pt(9, 9)))
		requireConsistent(t, m.inner)
	})

	t.Run("Reports Items Stranded By A Refused Rollback", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		m := NewAutoSyncMultiSpatialMap[*mob](WithLogger(log.NewFromZap(zap.New(core), log.LevelWarn)))
		a, b := newMob(1, 0, pt(0, 0)), newMob(2, 0, pt(0, 0))
		require.NoError(t, m.Add(a))
		require.NoError(t, m.Add(b))
		errStuck := errors.New("stuck")
		a.ObservePosition(PositionHooks{
			Changing: func(_, to geometry.Point) error {
				if to == pt(0, 0) {
					return errStuck
				}
				return nil
			},
		})
		b.ObservePosition(PositionHooks{
			Changing: func(_, to geometry.Point) error {
				if to == pt(9, 9) {
					return errBlocked
				}
				return nil
			},
		})

		err := m.MoveAll(pt(0, 0), pt(9, 9))
		require.ErrorIs(t, err, errBlocked)
		require.ErrorIs(t, err, errStuck)

		require.Equal(t, pt(9, 9), a.Position())
		require.Equal(t, pt(0, 0), b.Position())
		require.Equal(t, []uint32{1}, ids(m.GetItemsAt(pt(9, 9)).ToSlice()))
		require.Equal(t, []uint32{2}, ids(m.GetItemsAt(pt(0, 0)).ToSlice()))
		requireConsistent(t, m.inner)

		stranded := logs.FilterMessage("auto-sync move all left an item behind").All()
		require.Len(t, stranded, 1)
		require.EqualValues(t, 1, stranded[0].ContextMap()["id"])
		require.Equal(t, "stuck", stranded[0].ContextMap()["rollback_error"])
	})
}

// The same operations applied through Move and through SetPosition must
// leave equal maps and equal notification histories.
func TestAutoSyncEquivalence(t *testing.T) {
	const n = 24
	build := func() (*AutoSyncAdvancedSpatialMap[*mob], []*mob, *eventLog) {
		m := NewAutoSyncAdvancedSpatialMap[*mob](Bounded(2))
		events := recordEvents[*mob](m)
		mobs := make([]*mob, n)
		for i := range mobs {
			mobs[i] = newMob(uint32(i+1), 0, pt(i%5, i/5))
			require.NoError(t, m.Add(mobs[i]))
		}
		return m, mobs, events
	}
	viaMap, mapMobs, mapEvents := build()
	viaSetter, setterMobs, setterEvents := build()

	r := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 2000; i++ {
		k := r.IntN(n)
		p := pt(r.IntN(5), r.IntN(5))
		errMap := viaMap.Move(mapMobs[k], p)
		errSetter := setterMobs[k].SetPosition(p)
		require.Equal(t, errMap == nil, errSetter == nil)
	}

	require.Equal(t, Digest(viaMap.Entries()), Digest(viaSetter.Entries()))
	require.Equal(t, mapEvents.lines, setterEvents.lines)
	for i := range mapMobs {
		require.Equal(t, mapMobs[i].Position(), setterMobs[i].Position())
		p, _ := viaMap.GetPositionOf(mapMobs[i])
		require.Equal(t, mapMobs[i].Position(), p)
	}
	requireConsistent(t, viaMap.inner)
	requireConsistent(t, viaSetter.inner)
}

func TestAutoSyncLayeredSpatialMap(t *testing.T) {
	newMap := func(t *testing.T) *AutoSyncLayeredSpatialMap[*mob] {
		m, err := NewAutoSyncLayeredSpatialMap[*mob](2, WithMultiItemLayers(MaskOf(1)))
		require.NoError(t, err)
		return m
	}

	t.Run("Setter Moves Within Layer", func(t *testing.T) {
		m := newMap(t)
		ground, flyer := newMob(1, 0, pt(0, 0)), newMob(2, 1, pt(1, 1))
		require.NoError(t, m.Add(ground))
		require.NoError(t, m.Add(flyer))

		require.NoError(t, flyer.SetPosition(pt(0, 0)))
		require.Equal(t, []uint32{1, 2}, ids(m.GetItemsAt(pt(0, 0), AllLayers).ToSlice()))

		other := newMob(3, 0, pt(2, 2))
		require.NoError(t, m.Add(other))
		err := other.SetPosition(pt(0, 0))
		require.ErrorIs(t, err, ErrPositionOccupied)
		var mapErr *MapError
		require.ErrorAs(t, err, &mapErr)
		require.True(t, mapErr.HasLayer)
		require.Equal(t, pt(2, 2), other.Position())
	})

	t.Run("Layer Out Of Range", func(t *testing.T) {
		m := newMap(t)
		require.ErrorIs(t, m.Add(newMob(1, 3, pt(0, 0))), ErrLayerOutOfRange)
		require.False(t, m.TryAdd(newMob(1, 3, pt(0, 0))))
		require.False(t, m.CanAdd(newMob(1, 3, pt(0, 0))))
	})

	t.Run("Move All With Mask", func(t *testing.T) {
		m := newMap(t)
		a, b, c := newMob(1, 0, pt(0, 0)), newMob(2, 1, pt(0, 0)), newMob(3, 0, pt(1, 1))
		for _, e := range []*mob{a, b, c} {
			require.NoError(t, m.Add(e))
		}

		require.ErrorIs(t, m.MoveAll(pt(0, 0), pt(1, 1), AllLayers), ErrInvalidOperation)
		require.Equal(t, pt(0, 0), b.Position())

		require.NoError(t, m.MoveAll(pt(0, 0), pt(1, 1), MaskOf(1)))
		require.Equal(t, pt(1, 1), b.Position())
		require.Equal(t, pt(0, 0), a.Position())

		moved, ok := m.TryMoveAll(pt(0, 0), pt(1, 1), AllLayers)
		require.False(t, ok)
		require.Empty(t, moved)
		require.Equal(t, []uint32{3, 2}, ids(m.MoveValid(pt(1, 1), pt(4, 4), AllLayers)))
		require.Equal(t, pt(4, 4), c.Position())
	})

	t.Run("Remove Stops Tracking", func(t *testing.T) {
		m := newMap(t)
		a, b := newMob(1, 0, pt(0, 0)), newMob(2, 1, pt(0, 0))
		require.NoError(t, m.Add(a))
		require.NoError(t, m.Add(b))

		require.NoError(t, m.Remove(a))
		require.Zero(t, a.Observers())
		require.Equal(t, []uint32{2}, ids(m.RemoveAt(pt(0, 0), MaskOf(1))))
		require.Zero(t, b.Observers())

		require.NoError(t, m.Add(a))
		require.NoError(t, m.MoveByID(1, pt(5, 5)))
		require.Equal(t, pt(5, 5), a.Position())
		require.True(t, m.TryMove(a, pt(6, 6)))
		m.Clear()
		require.Zero(t, a.Observers())
		require.Zero(t, m.Count())
	})
}

func TestPositionTracker(t *testing.T) {
	t.Run("Hooks Order And Cancel", func(t *testing.T) {
		tr := NewPositionTracker(pt(0, 0))
		var calls []string
		sub := tr.ObservePosition(PositionHooks{
			Changing: func(from, to geometry.Point) error {
				calls = append(calls, "changing "+from.String()+" "+to.String())
				return nil
			},
			Changed: func(from, to geometry.Point) {
				calls = append(calls, "changed "+from.String()+" "+to.String())
			},
		})

		require.NoError(t, tr.SetPosition(pt(1, 0)))
		require.NoError(t, tr.SetPosition(pt(1, 0)))
		require.Equal(t, []string{"changing (0,0) (1,0)", "changed (0,0) (1,0)"}, calls)

		sub.Cancel()
		require.NoError(t, tr.SetPosition(pt(2, 0)))
		require.Len(t, calls, 2)
		require.Zero(t, tr.Observers())
	})

	t.Run("Rejection Skips Commit", func(t *testing.T) {
		tr := NewPositionTracker(pt(0, 0))
		changed := 0
		tr.ObservePosition(PositionHooks{Changed: func(_, _ geometry.Point) { changed++ }})
		tr.ObservePosition(PositionHooks{Changing: func(_, _ geometry.Point) error { return errBlocked }})

		require.ErrorIs(t, tr.SetPosition(pt(3, 3)), errBlocked)
		require.Equal(t, pt(0, 0), tr.Position())
		require.Zero(t, changed)
	})
}
