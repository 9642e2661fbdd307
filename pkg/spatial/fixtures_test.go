package spatial

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/gridkit/pkg/geometry"
)

type unit struct {
	id    uint32
	layer int
}

func (u unit) ID() uint32 { return u.id }
func (u unit) Layer() int { return u.layer }

type mob struct {
	PositionTracker
	id    uint32
	layer int
}

func newMob(id uint32, layer int, pos geometry.Point) *mob {
	return &mob{PositionTracker: NewPositionTracker(pos), id: id, layer: layer}
}

func (m *mob) ID() uint32 { return m.id }
func (m *mob) Layer() int { return m.layer }

func pt(x, y int) geometry.Point { return geometry.NewPoint(x, y) }

func ids[T HasID](items []T) []uint32 {
	out := make([]uint32, len(items))
	for i, v := range items {
		out[i] = v.ID()
	}
	return out
}

// eventLog records every notification of a map as compact strings.
type eventLog struct {
	lines []string
}

func recordEvents[T HasID](src EventSource[T]) *eventLog {
	l := &eventLog{}
	src.OnItemAdded(func(e ItemEvent[T]) {
		l.lines = append(l.lines, fmt.Sprintf("add %d %s", e.Item.ID(), e.Position))
	})
	src.OnItemRemoved(func(e ItemEvent[T]) {
		l.lines = append(l.lines, fmt.Sprintf("remove %d %s", e.Item.ID(), e.Position))
	})
	src.OnItemMoved(func(e ItemMovedEvent[T]) {
		l.lines = append(l.lines, fmt.Sprintf("move %d %s %s", e.Item.ID(), e.OldPosition, e.NewPosition))
	})
	return l
}

// requireConsistent checks that both indexes describe the same placement:
// each stored ID sits in exactly one bucket, the one its entry names, and
// no bucket is empty or over capacity.
func requireConsistent[T HasID](t *testing.T, m *AdvancedSpatialMap[T]) {
	t.Helper()

	seen := make(map[uint32]geometry.Point, len(m.items))
	for pos, b := range m.positions {
		require.NotEmpty(t, b.items, "empty bucket left at %s", pos)
		if limit := m.multiplicity.Max(); limit > 0 {
			require.LessOrEqual(t, len(b.items), limit, "bucket at %s over capacity", pos)
		}
		for _, item := range b.items {
			_, dup := seen[item.ID()]
			require.False(t, dup, "id %d in more than one bucket", item.ID())
			seen[item.ID()] = pos
		}
	}
	require.Len(t, seen, len(m.items))
	for id, e := range m.items {
		pos, ok := seen[id]
		require.True(t, ok, "id %d missing from position index", id)
		require.Equal(t, e.pos, pos)
		require.Equal(t, id, e.item.ID())
	}
}
