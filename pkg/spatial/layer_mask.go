package spatial

import (
	"iter"
	"math"
	"math/bits"
)

// MaxLayers bounds the layers of a LayeredSpatialMap by the width of LayerMask.
const MaxLayers = 32

// LayerMask selects layers of a LayeredSpatialMap; bit n selects layer n.
type LayerMask uint32

// AllLayers selects every layer.
const AllLayers LayerMask = math.MaxUint32

// NoLayers selects nothing.
const NoLayers LayerMask = 0

// MaskOf builds a mask from layer numbers. Numbers outside [0, 32) are ignored.
func MaskOf(layers ...int) LayerMask {
	return NoLayers.With(layers...)
}

func (m LayerMask) Has(layer int) bool {
	return layer >= 0 && layer < MaxLayers && m&(1<<uint(layer)) != 0
}

func (m LayerMask) With(layers ...int) LayerMask {
	for _, l := range layers {
		if l >= 0 && l < MaxLayers {
			m |= 1 << uint(l)
		}
	}
	return m
}

func (m LayerMask) Without(layers ...int) LayerMask {
	for _, l := range layers {
		if l >= 0 && l < MaxLayers {
			m &^= 1 << uint(l)
		}
	}
	return m
}

// Count is the number of selected layers.
func (m LayerMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Layers yields the selected layer numbers in ascending order.
func (m LayerMask) Layers() iter.Seq[int] {
	return func(yield func(int) bool) {
		rest := uint32(m)
		for rest != 0 {
			l := bits.TrailingZeros32(rest)
			rest &= rest - 1
			if !yield(l) {
				return
			}
		}
	}
}

// layerRangeMask selects layers [start, start+count).
func layerRangeMask(start, count int) LayerMask {
	if count <= 0 {
		return NoLayers
	}
	if count >= MaxLayers {
		return AllLayers
	}
	return LayerMask(((uint64(1) << uint(count)) - 1) << uint(start))
}

// LayerMasker builds masks restricted to the layers of one map.
type LayerMasker struct {
	start int
	count int
	all   LayerMask
}

func NewLayerMasker(start, count int) LayerMasker {
	return LayerMasker{start: start, count: count, all: layerRangeMask(start, count)}
}

// AllLayers selects every layer of the map.
func (lm LayerMasker) AllLayers() LayerMask {
	return lm.all
}

// Mask selects the given layers, dropping those the map does not have.
func (lm LayerMasker) Mask(layers ...int) LayerMask {
	return MaskOf(layers...) & lm.all
}

// MaskFrom selects every layer of the map at or above layer.
func (lm LayerMasker) MaskFrom(layer int) LayerMask {
	if layer <= lm.start {
		return lm.all
	}
	if layer >= MaxLayers {
		return NoLayers
	}
	return lm.all & (AllLayers << uint(layer))
}

// Layers yields the map's layers selected by mask, ascending.
func (lm LayerMasker) Layers(mask LayerMask) iter.Seq[int] {
	return (mask & lm.all).Layers()
}
