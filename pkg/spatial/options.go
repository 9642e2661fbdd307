package spatial

import "github.com/zeusync/gridkit/pkg/observability/log"

// Option configures a map at construction.
type Option func(*options)

type options struct {
	logger         log.Log
	capacity       int
	startingLayer  int
	multiItemLayer LayerMask
}

func defaultOptions() options {
	return options{logger: log.NewNop()}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNop()
	}
	return o
}

// WithLogger makes the map report failed strict operations at debug level.
func WithLogger(l log.Log) Option {
	return func(o *options) { o.logger = l }
}

// WithCapacity pre-sizes the ID and position indexes.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithStartingLayer sets the number of the first layer of a LayeredSpatialMap.
// Ignored by single-layer maps.
func WithStartingLayer(layer int) Option {
	return func(o *options) { o.startingLayer = layer }
}

// WithMultiItemLayers selects which layers of a LayeredSpatialMap allow more
// than one item per position. Bits are absolute layer numbers. Ignored by
// single-layer maps.
func WithMultiItemLayers(mask LayerMask) Option {
	return func(o *options) { o.multiItemLayer = mask }
}
