package spatial

import (
	"encoding/binary"
	"iter"

	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/gridkit/pkg/geometry"
)

// Digest fingerprints a map's (ID, position) pairs, independent of iteration
// order. Two maps holding the same IDs at the same positions digest equal,
// which makes it cheap to compare replicas or detect desyncs:
//
//	if spatial.Digest(local.Entries()) != remoteDigest { resync() }
func Digest[T HasID](entries iter.Seq2[T, geometry.Point]) uint64 {
	var sum uint64
	var buf [20]byte
	for item, pos := range entries {
		binary.LittleEndian.PutUint32(buf[:4], item.ID())
		b := pos.AppendBytes(buf[:4])
		sum += xxhash.Sum64(b)
	}
	return sum
}
