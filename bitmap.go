package exfat

import (
	"github.com/boljen/go-bitmap"
)

// buildAllocationBitmap constructs the on-disk allocation-bitmap bytes
// (§4.5): the first usedClusters bits set (bit 0 = free, 1 = allocated),
// rest clear, padded up to lengthBytes.
func buildAllocationBitmap(usedClusters uint32, lengthBytes uint64) []byte {
	bm := bitmap.New(int(lengthBytes) * 8)

	for i := uint32(0); i < usedClusters; i++ {
		bm.Set(int(i), true)
	}

	return []byte(bm)
}

// AllocationBitmap is the in-memory, queryable form of a loaded allocation
// bitmap: one bit per cluster of the heap, bit 0 = free.
type AllocationBitmap struct {
	bm           bitmap.Bitmap
	clusterCount uint32
}

// NewAllocationBitmap wraps raw on-disk bitmap bytes for a heap of the given
// cluster count.
func NewAllocationBitmap(raw []byte, clusterCount uint32) *AllocationBitmap {
	return &AllocationBitmap{
		bm:           bitmap.Bitmap(raw),
		clusterCount: clusterCount,
	}
}

// IsAllocated reports whether the cluster at heap index (cluster number
// minus firstUsableClusterIndex) is marked in-use.
func (b *AllocationBitmap) IsAllocated(clusterIndex uint32) bool {
	return b.bm.Get(int(clusterIndex))
}
