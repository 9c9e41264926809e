package exfat

import (
	"math/bits"
)

// Byte-size constants used throughout geometry and formatting.
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// DefaultBoundaryAlignment is the default alignment granularity applied to
// the FAT offset and cluster-heap offset, in bytes.
const DefaultBoundaryAlignment = 1 * MB

// MaxClusterCount is the largest cluster count a FAT can describe.
const MaxClusterCount = 0xfffffff5

// MaxClusterSizeBytes is the largest permitted cluster size.
const MaxClusterSizeBytes = 32 * MB

// firstUsableClusterIndex is the index of the first cluster of the heap.
const firstUsableClusterIndex = 2

// upcaseTableSizeBytes is the size the boot region reserves for the up-case
// table: the exFAT-mandated 5836 bytes (§4.6, §6; see upcase.go).
func upcaseTableSizeBytes() uint64 {
	return UpcaseTableSizeBytes
}

// Label is a volume label: up to 11 UTF-16 code units, stored as a 22-byte
// little-endian payload plus a length byte.
type Label struct {
	units [11]uint16
	count uint8
}

// NewLabel constructs a Label from a Go string. It returns false if the
// string decodes to more than 11 UTF-16 code units.
func NewLabel(s string) (Label, bool) {
	units := utf16Encode(s)
	if len(units) > 11 {
		return Label{}, false
	}

	var l Label
	copy(l.units[:], units)
	l.count = uint8(len(units))

	return l, true
}

// String reconstructs the label text.
func (l Label) String() string {
	return utf16Decode(l.units[:l.count])
}

// bytes22 returns the 22-byte little-endian on-disk payload.
func (l Label) bytes22() [22]byte {
	var out [22]byte
	for i, u := range l.units {
		out[i*2] = byte(u)
		out[i*2+1] = byte(u >> 8)
	}

	return out
}

// FormatOptions configures Format (§6 "Format options").
type FormatOptions struct {
	// DevSize is the usable size of the target, in bytes. Required.
	DevSize uint64

	// BytesPerSector must be one of 512, 1024, 2048, 4096. Required.
	BytesPerSector uint16

	// PackBitmap inserts the allocation bitmap into the alignment gap between
	// the FAT and the cluster heap when there's room, saving the clusters it
	// would otherwise consume. DefaultFormatOptions leaves it false.
	PackBitmap bool

	// FullFormat zeroes the entire device instead of only the metadata
	// region. Defaults to false.
	FullFormat bool

	// Label is the volume label. Defaults to empty.
	Label Label

	// GUID is the volume GUID. A nil value marks the volume-GUID entry
	// unused.
	GUID *[16]byte

	// PartitionOffset is the media-relative byte offset of the partition.
	// Defaults to 0.
	PartitionOffset uint64

	// BoundaryAlign is the alignment granularity, in bytes, for the FAT and
	// cluster-heap offsets. Must be a power of two. Defaults to 1 MiB.
	BoundaryAlign uint32
}

// DefaultFormatOptions returns a FormatOptions with every field at its
// documented default except DevSize and BytesPerSector, which callers must
// supply.
func DefaultFormatOptions(devSize uint64, bytesPerSector uint16) FormatOptions {
	return FormatOptions{
		DevSize:        devSize,
		BytesPerSector: bytesPerSector,
		PackBitmap:     false,
		BoundaryAlign:  DefaultBoundaryAlignment,
	}
}

// geometry holds every boot parameter the solver computes, plus the derived
// layout offsets the formatter needs but that don't live on disk verbatim.
type geometry struct {
	partitionOffset uint64
	bytesPerSector  uint16
	devSize         uint64
	boundaryAlign   uint32
	numberOfFats    uint8

	bytesPerSectorShift    uint8
	sectorsPerClusterShift uint8
	clusterSize            uint32

	volumeLength uint64

	fatOffsetBytes uint64
	fatLengthBytes uint64

	clusterHeapOffsetBytes uint64
	clusterCount           uint32

	bitmapOffsetBytes uint64
	bitmapLengthBytes uint64

	uptableOffsetBytes uint64
	uptableStartCluster uint32

	rootOffsetBytes            uint64
	firstClusterOfRootDirectory uint32
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}

	return (v + align - 1) / align * align
}

func clusterSizeForDevSize(devSize uint64) uint32 {
	switch {
	case devSize <= 256*MB:
		return 4 * KB
	case devSize <= 32*uint64(GB):
		return 32 * KB
	default:
		return 128 * KB
	}
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// solveGeometry runs the §4.1 algorithm against opts, returning the fully
// populated geometry or the first invariant violated.
func solveGeometry(opts FormatOptions) (*geometry, error) {
	if opts.DevSize == 0 {
		return nil, geometryErrorf(ErrInvalidSize, opts.DevSize)
	}

	bps := uint64(opts.BytesPerSector)
	if !isPowerOfTwo(bps) || bps < 512 || bps > 4096 {
		return nil, geometryErrorf(ErrInvalidBytesPerSector, opts.BytesPerSector)
	}

	boundaryAlign := opts.BoundaryAlign
	if boundaryAlign == 0 {
		boundaryAlign = DefaultBoundaryAlignment
	}

	clusterSize := clusterSizeForDevSize(opts.DevSize)
	if clusterSize < uint32(bps) || clusterSize > MaxClusterSizeBytes || !isPowerOfTwo(uint64(clusterSize)) {
		return nil, geometryErrorf(ErrInvalidClusterSize, clusterSize)
	}

	g := &geometry{
		partitionOffset: opts.PartitionOffset,
		bytesPerSector:  opts.BytesPerSector,
		devSize:         opts.DevSize,
		boundaryAlign:   boundaryAlign,
		numberOfFats:    1,
		clusterSize:     clusterSize,
	}

	g.bytesPerSectorShift = uint8(bits.TrailingZeros64(bps))
	g.sectorsPerClusterShift = uint8(bits.TrailingZeros64(uint64(clusterSize) / bps))

	g.volumeLength = opts.DevSize / bps
	if g.volumeLength < uint64(1)<<(20-g.bytesPerSectorShift) {
		return nil, geometryErrorf(ErrInvalidSize, opts.DevSize)
	}

	// Step 5: fat_offset_bytes.
	rawFatOffset := bps*24 + opts.PartitionOffset
	fatOffsetBytes := alignUp(rawFatOffset, uint64(boundaryAlign))
	if fatOffsetBytes < opts.PartitionOffset {
		return nil, geometryErrorf(ErrInvalidPartitionOffset, opts.PartitionOffset)
	}
	fatOffsetBytes -= opts.PartitionOffset
	if fatOffsetBytes > uint64(^uint32(0)) {
		return nil, geometryErrorf(ErrBoundaryAlignTooBig, boundaryAlign)
	}
	g.fatOffsetBytes = fatOffsetBytes

	numberOfFats := uint64(g.numberOfFats)

	// Step 6: max_clusters.
	denom := uint64(clusterSize) + 4*numberOfFats
	if opts.DevSize < fatOffsetBytes+numberOfFats*8+1 {
		return nil, geometryErrorf(ErrInvalidSize, opts.DevSize)
	}
	maxClusters := (opts.DevSize-fatOffsetBytes-numberOfFats*8-1)/denom + 1

	// Step 7: fat_length_bytes.
	fatLengthBytes := alignUp((maxClusters+2)*4, bps)
	g.fatLengthBytes = fatLengthBytes

	// Step 8: cluster_heap_offset_bytes.
	rawHeapOffset := opts.PartitionOffset + fatOffsetBytes + fatLengthBytes*numberOfFats
	clusterHeapOffsetBytes := alignUp(rawHeapOffset, uint64(boundaryAlign))
	if clusterHeapOffsetBytes < opts.PartitionOffset {
		return nil, geometryErrorf(ErrInvalidPartitionOffset, opts.PartitionOffset)
	}
	clusterHeapOffsetBytes -= opts.PartitionOffset
	if clusterHeapOffsetBytes >= opts.DevSize {
		return nil, geometryErrorf(ErrInvalidSize, opts.DevSize)
	}
	g.clusterHeapOffsetBytes = clusterHeapOffsetBytes

	// Step 9: cluster_count, capped.
	rawClusterCount := (opts.DevSize - clusterHeapOffsetBytes) / uint64(clusterSize)
	maxBySectors := (g.volumeLength - clusterHeapOffsetBytes/bps) >> g.sectorsPerClusterShift
	clusterCount := rawClusterCount
	if maxBySectors < clusterCount {
		clusterCount = maxBySectors
	}
	if clusterCount > MaxClusterCount {
		clusterCount = MaxClusterCount
	}
	if clusterCount == 0 {
		return nil, geometryErrorf(ErrInvalidSize, opts.DevSize)
	}
	g.clusterCount = uint32(clusterCount)

	// Step 10: bitmap_length_bytes.
	g.bitmapLengthBytes = (uint64(g.clusterCount) + 7) / 8

	if opts.PackBitmap {
		if err := g.packBitmap(); err != nil {
			return nil, err
		}
	}

	// Step 12: up-case table.
	bitmapClusters := uint32(alignUp(g.bitmapLengthBytes, uint64(clusterSize)) / uint64(clusterSize))
	g.uptableStartCluster = firstUsableClusterIndex + bitmapClusters
	g.uptableOffsetBytes = g.clusterHeapOffsetBytes + uint64(bitmapClusters)*uint64(clusterSize)
	uptableClusters := uint32(alignUp(upcaseTableSizeBytes(), uint64(clusterSize)) / uint64(clusterSize))

	// Step 13: root directory.
	g.firstClusterOfRootDirectory = g.uptableStartCluster + uptableClusters
	g.rootOffsetBytes = g.uptableOffsetBytes + uint64(uptableClusters)*uint64(clusterSize)

	if g.firstClusterOfRootDirectory < 2 || g.firstClusterOfRootDirectory > g.clusterCount+1 {
		return nil, geometryErrorf(ErrInvalidSize, opts.DevSize)
	}

	g.bitmapOffsetBytes = g.clusterHeapOffsetBytes

	return g, nil
}

// packBitmap implements step 11: move the bitmap into the gap between the FAT
// and the (aligned) cluster heap, carving the clusters it then occupies off
// the front of the heap and folding them into the usable cluster count. Each
// cluster folded in can itself grow the bitmap by a bit, so the carve is
// repeated until the clusters already carved are exactly enough to hold a
// bitmap sized for the resulting cluster count (a fixed point on the number
// of bitmap clusters, not on the heap offset, which moves on every carve) or
// packing proves impossible.
func (g *geometry) packBitmap() error {
	var carvedClusters uint64

	for {
		neededClusters := alignUp(g.bitmapLengthBytes, uint64(g.clusterSize)) / uint64(g.clusterSize)

		if neededClusters == carvedClusters {
			return nil
		}

		delta := neededClusters - carvedClusters
		deltaBytes := delta * uint64(g.clusterSize)

		fatEnd := g.fatOffsetBytes + g.fatLengthBytes*uint64(g.numberOfFats)
		if g.clusterHeapOffsetBytes < deltaBytes || g.clusterHeapOffsetBytes-deltaBytes < fatEnd {
			return geometryErrorf(ErrCannotPackBitmap, nil)
		}

		newClusterCount := uint64(g.clusterCount) + delta
		if newClusterCount > MaxClusterCount {
			return geometryErrorf(ErrCannotPackBitmap, nil)
		}

		g.clusterHeapOffsetBytes -= deltaBytes
		g.clusterCount = uint32(newClusterCount)
		g.bitmapLengthBytes = (newClusterCount + 7) / 8
		carvedClusters = neededClusters
	}
}
