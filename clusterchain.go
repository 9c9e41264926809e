// This file implements the cluster-chain reader (§4.9): it turns a first
// cluster index plus a length into a byte stream, following the FAT when the
// NoFatChain bit is clear and reading the clusters back to back when it's
// set.

package exfat

import (
	"io"
)

// clusterChainGeometry is the subset of boot-sector fields the cluster-chain
// reader needs to translate a cluster index into a disk offset.
type clusterChainGeometry struct {
	bytesPerSector         uint32
	sectorsPerClusterShift uint8
	clusterHeapOffset      uint32 // in sectors, per BootSectorHeader.ClusterHeapOffset
}

func (g clusterChainGeometry) bytesPerCluster() uint64 {
	return uint64(g.bytesPerSector) << g.sectorsPerClusterShift
}

func (g clusterChainGeometry) clusterOffsetBytes(cluster uint32) uint64 {
	heapOffsetBytes := uint64(g.clusterHeapOffset) * uint64(g.bytesPerSector)
	return heapOffsetBytes + uint64(cluster-firstUsableClusterIndex)*g.bytesPerCluster()
}

// ClusterChainReader reads the byte stream described by a chain of clusters.
type ClusterChainReader struct {
	geom        clusterChainGeometry
	disk        io.ReaderAt
	chain       []uint32
	dataLength  uint64
	offset      uint64
}

// NewContiguousClusterChainReader builds a reader over dataLength bytes
// starting at firstCluster, assuming the clusters are allocated back to back
// (the NoFatChain bit is set; §4.9 "Contiguous").
func NewContiguousClusterChainReader(disk io.ReaderAt, bsh BootSectorHeader, firstCluster uint32, dataLength uint64) (*ClusterChainReader, error) {
	geom := clusterChainGeometry{
		bytesPerSector:         bsh.SectorSize(),
		sectorsPerClusterShift: bsh.SectorsPerClusterShift,
		clusterHeapOffset:      bsh.ClusterHeapOffset,
	}

	count := (dataLength + geom.bytesPerCluster() - 1) / geom.bytesPerCluster()
	if count == 0 {
		count = 1
	}

	chain := make([]uint32, count)
	for i := range chain {
		chain[i] = firstCluster + uint32(i)
	}

	return &ClusterChainReader{
		geom:       geom,
		disk:       disk,
		chain:      chain,
		dataLength: dataLength,
	}, nil
}

// NewFatClusterChainReader builds a reader that follows fat starting at
// firstCluster (the NoFatChain bit is clear; §4.9 "Fat"). A nil dataLength
// defaults to the full byte length of the chain.
func NewFatClusterChainReader(disk io.ReaderAt, bsh BootSectorHeader, fat Fat, firstCluster uint32, dataLength *uint64) (*ClusterChainReader, error) {
	geom := clusterChainGeometry{
		bytesPerSector:         bsh.SectorSize(),
		sectorsPerClusterShift: bsh.SectorsPerClusterShift,
		clusterHeapOffset:      bsh.ClusterHeapOffset,
	}

	chain := fat.Chain(firstCluster)
	if len(chain) == 0 {
		return nil, &ClusterChainError{Kind: ErrClusterChainInvalidFirstCluster}
	}

	length := geom.bytesPerCluster() * uint64(len(chain))
	if dataLength != nil {
		length = *dataLength
		if length > geom.bytesPerCluster()*uint64(len(chain)) {
			return nil, &ClusterChainError{Kind: ErrClusterChainInvalidDataLength}
		}
	}

	return &ClusterChainReader{
		geom:       geom,
		disk:       disk,
		chain:      chain,
		dataLength: length,
	}, nil
}

// Current returns the cluster index the next byte will be read from.
func (r *ClusterChainReader) Current() uint32 {
	return r.chain[r.offset/r.geom.bytesPerCluster()]
}

// Read implements io.Reader, stopping at a cluster boundary per call like
// the underlying disk read it's built on.
func (r *ClusterChainReader) Read(buf []byte) (int, error) {
	if len(buf) == 0 || r.offset == r.dataLength {
		return 0, io.EOF
	}

	clusterSize := r.geom.bytesPerCluster()
	clusterRemaining := clusterSize - r.offset%clusterSize
	remaining := clusterRemaining
	if dataRemaining := r.dataLength - r.offset; dataRemaining < remaining {
		remaining = dataRemaining
	}

	cluster := r.chain[r.offset/clusterSize]
	offset := int64(r.geom.clusterOffsetBytes(cluster)) + int64(r.offset%clusterSize)

	amount := uint64(len(buf))
	if remaining < amount {
		amount = remaining
	}

	n, err := r.disk.ReadAt(buf[:amount], offset)
	r.offset += uint64(n)

	return n, err
}

// ReadExact fills buf entirely or returns an error, matching the strict
// read-or-fail contract §4.9 relies on for fixed-size structures.
func (r *ClusterChainReader) ReadExact(buf []byte) error {
	for len(buf) > 0 {
		n, err := r.Read(buf)
		if n == 0 && err != nil {
			return err
		}

		buf = buf[n:]
	}

	return nil
}
