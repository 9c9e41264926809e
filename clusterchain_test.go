package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testClusterChainBsh() BootSectorHeader {
	var bsh BootSectorHeader
	bsh.BytesPerSectorShift = 9      // 512 bytes/sector
	bsh.SectorsPerClusterShift = 0   // 1 sector/cluster -> 512-byte clusters
	bsh.ClusterHeapOffset = 10       // heap starts at sector 10

	return bsh
}

func TestClusterChainReader_Contiguous(t *testing.T) {
	bsh := testClusterChainBsh()

	dev := newMemDevice(10 * MB)

	// Cluster 2 at byte 5120, cluster 3 at byte 5632.
	payload := make([]byte, 800)
	for i := range payload {
		payload[i] = byte(i)
	}

	_, err := dev.Write(make([]byte, 5120))
	require.NoError(t, err)
	_, err = dev.Write(payload)
	require.NoError(t, err)

	r, err := NewContiguousClusterChainReader(dev, bsh, 2, 800)
	require.NoError(t, err)

	out := make([]byte, 800)
	require.NoError(t, r.ReadExact(out))
	require.Equal(t, payload, out)
}

func TestClusterChainReader_Fat(t *testing.T) {
	bsh := testClusterChainBsh()

	dev := newMemDevice(10 * MB)

	part1 := make([]byte, 512)
	part2 := make([]byte, 512)
	for i := range part1 {
		part1[i] = byte(i)
		part2[i] = byte(255 - i)
	}

	_, err := dev.Write(make([]byte, 5120))
	require.NoError(t, err)
	_, err = dev.Write(part1)
	require.NoError(t, err)
	_, err = dev.Write(part2)
	require.NoError(t, err)

	fat := Fat{MappedCluster(3), MappedCluster(fatEofEntry)}

	r, err := NewFatClusterChainReader(dev, bsh, fat, 2, nil)
	require.NoError(t, err)

	out := make([]byte, 1024)
	require.NoError(t, r.ReadExact(out))
	require.Equal(t, append(part1, part2...), out)
}

func TestClusterChainReader_InvalidFirstCluster(t *testing.T) {
	bsh := testClusterChainBsh()
	dev := newMemDevice(1 * MB)

	_, err := NewFatClusterChainReader(dev, bsh, Fat{}, 2, nil)
	require.Error(t, err)

	var cerr *ClusterChainError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrClusterChainInvalidFirstCluster, cerr.Kind)
}

func TestClusterChainReader_InvalidDataLength(t *testing.T) {
	bsh := testClusterChainBsh()
	dev := newMemDevice(1 * MB)

	fat := Fat{MappedCluster(fatEofEntry)}

	tooLong := uint64(10000)
	_, err := NewFatClusterChainReader(dev, bsh, fat, 2, &tooLong)
	require.Error(t, err)

	var cerr *ClusterChainError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrClusterChainInvalidDataLength, cerr.Kind)
}
