package exfat

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

// clusterOffset returns the byte offset of the start of cluster n within dev.
func clusterOffset(g *geometry, n uint32) uint64 {
	return g.clusterHeapOffsetBytes + uint64(n-firstUsableClusterIndex)*uint64(g.clusterSize)
}

// buildRawFileEntry hand-encodes a File primary entry (§7.4) for injection
// into a directory cluster, mirroring direntry.go's buildXEntry helpers but
// at the raw-byte level EnumerateDirectoryEntries actually decodes from.
func buildRawFileEntry(secondaryCount uint8, attrs uint16) [32]byte {
	var e [32]byte
	e[0] = entryTypeFile
	e[1] = secondaryCount
	binary.LittleEndian.PutUint16(e[4:6], attrs)

	return e
}

// buildRawStreamExtensionEntry hand-encodes a StreamExtension secondary
// entry (§7.6).
func buildRawStreamExtensionEntry(nameLength uint8, firstCluster uint32, dataLength, validDataLength uint64) [32]byte {
	var e [32]byte
	e[0] = entryTypeStreamExtension
	e[1] = 1 // allocation possible
	e[3] = nameLength
	binary.LittleEndian.PutUint64(e[8:16], validDataLength)
	binary.LittleEndian.PutUint32(e[20:24], firstCluster)
	binary.LittleEndian.PutUint64(e[24:32], dataLength)

	return e
}

// buildRawFileNameEntries hand-encodes the FileName secondaries (§7.7) a
// StreamExtension with this name would be followed by.
func buildRawFileNameEntries(name string) [][32]byte {
	units := utf16.Encode([]rune(name))

	var entries [][32]byte

	for i := 0; i < len(units) || len(entries) == 0; i += 15 {
		end := i + 15
		if end > len(units) {
			end = len(units)
		}

		var e [32]byte
		e[0] = entryTypeFileName

		for j, u := range units[i:end] {
			binary.LittleEndian.PutUint16(e[2+j*2:], u)
		}

		entries = append(entries, e)

		if end == len(units) {
			break
		}
	}

	return entries
}

// writeClusterEntries writes a sequence of raw 32-byte directory entries into
// the given cluster, leaving the remainder of the cluster zeroed (an
// end-of-directory marker).
func writeClusterEntries(dev *memDevice, g *geometry, clusterNumber uint32, entries [][32]byte) {
	off := clusterOffset(g, clusterNumber)

	for _, e := range entries {
		copy(dev.buf[off:off+32], e[:])
		off += 32
	}
}

func openTree(t *testing.T, dev *memDevice) *Tree {
	er := NewExfatReader(dev)
	require.NoError(t, er.Parse())

	return NewTree(er)
}

// TestTree_ListsRootFileAndSubdirectory formats a volume, hand-encodes a
// top-level file and a subdirectory (with one file of its own) directly into
// their directory clusters, then walks the result through Tree, exercising
// the §4.12 file-set parser end to end instead of the teacher's loose
// MultipartFilename decoder.
func TestTree_ListsRootFileAndSubdirectory(t *testing.T) {
	dev, g := formattedVolume(t, "Hello")

	const (
		subCluster = 100
		innerFile  = "inner.txt"
	)

	// Root: a regular file "hello.txt" in slots 4..6, then a subdirectory
	// "sub" in slots 7..9 (slots 0..3 already hold the label/guid/bitmap/
	// up-case entries Format wrote).
	fileEntries := append([][32]byte{
		buildRawFileEntry(2, uint16(0x20)), // archive, 2 secondaries
		buildRawStreamExtensionEntry(9, 2, 0, 0),
	}, buildRawFileNameEntries("hello.txt")...)

	for i, e := range fileEntries {
		appendRootEntry(dev, g, 4+i, e)
	}

	dirEntries := append([][32]byte{
		buildRawFileEntry(2, uint16(0x10)), // directory, 2 secondaries
		buildRawStreamExtensionEntry(3, subCluster, uint64(g.clusterSize), uint64(g.clusterSize)),
	}, buildRawFileNameEntries("sub")...)

	for i, e := range dirEntries {
		appendRootEntry(dev, g, 4+len(fileEntries)+i, e)
	}

	// Subdirectory cluster: one file "inner.txt".
	innerEntries := append([][32]byte{
		buildRawFileEntry(2, uint16(0x20)),
		buildRawStreamExtensionEntry(uint8(len(innerFile)), 2, 0, 0),
	}, buildRawFileNameEntries(innerFile)...)

	writeClusterEntries(dev, g, subCluster, innerEntries)

	tree := openTree(t, dev)
	require.NoError(t, tree.Load())

	files, nodes, err := tree.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{`hello.txt`, `sub`, `sub\inner.txt`}, files)

	helloNode := nodes[`hello.txt`]
	require.False(t, helloNode.IsDirectory())
	require.Equal(t, "hello.txt", helloNode.FileSet().Name)

	subNode := nodes[`sub`]
	require.True(t, subNode.IsDirectory())

	innerNode := nodes[`sub\inner.txt`]
	require.False(t, innerNode.IsDirectory())
	require.Equal(t, innerFile, innerNode.FileSet().Name)
}

// TestTree_Lookup exercises Lookup's lazy-loading path: it must descend into
// and load the subdirectory on demand, without a prior Load or Visit.
func TestTree_Lookup(t *testing.T) {
	dev, g := formattedVolume(t, "Hello")

	const subCluster = 100

	dirEntries := append([][32]byte{
		buildRawFileEntry(2, uint16(0x10)),
		buildRawStreamExtensionEntry(3, subCluster, uint64(g.clusterSize), uint64(g.clusterSize)),
	}, buildRawFileNameEntries("sub")...)

	for i, e := range dirEntries {
		appendRootEntry(dev, g, 4+i, e)
	}

	innerEntries := append([][32]byte{
		buildRawFileEntry(2, uint16(0x20)),
		buildRawStreamExtensionEntry(9, 2, 0, 0),
	}, buildRawFileNameEntries("inner.txt")...)

	writeClusterEntries(dev, g, subCluster, innerEntries)

	tree := openTree(t, dev)

	node, err := tree.Lookup([]string{"sub", "inner.txt"})
	require.NoError(t, err)
	require.NotNil(t, node)
	require.Equal(t, "inner.txt", node.FileSet().Name)

	missing, err := tree.Lookup([]string{"nope"})
	require.NoError(t, err)
	require.Nil(t, missing)
}
