package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 1 of spec.md §8: "small simple".
func TestSolveGeometry_SmallSimple(t *testing.T) {
	opts := FormatOptions{
		DevSize:        256 * MB,
		BytesPerSector: 512,
		PackBitmap:     false,
		BoundaryAlign:  DefaultBoundaryAlignment,
	}

	g, err := solveGeometry(opts)
	require.NoError(t, err)

	require.Equal(t, uint64(524288), g.volumeLength)
	require.Equal(t, uint64(2048), g.fatOffsetBytes/512)
	require.Equal(t, uint64(510), g.fatLengthBytes/512)
	require.Equal(t, uint64(4096), g.clusterHeapOffsetBytes/512)
	require.Equal(t, uint32(65024), g.clusterCount)
	require.Equal(t, uint8(9), g.bytesPerSectorShift)
	require.Equal(t, uint8(3), g.sectorsPerClusterShift)
	require.Equal(t, uint32(6), g.firstClusterOfRootDirectory)
}

// Scenario 2 of spec.md §8: same as scenario 1 with pack_bitmap = true.
func TestSolveGeometry_SmallPacked(t *testing.T) {
	opts := FormatOptions{
		DevSize:        256 * MB,
		BytesPerSector: 512,
		PackBitmap:     true,
		BoundaryAlign:  DefaultBoundaryAlignment,
	}

	g, err := solveGeometry(opts)
	require.NoError(t, err)

	require.Equal(t, uint64(4080), g.clusterHeapOffsetBytes/512)
	require.Equal(t, uint32(65026), g.clusterCount)
	require.Equal(t, uint32(6), g.firstClusterOfRootDirectory)
}

// Scenario 3 of spec.md §8: "medium".
func TestSolveGeometry_Medium(t *testing.T) {
	opts := FormatOptions{
		DevSize:        5 * uint64(GB),
		BytesPerSector: 512,
		PackBitmap:     false,
		BoundaryAlign:  DefaultBoundaryAlignment,
	}

	g, err := solveGeometry(opts)
	require.NoError(t, err)

	require.Equal(t, uint64(10485760), g.volumeLength)
	require.Equal(t, uint64(2048), g.fatOffsetBytes/512)
	require.Equal(t, uint64(1280), g.fatLengthBytes/512)
	require.Equal(t, uint64(4096), g.clusterHeapOffsetBytes/512)
	require.Equal(t, uint32(163776), g.clusterCount)
	require.Equal(t, uint8(6), g.sectorsPerClusterShift)
	require.Equal(t, uint32(4), g.firstClusterOfRootDirectory)
}

// Boundary behaviours of spec.md §8.
func TestSolveGeometry_BoundaryBehaviours(t *testing.T) {
	_, err := solveGeometry(FormatOptions{
		DevSize:        1 * MB,
		BytesPerSector: 512,
		BoundaryAlign:  DefaultBoundaryAlignment,
	})
	require.NoError(t, err)

	_, err = solveGeometry(FormatOptions{
		DevSize:        1*MB - 1,
		BytesPerSector: 512,
		BoundaryAlign:  DefaultBoundaryAlignment,
	})
	require.Error(t, err)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, ErrInvalidSize, gerr.Kind)

	_, err = solveGeometry(FormatOptions{
		DevSize:        256 * MB,
		BytesPerSector: 600,
		BoundaryAlign:  DefaultBoundaryAlignment,
	})
	require.Error(t, err)
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, ErrInvalidBytesPerSector, gerr.Kind)
}

func TestNewLabel_TooLong(t *testing.T) {
	_, ok := NewLabel("123456789012")
	require.False(t, ok)

	l, ok := NewLabel("12345678901")
	require.True(t, ok)
	require.Equal(t, "12345678901", l.String())
}
