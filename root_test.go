package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func formattedVolume(t *testing.T, label string) (*memDevice, *geometry) {
	dev := newMemDevice(32 * MB)

	opts := DefaultFormatOptions(32*MB, 512)

	if label != "" {
		l, ok := NewLabel(label)
		require.True(t, ok)
		opts.Label = l
	}

	_, err := Format(dev, opts)
	require.NoError(t, err)

	g, err := solveGeometry(opts)
	require.NoError(t, err)

	return dev, g
}

// appendRootEntry overwrites the root-directory slot at index slot. Slot 4 is
// the first unused (end-of-directory) slot following the four entries Format
// wrote, so injecting there leaves the walk to see the injected entry followed
// immediately by the real end-of-directory marker; slots 0..3 replace one of
// Format's own entries.
func appendRootEntry(dev *memDevice, g *geometry, slot int, entry [32]byte) {
	off := g.rootOffsetBytes + uint64(slot)*32
	copy(dev.buf[off:off+32], entry[:])
}

func TestOpenVolume_RoundTrip(t *testing.T) {
	dev, _ := formattedVolume(t, "Hello")

	volume, err := OpenVolume(dev)
	require.NoError(t, err)
	require.Equal(t, "Hello", volume.Label)
	require.Empty(t, volume.Entries)
}

func TestOpenVolume_RejectsSecondVolumeLabel(t *testing.T) {
	dev, g := formattedVolume(t, "Hello")

	second := buildVolumeLabelEntry(mustLabel(t, "Again"))
	appendRootEntry(dev, g, 4, second)

	_, err := OpenVolume(dev)
	require.Error(t, err)

	var rerr *RootError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrRootInvalidNumberOfVolumeLabels, rerr.Kind)
}

func TestOpenVolume_RejectsOversizedVolumeLabel(t *testing.T) {
	dev, g := formattedVolume(t, "")

	var bad [32]byte
	bad[0] = entryTypeVolumeLabel
	bad[1] = 12 // > 11, the maximum allowed character count

	appendRootEntry(dev, g, 0, bad)

	_, err := OpenVolume(dev)
	require.Error(t, err)

	var rerr *RootError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrRootInvalidVolumeLabel, rerr.Kind)
}

func TestOpenVolume_RejectsUnexpectedRootEntry(t *testing.T) {
	dev, g := formattedVolume(t, "Hello")

	var guid [32]byte
	guid[0] = entryTypeVolumeGuid // in-use, unlike the formatter's unused slot

	appendRootEntry(dev, g, 4, guid)

	_, err := OpenVolume(dev)
	require.Error(t, err)

	var rerr *RootError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrRootUnexpectedRootEntry, rerr.Kind)
}

func TestOpenVolume_RejectsSecondUpcaseTable(t *testing.T) {
	dev, g := formattedVolume(t, "Hello")

	second := buildUpcaseTableEntry(g.uptableStartCluster)
	appendRootEntry(dev, g, 4, second)

	_, err := OpenVolume(dev)
	require.Error(t, err)

	var rerr *RootError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrRootInvalidNumberOfUpcaseTables, rerr.Kind)
}

func mustLabel(t *testing.T, s string) Label {
	l, ok := NewLabel(s)
	require.True(t, ok)
	return l
}
