package exfat

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 4 of spec.md §8: main and backup boot-region checksum sectors
// agree byte for byte.
func TestFormat_BootRegionChecksumAgreement(t *testing.T) {
	dev := newMemDevice(32 * MB)

	opts := DefaultFormatOptions(32*MB, 512)

	_, err := Format(dev, opts)
	require.NoError(t, err)

	mainChecksum := dev.buf[11*512 : 11*512+8]
	backupChecksum := dev.buf[23*512 : 23*512+8]

	require.Equal(t, mainChecksum, backupChecksum)
}

// Invariant from spec.md §8: the checksum sector contains
// bytes_per_sector/4 identical little-endian copies of the checksum.
func TestFormat_ChecksumSectorRepeats(t *testing.T) {
	dev := newMemDevice(32 * MB)

	opts := DefaultFormatOptions(32*MB, 512)

	_, err := Format(dev, opts)
	require.NoError(t, err)

	sector := dev.buf[11*512 : 12*512]
	first := binary.LittleEndian.Uint32(sector[:4])

	for off := 0; off+4 <= len(sector); off += 4 {
		require.Equal(t, first, binary.LittleEndian.Uint32(sector[off:off+4]))
	}
}

// Scenario 5 of spec.md §8, checked against the literal spec offsets and the
// mandated up-case table checksum (0xE619D30D) directly, not the package's
// own constant, so a regression in either can't hide behind this test.
func TestFormat_RootDirectoryEntries(t *testing.T) {
	dev := newMemDevice(32 * MB)

	opts := DefaultFormatOptions(32*MB, 512)

	label, ok := NewLabel("Hello")
	require.True(t, ok)
	opts.Label = label

	_, err := Format(dev, opts)
	require.NoError(t, err)

	// VolumeLabel entry at 0x203000.
	labelEntry := dev.buf[0x203000:0x203020]
	require.Equal(t, byte(0x83), labelEntry[0])
	require.Equal(t, byte(5), labelEntry[1])

	decoded, ok := utf16DecodeStrict(labelEntry[2:12])
	require.True(t, ok)
	require.Equal(t, "Hello", decoded)

	// AllocationBitmap entry at 0x203040.
	bitmapEntry := dev.buf[0x203040:0x203060]
	require.Equal(t, byte(0x81), bitmapEntry[0])
	require.Equal(t, uint64(960), binary.LittleEndian.Uint64(bitmapEntry[24:32]))

	// UpcaseTable entry at 0x203060.
	upcaseEntry := dev.buf[0x203060:0x203080]
	require.Equal(t, byte(0x82), upcaseEntry[0])
	require.Equal(t, uint32(0xe619d30d), binary.LittleEndian.Uint32(upcaseEntry[4:8]))
}

// Scenario 6 of spec.md §8: FAT cluster-usage count, checked against the
// literal expected counts.
func TestFormat_ClusterUsageCount(t *testing.T) {
	cases := []struct {
		devSize  uint64
		expected uint32
	}{
		{32 * MB, 4},
		{512 * MB, 3},
	}

	for _, c := range cases {
		opts := DefaultFormatOptions(c.devSize, 512)
		opts.PackBitmap = false

		dev := newMemDevice(int64(c.devSize))

		result, err := Format(dev, opts)
		require.NoError(t, err)
		require.Equal(t, c.expected, result.ClusterCountUsed)
	}
}

// Round-trip law from spec.md §8: open(format(options)) succeeds and
// reports the options' label, an empty item list, and the up-case table
// checksum equals the spec-mandated 0xE619D30D.
func TestFormatThenOpenVolume_RoundTrip(t *testing.T) {
	dev := newMemDevice(32 * MB)

	opts := DefaultFormatOptions(32*MB, 512)

	label, ok := NewLabel("Hello")
	require.True(t, ok)
	opts.Label = label

	result, err := Format(dev, opts)
	require.NoError(t, err)
	require.Equal(t, uint32(0xe619d30d), result.UpcaseTableChecksum)

	volume, err := OpenVolume(dev)
	require.NoError(t, err)

	require.Equal(t, "Hello", volume.Label)
	require.Empty(t, volume.Entries)
}
