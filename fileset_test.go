package exfat

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

// buildFileNameEntries encodes name into the FileName secondaries a real
// StreamExtension with the same name would be followed by.
func buildFileNameEntries(name string) []DirectoryEntry {
	units := utf16.Encode([]rune(name))

	var entries []DirectoryEntry

	for i := 0; i < len(units); i += 15 {
		end := i + 15
		if end > len(units) {
			end = len(units)
		}

		var fn ExfatFileNameDirectoryEntry
		fn.EntryType = EntryType(entryTypeFileName)

		for j, u := range units[i:end] {
			binary.LittleEndian.PutUint16(fn.FileName[j*2:], u)
		}

		entries = append(entries, &fn)
	}

	if len(entries) == 0 {
		entries = append(entries, &ExfatFileNameDirectoryEntry{EntryType: EntryType(entryTypeFileName)})
	}

	return entries
}

func validFileSet(name string) (*ExfatFileDirectoryEntry, []DirectoryEntry) {
	nameEntries := buildFileNameEntries(name)

	primary := &ExfatFileDirectoryEntry{
		EntryType:         EntryType(entryTypeFile),
		SecondaryCountRaw: uint8(1 + len(nameEntries)),
		FileAttributes:    FileAttributes(0x20), // archive
	}

	stream := &ExfatStreamExtensionDirectoryEntry{
		EntryType:             EntryType(entryTypeStreamExtension),
		GeneralSecondaryFlags: GeneralSecondaryFlags(1), // allocation possible
		NameLength:            uint8(len(utf16.Encode([]rune(name)))),
		FirstCluster:          5,
		DataLength:            100,
		ValidDataLength:       100,
	}

	secondary := append([]DirectoryEntry{stream}, nameEntries...)

	return primary, secondary
}

func TestAssembleFileSet_Valid(t *testing.T) {
	primary, secondary := validFileSet("hello.txt")

	pfs, err := assembleFileSet(primary, secondary)
	require.NoError(t, err)
	require.Equal(t, "hello.txt", pfs.Name)
	require.Equal(t, uint32(5), pfs.FirstCluster)
	require.Equal(t, uint64(100), pfs.DataLength)
	require.False(t, pfs.IsDirectory())
}

func TestAssembleFileSet_LongName(t *testing.T) {
	// 36 characters: exercises a name whose length isn't a multiple of 15,
	// so the final FileName entry must be trimmed rather than decoded whole.
	name := "the quick brown fox jumps over!!!!!!"
	require.Len(t, []rune(name), 36)

	primary, secondary := validFileSet(name)

	pfs, err := assembleFileSet(primary, secondary)
	require.NoError(t, err)
	require.Equal(t, name, pfs.Name)
}

func TestAssembleFileSet_NoStreamExtension(t *testing.T) {
	primary := &ExfatFileDirectoryEntry{SecondaryCountRaw: 0}

	_, err := assembleFileSet(primary, nil)
	require.Error(t, err)

	var ferr *FileParseError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, ErrFileParseNoStreamExtension, ferr.Kind)
}

func TestAssembleFileSet_NoFileName(t *testing.T) {
	primary := &ExfatFileDirectoryEntry{SecondaryCountRaw: 1}

	_, err := assembleFileSet(primary, nil)
	require.Error(t, err)

	var ferr *FileParseError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, ErrFileParseNoFileName, ferr.Kind)
}

func TestAssembleFileSet_InvalidStreamExtension(t *testing.T) {
	primary, secondary := validFileSet("a.txt")

	stream := secondary[0].(*ExfatStreamExtensionDirectoryEntry)
	stream.FirstCluster = 1 // below the minimum valid cluster index

	_, err := assembleFileSet(primary, secondary)
	require.Error(t, err)

	var ferr *FileParseError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, ErrFileParseInvalidStreamExtension, ferr.Kind)
}

func TestAssembleFileSet_DirectoryValidDataLengthMismatch(t *testing.T) {
	primary, secondary := validFileSet("sub")
	primary.FileAttributes = FileAttributes(0x10) // directory

	stream := secondary[0].(*ExfatStreamExtensionDirectoryEntry)
	stream.ValidDataLength = stream.DataLength - 1

	_, err := assembleFileSet(primary, secondary)
	require.Error(t, err)

	var ferr *FileParseError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, ErrFileParseInvalidStreamExtension, ferr.Kind)
}

func TestAssembleFileSet_WrongFileNameEntryCount(t *testing.T) {
	primary, secondary := validFileSet("hello.txt")

	// Pass fewer secondary entries than primary.SecondaryCountRaw claims.
	_, err := assembleFileSet(primary, secondary[:1])
	require.Error(t, err)

	var ferr *FileParseError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, ErrFileParseWrongFileNameEntries, ferr.Kind)
}

func TestAssembleFileSet_FileNameAllocationPossibleRejected(t *testing.T) {
	primary, secondary := validFileSet("hello.txt")

	fn := secondary[1].(*ExfatFileNameDirectoryEntry)
	fn.GeneralSecondaryFlags = GeneralSecondaryFlags(1)

	_, err := assembleFileSet(primary, secondary)
	require.Error(t, err)

	var ferr *FileParseError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, ErrFileParseInvalidFileName, ferr.Kind)
}

func TestDecodeTimestamp_UtcOffsetSignExtension(t *testing.T) {
	// 2020-01-02 03:04:06, no 10ms increment.
	var raw ExfatTimestamp
	raw |= ExfatTimestamp(6 >> 1 << 0) // seconds are stored /2; 6/2=3
	raw |= ExfatTimestamp(4) << 5
	raw |= ExfatTimestamp(3) << 11
	raw |= ExfatTimestamp(2) << 16
	raw |= ExfatTimestamp(1) << 21
	raw |= ExfatTimestamp(2020-1980) << 25

	// +1 hour (4 units of 15 minutes), encoded as 0x80 | 4.
	ts := decodeTimestamp(raw, 0, 0x80|4)
	_, offset := ts.Zone()
	require.Equal(t, 3600, offset)

	// -1 hour: two's complement of 4 in 7 bits is 0x7c, high bit set.
	ts = decodeTimestamp(raw, 0, 0x80|0x7c)
	_, offset = ts.Zone()
	require.Equal(t, -3600, offset)

	// High bit clear: no offset regardless of the low bits.
	ts = decodeTimestamp(raw, 0, 0x04)
	_, offset = ts.Zone()
	require.Equal(t, 0, offset)
}
