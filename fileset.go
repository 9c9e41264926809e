// This file assembles a File primary entry plus its StreamExtension and
// FileName secondaries into a named, timestamped file-set record (§4.12),
// grounded in the validation original_source/src/dir/entry/parsed.rs applies
// before trusting a StreamExtension or FileName entry.

package exfat

import (
	"time"
)

// ParsedFileSet is one fully assembled File + StreamExtension + FileName(s)
// group from a directory.
type ParsedFileSet struct {
	Name            string
	Attributes      FileAttributes
	FirstCluster    uint32
	DataLength      uint64
	ValidDataLength uint64
	NoFatChain      bool
	Created         time.Time
	LastModified    time.Time
	LastAccessed    time.Time
}

// IsDirectory reports whether the file-set describes a subdirectory.
func (pfs ParsedFileSet) IsDirectory() bool {
	return pfs.Attributes.IsDirectory()
}

// assembleFileSet validates and combines a File primary entry with its
// secondary entries (§4.12). secondaryEntries must be exactly the entries
// immediately following the primary, in on-disk order.
func assembleFileSet(primary *ExfatFileDirectoryEntry, secondaryEntries []DirectoryEntry) (*ParsedFileSet, error) {
	secondaryCount := primary.SecondaryCountRaw

	if secondaryCount < 1 {
		return nil, &FileParseError{Kind: ErrFileParseNoStreamExtension}
	} else if secondaryCount < 2 {
		return nil, &FileParseError{Kind: ErrFileParseNoFileName}
	}

	if len(secondaryEntries) != int(secondaryCount) {
		return nil, &FileParseError{Kind: ErrFileParseWrongFileNameEntries}
	}

	stream, ok := secondaryEntries[0].(*ExfatStreamExtensionDirectoryEntry)
	if !ok {
		return nil, &FileParseError{Kind: ErrFileParseNoStreamExtension}
	}

	if !streamExtensionValid(stream) ||
		(primary.FileAttributes.IsDirectory() && stream.ValidDataLength != stream.DataLength) {
		return nil, &FileParseError{Kind: ErrFileParseInvalidStreamExtension}
	}

	nameEntries := secondaryEntries[1:]

	expectedNameEntries := (int(stream.NameLength) + 14) / 15
	if len(nameEntries) != expectedNameEntries {
		return nil, &FileParseError{Kind: ErrFileParseWrongFileNameEntries}
	}

	name, err := assembleFileName(stream.NameLength, nameEntries)
	if err != nil {
		return nil, err
	}

	return &ParsedFileSet{
		Name:            name,
		Attributes:      primary.FileAttributes,
		FirstCluster:    stream.FirstCluster,
		DataLength:      stream.DataLength,
		ValidDataLength: stream.ValidDataLength,
		NoFatChain:      stream.GeneralSecondaryFlags.NoFatChain(),
		Created:         decodeTimestamp(primary.CreateTimestampRaw, primary.Create10msIncrement, primary.CreateUtcOffset),
		LastModified:    decodeTimestamp(primary.LastModifiedTimestampRaw, primary.LastModified10msIncrement, primary.LastModifiedUtcOffset),
		LastAccessed:    decodeTimestamp(primary.LastAccessedTimestampRaw, 0, primary.LastAccessedUtcOffset),
	}, nil
}

// streamExtensionValid mirrors ClusterAllocation::valid for StreamExtensionEntry:
// the allocation must start at a real heap cluster (FirstCluster >= 2, so an
// empty allocation with no first cluster is rejected too), and a stream
// extension additionally requires the allocation-possible flag, a non-zero
// name length, and a valid length no larger than the allocated length.
func streamExtensionValid(s *ExfatStreamExtensionDirectoryEntry) bool {
	allocationOk := !((s.FirstCluster == 0 && s.DataLength != 0) || s.FirstCluster < 2)

	return allocationOk &&
		s.GeneralSecondaryFlags.IsAllocationPossible() &&
		s.NameLength > 0 &&
		s.ValidDataLength <= s.DataLength
}

// assembleFileName reconstructs a file name from its FileName secondaries.
// Each secondary always carries a fixed 30-byte payload, but only the last
// one is guaranteed to be fully meaningful: it's trimmed to the bytes that
// actually belong to nameLength UTF-16 code units rather than decoded
// whole, which is what lets a name whose length isn't a multiple of 15
// round-trip instead of picking up trailing garbage as extra characters.
func assembleFileName(nameLength uint8, nameEntries []DirectoryEntry) (string, error) {
	remainingChars := int(nameLength)
	var name string

	for _, e := range nameEntries {
		fn, ok := e.(*ExfatFileNameDirectoryEntry)
		if !ok {
			return "", &FileParseError{Kind: ErrFileParseNoFileName}
		}

		if fn.GeneralSecondaryFlags.IsAllocationPossible() {
			return "", &FileParseError{Kind: ErrFileParseInvalidFileName}
		}

		byteLen := 30
		if remaining := 2 * remainingChars; remaining < byteLen {
			byteLen = remaining
		}

		part, ok := utf16DecodeStrict(fn.FileName[:byteLen])
		if !ok {
			return "", &FileParseError{Kind: ErrFileParseInvalidFileName}
		}

		name += part
		remainingChars -= byteLen / 2
	}

	return name, nil
}

// decodeTimestamp applies the UTC-offset encoding (§4.12): when the high bit
// of the offset byte is set, the low 7 bits are a signed two's-complement
// count of 15-minute units; otherwise the timestamp carries no offset.
func decodeTimestamp(raw ExfatTimestamp, tenMsIncrement uint8, utcOffsetByte uint8) time.Time {
	offsetSeconds := 0
	if utcOffsetByte&0x80 != 0 {
		signed := int(utcOffsetByte & 0x7f)
		if utcOffsetByte&0x40 != 0 {
			signed -= 0x80
		}

		offsetSeconds = signed * 15 * 60
	}

	location := time.FixedZone("", offsetSeconds)

	nanos := int(tenMsIncrement) * 10 * int(time.Millisecond)

	return time.Date(raw.Year(), time.Month(raw.Month()), raw.Day(), raw.Hour(), raw.Minute(), raw.Second(), nanos, location)
}
