package exfat

import (
	"encoding/binary"
)

// On-disk directory-entry type bytes (§3 "Directory entries").
const (
	entryTypeEndOfDirectory  = 0x00
	entryTypeInvalid         = 0x80
	entryTypeBitmap          = 0x81
	entryTypeUpcaseTable     = 0x82
	entryTypeVolumeLabel     = 0x83
	entryTypeFile            = 0x85
	entryTypeVolumeGuid      = 0xa0
	entryTypeStreamExtension = 0xc0
	entryTypeFileName        = 0xc1
	entryTypeVendorExtension = 0xe0
	entryTypeVendorAllocation = 0xe1

	// entryTypeVolumeGuidUnused is the "unused" placeholder a formatter
	// writes in the volume-GUID slot when no GUID was supplied:
	// 0xA0 & ^0x80.
	entryTypeVolumeGuidUnused = entryTypeVolumeGuid &^ 0x80
)

// entryIsPrimary reports whether a raw entry-type byte is primary (the 0x40
// bit clear).
func entryIsPrimary(entryType byte) bool {
	return entryType&0x40 == 0
}

// entryIsRegular reports whether a raw entry-type byte is regular (bit 0x80
// set): the entry is neither end-of-directory nor an unused slot.
func entryIsRegular(entryType byte) bool {
	return entryType&0x80 != 0
}

// entryIsUnused reports whether a raw entry-type byte names an unused slot
// (0x01..0x7F).
func entryIsUnused(entryType byte) bool {
	return entryType >= 0x01 && entryType <= 0x7f
}

// directoryEntryChecksum runs the rotate-add checksum (§4.7) over a single
// 32-byte entry, continuing from running. Primary entries (type bit 0x40
// clear) skip bytes 2 and 3, the set-checksum field itself.
func directoryEntryChecksum(entry [32]byte, running uint16) uint16 {
	sum := running

	sum = rotr16(sum, 1) + uint16(entry[0])
	sum = rotr16(sum, 1) + uint16(entry[1])

	start := 2
	if entryIsPrimary(entry[0]) {
		start = 4
	}

	for _, b := range entry[start:] {
		sum = rotr16(sum, 1) + uint16(b)
	}

	return sum
}

func rotr16(v uint16, n uint) uint16 {
	return v>>n | v<<(16-n)
}

// fileSetChecksum runs directoryEntryChecksum across a whole file set
// (primary first, then each secondary in order).
func fileSetChecksum(entries [][32]byte) uint16 {
	var sum uint16
	for _, e := range entries {
		sum = directoryEntryChecksum(e, sum)
	}

	return sum
}

func buildVolumeLabelEntry(label Label) [32]byte {
	var e [32]byte
	e[0] = entryTypeVolumeLabel
	e[1] = label.count
	payload := label.bytes22()
	copy(e[2:24], payload[:])

	return e
}

// buildVolumeGuidEntry builds the volume-GUID entry with its set-checksum
// already computed (§4.6). When guid is nil the slot is written as unused
// (0xA0 & ^0x80) and carries no checksum.
func buildVolumeGuidEntry(guid *[16]byte) [32]byte {
	var e [32]byte

	if guid == nil {
		e[0] = entryTypeVolumeGuidUnused
		return e
	}

	e[0] = entryTypeVolumeGuid
	copy(e[4:20], guid[:])

	checksum := directoryEntryChecksum(e, 0)
	binary.LittleEndian.PutUint16(e[2:4], checksum)

	return e
}

func buildBitmapEntry(firstCluster uint32, dataLen uint64) [32]byte {
	var e [32]byte
	e[0] = entryTypeBitmap
	// flags = 0: only the first allocation bitmap is ever produced.
	binary.LittleEndian.PutUint32(e[20:24], firstCluster)
	binary.LittleEndian.PutUint64(e[24:32], dataLen)

	return e
}

func buildUpcaseTableEntry(firstCluster uint32) [32]byte {
	var e [32]byte
	e[0] = entryTypeUpcaseTable
	binary.LittleEndian.PutUint32(e[4:8], DefaultUpcaseTableChecksum)
	binary.LittleEndian.PutUint32(e[20:24], firstCluster)
	binary.LittleEndian.PutUint64(e[24:32], upcaseTableSizeBytes())

	return e
}
