// This file implements opening an existing volume and walking its root
// directory (§4.11): boot-sector field validation beyond what Parse already
// enforces while decoding, then accumulating the allocation bitmap(s),
// up-case table, volume label and file sets the root directory is allowed to
// carry.

package exfat

import (
	"io"
)

// seekReaderAt adapts an io.ReadSeeker to io.ReaderAt via Seek+Read. Per the
// single-threaded scheduling model (§5), callers don't share a Volume across
// goroutines, so no locking is needed here.
type seekReaderAt struct {
	rs io.ReadSeeker
}

func (s seekReaderAt) ReadAt(buf []byte, offset int64) (int, error) {
	if _, err := s.rs.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	return io.ReadFull(s.rs, buf)
}

// RootEntry is one file or directory found directly in the root directory.
type RootEntry struct {
	ParsedFileSet

	disk io.ReaderAt
	bsh  BootSectorHeader
	fat  Fat
}

// Open returns a reader over the entry's data stream (§4.9), following the
// FAT unless the stream extension set NoFatChain.
func (re RootEntry) Open() (*ClusterChainReader, error) {
	dataLength := re.ValidDataLength

	if re.NoFatChain {
		return NewContiguousClusterChainReader(re.disk, re.bsh, re.FirstCluster, dataLength)
	}

	return NewFatClusterChainReader(re.disk, re.bsh, re.fat, re.FirstCluster, &dataLength)
}

// Volume is an opened, validated exFAT volume (§4.11).
type Volume struct {
	er *ExfatReader

	Label   string
	Entries []RootEntry
}

// OpenVolume validates the boot sector, loads the FAT, and walks the root
// directory of the volume exposed through rs (§4.11).
func OpenVolume(rs io.ReadSeeker) (*Volume, error) {
	er := NewExfatReader(rs)

	if err := er.Parse(); err != nil {
		return nil, err
	}

	bsh := er.ActiveBootRegion()

	if err := validateBootSectorHeader(bsh); err != nil {
		return nil, err
	}

	v := &Volume{er: er}

	if err := v.walkRoot(seekReaderAt{rs: rs}); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *Volume) walkRoot(disk io.ReaderAt) error {
	bsh := v.er.ActiveBootRegion()
	fat := v.er.ActiveFat()

	en := NewExfatNavigator(v.er, bsh.FirstClusterOfRootDirectory)

	var bitmapsSeen int
	var bitmapIndexSeen [2]bool
	var upcaseSeen bool
	var labelSeen bool

	cb := func(primaryEntry DirectoryEntry, secondaryEntries []DirectoryEntry) error {
		switch de := primaryEntry.(type) {
		case *ExfatAllocationBitmapDirectoryEntry:
			index := int(de.BitmapFlags & 1)

			if bitmapsSeen >= 2 || bitmapIndexSeen[index] {
				return rootErrorf(ErrRootInvalidNumberOfAllocationBitmaps, bitmapsSeen+1)
			}

			bitmapIndexSeen[index] = true
			bitmapsSeen++

			return nil

		case *ExfatUpcaseTableDirectoryEntry:
			if upcaseSeen {
				return rootErrorf(ErrRootInvalidNumberOfUpcaseTables, nil)
			}

			upcaseSeen = true

			return nil

		case *ExfatVolumeLabelDirectoryEntry:
			if labelSeen {
				return rootErrorf(ErrRootInvalidNumberOfVolumeLabels, nil)
			}

			if de.CharacterCount > 11 {
				return rootErrorf(ErrRootInvalidVolumeLabel, de.CharacterCount)
			}

			labelSeen = true
			v.Label = de.Label()

			return nil

		case *ExfatFileDirectoryEntry:
			pfs, err := assembleFileSet(de, secondaryEntries)
			if err != nil {
				return err
			}

			v.Entries = append(v.Entries, RootEntry{
				ParsedFileSet: *pfs,
				disk:          disk,
				bsh:           bsh,
				fat:           fat,
			})

			return nil

		default:
			return rootErrorf(ErrRootUnexpectedRootEntry, primaryEntry.TypeName())
		}
	}

	if _, _, err := en.EnumerateDirectoryEntries(cb); err != nil {
		return err
	}

	if !upcaseSeen {
		return rootErrorf(ErrRootInvalidNumberOfUpcaseTables, 0)
	}

	wantBitmaps := int(bsh.NumberOfFats)
	if bitmapsSeen != wantBitmaps {
		return rootErrorf(ErrRootInvalidNumberOfAllocationBitmaps, bitmapsSeen)
	}

	return nil
}
