package exfat

import (
	"fmt"
)

// GeometryError describes a failure encountered while solving the volume
// geometry, before any byte has been written to the device.
type GeometryError struct {
	Kind  string
	Value interface{}
}

func (e *GeometryError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("exfat: geometry: %s", e.Kind)
	}

	return fmt.Sprintf("exfat: geometry: %s: %v", e.Kind, e.Value)
}

func geometryErrorf(kind string, value interface{}) error {
	return &GeometryError{Kind: kind, Value: value}
}

// Geometry error kinds, naming the solver's rejection reasons; callers should
// compare against these with errors.As/GeometryError.Kind rather than
// string-matching Error(). ErrInvalidNumberOfFats is raised as a
// BootValidationError kind by validateBootSectorHeader, not by the solver;
// ErrInvalidFileSize and ErrNoSerial are not raised anywhere in this package.
const (
	ErrInvalidBytesPerSector = "InvalidBytesPerSector"
	ErrInvalidSize           = "InvalidSize"
	ErrInvalidPartitionOffset = "InvalidPartitionOffset"
	ErrInvalidClusterSize    = "InvalidClusterSize"
	ErrBoundaryAlignTooBig   = "BoundaryAlignTooBig"
	ErrCannotPackBitmap      = "CannotPackBitmap"
	ErrInvalidFileSize       = "InvalidFileSize"
	ErrNoSerial              = "NoSerial"
	ErrInvalidNumberOfFats   = "InvalidNumberOfFats"
)

// BootValidationError describes a boot-sector field that failed validation
// when opening an existing volume.
type BootValidationError struct {
	Kind  string
	Value interface{}
}

func (e *BootValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("exfat: boot-sector: %s", e.Kind)
	}

	return fmt.Sprintf("exfat: boot-sector: %s: %v", e.Kind, e.Value)
}

func bootValidationErrorf(kind string, value interface{}) error {
	return &BootValidationError{Kind: kind, Value: value}
}

// Boot-sector validation error kinds (exFAT §4.11 step 2).
const (
	ErrWrongFs                         = "WrongFs"
	ErrInvalidBytesPerSectorShift      = "InvalidBytesPerSectorShift"
	ErrInvalidSectorsPerClusterShift   = "InvalidSectorsPerClusterShift"
	ErrInvalidRootDirectoryClusterIndex = "InvalidRootDirectoryClusterIndex"
	ErrChecksumMismatch                = "ChecksumMismatch"
)

// FatLoadError describes a failure locating or reading the FAT at open time.
type FatLoadError struct {
	Kind  string
	Inner error
}

func (e *FatLoadError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("exfat: fat-load: %s: %v", e.Kind, e.Inner)
	}

	return fmt.Sprintf("exfat: fat-load: %s", e.Kind)
}

func (e *FatLoadError) Unwrap() error {
	return e.Inner
}

const (
	ErrFatLoadInvalidOffset = "InvalidOffset"
	ErrFatLoadReadFailed    = "ReadFailed"
)

// ClusterChainError describes a failure constructing a cluster-chain reader.
type ClusterChainError struct {
	Kind string
}

func (e *ClusterChainError) Error() string {
	return fmt.Sprintf("exfat: cluster-chain: %s", e.Kind)
}

const (
	ErrClusterChainInvalidFirstCluster = "InvalidFirstCluster"
	ErrClusterChainInvalidDataLength   = "InvalidDataLength"
)

// EntryReaderError describes a failure reading a 32-byte directory entry.
type EntryReaderError struct {
	Kind    string
	Index   int
	Cluster uint32
	Inner   error
}

func (e *EntryReaderError) Error() string {
	if e.Kind == ErrEntryReaderReadFailed {
		return fmt.Sprintf("exfat: entry-reader: read failed at index (%d) of cluster (%d): %v", e.Index, e.Cluster, e.Inner)
	}

	return fmt.Sprintf("exfat: entry-reader: %s: %v", e.Kind, e.Inner)
}

func (e *EntryReaderError) Unwrap() error {
	return e.Inner
}

const (
	ErrEntryReaderReadFailed = "ReadFailed"
	ErrEntryReaderEntry      = "Entry"
)

// RootError describes a failure validating the structure of the root
// directory while walking it.
type RootError struct {
	Kind  string
	Value interface{}
}

func (e *RootError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("exfat: root: %s", e.Kind)
	}

	return fmt.Sprintf("exfat: root: %s: %v", e.Kind, e.Value)
}

func rootErrorf(kind string, value interface{}) error {
	return &RootError{Kind: kind, Value: value}
}

const (
	ErrRootEntryNotPrimary                   = "EntryNotPrimary"
	ErrRootInvalidNumberOfAllocationBitmaps  = "InvalidNumberOfAllocationBitmaps"
	ErrRootInvalidAllocationBitmap           = "InvalidAllocationBitmap"
	ErrRootInvalidNumberOfUpcaseTables       = "InvalidNumberOfUpcaseTables"
	ErrRootInvalidUpcaseTable                = "InvalidUpcaseTable"
	ErrRootInvalidNumberOfVolumeLabels       = "InvalidNumberOfVolumeLabels"
	ErrRootInvalidVolumeLabel                = "InvalidVolumeLabel"
	ErrRootUnexpectedRootEntry               = "UnexpectedRootEntry"
)

// FileParseError describes a failure assembling a file set (File +
// StreamExtension + FileName entries) while walking a directory.
type FileParseError struct {
	Kind string
}

func (e *FileParseError) Error() string {
	return fmt.Sprintf("exfat: file-parse: %s", e.Kind)
}

const (
	ErrFileParseNoStreamExtension     = "NoStreamExtension"
	ErrFileParseNoFileName            = "NoFileName"
	ErrFileParseInvalidStreamExtension = "InvalidStreamExtension"
	ErrFileParseWrongFileNameEntries  = "WrongFileNameEntries"
	ErrFileParseInvalidFileName       = "InvalidFileName"
)
