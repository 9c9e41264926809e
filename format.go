// This file implements the formatter: it drives the geometry solver and the
// boot-region, FAT, bitmap, up-case table and root-directory writers to emit
// a complete exFAT volume image (§4.2, §L8).

package exfat

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/go-restruct/restruct"
)

const (
	extendedBootSectorCount = 8
	bootRegionSectorCount   = 12
	mainBootOffsetSectors   = 0
	backupBootOffsetSectors = 12
)

// WriteSeeker is the write-time block I/O contract the formatter consumes
// (§6 "Write-seek"): sequential writes with the ability to seek to an
// absolute offset before each one.
type WriteSeeker interface {
	io.Writer
	io.Seeker
}

// FormatResult reports the geometry and bookkeeping the caller may want after
// a successful Format call.
type FormatResult struct {
	ClusterCountUsed uint32
	ClusterCount     uint32
	ClusterSize      uint32
	FirstClusterOfRootDirectory uint32
	BitmapLengthBytes uint64
	UpcaseTableChecksum uint32
}

// Format writes a complete exFAT volume image to w (§4.2). w must already
// have opts.DevSize bytes available; Format never grows or truncates it.
func Format(w WriteSeeker, opts FormatOptions) (*FormatResult, error) {
	g, err := solveGeometry(opts)
	if err != nil {
		return nil, err
	}

	serial, err := newVolumeSerialNumber()
	if err != nil {
		return nil, err
	}

	zeroLength := g.rootOffsetBytes + uint64(g.clusterSize)
	if opts.FullFormat {
		zeroLength = opts.DevSize
	}

	if err := zeroRegion(w, zeroLength); err != nil {
		return nil, err
	}

	bsh := buildBootSectorHeader(g, serial)

	mainRegion, _, err := encodeBootRegion(bsh, g.bytesPerSector)
	if err != nil {
		return nil, err
	}

	if err := writeAt(w, int64(mainBootOffsetSectors)*int64(g.bytesPerSector), mainRegion); err != nil {
		return nil, err
	}

	if err := writeAt(w, int64(backupBootOffsetSectors)*int64(g.bytesPerSector), mainRegion); err != nil {
		return nil, err
	}

	clusterCountUsed, err := writeFAT(w, g)
	if err != nil {
		return nil, err
	}

	if err := writeBitmap(w, g, clusterCountUsed); err != nil {
		return nil, err
	}

	if err := writeAt(w, int64(g.uptableOffsetBytes), DefaultUpcaseTable); err != nil {
		return nil, err
	}

	if err := writeRootDirectory(w, g, opts); err != nil {
		return nil, err
	}

	return &FormatResult{
		ClusterCountUsed:            clusterCountUsed,
		ClusterCount:                g.clusterCount,
		ClusterSize:                 g.clusterSize,
		FirstClusterOfRootDirectory: g.firstClusterOfRootDirectory,
		BitmapLengthBytes:           g.bitmapLengthBytes,
		UpcaseTableChecksum:         DefaultUpcaseTableChecksum,
	}, nil
}

func newVolumeSerialNumber() (uint32, error) {
	return uint32(time.Now().Unix()), nil
}

func writeAt(w WriteSeeker, offset int64, data []byte) error {
	if _, err := w.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	_, err := w.Write(data)
	return err
}

func zeroRegion(w WriteSeeker, length uint64) error {
	if err := writeAt(w, 0, nil); err != nil {
		return err
	}

	const chunkSize = 1 * MB
	chunk := make([]byte, chunkSize)

	remaining := length
	for remaining > 0 {
		n := uint64(chunkSize)
		if remaining < n {
			n = remaining
		}

		if _, err := w.Write(chunk[:n]); err != nil {
			return err
		}

		remaining -= n
	}

	return nil
}

func buildBootSectorHeader(g *geometry, serial uint32) BootSectorHeader {
	var bsh BootSectorHeader

	copy(bsh.JumpBoot[:], requiredJumpBootSignature)
	copy(bsh.FileSystemName[:], requiredFileSystemName)

	bsh.PartitionOffset = g.partitionOffset
	bsh.VolumeLength = g.volumeLength
	bsh.FatOffset = uint32(g.fatOffsetBytes / uint64(g.bytesPerSector))
	bsh.FatLength = uint32(g.fatLengthBytes / uint64(g.bytesPerSector))
	bsh.ClusterHeapOffset = uint32(g.clusterHeapOffsetBytes / uint64(g.bytesPerSector))
	bsh.ClusterCount = g.clusterCount
	bsh.FirstClusterOfRootDirectory = g.firstClusterOfRootDirectory
	bsh.VolumeSerialNumber = serial
	bsh.FileSystemRevision = [2]uint8{0, 1}
	bsh.VolumeFlags = 0
	bsh.BytesPerSectorShift = g.bytesPerSectorShift
	bsh.SectorsPerClusterShift = g.sectorsPerClusterShift
	bsh.NumberOfFats = g.numberOfFats
	bsh.DriveSelect = driveSelect
	bsh.PercentInUse = percentInUseUnknown

	for i := range bsh.BootCode {
		bsh.BootCode[i] = 0xf4
	}

	bsh.BootSignature = requiredBootSignature

	return bsh
}

// encodeBootRegion packs bsh and the fixed sectors that follow it (extended
// boot sectors, OEM, reserved, checksum) into one bootRegionSectorCount *
// bytesPerSector buffer (§4.3).
func encodeBootRegion(bsh BootSectorHeader, bytesPerSector uint16) ([]byte, uint32, error) {
	sectorSize := int(bytesPerSector)
	region := make([]byte, bootRegionSectorCount*sectorSize)

	raw, err := restruct.Pack(defaultEncoding, &bsh)
	if err != nil {
		return nil, 0, err
	}

	copy(region, raw)

	for i := 0; i < extendedBootSectorCount; i++ {
		off := (1 + i) * sectorSize
		binary.LittleEndian.PutUint32(region[off+sectorSize-4:], requiredExtendedBootSignature)
	}

	// Sectors 9 (OEM) and 10 (reserved) stay zero.

	checksumData := region[:11*sectorSize]
	skip := bootSectorChecksumSkip()
	checksum := bootRegionChecksum(checksumData, skip)

	checksumSector := region[11*sectorSize : 12*sectorSize]
	var checksumBytes [4]byte
	binary.LittleEndian.PutUint32(checksumBytes[:], checksum)

	for off := 0; off+4 <= len(checksumSector); off += 4 {
		copy(checksumSector[off:off+4], checksumBytes[:])
	}

	return region, checksum, nil
}

func writeFAT(w WriteSeeker, g *geometry) (uint32, error) {
	writeEntry := func(index uint64, value uint32) error {
		offset := int64(g.fatOffsetBytes) + int64(index)*4
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], value)
		return writeAt(w, offset, buf[:])
	}

	if err := writeEntry(0, fatMediaTypeEntry); err != nil {
		return 0, err
	}

	if err := writeEntry(1, fatEofEntry); err != nil {
		return 0, err
	}

	writeChain := func(cluster uint32, lengthBytes uint64) (uint32, error) {
		clusters := uint32((lengthBytes + uint64(g.clusterSize) - 1) / uint64(g.clusterSize))
		if clusters == 0 {
			clusters = 1
		}

		count := cluster + clusters

		for c := cluster; c < count-1; c++ {
			if err := writeEntry(uint64(c), c+1); err != nil {
				return 0, err
			}
		}

		if err := writeEntry(uint64(count-1), fatEofEntry); err != nil {
			return 0, err
		}

		return count, nil
	}

	idx := uint32(firstUsableClusterIndex)

	var err error
	idx, err = writeChain(idx, g.bitmapLengthBytes)
	if err != nil {
		return 0, err
	}

	idx, err = writeChain(idx, upcaseTableSizeBytes())
	if err != nil {
		return 0, err
	}

	idx, err = writeChain(idx, uint64(g.clusterSize))
	if err != nil {
		return 0, err
	}

	return idx - firstUsableClusterIndex, nil
}

func writeBitmap(w WriteSeeker, g *geometry, clusterCountUsed uint32) error {
	raw := buildAllocationBitmap(clusterCountUsed, g.bitmapLengthBytes)
	padded := alignUp(uint64(len(raw)), uint64(g.clusterSize))

	if uint64(len(raw)) < padded {
		grown := make([]byte, padded)
		copy(grown, raw)
		raw = grown
	}

	return writeAt(w, int64(g.bitmapOffsetBytes), raw)
}

func writeRootDirectory(w WriteSeeker, g *geometry, opts FormatOptions) error {
	label := buildVolumeLabelEntry(opts.Label)
	guid := buildVolumeGuidEntry(opts.GUID)
	bm := buildBitmapEntry(firstUsableClusterIndex, g.bitmapLengthBytes)
	upcase := buildUpcaseTableEntry(g.uptableStartCluster)

	buf := make([]byte, 0, 4*32)
	for _, e := range [][32]byte{label, guid, bm, upcase} {
		buf = append(buf, e[:]...)
	}

	return writeAt(w, int64(g.rootOffsetBytes), buf)
}
