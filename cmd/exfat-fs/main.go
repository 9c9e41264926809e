// Command exfat-fs formats a file as an exFAT volume or lists the root
// directory of an existing one (§6 "CLI surface").
package main

import (
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"
	flags "github.com/jessevdk/go-flags"

	"github.com/hannahfluch/exfat-fs"
)

type formatCommand struct {
	BytesPerSector uint16 `long:"bytes-per-sector" default:"512" description:"sector size: 512, 1024, 2048 or 4096"`
	Label          string `long:"label" description:"volume label"`
	GUID           bool   `long:"guid" description:"generate a random volume GUID instead of marking it unused"`
	FullFormat     bool   `long:"full-format" description:"zero the entire device, not just the metadata region"`
	NoPackBitmap   bool   `long:"no-pack-bitmap" description:"never pack the allocation bitmap into the FAT/heap alignment gap"`
	Args           struct {
		Path string `positional-arg-name:"path" required:"true"`
	} `positional-args:"yes"`
}

func (c *formatCommand) Execute(_ []string) error {
	f, err := os.OpenFile(c.Args.Path, os.O_RDWR, 0)
	if err != nil {
		return err
	}

	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	opts := exfat.DefaultFormatOptions(uint64(info.Size()), c.BytesPerSector)
	opts.FullFormat = c.FullFormat
	opts.PackBitmap = !c.NoPackBitmap

	if c.Label != "" {
		label, ok := exfat.NewLabel(c.Label)
		if !ok {
			return fmt.Errorf("label too long: %q", c.Label)
		}

		opts.Label = label
	}

	if c.GUID {
		id := uuid.New()
		raw := [16]byte(id)
		opts.GUID = &raw
	}

	result, err := exfat.Format(f, opts)
	if err != nil {
		return err
	}

	fmt.Printf("formatted %s: %s (%s in use), cluster size %s, root at cluster %d\n",
		c.Args.Path,
		humanize.Bytes(uint64(result.ClusterCount)*uint64(result.ClusterSize)),
		humanize.Bytes(uint64(result.ClusterCountUsed)*uint64(result.ClusterSize)),
		humanize.Bytes(uint64(result.ClusterSize)),
		result.FirstClusterOfRootDirectory)

	return nil
}

type openCommand struct {
	Args struct {
		Path string `positional-arg-name:"path" required:"true"`
	} `positional-args:"yes"`
}

func (c *openCommand) Execute(_ []string) error {
	f, err := os.Open(c.Args.Path)
	if err != nil {
		return err
	}

	defer f.Close()

	volume, err := exfat.OpenVolume(f)
	if err != nil {
		return err
	}

	fmt.Printf("label: %q\n", volume.Label)

	for _, entry := range volume.Entries {
		kind := "file"
		if entry.IsDirectory() {
			kind = "dir"
		}

		fmt.Printf("%-4s %10s  %s\n", kind, humanize.Bytes(entry.DataLength), entry.Name)
	}

	return nil
}

func main() {
	parser := flags.NewParser(nil, flags.Default)

	if _, err := parser.AddCommand("format", "Format a device as exFAT", "", &formatCommand{}); err != nil {
		panic(err)
	}

	if _, err := parser.AddCommand("open", "List the root directory of an exFAT volume", "", &openCommand{}); err != nil {
		panic(err)
	}

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
