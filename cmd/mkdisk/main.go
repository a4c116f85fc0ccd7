// Command mkdisk builds a bootable FAT16 disk image: an MBR, one BPB
// sector, two mirrored FAT copies, and a root directory, optionally
// populated from a host skeleton directory — the same two-step
// "format, then copy files in" shape as biscuit's mkfs tool, adapted
// from its ufs/ustr-based image format to this core's FAT16 layout.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blkdev"
	"cache"
	"fat16"
	"util"
)

const (
	bytesPerSector    = blkdev.SectorSize
	partitionLba      = 1
	reservedSectors   = 1
	numFats           = 2
	sectorsPerCluster = 1
	rootDirEntries    = 512
)

func main() {
	out := flag.String("o", "disk.img", "output image path")
	sectors := flag.Uint("sectors", 16384, "total sectors in the image")
	skel := flag.String("skel", "", "host directory to copy into the image root (optional)")
	flag.Parse()

	totalSectors := uint32(*sectors)
	dev, err := blkdev.OpenFileDisk(*out, totalSectors)
	if err != nil {
		fmt.Printf("mkdisk: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	if err := format(dev, totalSectors); err != nil {
		fmt.Printf("mkdisk: format: %v\n", err)
		os.Exit(1)
	}

	c := cache.MkBlockCache(dev)
	fs, ferr := fat16.Mount(c)
	if ferr != 0 {
		fmt.Printf("mkdisk: mount after format: %v\n", ferr)
		os.Exit(1)
	}

	if *skel != "" {
		addfiles(fs, *skel)
	}

	if ferr := c.FlushAll(); ferr != 0 {
		fmt.Printf("mkdisk: flush: %v\n", ferr)
		os.Exit(1)
	}
	fmt.Printf("mkdisk: wrote %s (%d sectors)\n", *out, totalSectors)
}

// format writes the MBR, the BPB/boot sector, and zeroes the FAT and
// root directory regions so every cluster starts free and every
// directory slot starts empty.
func format(dev *blkdev.FileDisk_t, totalSectors uint32) error {
	mbr := make([]uint8, bytesPerSector)
	util.Writen16(mbr, 510, 0xAA55)
	mbr[446+4] = 0x06 // partition type: FAT16
	util.Writen32(mbr, 446+8, partitionLba)
	if e := dev.Write(0, 1, mbr); e != 0 {
		return fmt.Errorf("write mbr: %v", e)
	}

	sectorsPerFat := util.Ceildiv(totalSectors*2, bytesPerSector)
	rootDirSectors := util.Ceildiv(uint32(rootDirEntries*32), bytesPerSector)
	fatStart := uint32(partitionLba + reservedSectors)
	rootDirStart := fatStart + numFats*sectorsPerFat
	dataStart := rootDirStart + rootDirSectors
	if dataStart >= totalSectors {
		return fmt.Errorf("image too small: need at least %d sectors, have %d", dataStart+1, totalSectors)
	}

	boot := make([]uint8, bytesPerSector)
	util.Writen16(boot, 11, bytesPerSector)
	boot[13] = sectorsPerCluster
	util.Writen16(boot, 14, reservedSectors)
	boot[16] = numFats
	util.Writen16(boot, 17, rootDirEntries)
	if totalSectors < 1<<16 {
		util.Writen16(boot, 19, uint16(totalSectors))
	} else {
		util.Writen32(boot, 32, totalSectors)
	}
	util.Writen16(boot, 22, uint16(sectorsPerFat))
	if e := dev.Write(partitionLba, 1, boot); e != 0 {
		return fmt.Errorf("write boot sector: %v", e)
	}

	zero := make([]uint8, bytesPerSector)
	for lba := fatStart; lba < dataStart; lba++ {
		if e := dev.Write(lba, 1, zero); e != 0 {
			return fmt.Errorf("zero lba %d: %v", lba, e)
		}
	}
	return nil
}

// addfiles walks skeldir one level deep — matching fat16's
// single-subdirectory-level support — creating a directory for each
// immediate child directory and a file for everything else.
func addfiles(fs *fat16.Fat16_t, skeldir string) {
	entries, err := os.ReadDir(skeldir)
	if err != nil {
		fmt.Printf("mkdisk: reading %q: %v\n", skeldir, err)
		return
	}
	for _, e := range entries {
		addEntry(fs, skeldir, "", e)
	}
}

func addEntry(fs *fat16.Fat16_t, hostDir string, imageDir string, e os.DirEntry) {
	imagePath := strings.TrimPrefix(imageDir+"/"+e.Name(), "/")
	hostPath := filepath.Join(hostDir, e.Name())

	if e.IsDir() {
		if imageDir != "" {
			fmt.Printf("mkdisk: skipping %q, deeper than one directory level\n", hostPath)
			return
		}
		if err := fs.Mkdir(e.Name()); err != 0 {
			fmt.Printf("mkdisk: mkdir %q: %v\n", e.Name(), err)
			return
		}
		sub, rerr := os.ReadDir(hostPath)
		if rerr != nil {
			fmt.Printf("mkdisk: reading %q: %v\n", hostPath, rerr)
			return
		}
		for _, child := range sub {
			addEntry(fs, hostPath, e.Name(), child)
		}
		return
	}

	data, rerr := os.ReadFile(hostPath)
	if rerr != nil {
		fmt.Printf("mkdisk: reading %q: %v\n", hostPath, rerr)
		return
	}
	if err := fs.WriteFile(imagePath, data); err != 0 {
		fmt.Printf("mkdisk: writing %q: %v\n", imagePath, err)
	}
}
