package fat16

import (
	"bytes"
	"testing"

	"blkdev"
	"cache"
	"util"
)

// buildDisk constructs a minimal FAT16 disk image in memory: 1 MBR
// sector, a 1-sector boot sector, two 1-sector FAT copies, a 1-sector
// 16-entry root directory, and 59 one-sector clusters of data.
func buildDisk(t *testing.T) *blkdev.MemDisk_t {
	t.Helper()
	const totalSectors = 64
	dev := blkdev.MkMemDisk(totalSectors)

	mbr := make([]uint8, blkdev.SectorSize)
	util.Writen16(mbr, 510, 0xAA55)
	mbr[446+4] = 0x06
	util.Writen32(mbr, 446+8, 1)
	if e := dev.Write(0, 1, mbr); e != 0 {
		t.Fatalf("write mbr: %v", e)
	}

	boot := make([]uint8, blkdev.SectorSize)
	util.Writen16(boot, 11, 512)
	boot[13] = 1 // sectors per cluster
	util.Writen16(boot, 14, 1)
	boot[16] = 2 // num fats
	util.Writen16(boot, 17, 16)
	util.Writen16(boot, 19, totalSectors)
	util.Writen16(boot, 22, 1)
	if e := dev.Write(1, 1, boot); e != 0 {
		t.Fatalf("write boot sector: %v", e)
	}

	zero := make([]uint8, blkdev.SectorSize)
	for lba := uint32(2); lba < totalSectors; lba++ {
		dev.Write(lba, 1, zero)
	}

	return dev
}

func mount(t *testing.T) *Fat16_t {
	t.Helper()
	dev := buildDisk(t)
	c := cache.MkBlockCache(dev)
	f, err := Mount(c)
	if err != 0 {
		t.Fatalf("mount failed: %v", err)
	}
	return f
}

func TestMountDerivesGeometry(t *testing.T) {
	f := mount(t)
	if f.fatStart != 2 {
		t.Errorf("fat_start = %d, want 2", f.fatStart)
	}
	if f.rootDirStart != 4 {
		t.Errorf("root_dir_start = %d, want 4", f.rootDirStart)
	}
	if f.dataStart != 5 {
		t.Errorf("data_start = %d, want 5", f.dataStart)
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	f := mount(t)
	payload := make([]uint8, 1200)
	for i := range payload {
		payload[i] = uint8(i % 251)
	}

	if err := f.WriteFile("A.BIN", payload); err != 0 {
		t.Fatalf("write_file failed: %v", err)
	}

	h, err := f.Open("a.bin")
	if err != 0 {
		t.Fatalf("open failed: %v", err)
	}
	out := make([]uint8, len(payload))
	n, err := f.Read(h, out, len(out))
	if err != 0 {
		t.Fatalf("read failed: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("read %d bytes, want %d", n, len(payload))
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("readback does not match written payload")
	}
	f.Close(h)
}

func TestDeleteFreesChain(t *testing.T) {
	f := mount(t)
	f.WriteFile("B.BIN", bytes.Repeat([]uint8{7}, 600))

	entries, _ := f.ListRoot()
	if len(entries) != 1 {
		t.Fatalf("expected 1 root entry after write, got %d", len(entries))
	}

	if err := f.Delete("b.bin"); err != 0 {
		t.Fatalf("delete failed: %v", err)
	}
	entries, _ = f.ListRoot()
	if len(entries) != 0 {
		t.Fatalf("expected 0 root entries after delete, got %d", len(entries))
	}

	report, err := f.Fsck()
	if err != 0 {
		t.Fatalf("fsck failed: %v", err)
	}
	if report.ClustersInUse != 0 {
		t.Fatalf("expected delete to have freed every cluster, got %d in use", report.ClustersInUse)
	}
}

func TestMkdirAndEnumerate(t *testing.T) {
	f := mount(t)
	if err := f.Mkdir("SUB"); err != 0 {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := f.WriteFile("SUB/C.TXT", []uint8("hello")); err != 0 {
		t.Fatalf("write into subdir failed: %v", err)
	}

	var names []string
	f.EnumerateSubdir("sub", func(d Dirent_t) { names = append(names, d.Name) })
	if len(names) != 1 || names[0] != "c.txt" {
		t.Fatalf("unexpected subdir listing: %v", names)
	}
}

func TestWriteFileOverwritesAndFreesOldChain(t *testing.T) {
	f := mount(t)
	f.WriteFile("D.BIN", bytes.Repeat([]uint8{1}, 1500))
	report1, _ := f.Fsck()

	f.WriteFile("D.BIN", bytes.Repeat([]uint8{2}, 600))
	report2, _ := f.Fsck()

	if report2.ClustersInUse >= report1.ClustersInUse {
		t.Fatalf("expected overwrite to shrink cluster usage: before=%d after=%d",
			report1.ClustersInUse, report2.ClustersInUse)
	}
}
