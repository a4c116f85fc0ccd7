package blkdev

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestMemDiskReadWrite(t *testing.T) {
	d := MkMemDisk(4)
	pattern := make([]uint8, SectorSize)
	for i := range pattern {
		pattern[i] = uint8(i)
	}

	if e := d.Write(1, 1, pattern); e != 0 {
		t.Fatalf("write failed: %v", e)
	}
	out := make([]uint8, SectorSize)
	if e := d.Read(1, 1, out); e != 0 {
		t.Fatalf("read failed: %v", e)
	}
	if !bytes.Equal(out, pattern) {
		t.Fatal("read does not match written pattern")
	}
}

func TestMemDiskBoundsChecked(t *testing.T) {
	d := MkMemDisk(2)
	buf := make([]uint8, SectorSize)
	if e := d.Read(5, 1, buf); e == 0 {
		t.Fatal("expected out-of-range read to fail")
	}
	if e := d.Write(1, 5, buf); e == 0 {
		t.Fatal("expected out-of-range write to fail")
	}
}

func TestFileDiskRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := OpenFileDisk(path, 8)
	if err != nil {
		t.Fatalf("OpenFileDisk: %v", err)
	}
	defer d.Close()

	pattern := bytes.Repeat([]uint8{0xAB}, SectorSize*2)
	if e := d.Write(2, 2, pattern); e != 0 {
		t.Fatalf("write failed: %v", e)
	}
	if e := d.Sync(); e != 0 {
		t.Fatalf("sync failed: %v", e)
	}
	out := make([]uint8, SectorSize*2)
	if e := d.Read(2, 2, out); e != 0 {
		t.Fatalf("read failed: %v", e)
	}
	if !bytes.Equal(out, pattern) {
		t.Fatal("file-backed disk did not round-trip data")
	}
}

func TestTableRegisterGet(t *testing.T) {
	tbl := MkTable()
	d := MkMemDisk(1)
	h := tbl.Register(d)

	got, ok := tbl.Get(h)
	if !ok || got != Device_i(d) {
		t.Fatal("table did not return the registered device")
	}
	if _, ok := tbl.Get(h + 1); ok {
		t.Fatal("expected out-of-range handle to fail")
	}
}
