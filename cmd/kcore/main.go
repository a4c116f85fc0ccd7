// Command kcore boots a kernel.Kernel_t over a disk image built by
// mkdisk, optionally execs a program from it, then drives the
// scheduler for a bounded number of simulated timer ticks — the
// hosted-on-Go-runtime stand-in for the bootloader handoff and idle
// loop a real x86 entry point would perform.
package main

import (
	"flag"
	"fmt"
	"os"

	"blkdev"
	"defs"
	"kernel"
)

type stdioConsole struct{}

func (stdioConsole) Read(buf []uint8) (int, defs.Err_t) {
	n, err := os.Stdin.Read(buf)
	if err != nil {
		return n, defs.EIO
	}
	return n, 0
}

func (stdioConsole) Write(buf []uint8) (int, defs.Err_t) {
	n, err := os.Stdout.Write(buf)
	if err != nil {
		return n, defs.EIO
	}
	return n, 0
}

func main() {
	diskPath := flag.String("disk", "disk.img", "FAT16 disk image built by mkdisk")
	progPath := flag.String("run", "", "path within the image of a program to exec at boot")
	argv := flag.String("argv", "", "argv string passed to the exec'd program")
	ticks := flag.Int("ticks", 2000, "number of simulated 100Hz timer ticks to run")
	flag.Parse()

	fi, statErr := os.Stat(*diskPath)
	if statErr != nil {
		fmt.Printf("kcore: %v\n", statErr)
		os.Exit(1)
	}
	nsectors := uint32(fi.Size() / blkdev.SectorSize)

	dev, err := blkdev.OpenFileDisk(*diskPath, nsectors)
	if err != nil {
		fmt.Printf("kcore: opening %q: %v\n", *diskPath, err)
		os.Exit(1)
	}
	defer dev.Close()

	k, kerr := kernel.Boot(dev, stdioConsole{})
	if kerr != 0 {
		fmt.Printf("kcore: boot: %v\n", kerr)
		os.Exit(1)
	}
	fmt.Printf("kcore: booted over %q (%d sectors)\n", *diskPath, nsectors)

	if *progPath != "" {
		pid, eerr := k.Exec(*progPath, *argv)
		if eerr != 0 {
			fmt.Printf("kcore: exec %q: %v\n", *progPath, eerr)
			os.Exit(1)
		}
		fmt.Printf("kcore: launched %q as pid %d\n", *progPath, pid)
	}

	for i := 0; i < *ticks; i++ {
		k.TimerTick()
		if err := k.YieldPoint(); err != 0 {
			fmt.Printf("kcore: yield point: %v\n", err)
			break
		}
	}

	fmt.Printf("kcore: uptime %dms\n", k.Uptime())
	fmt.Println(k.Syscall.MemStats())
}
