//go:build !linux

package vrb

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createBacking obtains a page-backed file of the given size to serve as
// the VRB's shared backing storage. Outside Linux there is no memfd, so a
// temp file is created and unlinked immediately afterwards — the descriptor
// stays valid and the name never becomes visible to other processes for
// long, mirroring the reference implementation's /tmp fallback path.
func createBacking(size int64) (*os.File, error) {
	file, err := os.CreateTemp("", "beamdump-vrb-*")
	if err != nil {
		return nil, fmt.Errorf("creating backing temp file: %w", err)
	}
	name := file.Name()
	if err := file.Truncate(size); err != nil {
		file.Close()
		os.Remove(name)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	if err := os.Remove(name); err != nil {
		file.Close()
		return nil, fmt.Errorf("unlink: %w", err)
	}
	return file, nil
}

func doubleMap(file *os.File, size int) (buf []byte, base uintptr, err error) {
	fd := int(file.Fd())

	baseAddr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		0,
		uintptr(2*size),
		unix.PROT_NONE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
		^uintptr(0),
		0,
	)
	if errno != 0 {
		return nil, 0, fmt.Errorf("reserving %d bytes of virtual range: %w", 2*size, errno)
	}

	one, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		baseAddr,
		uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_FIXED|unix.MAP_SHARED,
		uintptr(fd),
		0,
	)
	if errno != 0 || one != baseAddr {
		unix.Syscall(unix.SYS_MUNMAP, baseAddr, uintptr(2*size), 0)
		return nil, 0, fmt.Errorf("mapping first half: %w", errno)
	}

	two, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		baseAddr+uintptr(size),
		uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_FIXED|unix.MAP_SHARED,
		uintptr(fd),
		0,
	)
	if errno != 0 || two != baseAddr+uintptr(size) {
		unix.Syscall(unix.SYS_MUNMAP, baseAddr, uintptr(2*size), 0)
		return nil, 0, fmt.Errorf("mapping second half: %w", errno)
	}

	return unsafeSlice(baseAddr, 2*size), baseAddr, nil
}
