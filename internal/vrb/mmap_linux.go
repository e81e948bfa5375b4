//go:build linux

package vrb

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createBacking obtains an anonymous, unlinked, page-backed file of the
// given size to serve as the VRB's shared backing storage. On Linux this is
// a memfd; it never touches the filesystem.
func createBacking(size int64) (*os.File, error) {
	fd, err := unix.MemfdCreate("beamdump-vrb", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	file := os.NewFile(uintptr(fd), "beamdump-vrb")
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	return file, nil
}

// doubleMap reserves a 2*size virtual range and overlays the first and
// second half with read/write mappings of the same backing pages, so that
// any access within [base, base+2*size) of length <= size is contiguous
// regardless of where in the buffer it starts.
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
	if errno != 0 {
		unix.Syscall(unix.SYS_MUNMAP, baseAddr, uintptr(2*size), 0)
		return nil, 0, fmt.Errorf("mapping first half: %w", errno)
	}
	if one != baseAddr {
		unix.Syscall(unix.SYS_MUNMAP, baseAddr, uintptr(2*size), 0)
		return nil, 0, fmt.Errorf("MAP_FIXED placed first half at unexpected address")
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
	if errno != 0 {
		unix.Syscall(unix.SYS_MUNMAP, baseAddr, uintptr(2*size), 0)
		return nil, 0, fmt.Errorf("mapping second half: %w", errno)
	}
	if two != baseAddr+uintptr(size) {
		unix.Syscall(unix.SYS_MUNMAP, baseAddr, uintptr(2*size), 0)
		return nil, 0, fmt.Errorf("MAP_FIXED placed second half at unexpected address")
	}

	return unsafeSlice(baseAddr, 2*size), baseAddr, nil
}
