// Package vrb implements a virtual ring buffer: a byte buffer whose backing
// pages are mapped twice into adjacent virtual address space so that any
// read or write of up to Cap() bytes, starting anywhere in the buffer,
// appears contiguous without software wrap logic.
//
// The buffer itself is not internally synchronized; callers are expected to
// hold a single mutex around Reserve+Commit and around Peek+Release, exactly
// as documented in the reference implementation this package is modeled on.
package vrb

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// VRB is a double-mapped circular byte buffer.
type VRB struct {
	buf  []byte // length 2*capacity, backed by the doubled mapping
	base uintptr
	cap  int
	fill int
	head int // read offset, 0..cap
	tail int // write offset, 0..cap

	file *os.File
}

// New allocates a virtual ring buffer with at least minSize bytes of
// capacity, rounded up to a multiple of the OS page size.
func New(minSize int) (*VRB, error) {
	if minSize <= 0 {
		return nil, fmt.Errorf("vrb: minSize must be positive, got %d", minSize)
	}

	page := unix.Getpagesize()
	capacity := ((minSize + page - 1) / page) * page

	file, err := createBacking(int64(capacity))
	if err != nil {
		return nil, fmt.Errorf("vrb: creating backing object: %w", err)
	}

	buf, base, err := doubleMap(file, capacity)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("vrb: double-mapping backing object: %w", err)
	}

	return &VRB{
		buf:  buf,
		base: base,
		cap:  capacity,
		file: file,
	}, nil
}

// Cap returns the rounded-up buffer capacity in bytes.
func (v *VRB) Cap() int { return v.cap }

// Fill returns the number of bytes currently resident in the buffer.
func (v *VRB) Fill() int { return v.fill }

// Reserve returns a writable contiguous region of length n at the tail, or
// ok=false if fill+n would exceed capacity. Does not advance the tail; call
// Commit with the same n once the region has been filled in.
func (v *VRB) Reserve(n int) (region []byte, ok bool) {
	if n < 0 || v.fill+n > v.cap {
		return nil, false
	}
	return v.buf[v.tail : v.tail+n], true
}

// Commit advances the tail by n bytes and increases fill by n. It must
// immediately follow a successful Reserve(n) that has not been superseded by
// another Reserve call.
func (v *VRB) Commit(n int) {
	if n < 0 || v.fill+n > v.cap {
		panic("vrb: Commit without a matching successful Reserve")
	}
	v.tail = (v.tail + n) % v.cap
	v.fill += n
}

// Peek returns a readable contiguous region at the head, of length Fill(),
// or ok=false if the buffer is empty. Does not advance the head.
func (v *VRB) Peek() (region []byte, ok bool) {
	if v.fill == 0 {
		return nil, false
	}
	return v.buf[v.head : v.head+v.fill], true
}

// Release advances the head by n bytes and decreases fill by n. n must not
// exceed Fill().
func (v *VRB) Release(n int) {
	if n < 0 || n > v.fill {
		panic("vrb: Release of more bytes than are resident")
	}
	v.head = (v.head + n) % v.cap
	v.fill -= n
}

// Close releases the doubled mapping and the backing file.
func (v *VRB) Close() error {
	if v.buf == nil {
		return nil
	}
	// The doubled range was mapped with raw mmap syscalls, so unix.Munmap's
	// bookkeeping does not know it; unmap it the same way.
	var err error
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, v.base, uintptr(len(v.buf)), 0); errno != 0 {
		err = errno
	}
	v.buf = nil
	if cerr := v.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
