package vrb

import "unsafe"

// unsafeSlice views the memory at addr as a []byte of the given length.
// Used to turn the raw mmap return address into a Go slice without a copy.
func unsafeSlice(addr uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}
