// Package buffer provides a pooled scratch buffer for Ingress's UDP read
// path, so the UDP readers do not allocate a new buffer per datagram. The
// stdin reader does not use this pool.
package buffer

import "sync"

// MaxPacketLen mirrors conf.MaxPacketLen; duplicated as a constant rather
// than imported to keep this package free of a dependency on conf.
const MaxPacketLen = 10000

// ScratchPool hands out byte slices sized for one datagram read. Callers
// must reslice to their actual read length and return the backing pointer
// via Put when done.
var ScratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, MaxPacketLen)
		return &b
	},
}

// Get returns a pooled buffer of length MaxPacketLen.
func Get() *[]byte { return ScratchPool.Get().(*[]byte) }

// Put returns buf to the pool.
func Put(buf *[]byte) { ScratchPool.Put(buf) }
