package vrb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestVRB(t *testing.T, minSize int) *VRB {
	t.Helper()
	v, err := New(minSize)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, v.Close()) })
	return v
}

func TestNewRoundsUpToPageSize(t *testing.T) {
	v := newTestVRB(t, 1)
	require.Greater(t, v.Cap(), 0)
	require.Equal(t, 0, v.Cap()%pageSizeForTest(t))
}

func pageSizeForTest(t *testing.T) int {
	t.Helper()
	v, err := New(1)
	require.NoError(t, err)
	defer v.Close()
	return v.Cap()
}

func TestReserveCommitPeekRelease(t *testing.T) {
	v := newTestVRB(t, 4096)

	region, ok := v.Reserve(10)
	require.True(t, ok)
	copy(region, []byte("0123456789"))
	v.Commit(10)
	require.Equal(t, 10, v.Fill())

	peeked, ok := v.Peek()
	require.True(t, ok)
	require.Equal(t, []byte("0123456789"), peeked)

	v.Release(4)
	require.Equal(t, 6, v.Fill())

	peeked, ok = v.Peek()
	require.True(t, ok)
	require.Equal(t, []byte("456789"), peeked)
}

func TestReserveFailsWhenFull(t *testing.T) {
	v := newTestVRB(t, 4096)

	region, ok := v.Reserve(v.Cap())
	require.True(t, ok)
	v.Commit(len(region))

	_, ok = v.Reserve(1)
	require.False(t, ok, "reserve must fail once fill+n exceeds capacity")
}

func TestPeekEmpty(t *testing.T) {
	v := newTestVRB(t, 4096)
	_, ok := v.Peek()
	require.False(t, ok)
}

// TestWrapAroundIsContiguous exercises the double-mapping guarantee: a
// write that straddles the physical end of the buffer must still be
// readable as one contiguous slice.
func TestWrapAroundIsContiguous(t *testing.T) {
	v := newTestVRB(t, 4096)
	cap := v.Cap()

	// Fill to within 10 bytes of the end, then release it all so head and
	// tail both sit near the wrap boundary.
	region, ok := v.Reserve(cap - 10)
	require.True(t, ok)
	v.Commit(len(region))
	v.Release(cap - 10)
	require.Equal(t, 0, v.Fill())

	// Now write 20 bytes: 10 before the physical end, 10 after it wraps.
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	region, ok = v.Reserve(20)
	require.True(t, ok)
	copy(region, payload)
	v.Commit(20)

	peeked, ok := v.Peek()
	require.True(t, ok)
	require.Equal(t, payload, peeked)
}

func TestInvariantFillNeverExceedsCapacity(t *testing.T) {
	v := newTestVRB(t, 65536)
	total := 0
	for i := 0; i < 1000; i++ {
		n := (i % 37) + 1
		if region, ok := v.Reserve(n); ok {
			v.Commit(len(region))
			total += n
		}
		require.GreaterOrEqual(t, v.Fill(), 0)
		require.LessOrEqual(t, v.Fill(), v.Cap())
		if i%3 == 0 && v.Fill() > 0 {
			rel := v.Fill() / 2
			v.Release(rel)
			total -= rel
		}
	}
	require.Equal(t, total, v.Fill())
}
