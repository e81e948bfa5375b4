package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T, minSize int) *Channel {
	t.Helper()
	c, err := NewChannel(minSize)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestChannelReserveCommitRelease(t *testing.T) {
	c := newTestChannel(t, 4096)

	region, ok := c.Reserve(10)
	require.True(t, ok)
	copy(region, []byte("0123456789"))
	c.Commit(10)

	require.Equal(t, 10, c.Fill())

	region, stop := c.WaitForData()
	require.Equal(t, StopNone, stop)
	require.Equal(t, []byte("0123456789"), region)

	c.Release(10)
	require.Equal(t, 0, c.Fill())
}

func TestChannelSetStopWakesWaiters(t *testing.T) {
	c := newTestChannel(t, 4096)

	done := make(chan int, 1)
	go func() {
		_, stop := c.WaitForData()
		done <- stop
	}()

	time.Sleep(20 * time.Millisecond)
	c.SetStop(StopProgram)

	select {
	case stop := <-done:
		require.Equal(t, StopProgram, stop)
	case <-time.After(time.Second):
		t.Fatal("WaitForData did not wake on SetStop")
	}
}

func TestSetStopIfRunningDoesNotDowngrade(t *testing.T) {
	c := newTestChannel(t, 4096)
	c.SetStop(StopProgram)

	changed := c.SetStopIfRunning(StopFile)
	require.False(t, changed)
	require.Equal(t, StopProgram, c.StopLevel())
}

func TestResetStopIfMatchesPreservesStrongerStop(t *testing.T) {
	c := newTestChannel(t, 4096)
	c.SetStop(StopFile)
	c.SetStop(StopProgram) // a stronger stop arrives before the reset

	c.ResetStopIfMatches(StopFile)
	require.Equal(t, StopProgram, c.StopLevel())
}

func TestReserveBlockingWaitsForSpace(t *testing.T) {
	c := newTestChannel(t, 4096)

	region, ok := c.Reserve(c.Capacity())
	require.True(t, ok)
	c.Commit(len(region))

	result := make(chan bool, 1)
	go func() {
		_, ok := c.ReserveBlocking(10)
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	c.Release(10)

	select {
	case ok := <-result:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("ReserveBlocking did not unblock after Release")
	}
}

func TestReserveBlockingUnblocksOnStopProgram(t *testing.T) {
	c := newTestChannel(t, 4096)
	region, ok := c.Reserve(c.Capacity())
	require.True(t, ok)
	c.Commit(len(region))

	result := make(chan bool, 1)
	go func() {
		_, ok := c.ReserveBlocking(10)
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	c.SetStop(StopProgram)

	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("ReserveBlocking did not unblock on StopProgram")
	}
}
