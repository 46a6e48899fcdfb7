package partition

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopProcessesInFIFOOrder(t *testing.T) {
	l := NewLoop()
	var mu sync.Mutex
	var order []int

	go l.Run()
	defer l.Terminate()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, l.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestLoopInternalBeforeExternal(t *testing.T) {
	l := NewLoop()
	done := make(chan struct{})

	// Block the loop on a task that enqueues both external and
	// internal work before returning, so we can observe ordering.
	var order []string
	var mu sync.Mutex

	go l.Run()
	defer l.Terminate()

	require.NoError(t, l.SubmitInternal(func() {
		// occupy the loop briefly so the next two submissions both
		// queue up before draining begins.
		require.NoError(t, l.Submit(func() {
			mu.Lock()
			order = append(order, "external")
			mu.Unlock()
		}))
		require.NoError(t, l.SubmitInternal(func() {
			mu.Lock()
			order = append(order, "internal")
			mu.Unlock()
			close(done)
		}))
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"internal", "external"}, order)
}

func TestLoopTerminateRejectsFurtherSubmit(t *testing.T) {
	l := NewLoop()
	go l.Run()
	l.Terminate()

	// allow the Run goroutine to observe termination.
	time.Sleep(10 * time.Millisecond)

	assert.ErrorIs(t, l.Submit(func() {}), ErrLoopTerminated)
	assert.ErrorIs(t, l.SubmitInternal(func() {}), ErrLoopTerminated)
}

func TestLoopWaitBlocksUntilAsserted(t *testing.T) {
	l := NewLoop()
	resultCh := make(chan uint32, 1)

	go func() {
		got, err := l.Wait(0b100, true)
		require.NoError(t, err)
		resultCh <- got
	}()

	select {
	case <-resultCh:
		t.Fatal("Wait returned before any signal was asserted")
	case <-time.After(50 * time.Millisecond):
	}

	l.Assert(0b110)

	select {
	case got := <-resultCh:
		assert.Equal(t, uint32(0b100), got)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not unblock after Assert")
	}
}

func TestLoopClearThenWaitBlocksAgain(t *testing.T) {
	l := NewLoop()
	l.Assert(0b1)
	got, err := l.Wait(0b1, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b1), got)
	l.Clear(0b1)

	blocked := make(chan struct{})
	go func() {
		_, err := l.Wait(0b1, true)
		require.NoError(t, err)
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("Wait returned after Clear with no new Assert")
	case <-time.After(50 * time.Millisecond):
	}
	l.Assert(0b1)
	<-blocked
}

func TestLoopWaitPollReturnsImmediately(t *testing.T) {
	l := NewLoop()

	got, err := l.Wait(0b1, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got)

	l.Assert(0b1)
	got, err = l.Wait(0b1, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b1), got)
}

func TestLoopWaitReturnsErrorOnTerminate(t *testing.T) {
	l := NewLoop()
	done := make(chan error, 1)

	go func() {
		_, err := l.Wait(0b1, true)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Terminate")
	case <-time.After(50 * time.Millisecond):
	}

	l.Terminate()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrLoopTerminated)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not unblock after Terminate")
	}
}
