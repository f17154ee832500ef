package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AwaitReturnsWorkError(t *testing.T) {
	p := New(2)
	f := p.Go(func() error { return errors.New("boom") })
	err := f.Await()
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestPool_RunsSubmittedWork(t *testing.T) {
	p := New(2)
	var n int32
	futures := make([]interface{ Await() error }, 0, 5)
	for i := 0; i < 5; i++ {
		futures = append(futures, p.Go(func() error {
			atomic.AddInt32(&n, 1)
			return nil
		}))
	}
	for _, f := range futures {
		require.NoError(t, f.Await())
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&n))
}

func TestPool_WaitAggregatesFirstError(t *testing.T) {
	p := New(1)
	p.Go(func() error { return nil })
	p.Go(func() error { return errors.New("second failed") })
	err := p.Wait()
	require.Error(t, err)
}
