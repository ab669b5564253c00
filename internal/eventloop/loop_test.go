package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	return cancel, errc
}

func TestLoopRunsInOrder(t *testing.T) {
	l := New(4)
	cancel, errc := start(t, l)
	defer cancel()

	var got []int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			i := i
			assert.NoError(t, l.Post(context.Background(), func() { got = append(got, i) }))
		}
	}()
	wg.Wait()
	require.NoError(t, l.Do(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}

	cancel()
	assert.NoError(t, <-errc)
}

func TestLoopSerializesConcurrentPosters(t *testing.T) {
	l := New(0)
	cancel, _ := start(t, l)
	defer cancel()

	counter := 0
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_ = l.Post(context.Background(), func() { counter++ })
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, 2000, counter)
}

func TestTryPostWhenFull(t *testing.T) {
	l := New(1)
	assert.True(t, l.TryPost(func() {}))
	assert.False(t, l.TryPost(func() {}))
	assert.Equal(t, 1, l.Pending())
}

func TestRunDrainsOnCancel(t *testing.T) {
	l := New(8)
	ran := 0
	for i := 0; i < 3; i++ {
		require.True(t, l.TryPost(func() { ran++ }))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))

	assert.Equal(t, 3, ran)
	select {
	case <-l.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestPostAfterStop(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))

	assert.ErrorIs(t, l.Post(context.Background(), func() {}), ErrStopped)
	assert.False(t, l.TryPost(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
}

func TestPostHonoursContext(t *testing.T) {
	l := New(1)
	require.True(t, l.TryPost(func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Post(ctx, func() {}), context.DeadlineExceeded)
}
