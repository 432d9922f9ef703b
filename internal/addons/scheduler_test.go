package addons

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopSchedulerRunsInOrder(t *testing.T) {
	s := NewLoopScheduler()
	defer s.Close()

	var got []int
	for i := range 100 {
		s.Post(func() { got = append(got, i) })
	}
	s.Do(func() {})

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopSchedulerCloseDrainsQueue(t *testing.T) {
	s := NewLoopScheduler()
	ran := 0
	block := make(chan struct{})
	s.Post(func() { <-block })
	for range 10 {
		s.Post(func() { ran++ })
	}
	close(block)
	s.Close()
	assert.Equal(t, 10, ran)

	s.Post(func() { ran++ })
	s.Do(func() { ran++ })
	assert.Equal(t, 10, ran, "posts after close are dropped")
}

func TestPostWait(t *testing.T) {
	s := NewLoopScheduler()
	defer s.Close()

	called := false
	require.NoError(t, postWait(context.Background(), s, func() { called = true }))
	assert.True(t, called)

	block := make(chan struct{})
	s.Post(func() { <-block })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	skipped := true
	err := postWait(ctx, s, func() { skipped = false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
	s.Do(func() {})
	assert.True(t, skipped, "fn is skipped once ctx is done")
}

func TestPostWaitWaitsForRunningFn(t *testing.T) {
	s := NewLoopScheduler()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Bool
	errc := make(chan error, 1)
	go func() {
		errc <- postWait(ctx, s, func() {
			close(started)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
		})
	}()

	<-started
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("postWait did not return")
	}
	assert.True(t, finished.Load(), "postWait returned while fn was still running")
}

func TestPipelineCancelledDuringSchedulerStage(t *testing.T) {
	s := NewLoopScheduler()
	defer s.Close()

	type state struct{ steps []string }
	ctx, cancel := context.WithCancel(context.Background())
	var st state
	err := runPipeline(ctx, s, &st,
		stage[state]{name: "write", exec: onScheduler, run: func(ctx context.Context, st *state) (bool, error) {
			cancel()
			time.Sleep(20 * time.Millisecond)
			st.steps = append(st.steps, "write")
			return false, nil
		}},
		stage[state]{name: "after", exec: onCaller, run: func(ctx context.Context, st *state) (bool, error) {
			st.steps = append(st.steps, "after")
			return false, nil
		}},
	)
	assert.ErrorIs(t, err, context.Canceled)
	// the stage finished before runPipeline handed the state back
	assert.Equal(t, []string{"write"}, st.steps)
}
