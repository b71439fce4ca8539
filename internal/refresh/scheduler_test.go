package refresh_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/feedtrack/internal/refresh"
)

func TestScheduler_RunsImmediatelyAndOnTimer(t *testing.T) {
	var runs atomic.Int32
	s := refresh.NewScheduler(20*time.Millisecond, func(context.Context) { runs.Add(1) }, zerolog.Nop())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestScheduler_Trigger(t *testing.T) {
	var runs atomic.Int32
	s := refresh.NewScheduler(time.Hour, func(context.Context) { runs.Add(1) }, zerolog.Nop())

	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Trigger()
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RunsDoNotOverlap(t *testing.T) {
	var active, maxActive atomic.Int32
	task := func(context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
	}
	s := refresh.NewScheduler(5*time.Millisecond, task, zerolog.Nop())
	s.Start(context.Background())
	for i := 0; i < 10; i++ {
		s.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	s.Stop()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_StopCancelsRunningTask(t *testing.T) {
	started := make(chan struct{})
	s := refresh.NewScheduler(time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}, zerolog.Nop())

	s.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestScheduler_StopBeforeStartAndTwice(t *testing.T) {
	s := refresh.NewScheduler(time.Hour, func(context.Context) {}, zerolog.Nop())
	s.Stop()
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestScheduler_DropsTriggerQueuedWhileStopped(t *testing.T) {
	var runs atomic.Int32
	s := refresh.NewScheduler(time.Hour, func(context.Context) { runs.Add(1) }, zerolog.Nop())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	s.Trigger()
	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load(), "restart runs the task once")
}
