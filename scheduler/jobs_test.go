package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coingecko_etl/config"
	"coingecko_etl/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedRunner struct {
	mu       sync.Mutex
	results  []error
	attempts []int
	ran      chan struct{}
}

func (r *scriptedRunner) Run(_ context.Context, attempt int) (models.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = append(r.attempts, attempt)
	var err error
	if i := len(r.attempts) - 1; i < len(r.results) {
		err = r.results[i]
	}
	if r.ran != nil {
		select {
		case r.ran <- struct{}{}:
		default:
		}
	}
	return models.RunReport{Attempt: attempt}, err
}

func (r *scriptedRunner) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.attempts...)
}

// blockingRunner holds its first run open until released
type blockingRunner struct {
	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
	started   chan struct{}
	release   chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, attempt int) (models.RunReport, error) {
	r.mu.Lock()
	r.calls++
	r.active++
	r.maxActive = max(r.maxActive, r.active)
	first := r.calls == 1
	r.mu.Unlock()

	if first {
		close(r.started)
		<-r.release
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return models.RunReport{Attempt: attempt}, nil
}

func (r *blockingRunner) snapshot() (calls, maxActive int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.maxActive
}

func newTestScheduler(runner Runner, retryDelay time.Duration) *Scheduler {
	return NewScheduler(runner, config.ScheduleConfig{Interval: time.Hour, RetryDelay: retryDelay}, zap.NewNop())
}

func TestRunWithRetrySucceedsFirstTime(t *testing.T) {
	runner := &scriptedRunner{}
	s := newTestScheduler(runner, time.Millisecond)

	require.NoError(t, s.RunWithRetry(t.Context()))
	assert.Equal(t, []int{1}, runner.calls())
}

func TestRunWithRetryRetriesExactlyOnce(t *testing.T) {
	boom := errors.New("coingecko unreachable")
	runner := &scriptedRunner{results: []error{boom, nil}}
	s := newTestScheduler(runner, time.Millisecond)

	require.NoError(t, s.RunWithRetry(t.Context()))
	assert.Equal(t, []int{1, 2}, runner.calls())
}

func TestRunWithRetryGivesUpAfterSecondFailure(t *testing.T) {
	first := errors.New("first failure")
	second := errors.New("second failure")
	runner := &scriptedRunner{results: []error{first, second, nil}}
	s := newTestScheduler(runner, time.Millisecond)

	err := s.RunWithRetry(t.Context())
	require.ErrorIs(t, err, second)
	assert.Equal(t, []int{1, 2}, runner.calls())
}

func TestRunWithRetryWaitsForDelay(t *testing.T) {
	runner := &scriptedRunner{results: []error{errors.New("fail"), nil}}
	s := newTestScheduler(runner, 50*time.Millisecond)

	start := time.Now()
	require.NoError(t, s.RunWithRetry(t.Context()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRunWithRetryAbandonsRetryOnCancel(t *testing.T) {
	boom := errors.New("fail")
	runner := &scriptedRunner{results: []error{boom, nil}}
	s := newTestScheduler(runner, time.Hour)

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := s.RunWithRetry(ctx)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, runner.calls())
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &scriptedRunner{ran: make(chan struct{}, 1)}
	s := newTestScheduler(runner, time.Millisecond)

	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job did not run")
	}
	assert.Equal(t, []int{1}, runner.calls())
}

func TestStartDropsTicksDuringRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(runner, config.ScheduleConfig{Interval: 20 * time.Millisecond, RetryDelay: time.Millisecond}, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job did not run")
	}

	// several ticks elapse while the first run is held open
	time.Sleep(150 * time.Millisecond)
	calls, _ := runner.snapshot()
	assert.Equal(t, 1, calls)

	// ticks missed during the run are not replayed once it finishes
	close(runner.release)
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	calls, maxActive := runner.snapshot()
	assert.Equal(t, 1, maxActive)
	assert.LessOrEqual(t, calls, 2)
}
