package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autobank/internal/bank"
	"github.com/Veraticus/autobank/internal/engine"
	"github.com/Veraticus/autobank/internal/model"
	"github.com/Veraticus/autobank/internal/testutil"
)

func newTestScheduler(t *testing.T, mock *bank.MockClient, config Config) *Scheduler {
	t.Helper()
	store := testutil.SetupTestDB(t)

	rule := testutil.NewRule("checking-1", nil, []model.Action{
		{
			Type:        model.ActionTransfer,
			FromAccount: model.TriggerAccount(),
			ToAccount:   model.ByKey("savings-1"),
			Amount:      model.Fixed(100),
		},
	})
	require.NoError(t, store.CreateRule(context.Background(), rule))

	return New(engine.New(store, mock, nil), config, nil)
}

func TestTriggerPoll(t *testing.T) {
	mock := &bank.MockClient{}
	sched := newTestScheduler(t, mock, DefaultConfig())

	stats, err := sched.TriggerPoll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.AccountsPolled)
	assert.Equal(t, []string{"checking-1"}, mock.GetTransactionsCalls)
}

func TestTriggerPollRejectsConcurrentCycles(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var startedOnce sync.Once
	mock := &bank.MockClient{
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			startedOnce.Do(func() { close(started) })
			<-release
			return &model.TransactionResponse{}, nil
		},
	}
	sched := newTestScheduler(t, mock, DefaultConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := sched.TriggerPoll(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	_, err := sched.TriggerPoll(context.Background())
	assert.ErrorIs(t, err, ErrPollInProgress)

	close(release)
	wg.Wait()

	// With the first cycle finished, triggering works again.
	_, err = sched.TriggerPoll(context.Background())
	assert.NoError(t, err)
}

func TestEnableDisable(t *testing.T) {
	sched := newTestScheduler(t, &bank.MockClient{}, DefaultConfig())

	assert.True(t, sched.IsEnabled())
	sched.Disable()
	assert.False(t, sched.IsEnabled())
	sched.Enable()
	assert.True(t, sched.IsEnabled())
}

func TestSetInterval(t *testing.T) {
	sched := newTestScheduler(t, &bank.MockClient{}, DefaultConfig())

	assert.Equal(t, DefaultInterval, sched.Interval())

	require.NoError(t, sched.SetInterval(10*time.Second))
	assert.Equal(t, 10*time.Second, sched.Interval())

	assert.Error(t, sched.SetInterval(0))
	assert.Error(t, sched.SetInterval(-time.Second))
	assert.Equal(t, 10*time.Second, sched.Interval(), "invalid values leave the interval unchanged")
}

func TestRunPollsOnTimer(t *testing.T) {
	polled := make(chan struct{}, 10)
	mock := &bank.MockClient{
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			polled <- struct{}{}
			return &model.TransactionResponse{}, nil
		},
	}
	sched := newTestScheduler(t, mock, Config{Interval: 10 * time.Millisecond, Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a timer-driven cycle")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunSkipsCyclesWhileDisabled(t *testing.T) {
	mock := &bank.MockClient{}
	sched := newTestScheduler(t, mock, Config{Interval: 10 * time.Millisecond, Enabled: false})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, mock.GetTransactionsCalls)
}

func TestNewDefaultsInvalidInterval(t *testing.T) {
	sched := newTestScheduler(t, &bank.MockClient{}, Config{Interval: 0, Enabled: true})
	assert.Equal(t, DefaultInterval, sched.Interval())
}
