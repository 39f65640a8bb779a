package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paydash/internal/config"
	"paydash/internal/shared/testutil"
)

func TestRefresher_Interval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"default", 60 * time.Second, 60 * time.Second},
		{"too short", time.Second, config.MinRefreshInterval},
		{"too long", time.Hour, config.MaxRefreshInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRefresher(nil, config.RefreshConfig{Enabled: true, Interval: tt.interval}, nil)
			assert.Equal(t, tt.want, r.Interval())
		})
	}
}

func TestRefresher_StartStop(t *testing.T) {
	svc, _, _ := newTestService(t)
	logger, logs := testutil.NewTestLogger(t)
	r := NewRefresher(svc, config.RefreshConfig{Interval: 30 * time.Second}, logger)

	assert.True(t, r.Next().IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	assert.ErrorIs(t, r.Start(ctx), ErrRefresherRunning)

	next := r.Next()
	assert.WithinDuration(t, time.Now().Add(30*time.Second), next, 2*time.Second)

	r.Stop()
	r.Stop()
	assert.True(t, r.Next().IsZero())
	assert.True(t, logs.ContainsMessage("ledger refresher started"))
	assert.True(t, logs.ContainsMessage("ledger refresher stopped"))
}

func TestRefresher_StopsWithContext(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := NewRefresher(svc, config.RefreshConfig{Interval: 30 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return r.Next().IsZero() }, time.Second, 5*time.Millisecond)
}

func TestRefresher_StopReleasesWatcher(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := NewRefresher(svc, config.RefreshConfig{Interval: 30 * time.Second}, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Start(context.Background()))
		r.Stop()
	}

	released := make(chan struct{})
	go func() {
		r.watchers.Wait()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("context watcher still running after Stop")
	}
}

func TestRefresher_Run(t *testing.T) {
	svc, loader, hub := newTestService(t)
	loader.On("Invalidate").Return()
	loader.On("Load", mock.Anything).Return(sampleResult("fp-1"), nil)

	logger, logs := testutil.NewTestLogger(t)
	r := NewRefresher(svc, config.RefreshConfig{Interval: 30 * time.Second}, logger)

	r.run(context.Background())
	assert.Equal(t, []string{MessageLedgerRefreshed}, hub.messages)
	testutil.AssertNoErrors(t, logs)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	r.run(cancelled)
	loader.AssertNumberOfCalls(t, "Invalidate", 1)
}

func TestRefresher_RunLogsFailure(t *testing.T) {
	svc, loader, _ := newTestService(t)
	loader.On("Invalidate").Return()
	loader.On("Load", mock.Anything).Return(nil, context.DeadlineExceeded)

	logger, logs := testutil.NewTestLogger(t)
	NewRefresher(svc, config.RefreshConfig{Interval: 30 * time.Second}, logger).run(context.Background())

	assert.True(t, logs.ContainsMessage("scheduled ledger refresh failed"))
}
