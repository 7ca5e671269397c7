package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) Prune(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	t.Parallel()

	limiter := new(mockPruner)
	guard := new(mockPruner)
	tokens := new(mockTokens)

	limiter.On("Prune", mock.Anything).Return(errors.New("redis down")).Once()
	guard.On("Prune", mock.Anything).Return(nil).Once()
	tokens.On("DeleteExpired", mock.Anything).Return(int64(3), nil).Once()

	newSweeper(time.Minute, limiter, guard, tokens).sweep(context.Background())

	limiter.AssertExpectations(t)
	guard.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) Prune(context.Context) error {
	p.calls.Add(1)
	return nil
}

type noTokens struct{}

func (noTokens) DeleteExpired(context.Context) (int64, error) { return 0, nil }

func TestSweeperRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	limiter := &countingPruner{}
	guard := &countingPruner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		newSweeper(5*time.Millisecond, limiter, guard, noTokens{}).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return limiter.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	assert.GreaterOrEqual(t, guard.calls.Load(), int32(2))
}
