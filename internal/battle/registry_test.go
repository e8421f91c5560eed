package battle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragrace/internal/battle"
	"ragrace/internal/domain"
)

func TestPendingRegistry_TrackAndWait(t *testing.T) {
	reg := battle.NewPendingRegistry()
	id := uuid.New()
	release := make(chan struct{})

	task := reg.Track(id, func() error {
		<-release
		return nil
	})

	got, ok := reg.Lookup(id)
	require.True(t, ok)
	assert.Same(t, task, got)
	assert.Equal(t, domain.BattleStatePersisting, task.State())

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	found, err := reg.Wait(context.Background(), id)
	assert.True(t, found)
	assert.NoError(t, err)

	_, ok = reg.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, domain.BattleStatePersisted, task.State())
}

func TestPendingRegistry_RemovedOnFailure(t *testing.T) {
	reg := battle.NewPendingRegistry()
	id := uuid.New()
	boom := errors.New("db down")

	task := reg.Track(id, func() error { return boom })
	<-task.Done()

	assert.ErrorIs(t, task.Err(), boom)
	assert.Equal(t, domain.BattleStatePersistFailed, task.State())
	_, ok := reg.Lookup(id)
	assert.False(t, ok)
}

func TestPendingRegistry_RemovedOnPanic(t *testing.T) {
	reg := battle.NewPendingRegistry()
	id := uuid.New()

	task := reg.Track(id, func() error { panic("kaboom") })
	<-task.Done()

	assert.Error(t, task.Err())
	assert.Equal(t, 0, reg.Len())
}

func TestPendingRegistry_WaitTimeout(t *testing.T) {
	reg := battle.NewPendingRegistry()
	id := uuid.New()
	release := make(chan struct{})
	defer close(release)
	reg.Track(id, func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	found, err := reg.Wait(ctx, id)
	assert.True(t, found)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingRegistry_WaitUnknown(t *testing.T) {
	reg := battle.NewPendingRegistry()

	found, err := reg.Wait(context.Background(), uuid.New())

	assert.False(t, found)
	assert.NoError(t, err)
}

func TestPendingRegistry_ConcurrentUse(t *testing.T) {
	reg := battle.NewPendingRegistry()
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 50)
	for i := range ids {
		ids[i] = uuid.New()
	}

	for _, id := range ids {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			reg.Track(id, func() error { return nil })
		}(id)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = reg.Wait(context.Background(), id)
		}(id)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx))
	assert.Equal(t, 0, reg.Len())
}
