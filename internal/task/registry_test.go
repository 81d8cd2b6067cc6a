package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

func waitForState(t *testing.T, r *Registry, id string, want State) *Task {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if task, ok := r.Get(id); ok && task.State == want {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached state %s", id, want)
	return nil
}

func TestSubmitRunsToCompletion(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})
	defer r.Close()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	id := r.Submit(context.Background(), KindLedgerSync, start, start,
		func(ctx context.Context, task *Task) (interface{}, error) {
			return map[string]int{"updated": 7}, nil
		})
	require.NotEmpty(t, id)

	done := waitForState(t, r, id, StateCompleted)
	assert.Equal(t, KindLedgerSync, done.Kind)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.JSONEq(t, `{"updated":7}`, string(done.Result))
	assert.Empty(t, done.Error)
}

func TestSubmitFailureMarksFailed(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})
	defer r.Close()

	id := r.Submit(context.Background(), KindPlatformSync, time.Now(), time.Now(),
		func(ctx context.Context, task *Task) (interface{}, error) {
			return nil, errors.New("boom")
		})

	failed := waitForState(t, r, id, StateFailed)
	assert.Equal(t, "boom", failed.Error)
	assert.Nil(t, failed.Result)
}

func TestGetUnknownTaskIsAmbiguousNotFound(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})
	defer r.Close()

	_, ok := r.Get("never-existed")
	assert.False(t, ok)
}

func TestListMostRecentFirst(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})
	defer r.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		id := r.Submit(context.Background(), KindLedgerSync, time.Now(), time.Now(),
			func(ctx context.Context, task *Task) (interface{}, error) {
				return nil, nil
			})
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitForState(t, r, id, StateCompleted)
	}

	listed := r.List(2)
	require.Len(t, listed, 2)
	assert.Equal(t, ids[2], listed[0].ID)
	assert.Equal(t, ids[1], listed[1].ID)

	all := r.List(0)
	assert.Len(t, all, 3)
}

func TestOnFinishHookReceivesFinalSnapshot(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})
	defer r.Close()

	finished := make(chan *Task, 1)
	r.OnFinish = func(ctx context.Context, task *Task) {
		finished <- task
	}

	id := r.Submit(context.Background(), KindPlatformSync, time.Now(), time.Now(),
		func(ctx context.Context, task *Task) (interface{}, error) {
			return nil, nil
		})

	select {
	case task := <-finished:
		assert.Equal(t, id, task.ID)
		assert.Equal(t, StateCompleted, task.State)
	case <-time.After(3 * time.Second):
		t.Fatal("OnFinish never fired")
	}
}

func TestCloseRejectsNewTasksAndWaits(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})

	release := make(chan struct{})
	id := r.Submit(context.Background(), KindLedgerSync, time.Now(), time.Now(),
		func(ctx context.Context, task *Task) (interface{}, error) {
			<-release
			return nil, nil
		})
	require.NotEmpty(t, id)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	r.Close()

	// Close 返回后在跑的任务必然已收尾
	task, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, task.State)

	rejected := r.Submit(context.Background(), KindLedgerSync, time.Now(), time.Now(),
		func(ctx context.Context, task *Task) (interface{}, error) {
			return nil, nil
		})
	assert.Empty(t, rejected)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	r := NewRegistry(logger.NopLogger{})
	defer r.Close()

	id := r.Submit(context.Background(), KindLedgerSync, time.Now(), time.Now(),
		func(ctx context.Context, task *Task) (interface{}, error) {
			return nil, nil
		})
	waitForState(t, r, id, StateCompleted)

	first, _ := r.Get(id)
	first.State = StateFailed
	first.Error = "tampered"

	second, _ := r.Get(id)
	assert.Equal(t, StateCompleted, second.State)
	assert.Empty(t, second.Error)
}

func TestIsValidKind(t *testing.T) {
	assert.True(t, IsValidKind(KindLedgerSync))
	assert.True(t, IsValidKind(KindPlatformSync))
	assert.False(t, IsValidKind("daily"))
	assert.False(t, IsValidKind(""))
}
