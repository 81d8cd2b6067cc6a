package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

// Runner 任务执行函数，返回的结果会被序列化进 Task.Result
type Runner func(ctx context.Context, t *Task) (interface{}, error)

// Registry 内存任务注册表，fire-and-poll
// 多个任务可以并发跑，相互之间没有互斥——只有在各任务的
// 日期区间不相交时才安全，这一点由调用方保证，这里不强制
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	order   []string // 提交顺序，List 按此倒序
	closing *atomic.Bool
	wg      sync.WaitGroup
	log     logger.Logger

	// OnFinish 任务收尾钩子（发布完成事件用），可为 nil
	OnFinish func(ctx context.Context, t *Task)
}

// NewRegistry 创建注册表
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		tasks:   make(map[string]*Task),
		closing: atomic.NewBool(false),
		log:     log,
	}
}

// Submit 登记任务并在独立 goroutine 上执行，立即返回任务 ID
// 已进入关闭流程时返回空串
func (r *Registry) Submit(ctx context.Context, kind Kind, startDate, endDate time.Time, run Runner) string {
	if r.closing.Load() {
		return ""
	}

	t := &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		State:     StatePending,
		StartDate: startDate,
		EndDate:   endDate,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	r.mu.Unlock()

	// 与请求生命周期解绑，只继承日志字段
	runCtx := logger.WithTaskID(context.Background(), t.ID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(runCtx, t.ID, run)
	}()

	return t.ID
}

// execute 驱动状态机：running -> completed/failed
func (r *Registry) execute(ctx context.Context, id string, run Runner) {
	startedAt := time.Now()

	r.mu.Lock()
	t := r.tasks[id]
	t.State = StateRunning
	t.StartedAt = &startedAt
	snapshot := t.clone()
	r.mu.Unlock()

	r.log.Infof(ctx, "[Task] %s started: %s", snapshot.Kind, id)

	result, err := run(ctx, snapshot)
	completedAt := time.Now()

	r.mu.Lock()
	t = r.tasks[id]
	t.CompletedAt = &completedAt
	if err != nil {
		t.State = StateFailed
		t.Error = err.Error()
	} else {
		t.State = StateCompleted
		if result != nil {
			if raw, marshalErr := json.Marshal(result); marshalErr == nil {
				t.Result = raw
			}
		}
	}
	finished := t.clone()
	r.mu.Unlock()

	if err != nil {
		r.log.Errorf(ctx, "[Task] %s failed: %v", id, err)
	} else {
		r.log.Infof(ctx, "[Task] %s completed in %v", id, completedAt.Sub(startedAt))
	}

	if r.OnFinish != nil {
		r.OnFinish(ctx, finished)
	}
}

// Get 查任务；进程重启后查不到既可能是「从没存在过」
// 也可能是「重启丢了」，调用方要把 not found 当成不确定
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// List 最近提交的在前，最多 limit 条（limit<=0 表示不限）
func (r *Registry) List(limit int) []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.tasks[r.order[i]].clone())
	}
	return out
}

// Close 不再接收新任务，等在跑的任务收尾
func (r *Registry) Close() {
	if r.closing.CAS(false, true) {
		r.wg.Wait()
	}
}
