package task

import (
	"encoding/json"
	"time"
)

// Kind 任务种类
type Kind string

const (
	KindLedgerSync   Kind = "ledger_sync"
	KindPlatformSync Kind = "platform_sync"
)

// IsValidKind 判断任务种类是否合法
func IsValidKind(k Kind) bool {
	return k == KindLedgerSync || k == KindPlatformSync
}

// State 任务状态机：pending -> running -> {completed, failed}
// 状态只由执行它的 worker 推进，没有外部取消
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Task 一次 operator 触发的补跑任务
// 只活在内存里，进程重启即丢；补跑有人盯着、可重跑，
// 所以这是设计选择不是缺陷
type Task struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	State       State           `json:"state"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// clone 返回快照，避免调用方拿到内部指针后和 worker 抢写
func (t *Task) clone() *Task {
	copied := *t
	if t.StartedAt != nil {
		startedAt := *t.StartedAt
		copied.StartedAt = &startedAt
	}
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		copied.CompletedAt = &completedAt
	}
	if t.Result != nil {
		copied.Result = append(json.RawMessage(nil), t.Result...)
	}
	return &copied
}
