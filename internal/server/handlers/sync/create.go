package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JasonSung0724/bagel-shopline/internal/task"
	"github.com/JasonSung0724/bagel-shopline/pkg/ginx"
)

// CreateSyncRequest 提交补跑任务请求
type CreateSyncRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=ledger_sync platform_sync"`
	StartDate  string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" binding:"required,datetime=2006-01-02"`
	MailNotify bool   `json:"mail_notify"`
}

// CreateSyncResponse 提交补跑任务响应
type CreateSyncResponse struct {
	TaskID  string `json:"task_id"`
	PollURL string `json:"poll_url"`
}

// Create 提交补跑任务接口
// POST /api/v1/syncs
// 立即返回任务 ID，执行结果走 GET /api/v1/tasks/:id 轮询；
// 并发任务的日期区间不相交由 operator 保证
func (h *SyncHandler) Create(c *gin.Context) {
	var req CreateSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	startDate, _ := time.Parse("2006-01-02", req.StartDate)
	endDate, _ := time.Parse("2006-01-02", req.EndDate)
	if endDate.Before(startDate) {
		ginx.BadRequest(c, "end_date must not be before start_date")
		return
	}

	kind := task.Kind(req.Kind)
	runner := h.runnerFor(kind, startDate, endDate, req.MailNotify)

	taskID := h.registry.Submit(c.Request.Context(), kind, startDate, endDate, runner)
	if taskID == "" {
		ginx.ServiceUnavailable(c, "service is shutting down")
		return
	}

	ginx.Accepted(c, CreateSyncResponse{
		TaskID:  taskID,
		PollURL: fmt.Sprintf("/api/v1/tasks/%s", taskID),
	})
}

// runnerFor 把任务种类映射到对应的补跑路径
func (h *SyncHandler) runnerFor(kind task.Kind, startDate, endDate time.Time, mailNotify bool) task.Runner {
	switch kind {
	case task.KindLedgerSync:
		return func(ctx context.Context, t *task.Task) (interface{}, error) {
			return h.daily.RunLedger(ctx, startDate, endDate)
		}
	default:
		return func(ctx context.Context, t *task.Task) (interface{}, error) {
			return h.daily.RunPlatform(ctx, startDate, endDate, mailNotify)
		}
	}
}
