package sync

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JasonSung0724/bagel-shopline/pkg/ginx"
)

// Get 查询补跑任务接口
// GET /api/v1/tasks/:id
// 进程重启会丢任务历史，404 可能是「从没存在过」也可能是
// 「重启丢了」，调用方要把 not found 当成不确定
func (h *SyncHandler) Get(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		ginx.BadRequest(c, "task_id required")
		return
	}

	t, ok := h.registry.Get(taskID)
	if !ok {
		ginx.NotFound(c, "task not found")
		return
	}

	ginx.Success(c, t)
}

// List 查询补跑任务列表接口
// GET /api/v1/tasks?limit=20
func (h *SyncHandler) List(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	ginx.Success(c, h.registry.List(limit))
}
