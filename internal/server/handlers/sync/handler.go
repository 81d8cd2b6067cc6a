package sync

import (
	"github.com/JasonSung0724/bagel-shopline/internal/task"
	"github.com/JasonSung0724/bagel-shopline/internal/workflow"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

// SyncHandler 补跑任务 HTTP 处理器
type SyncHandler struct {
	registry *task.Registry
	daily    *workflow.Daily
	log      logger.Logger
}

// NewSyncHandler 创建补跑任务处理器实例
func NewSyncHandler(registry *task.Registry, daily *workflow.Daily, log logger.Logger) *SyncHandler {
	return &SyncHandler{
		registry: registry,
		daily:    daily,
		log:      log,
	}
}
