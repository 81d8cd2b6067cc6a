package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JasonSung0724/bagel-shopline/internal/carrier"
	"github.com/JasonSung0724/bagel-shopline/internal/platform"
	"github.com/JasonSung0724/bagel-shopline/internal/status"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/infra/mysql"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
	"github.com/JasonSung0724/bagel-shopline/pkg/notify"
)

// OutstandingResult 一次未完结订单扫描的汇总
type OutstandingResult struct {
	StatusUpdated int      `json:"status_updated"`
	Errors        []string `json:"errors,omitempty"`
}

// Outstanding 未完结订单扫描编排器
// 不依赖出货单，独立排程，给每日对账漏掉的订单兜底
type Outstanding struct {
	api      platform.API
	mapper   *status.Mapper
	cfg      *config.Config
	reporter *notify.Reporter
	recorder Recorder
	log      logger.Logger
}

// NewOutstanding 创建扫描编排器，recorder 可传 nil
func NewOutstanding(
	api platform.API,
	mapper *status.Mapper,
	cfg *config.Config,
	reporter *notify.Reporter,
	recorder Recorder,
	log logger.Logger,
) *Outstanding {
	return &Outstanding{
		api:      api,
		mapper:   mapper,
		cfg:      cfg,
		reporter: reporter,
		recorder: recorder,
		log:      log,
	}
}

// Run 扫描所有未完结订单并收敛状态
func (w *Outstanding) Run(ctx context.Context, mailNotify bool) (*OutstandingResult, error) {
	startedAt := time.Now()
	result := &OutstandingResult{}

	src := carrier.NewCache(carrier.NewClient(w.cfg.Carrier, w.log))
	reconciler := platform.NewReconciler(w.api, src, w.mapper, w.cfg.Platform, w.cfg.Carrier, w.log)

	updated, runErr := reconciler.ReconcileOutstanding(ctx, mailNotify)
	result.StatusUpdated = updated
	if runErr != nil {
		w.log.Errorf(ctx, "未完結訂單掃描中止: %v", runErr)
		result.Errors = appendError(result.Errors, runErr.Error())
	}
	w.log.Infof(ctx, "黑貓查詢共 %d 個單號", src.Size())

	w.reporter.Add(fmt.Sprintf("未完結訂單掃描完成, 更新狀態: %d 筆", updated))
	for _, e := range result.Errors {
		w.reporter.Add("錯誤: " + e)
	}
	if err := w.reporter.Flush(ctx); err != nil {
		w.log.Errorf(ctx, "LINE 通知發送失敗: %v", err)
	}

	if w.recorder != nil {
		day := startedAt.Format("2006-01-02")
		entry := &mysql.RunLog{
			Kind:        "outstanding",
			TaskID:      logger.TaskIDFrom(ctx),
			StartDate:   day,
			EndDate:     day,
			StatusCount: result.StatusUpdated,
			Success:     runErr == nil,
			StartedAt:   startedAt,
			FinishedAt:  time.Now(),
		}
		if runErr != nil {
			entry.ErrorMessage = runErr.Error()
		} else if len(result.Errors) > 0 {
			entry.ErrorMessage = strings.Join(result.Errors, "; ")
		}
		if err := w.recorder.Record(ctx, entry); err != nil {
			w.log.Warnf(ctx, "運行記錄落庫失敗: %v", err)
		}
	}

	return result, runErr
}
