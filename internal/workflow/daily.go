package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JasonSung0724/bagel-shopline/internal/carrier"
	"github.com/JasonSung0724/bagel-shopline/internal/ledger"
	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/internal/platform"
	"github.com/JasonSung0724/bagel-shopline/internal/status"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/infra/mysql"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
	"github.com/JasonSung0724/bagel-shopline/pkg/notify"
)

// DailyResult 一次每日对账的汇总
type DailyResult struct {
	ManifestEntries  int      `json:"manifest_entries"`
	LedgerSheets     int      `json:"ledger_sheets"`
	LedgerUpdated    int      `json:"ledger_updated"`
	PlatformTracking int      `json:"platform_tracking"`
	PlatformStatus   int      `json:"platform_status"`
	Errors           []string `json:"errors,omitempty"`
}

// Daily 每日对账编排器
// 固定四步：取出货单 → 台账对账 → Shopline 对账 → 合并通知；
// 单步失败只影响自己，后面的步骤照常跑
type Daily struct {
	fetcher  manifest.Fetcher
	parser   manifest.Parser
	store    ledger.SheetStore
	api      platform.API
	mapper   *status.Mapper
	cfg      *config.Config
	reporter *notify.Reporter
	recorder Recorder
	log      logger.Logger
}

// NewDaily 创建每日对账编排器，recorder 可传 nil
func NewDaily(
	fetcher manifest.Fetcher,
	parser manifest.Parser,
	store ledger.SheetStore,
	api platform.API,
	mapper *status.Mapper,
	cfg *config.Config,
	reporter *notify.Reporter,
	recorder Recorder,
	log logger.Logger,
) *Daily {
	return &Daily{
		fetcher:  fetcher,
		parser:   parser,
		store:    store,
		api:      api,
		mapper:   mapper,
		cfg:      cfg,
		reporter: reporter,
		recorder: recorder,
		log:      log,
	}
}

// Run 执行 [startDate, endDate] 区间的每日对账
// 黑貓查询缓存按次建按次丢，不跨 run 共享；
// 返回 error 仅限整轮失效的情况（出货单拿不到、token 失效）
func (w *Daily) Run(ctx context.Context, startDate, endDate time.Time, mailNotify bool) (*DailyResult, error) {
	startedAt := time.Now()
	result := &DailyResult{}

	// 步骤 1：取出货单
	entries, fatalErr := w.collectEntries(ctx, startDate, endDate)
	result.ManifestEntries = len(entries)

	if fatalErr == nil && len(entries) == 0 {
		w.log.Infof(ctx, "出貨單沒有資料, 本輪不需要對帳")
		w.reporter.Add("今日出貨單沒有資料, 沒有需要更新的訂單")
		w.flushAndRecord(ctx, "daily", startDate, endDate, startedAt, result, nil)
		return result, nil
	}

	if fatalErr == nil {
		ledgerOrders, platformOrders := manifest.SplitChannels(entries, w.cfg.Manifest.C2CMark)
		src := carrier.NewCache(carrier.NewClient(w.cfg.Carrier, w.log))

		// 步骤 2：C2C 台账
		w.runLedger(ctx, src, ledgerOrders, result)

		// 步骤 3：Shopline
		fatalErr = w.runPlatform(ctx, src, platformOrders, mailNotify, result)
		w.log.Infof(ctx, "黑貓查詢共 %d 個單號", src.Size())
	} else {
		result.Errors = appendError(result.Errors, fatalErr.Error())
	}

	// 步骤 4：合并通知（无论前面怎么失败都发）
	w.reporter.Add(w.summary(result))
	for _, e := range result.Errors {
		w.reporter.Add("錯誤: " + e)
	}
	w.flushAndRecord(ctx, "daily", startDate, endDate, startedAt, result, fatalErr)

	return result, fatalErr
}

// RunLedger 只跑台账路径，operator 按日期区间补跑用
func (w *Daily) RunLedger(ctx context.Context, startDate, endDate time.Time) (*DailyResult, error) {
	startedAt := time.Now()
	result := &DailyResult{}

	entries, err := w.collectEntries(ctx, startDate, endDate)
	if err != nil {
		return result, err
	}
	result.ManifestEntries = len(entries)

	ledgerOrders, _ := manifest.SplitChannels(entries, w.cfg.Manifest.C2CMark)
	src := carrier.NewCache(carrier.NewClient(w.cfg.Carrier, w.log))
	w.runLedger(ctx, src, ledgerOrders, result)

	w.reporter.Add(fmt.Sprintf("台帳補跑完成, 更新 %d 筆 (%d 張表)", result.LedgerUpdated, result.LedgerSheets))
	for _, e := range result.Errors {
		w.reporter.Add("錯誤: " + e)
	}
	w.flushAndRecord(ctx, "ledger_sync", startDate, endDate, startedAt, result, nil)
	return result, nil
}

// RunPlatform 只跑 Shopline 路径，operator 按日期区间补跑用
func (w *Daily) RunPlatform(ctx context.Context, startDate, endDate time.Time, mailNotify bool) (*DailyResult, error) {
	startedAt := time.Now()
	result := &DailyResult{}

	entries, err := w.collectEntries(ctx, startDate, endDate)
	if err != nil {
		return result, err
	}
	result.ManifestEntries = len(entries)

	_, platformOrders := manifest.SplitChannels(entries, w.cfg.Manifest.C2CMark)
	src := carrier.NewCache(carrier.NewClient(w.cfg.Carrier, w.log))
	runErr := w.runPlatform(ctx, src, platformOrders, mailNotify, result)

	w.reporter.Add(fmt.Sprintf("Shopline 補跑完成, 補單號: %d 筆, 更新狀態: %d 筆", result.PlatformTracking, result.PlatformStatus))
	for _, e := range result.Errors {
		w.reporter.Add("錯誤: " + e)
	}
	w.flushAndRecord(ctx, "platform_sync", startDate, endDate, startedAt, result, runErr)
	return result, runErr
}

// collectEntries 逐日取出货单并解析合并
func (w *Daily) collectEntries(ctx context.Context, startDate, endDate time.Time) ([]manifest.Entry, error) {
	var all []manifest.Entry
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		attachments, err := w.fetcher.Fetch(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("fetch manifest %s: %w", day.Format("2006-01-02"), err)
		}
		entries, err := w.parser.Parse(ctx, attachments)
		if err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", day.Format("2006-01-02"), err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

// runLedger 台账对账：逐表处理，单表失败不影响其余表
func (w *Daily) runLedger(ctx context.Context, src carrier.Source, orders []manifest.Order, result *DailyResult) {
	if len(orders) == 0 {
		w.log.Infof(ctx, "出貨單沒有 C2C 訂單, 跳過台帳對帳")
		return
	}

	reconciler := ledger.NewReconciler(w.store, src, w.cfg.Ledger, w.cfg.Carrier, w.log)
	sheets, err := reconciler.TargetSheets(ctx)
	if err != nil {
		w.log.Errorf(ctx, "列舉台帳失敗: %v", err)
		result.Errors = appendError(result.Errors, "台帳: "+err.Error())
		return
	}

	orderMap := ledger.BuildOrderMap(ctx, src, orders)
	for _, sheet := range sheets {
		updated, err := reconciler.ReconcileSheet(ctx, sheet, orderMap)
		result.LedgerUpdated += updated
		if err != nil {
			w.log.Errorf(ctx, "台帳 %s 對帳失敗: %v", sheet, err)
			result.Errors = appendError(result.Errors, fmt.Sprintf("台帳 %s: %v", sheet, err))
			continue
		}
		result.LedgerSheets++
	}
}

// runPlatform Shopline 对账：只有 401 视为整轮失效
func (w *Daily) runPlatform(ctx context.Context, src carrier.Source, orders []manifest.Order, mailNotify bool, result *DailyResult) error {
	if len(orders) == 0 {
		w.log.Infof(ctx, "出貨單沒有 Shopline 訂單, 跳過平台對帳")
		return nil
	}

	reconciler := platform.NewReconciler(w.api, src, w.mapper, w.cfg.Platform, w.cfg.Carrier, w.log)
	tracking, statusCount, err := reconciler.ReconcileManifest(ctx, orders, mailNotify)
	result.PlatformTracking = tracking
	result.PlatformStatus = statusCount
	if err != nil {
		w.log.Errorf(ctx, "平台對帳中止: %v", err)
		result.Errors = appendError(result.Errors, "Shopline: "+err.Error())
		return err
	}
	return nil
}

func (w *Daily) summary(result *DailyResult) string {
	lines := []string{
		"每日出貨對帳完成",
		fmt.Sprintf("出貨單筆數: %d", result.ManifestEntries),
		fmt.Sprintf("台帳更新: %d 筆 (%d 張表)", result.LedgerUpdated, result.LedgerSheets),
		fmt.Sprintf("Shopline 補單號: %d 筆, 更新狀態: %d 筆", result.PlatformTracking, result.PlatformStatus),
	}
	if len(result.Errors) > 0 {
		lines = append(lines, fmt.Sprintf("錯誤: %d 筆", len(result.Errors)))
	}
	return strings.Join(lines, "\n")
}

// flushAndRecord 发通知并按需落库
func (w *Daily) flushAndRecord(ctx context.Context, kind string, startDate, endDate, startedAt time.Time, result *DailyResult, runErr error) {
	if err := w.reporter.Flush(ctx); err != nil {
		w.log.Errorf(ctx, "LINE 通知發送失敗: %v", err)
	}

	if w.recorder == nil {
		return
	}
	entry := &mysql.RunLog{
		Kind:          kind,
		TaskID:        logger.TaskIDFrom(ctx),
		StartDate:     startDate.Format("2006-01-02"),
		EndDate:       endDate.Format("2006-01-02"),
		TrackingCount: result.PlatformTracking,
		StatusCount:   result.PlatformStatus + result.LedgerUpdated,
		Success:       runErr == nil,
		StartedAt:     startedAt,
		FinishedAt:    time.Now(),
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
