package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/JasonSung0724/bagel-shopline/internal/carrier"
	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

// ManifestOrder 出货单提供的托运单号与当日状态
type ManifestOrder struct {
	TrackingNumber string
	Status         string
}

// BuildOrderMap 把出货单条目变成 订单号 -> {托运单号, 状态}
// 状态现查黑貓（经由运行级缓存，后续台账行命中同号不再发请求）
func BuildOrderMap(ctx context.Context, src carrier.Source, orders []manifest.Order) map[string]ManifestOrder {
	out := make(map[string]ManifestOrder, len(orders))
	for _, order := range orders {
		out[order.OrderNumber] = ManifestOrder{
			TrackingNumber: order.TrackingNumber,
			Status:         src.Status(ctx, order.TrackingNumber),
		}
	}
	return out
}

// columns 配置字段名解析出的列下标
type columns struct {
	orderNumber    int
	trackingNumber int
	statusText     int
	shippingDate   int
}

// Reconciler C2C 台账对账器
// 逐行决定：补托运单号、刷新状态、回填集貨日期；
// 动正式表之前先整表备份
type Reconciler struct {
	store   SheetStore
	source  carrier.Source
	cfg     config.LedgerConfig
	carrier config.CarrierConfig
	log     logger.Logger
}

// NewReconciler 创建台账对账器
func NewReconciler(
	store SheetStore,
	source carrier.Source,
	cfg config.LedgerConfig,
	carrierCfg config.CarrierConfig,
	log logger.Logger,
) *Reconciler {
	return &Reconciler{
		store:   store,
		source:  source,
		cfg:     cfg,
		carrier: carrierCfg,
		log:     log,
	}
}

// TargetSheets 按名前缀找出所有 C2C 追踪表
func (r *Reconciler) TargetSheets(ctx context.Context) ([]string, error) {
	names, err := r.store.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	var targets []string
	for _, name := range names {
		if strings.HasPrefix(name, r.cfg.SheetPrefix) {
			targets = append(targets, name)
		}
	}
	return targets, nil
}

// ReconcileSheet 对一张台账表做一轮对账，返回更新行数
// 任何结构性错误立刻中止这张表（调用方继续处理下一张）
func (r *Reconciler) ReconcileSheet(ctx context.Context, sheetName string, orders map[string]ManifestOrder) (int, error) {
	ctx = logger.WithSheet(ctx, sheetName)

	values, err := r.store.ReadAll(ctx, sheetName)
	if err != nil {
		return 0, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("sheet %s is empty", sheetName)
	}

	// 先整表备份，再动任何一行（happens-before）
	if err := r.store.WriteAll(ctx, r.cfg.BackupSheet, values); err != nil {
		return 0, fmt.Errorf("backup sheet %s: %w", sheetName, err)
	}

	cols, err := r.resolveColumns(values[0])
	if err != nil {
		return 0, err
	}
	if err := r.checkDuplicates(values, cols); err != nil {
		return 0, err
	}

	updated := 0
	for i := 1; i < len(values); i++ {
		rowUpdated, err := r.reconcileRow(ctx, values, i, cols, orders)
		if err != nil {
			orderNumber := cell(values[i], cols.orderNumber)
			return updated, fmt.Errorf("row %d (order %s): %w", i+1, orderNumber, err)
		}
		if rowUpdated {
			updated++
		}
	}

	if updated == 0 {
		r.log.Infof(ctx, "執行完畢 沒有更新任何資料")
		return 0, nil
	}

	// 覆写前确认表头没被人改过布局
	if err := r.confirmLayout(ctx, sheetName, values[0]); err != nil {
		return 0, err
	}
	if err := r.store.WriteAll(ctx, sheetName, values); err != nil {
		return updated, fmt.Errorf("write sheet %s: %w", sheetName, err)
	}

	r.verifyBackup(ctx, sheetName)
	r.log.Infof(ctx, "成功更新 %d 筆資料", updated)
	return updated, nil
}

// reconcileRow 单行对账规则
//  1. 订单号为空：跳过（表尾常有空行）
//  2. 有托运单号且状态已是「順利送達」：终态，永不再动
//  3. 有托运单号：现查黑貓；「尚無資料」视为没有新信息
//  4. 没有托运单号：查出货单；查到则补号并套用状态规则，查不到只记日志
func (r *Reconciler) reconcileRow(ctx context.Context, values [][]string, i int, cols columns, orders map[string]ManifestOrder) (bool, error) {
	row := values[i]
	orderNumber := strings.TrimSpace(cell(row, cols.orderNumber))
	if orderNumber == "" {
		return false, nil
	}

	trackingNumber := strings.TrimSpace(cell(row, cols.trackingNumber))
	currentStatus := strings.TrimSpace(cell(row, cols.statusText))

	if trackingNumber != "" && currentStatus == r.carrier.StatusDelivered {
		return false, nil
	}

	if trackingNumber != "" {
		fresh := r.source.Status(ctx, trackingNumber)
		if fresh == r.carrier.StatusNoData {
			return false, nil
		}
		return r.applyStatusAndDate(ctx, values, i, cols, trackingNumber, fresh), nil
	}

	order, ok := orders[manifest.NormalizeOrderNumber(orderNumber)]
	if !ok || order.TrackingNumber == "" {
		r.log.Debugf(ctx, "訂單 %s 今天沒有出貨", orderNumber)
		return false, nil
	}

	setCell(values, i, cols.trackingNumber, order.TrackingNumber)
	r.log.Debugf(ctx, "更新 %s 的黑貓單號: %s", orderNumber, order.TrackingNumber)
	r.applyStatusAndDate(ctx, values, i, cols, order.TrackingNumber, order.Status)
	return true, nil
}

// applyStatusAndDate 共享的状态与日期更新规则
// 状态不同就写；集貨日期为空就试着回填（只写非空结果）；
// 状态退化成「尚無資料」时清掉日期（显式降级路径）
func (r *Reconciler) applyStatusAndDate(ctx context.Context, values [][]string, i int, cols columns, trackingNumber, newStatus string) bool {
	row := values[i]
	currentStatus := strings.TrimSpace(cell(row, cols.statusText))
	shippingDate := strings.TrimSpace(cell(row, cols.shippingDate))

	if newStatus == r.carrier.StatusNoData {
		if shippingDate != "" {
			setCell(values, i, cols.shippingDate, "")
			r.log.Warnf(ctx, "單號 %s 狀態退回尚無資料, 清除集貨日期", trackingNumber)
			return true
		}
		return false
	}

	updated := false
	if currentStatus != newStatus {
		setCell(values, i, cols.statusText, newStatus)
		r.log.Debugf(ctx, "更新狀態: %s -> %s", currentStatus, newStatus)
		updated = true
	}

	if shippingDate == "" {
		if collected := r.source.CollectedDate(ctx, trackingNumber, newStatus); collected != "" {
			setCell(values, i, cols.shippingDate, collected)
			r.log.Debugf(ctx, "更新集貨時間: %s", collected)
			updated = true
		}
	}

	return updated
}

// resolveColumns 按配置的字段名在表头里找列
func (r *Reconciler) resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	cols := columns{}
	fields := []struct {
		name string
		dst  *int
	}{
		{r.cfg.Fields.OrderNumber, &cols.orderNumber},
		{r.cfg.Fields.TrackingNumber, &cols.trackingNumber},
		{r.cfg.Fields.Status, &cols.statusText},
		{r.cfg.Fields.ShippingDate, &cols.shippingDate},
	}
	for _, f := range fields {
		i, ok := index[f.name]
		if !ok {
			return columns{}, fmt.Errorf("%w: column %q not in header", ErrLayoutDrift, f.name)
		}
		*f.dst = i
	}
	return cols, nil
}

// checkDuplicates 订单号在一张表内必须唯一
func (r *Reconciler) checkDuplicates(values [][]string, cols columns) error {
	seen := make(map[string]int)
	for i := 1; i < len(values); i++ {
		orderNumber := strings.TrimSpace(cell(values[i], cols.orderNumber))
		if orderNumber == "" {
			continue
		}
		if first, ok := seen[orderNumber]; ok {
			return fmt.Errorf("%w: %s (rows %d and %d)", ErrDuplicateOrder, orderNumber, first+1, i+1)
		}
		seen[orderNumber] = i
	}
	return nil
}

// confirmLayout 覆写前重读表头，列数变了视为布局漂移
func (r *Reconciler) confirmLayout(ctx context.Context, sheetName string, header []string) error {
	current, err := r.store.ReadAll(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("reread sheet %s: %w", sheetName, err)
	}
	if len(current) == 0 || len(current[0]) != len(header) {
		return fmt.Errorf("%w: header changed during reconciliation of %s", ErrLayoutDrift, sheetName)
	}
	return nil
}

// verifyBackup 写完后对账备份表的有效行数
// 两次写不是原子的，数量不一致只告警；备份是取证手段，不是事务保证
func (r *Reconciler) verifyBackup(ctx context.Context, sheetName string) {
	live, err := r.store.ReadAll(ctx, sheetName)
	if err != nil {
		r.log.Warnf(ctx, "行數驗證失敗: %v", err)
		return
	}
	backup, err := r.store.ReadAll(ctx, r.cfg.BackupSheet)
	if err != nil {
		r.log.Warnf(ctx, "行數驗證失敗: %v", err)
		return
	}

	liveCount, backupCount := countValidRows(live), countValidRows(backup)
	if liveCount != backupCount {
		r.log.Warnf(ctx, "行數驗證警告: %s=%d行, %s=%d行", sheetName, liveCount, r.cfg.BackupSheet, backupCount)
	}
}

// countValidRows 非全空行计数
func countValidRows(values [][]string) int {
	count := 0
	for _, row := range values {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				count++
				break
			}
		}
	}
	return count
}

// cell 越界安全取格
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// setCell 写格，行太短先补齐
func setCell(values [][]string, rowIdx, colIdx int, val string) {
	for len(values[rowIdx]) <= colIdx {
		values[rowIdx] = append(values[rowIdx], "")
	}
	values[rowIdx][colIdx] = val
}
