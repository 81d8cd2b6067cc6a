package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

// fakeStore 内存假台账，带操作日志用于断言读写顺序
type fakeStore struct {
	sheets map[string][][]string
	ops    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{sheets: make(map[string][][]string)}
}

func copyValues(values [][]string) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func (s *fakeStore) ListSheets(ctx context.Context) ([]string, error) {
	var names []string
	for name := range s.sheets {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeStore) ReadAll(ctx context.Context, sheetName string) ([][]string, error) {
	s.ops = append(s.ops, "read:"+sheetName)
	values, ok := s.sheets[sheetName]
	if !ok {
		return nil, fmt.Errorf("sheet not found: %s", sheetName)
	}
	return copyValues(values), nil
}

func (s *fakeStore) WriteAll(ctx context.Context, sheetName string, values [][]string) error {
	s.ops = append(s.ops, "write:"+sheetName)
	s.sheets[sheetName] = copyValues(values)
	return nil
}

// fakeCarrier 固定应答的假黑貓查询端
type fakeCarrier struct {
	statuses    map[string]string
	collected   map[string]string
	statusCalls []string
}

func (f *fakeCarrier) Status(ctx context.Context, trackingNumber string) string {
	f.statusCalls = append(f.statusCalls, trackingNumber)
	if s, ok := f.statuses[trackingNumber]; ok {
		return s
	}
	return "尚無資料"
}

func (f *fakeCarrier) CollectedDate(ctx context.Context, trackingNumber, knownStatus string) string {
	return f.collected[trackingNumber]
}

func (f *fakeCarrier) QueryURL(trackingNumber string) string {
	return "https://example.com/trace?billID=" + trackingNumber
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		SheetPrefix: "C2C出貨追蹤",
		BackupSheet: "備份",
		Fields: config.LedgerFields{
			OrderNumber:    "訂單編號",
			TrackingNumber: "黑貓單號",
			Status:         "配送狀態",
			ShippingDate:   "集貨日期",
		},
	}
}

func testCarrierVocab() config.CarrierConfig {
	return config.CarrierConfig{
		StatusNoData:    "尚無資料",
		StatusCollected: "已集貨",
		StatusDelivered: "順利送達",
	}
}

func header() []string {
	return []string{"訂單編號", "黑貓單號", "配送狀態", "集貨日期"}
}

func newTestReconciler(store SheetStore, src *fakeCarrier) *Reconciler {
	return NewReconciler(store, src, testLedgerConfig(), testCarrierVocab(), logger.NopLogger{})
}

func TestTargetSheetsFiltersByPrefix(t *testing.T) {
	store := newFakeStore()
	store.sheets["C2C出貨追蹤 2024-05"] = [][]string{header()}
	store.sheets["庫存盤點"] = [][]string{{"x"}}
	store.sheets["備份"] = [][]string{{"y"}}

	r := newTestReconciler(store, &fakeCarrier{})
	targets, err := r.TargetSheets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C2C出貨追蹤 2024-05"}, targets)
}

func TestReconcileSheetFillsTrackingAndStatus(t *testing.T) {
	store := newFakeStore()
	store.sheets["C2C出貨追蹤 2024-05"] = [][]string{
		header(),
		{"A1001", "", "", ""},
	}

	src := &fakeCarrier{
		statuses:  map[string]string{"111": "已集貨"},
		collected: map[string]string{"111": "20240501"},
	}
	r := newTestReconciler(store, src)

	orders := map[string]ManifestOrder{
		"A1001": {TrackingNumber: "111", Status: "已集貨"},
	}
	updated, err := r.ReconcileSheet(context.Background(), "C2C出貨追蹤 2024-05", orders)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	row := store.sheets["C2C出貨追蹤 2024-05"][1]
	assert.Equal(t, []string{"A1001", "111", "已集貨", "20240501"}, row)
}

func TestReconcileSheetBackupPrecedesLiveWrite(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "111", "已集貨", "20240501"},
	}

	src := &fakeCarrier{statuses: map[string]string{"111": "順利送達"}}
	r := newTestReconciler(store, src)

	updated, err := r.ReconcileSheet(context.Background(), sheet, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	backupIdx, liveIdx := -1, -1
	for i, op := range store.ops {
		if op == "write:備份" && backupIdx < 0 {
			backupIdx = i
		}
		if op == "write:"+sheet {
			liveIdx = i
		}
	}
	require.GreaterOrEqual(t, backupIdx, 0)
	require.GreaterOrEqual(t, liveIdx, 0)
	assert.Less(t, backupIdx, liveIdx)

	// 备份里是改动前的内容
	assert.Equal(t, "已集貨", store.sheets["備份"][1][2])
	assert.Equal(t, "順利送達", store.sheets[sheet][1][2])
}

func TestReconcileSheetSkipsDeliveredRows(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "111", "順利送達", "20240501"},
	}

	src := &fakeCarrier{statuses: map[string]string{"111": "順利送達"}}
	r := newTestReconciler(store, src)

	updated, err := r.ReconcileSheet(context.Background(), sheet, nil)
	require.NoError(t, err)
	assert.Zero(t, updated)
	// 终态行连查都不查
	assert.Empty(t, src.statusCalls)
}

func TestReconcileSheetNoDataLeavesRowUntouched(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "111", "已集貨", ""},
	}

	src := &fakeCarrier{statuses: map[string]string{}} // 固定回尚無資料
	r := newTestReconciler(store, src)

	updated, err := r.ReconcileSheet(context.Background(), sheet, nil)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, "已集貨", store.sheets[sheet][1][2])
}

func TestReconcileSheetNoUpdatesSkipsLiveWrite(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "111", "已集貨", "20240501"},
	}

	src := &fakeCarrier{statuses: map[string]string{"111": "已集貨"}}
	r := newTestReconciler(store, src)

	updated, err := r.ReconcileSheet(context.Background(), sheet, nil)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.NotContains(t, store.ops, "write:"+sheet)
}

func TestReconcileSheetIdempotent(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "", "", ""},
	}

	src := &fakeCarrier{
		statuses:  map[string]string{"111": "已集貨"},
		collected: map[string]string{"111": "20240501"},
	}
	r := newTestReconciler(store, src)
	orders := map[string]ManifestOrder{
		"A1001": {TrackingNumber: "111", Status: "已集貨"},
	}

	first, err := r.ReconcileSheet(context.Background(), sheet, orders)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := r.ReconcileSheet(context.Background(), sheet, orders)
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestReconcileSheetClearsDateOnNoDataDowngrade(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "", "", "20240501"},
	}

	src := &fakeCarrier{}
	r := newTestReconciler(store, src)
	orders := map[string]ManifestOrder{
		"A1001": {TrackingNumber: "111", Status: "尚無資料"},
	}

	updated, err := r.ReconcileSheet(context.Background(), sheet, orders)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	row := store.sheets[sheet][1]
	assert.Equal(t, "111", row[1])
	assert.Empty(t, row[3])
}

func TestReconcileSheetDuplicateOrderFails(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		header(),
		{"A1001", "", "", ""},
		{"A1001", "", "", ""},
	}

	r := newTestReconciler(store, &fakeCarrier{})
	_, err := r.ReconcileSheet(context.Background(), sheet, nil)
	require.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestReconcileSheetLayoutDriftFails(t *testing.T) {
	sheet := "C2C出貨追蹤 2024-05"
	store := newFakeStore()
	store.sheets[sheet] = [][]string{
		{"訂單編號", "黑貓單號", "狀態欄改名了", "集貨日期"},
		{"A1001", "", "", ""},
	}

	r := newTestReconciler(store, &fakeCarrier{})
	_, err := r.ReconcileSheet(context.Background(), sheet, nil)
	require.ErrorIs(t, err, ErrLayoutDrift)
}

func TestBuildOrderMapQueriesCarrier(t *testing.T) {
	src := &fakeCarrier{statuses: map[string]string{"111": "已集貨"}}
	orders := BuildOrderMap(context.Background(), src, []manifest.Order{
		{OrderNumber: "A1001", TrackingNumber: "111"},
		{OrderNumber: "A1002", TrackingNumber: "999"},
	})

	assert.Equal(t, ManifestOrder{TrackingNumber: "111", Status: "已集貨"}, orders["A1001"])
	assert.Equal(t, ManifestOrder{TrackingNumber: "999", Status: "尚無資料"}, orders["A1002"])
}
