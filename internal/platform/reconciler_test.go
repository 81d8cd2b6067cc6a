package platform

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/internal/status"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

// fakeAPI 记录所有调用的 Shopline 假实现
type fakeAPI struct {
	orders      map[string]*Order // order number -> order
	outstanding []Order

	findErr     error
	deliveryErr error

	calls []string
}

func (f *fakeAPI) FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	f.calls = append(f.calls, "find:"+orderNumber)
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.orders[orderNumber], nil
}

func (f *fakeAPI) AllOutstanding(ctx context.Context) ([]Order, error) {
	f.calls = append(f.calls, "outstanding")
	return f.outstanding, nil
}

func (f *fakeAPI) UpdateDeliveryStatus(ctx context.Context, orderID string, newStatus status.DeliveryStatus, notify bool) error {
	f.calls = append(f.calls, fmt.Sprintf("delivery:%s:%s:%t", orderID, newStatus, notify))
	return f.deliveryErr
}

func (f *fakeAPI) UpdateOrderStatus(ctx context.Context, orderID string, newStatus status.OrderStatus, notify bool) error {
	f.calls = append(f.calls, fmt.Sprintf("status:%s:%s", orderID, newStatus))
	return nil
}

func (f *fakeAPI) UpdateTrackingInfo(ctx context.Context, orderID, trackingNumber, trackingURL, providerName, locale string) error {
	f.calls = append(f.calls, fmt.Sprintf("tracking:%s:%s", orderID, trackingNumber))
	return nil
}

// fakeCarrier 固定应答的假黑貓查询端
type fakeCarrier struct {
	statuses map[string]string
}

func (f *fakeCarrier) Status(ctx context.Context, trackingNumber string) string {
	if s, ok := f.statuses[trackingNumber]; ok {
		return s
	}
	return "尚無資料"
}

func (f *fakeCarrier) CollectedDate(ctx context.Context, trackingNumber, knownStatus string) string {
	return ""
}

func (f *fakeCarrier) QueryURL(trackingNumber string) string {
	return "https://example.com/trace?billID=" + trackingNumber
}

func testMapper(t *testing.T) *status.Mapper {
	m, err := status.NewMapper(map[string]string{
		"已集貨":  "shipped",
		"順利送達": "arrived",
		"取消取件": "returning",
		"退貨完成": "returned",
	})
	require.NoError(t, err)
	return m
}

func newTestReconciler(t *testing.T, api *fakeAPI, src *fakeCarrier) *Reconciler {
	cfg := config.PlatformConfig{DeliveryMethodID: "dm-1"}
	carrierCfg := config.CarrierConfig{
		StatusNoData:    "尚無資料",
		StatusCollected: "已集貨",
		StatusDelivered: "順利送達",
		ProviderName:    "黑貓宅急便",
		ProviderLocale:  "zh-hant",
	}
	return NewReconciler(api, src, testMapper(t), cfg, carrierCfg, logger.NopLogger{})
}

func TestReconcileManifestFillsTrackingAndStatus(t *testing.T) {
	api := &fakeAPI{orders: map[string]*Order{
		"B2001": {
			ID:            "ord-1",
			OrderNumber:   "B2001",
			OrderDelivery: OrderDelivery{Status: "pending", DeliveryOptionID: "dm-1"},
		},
	}}
	src := &fakeCarrier{statuses: map[string]string{"222": "已集貨"}}
	r := newTestReconciler(t, api, src)

	tracking, statusCount, err := r.ReconcileManifest(context.Background(),
		[]manifest.Order{{OrderNumber: "B2001", TrackingNumber: "222"}}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, tracking)
	assert.Equal(t, 1, statusCount)
	assert.Equal(t, []string{
		"find:B2001",
		"tracking:ord-1:222",
		"delivery:ord-1:shipped:false",
	}, api.calls)
}

func TestReconcileManifestSkipsForeignDeliveryMethod(t *testing.T) {
	api := &fakeAPI{orders: map[string]*Order{
		"B2001": {
			ID:            "ord-1",
			OrderNumber:   "B2001",
			OrderDelivery: OrderDelivery{Status: "pending", DeliveryOptionID: "someone-elses"},
		},
	}}
	r := newTestReconciler(t, api, &fakeCarrier{})

	tracking, statusCount, err := r.ReconcileManifest(context.Background(),
		[]manifest.Order{{OrderNumber: "B2001", TrackingNumber: "222"}}, false)
	require.NoError(t, err)

	assert.Zero(t, tracking)
	assert.Zero(t, statusCount)
	assert.Equal(t, []string{"find:B2001"}, api.calls)
}

func TestReconcileManifestMissingOrderIsSkipped(t *testing.T) {
	api := &fakeAPI{orders: map[string]*Order{}}
	r := newTestReconciler(t, api, &fakeCarrier{})

	tracking, statusCount, err := r.ReconcileManifest(context.Background(),
		[]manifest.Order{{OrderNumber: "B9999", TrackingNumber: "999"}}, false)
	require.NoError(t, err)
	assert.Zero(t, tracking)
	assert.Zero(t, statusCount)
}

func TestReconcileManifestUnauthorizedAborts(t *testing.T) {
	api := &fakeAPI{findErr: ErrUnauthorized}
	r := newTestReconciler(t, api, &fakeCarrier{})

	_, _, err := r.ReconcileManifest(context.Background(),
		[]manifest.Order{
			{OrderNumber: "B2001", TrackingNumber: "222"},
			{OrderNumber: "B2002", TrackingNumber: "333"},
		}, false)
	require.ErrorIs(t, err, ErrUnauthorized)
	// 第一单就中止，不再碰第二单
	assert.Equal(t, []string{"find:B2001"}, api.calls)
}

func TestApplyStatusConvergedIsNoOp(t *testing.T) {
	api := &fakeAPI{outstanding: []Order{
		{
			ID:            "ord-1",
			OrderNumber:   "B2001",
			OrderDelivery: OrderDelivery{Status: "shipped", DeliveryOptionID: "dm-1"},
			DeliveryData:  DeliveryData{TrackingNumber: "222"},
		},
	}}
	src := &fakeCarrier{statuses: map[string]string{"222": "已集貨"}}
	r := newTestReconciler(t, api, src)

	updated, err := r.ReconcileOutstanding(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, updated)
	// 收敛点：状态一致时一个 PATCH 都不发
	assert.Equal(t, []string{"outstanding"}, api.calls)
}

func TestApplyStatusArrivedAlsoCompletesOrder(t *testing.T) {
	api := &fakeAPI{outstanding: []Order{
		{
			ID:            "ord-1",
			OrderNumber:   "B2001",
			OrderDelivery: OrderDelivery{Status: "shipped", DeliveryOptionID: "dm-1"},
			DeliveryData:  DeliveryData{TrackingNumber: "222"},
		},
	}}
	src := &fakeCarrier{statuses: map[string]string{"222": "順利送達"}}
	r := newTestReconciler(t, api, src)

	updated, err := r.ReconcileOutstanding(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, []string{
		"outstanding",
		"delivery:ord-1:arrived:false",
		"status:ord-1:completed",
	}, api.calls)
}

func TestApplyStatusReturnedCancelsOrder(t *testing.T) {
	api := &fakeAPI{outstanding: []Order{
		{
			ID:            "ord-1",
			OrderNumber:   "B2001",
			OrderDelivery: OrderDelivery{Status: "returning", DeliveryOptionID: "dm-1"},
			DeliveryData:  DeliveryData{TrackingNumber: "222"},
		},
	}}
	src := &fakeCarrier{statuses: map[string]string{"222": "退貨完成"}}
	r := newTestReconciler(t, api, src)

	updated, err := r.ReconcileOutstanding(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Contains(t, api.calls, "status:ord-1:cancelled")
}

func TestApplyStatusDeliveryFailureStillAttemptsOrderStatus(t *testing.T) {
	api := &fakeAPI{
		deliveryErr: fmt.Errorf("transient"),
		outstanding: []Order{
			{
				ID:            "ord-1",
				OrderNumber:   "B2001",
				OrderDelivery: OrderDelivery{Status: "shipped", DeliveryOptionID: "dm-1"},
				DeliveryData:  DeliveryData{TrackingNumber: "222"},
			},
		},
	}
	src := &fakeCarrier{statuses: map[string]string{"222": "順利送達"}}
	r := newTestReconciler(t, api, src)

	updated, err := r.ReconcileOutstanding(context.Background(), false)
	require.NoError(t, err)
	// 第一刀失败不计数，但第二刀照样尝试
	assert.Zero(t, updated)
	assert.Contains(t, api.calls, "status:ord-1:completed")
}

func TestReconcileOutstandingSkipsMissingTracking(t *testing.T) {
	api := &fakeAPI{outstanding: []Order{
		{ID: "ord-1", OrderNumber: "B2001", OrderDelivery: OrderDelivery{Status: "pending", DeliveryOptionID: "dm-1"}},
	}}
	r := newTestReconciler(t, api, &fakeCarrier{})

	updated, err := r.ReconcileOutstanding(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, []string{"outstanding"}, api.calls)
}

func TestApplyStatusUnmappedCarrierTextIsNoOp(t *testing.T) {
	api := &fakeAPI{outstanding: []Order{
		{
			ID:            "ord-1",
			OrderNumber:   "B2001",
			OrderDelivery: OrderDelivery{Status: "pending", DeliveryOptionID: "dm-1"},
			DeliveryData:  DeliveryData{TrackingNumber: "222"},
		},
	}}
	src := &fakeCarrier{statuses: map[string]string{"222": "配送中"}}
	r := newTestReconciler(t, api, src)

	updated, err := r.ReconcileOutstanding(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, []string{"outstanding"}, api.calls)
}
