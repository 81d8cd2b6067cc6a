package platform

import (
	"context"
	"errors"

	"github.com/JasonSung0724/bagel-shopline/internal/carrier"
	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/internal/status"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

// Reconciler Shopline 订单对账器
// 出货单驱动路径补物流信息并收敛状态；
// outstanding 路径轮询所有未完结订单做同样的收敛
type Reconciler struct {
	api     API
	source  carrier.Source
	mapper  *status.Mapper
	cfg     config.PlatformConfig
	carrier config.CarrierConfig
	log     logger.Logger
}

// NewReconciler 创建平台对账器
func NewReconciler(
	api API,
	source carrier.Source,
	mapper *status.Mapper,
	cfg config.PlatformConfig,
	carrierCfg config.CarrierConfig,
	log logger.Logger,
) *Reconciler {
	return &Reconciler{
		api:     api,
		source:  source,
		mapper:  mapper,
		cfg:     cfg,
		carrier: carrierCfg,
		log:     log,
	}
}

// ReconcileManifest 出货单驱动的对账
// 返回 (补物流信息笔数, 改状态笔数)；只有 401 会中止整轮并返回错误
func (r *Reconciler) ReconcileManifest(ctx context.Context, orders []manifest.Order, notify bool) (int, int, error) {
	trackingCount, statusCount := 0, 0

	for _, mo := range orders {
		if mo.OrderNumber == "" || mo.TrackingNumber == "" {
			continue
		}

		order, err := r.api.FindByOrderNumber(ctx, mo.OrderNumber)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return trackingCount, statusCount, err
			}
			r.log.Errorf(ctx, "查詢訂單 %s 失敗: %v", mo.OrderNumber, err)
			continue
		}
		if order == nil {
			// 订单可能属于别的通路，预期内，跳过即可
			r.log.Warnf(ctx, "找不到訂單 %s", mo.OrderNumber)
			continue
		}

		// 出货方式不归本系统管，绝不碰
		if order.OrderDelivery.DeliveryOptionID != r.cfg.DeliveryMethodID {
			continue
		}

		if order.DeliveryData.TrackingNumber == "" {
			err := r.api.UpdateTrackingInfo(ctx, order.ID,
				mo.TrackingNumber,
				r.source.QueryURL(mo.TrackingNumber),
				r.carrier.ProviderName,
				r.carrier.ProviderLocale)
			switch {
			case errors.Is(err, ErrUnauthorized):
				return trackingCount, statusCount, err
			case err != nil:
				r.log.Errorf(ctx, "更新 %s 追蹤資訊失敗: %v", order.OrderNumber, err)
			default:
				trackingCount++
				r.log.Infof(ctx, "更新 %s 追蹤資訊", order.OrderNumber)
			}
		}

		carrierText := r.source.Status(ctx, mo.TrackingNumber)
		updated, err := r.applyStatus(ctx, order, carrierText, notify)
		if err != nil {
			return trackingCount, statusCount, err
		}
		if updated {
			statusCount++
		}
	}

	r.log.Infof(ctx, "更新追蹤資訊 %d 筆, 更新狀態 %d 筆", trackingCount, statusCount)
	return trackingCount, statusCount, nil
}

// ReconcileOutstanding 未完结订单对账（不依赖出货单）
func (r *Reconciler) ReconcileOutstanding(ctx context.Context, notify bool) (int, error) {
	orders, err := r.api.AllOutstanding(ctx)
	if err != nil {
		return 0, err
	}

	statusCount := 0
	for i := range orders {
		order := &orders[i]
		trackingNumber := order.DeliveryData.TrackingNumber
		if trackingNumber == "" {
			// 单号还没补上，这条流水线无能为力
			r.log.Warnf(ctx, "訂單 %s 沒有追蹤號", order.OrderNumber)
			continue
		}

		carrierText := r.source.Status(ctx, trackingNumber)
		updated, err := r.applyStatus(ctx, order, carrierText, notify)
		if err != nil {
			return statusCount, err
		}
		if updated {
			statusCount++
		}
	}

	r.log.Infof(ctx, "更新 %d 筆訂單狀態", statusCount)
	return statusCount, nil
}

// applyStatus 跨系统状态收敛规则
// 映射不到 -> no-op；映射结果与现状相同 -> no-op（幂等收敛点，
// 挡掉重复 API 调用和重复客户通知信）；否则改配送状态，
// 终态 arrived/returned 再补一刀订单状态（尽力而为，不是事务：
// 第一刀失败只记日志，不挡第二刀）
func (r *Reconciler) applyStatus(ctx context.Context, order *Order, carrierText string, notify bool) (bool, error) {
	mapped, ok := r.mapper.ToDelivery(carrierText)
	if !ok {
		return false, nil
	}
	if string(mapped) == order.OrderDelivery.Status {
		return false, nil
	}

	deliveryErr := r.api.UpdateDeliveryStatus(ctx, order.ID, mapped, notify)
	if errors.Is(deliveryErr, ErrUnauthorized) {
		return false, deliveryErr
	}
	if deliveryErr != nil {
		r.log.Errorf(ctx, "更新 %s 配送狀態失敗: %v", order.OrderNumber, deliveryErr)
	} else {
		r.log.Infof(ctx, "更新 %s 配送狀態: %s -> %s", order.OrderNumber, order.OrderDelivery.Status, mapped)
	}

	switch mapped {
	case status.DeliveryArrived:
		if err := r.api.UpdateOrderStatus(ctx, order.ID, status.OrderCompleted, notify); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return deliveryErr == nil, err
			}
			r.log.Errorf(ctx, "訂單 %s 完成標記失敗: %v", order.OrderNumber, err)
		} else {
			r.log.Infof(ctx, "訂單 %s 已完成", order.OrderNumber)
		}
	case status.DeliveryReturned:
		if err := r.api.UpdateOrderStatus(ctx, order.ID, status.OrderCancelled, notify); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return deliveryErr == nil, err
			}
			r.log.Errorf(ctx, "訂單 %s 取消標記失敗: %v", order.OrderNumber, err)
		} else {
			r.log.Infof(ctx, "訂單 %s 已取消（退貨）", order.OrderNumber)
		}
	}

	return deliveryErr == nil, nil
}
