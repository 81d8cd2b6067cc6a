package status

// DeliveryStatus Shopline 配送状态枚举
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryShipping  DeliveryStatus = "shipping"
	DeliveryShipped   DeliveryStatus = "shipped"
	DeliveryArrived   DeliveryStatus = "arrived"
	DeliveryCollected DeliveryStatus = "collected"
	DeliveryReturned  DeliveryStatus = "returned"
	DeliveryReturning DeliveryStatus = "returning"
)

// OrderStatus Shopline 订单状态枚举
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// validDelivery 合法的配送状态集合
var validDelivery = map[DeliveryStatus]bool{
	DeliveryPending:   true,
	DeliveryShipping:  true,
	DeliveryShipped:   true,
	DeliveryArrived:   true,
	DeliveryCollected: true,
	DeliveryReturned:  true,
	DeliveryReturning: true,
}

// IsValidDelivery 判断是否为合法配送状态
func IsValidDelivery(s DeliveryStatus) bool {
	return validDelivery[s]
}

// OutstandingStatuses 未完结的配送状态（outstanding 轮询的筛选条件）
func OutstandingStatuses() []DeliveryStatus {
	return []DeliveryStatus{
		DeliveryPending,
		DeliveryShipping,
		DeliveryShipped,
		DeliveryReturning,
	}
}
