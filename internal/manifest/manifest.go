package manifest

import (
	"context"
	"strings"
	"time"
)

// Attachment 出货单附件原始字节（邮件抓取的产物）
type Attachment []byte

// Entry 出货单里的一行：订单号、黑貓托运单号、通路标记
type Entry struct {
	OrderNumber    string
	TrackingNumber string
	ChannelMark    string
}

// Fetcher 取回指定日期的出货单附件
// 邮件抓取是外部协作方，这里只定义边界
type Fetcher interface {
	Fetch(ctx context.Context, targetDate time.Time) ([]Attachment, error)
}

// Parser 把附件解析成出货单条目
// Excel 解析同样是外部协作方
type Parser interface {
	Parse(ctx context.Context, attachments []Attachment) ([]Entry, error)
}

// NormalizeOrderNumber 订单号归一化
// 出货单上可能带 "#" 前缀，拆单订单带 "-n" 后缀，查询前都去掉
func NormalizeOrderNumber(orderNumber string) string {
	n := strings.TrimSpace(orderNumber)
	n = strings.TrimPrefix(n, "#")
	if idx := strings.Index(n, "-"); idx >= 0 {
		n = n[:idx]
	}
	return n
}

// Order 归一化后的订单号/托运单号对
type Order struct {
	OrderNumber    string
	TrackingNumber string
}

// SplitChannels 按通路标记拆分条目
// c2cMark 标记的行走 Google Sheet 台账，其余走 Shopline；
// 同一托运单号只保留第一次出现（出货单里同号多行是拆箱明细）
func SplitChannels(entries []Entry, c2cMark string) (ledgerOrders, platformOrders []Order) {
	seen := make(map[string]bool)
	for _, entry := range entries {
		orderNumber := NormalizeOrderNumber(entry.OrderNumber)
		trackingNumber := strings.TrimSpace(entry.TrackingNumber)
		if orderNumber == "" || trackingNumber == "" {
			continue
		}
		if seen[trackingNumber] {
			continue
		}
		seen[trackingNumber] = true

		order := Order{OrderNumber: orderNumber, TrackingNumber: trackingNumber}
		if strings.TrimSpace(entry.ChannelMark) == c2cMark {
			ledgerOrders = append(ledgerOrders, order)
		} else {
			platformOrders = append(platformOrders, order)
		}
	}
	return ledgerOrders, platformOrders
}
