package carrier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
	"github.com/JasonSung0724/bagel-shopline/pkg/retry"
)

// Source 黑貓查询接口（Reconciler 依赖此接口，缓存与真实客户端都实现它）
type Source interface {
	// Status 查询当前配送状态；查不到或失败返回「尚無資料」哨兵值，不返回错误
	Status(ctx context.Context, trackingNumber string) string
	// CollectedDate 查询集貨日期（YYYYMMDD）；查不到返回空串，调用方保留原值
	CollectedDate(ctx context.Context, trackingNumber, knownStatus string) string
	// QueryURL 对外查询页 URL（写入 Shopline tracking_url）
	QueryURL(trackingNumber string) string
}

// browserHeaders 黑貓查询页是面向浏览器的页面，不带 UA 会被挡
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
	"Accept":     "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

// Client 黑貓宅急便查询客户端
// 无持久状态，唯一副作用是 HTTP 请求
type Client struct {
	cfg    config.CarrierConfig
	http   *http.Client
	log    logger.Logger
	detail retry.Policy // 明细页解析失败的重试策略
}

// NewClient 创建查询客户端
func NewClient(cfg config.CarrierConfig, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		log:    log,
		detail: retry.Policy{MaxAttempts: 3, Interval: time.Second},
	}
}

// QueryURL 对外查询页 URL
func (c *Client) QueryURL(trackingNumber string) string {
	return fmt.Sprintf("%s/Inquire/Trace.aspx?method=result&billID=%s",
		c.cfg.BaseURL, url.QueryEscape(trackingNumber))
}

func (c *Client) detailURL(trackingNumber string) string {
	return fmt.Sprintf("%s/Inquire/TraceDetail.aspx?BillID=%s",
		c.cfg.BaseURL, url.QueryEscape(trackingNumber))
}

// fetch 带重试的页面抓取
// 传输层错误与 5xx 重试 3 次，等待 1s/2s/3s；其它状态码不重试
func (c *Client) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, v := range browserHeaders {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return nil, fmt.Errorf("carrier returned %d", resp.StatusCode)
		default:
			return nil, backoff.Permanent(fmt.Errorf("carrier returned %d", resp.StatusCode))
		}
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(retry.Linear(time.Second)),
		backoff.WithMaxTries(3))
}

// Status 查询当前配送状态
// 页面结构缺失不是错误，代表黑貓还没收到这票货，返回「尚無資料」
func (c *Client) Status(ctx context.Context, trackingNumber string) string {
	body, err := c.fetch(ctx, c.QueryURL(trackingNumber))
	if err != nil {
		c.log.Errorf(ctx, "查詢訂單 %s 狀態時發生錯誤: %v", trackingNumber, err)
		return c.cfg.StatusNoData
	}

	statusText, _, ok := parseStatusPage(body)
	if !ok {
		c.log.Warnf(ctx, "訂單 %s 狀態: %s", trackingNumber, c.cfg.StatusNoData)
		return c.cfg.StatusNoData
	}

	c.log.Debugf(ctx, "訂單 %s 狀態: %s", trackingNumber, statusText)
	return statusText
}

// StatusUpdateTime 查询最近一次状态的更新时间（YYYYMMDD）
// 与 Status 同一张页面，但只要时间栏位
func (c *Client) StatusUpdateTime(ctx context.Context, trackingNumber string) string {
	body, err := c.fetch(ctx, c.QueryURL(trackingNumber))
	if err != nil {
		c.log.Errorf(ctx, "查詢訂單 %s 更新時間時發生錯誤: %v", trackingNumber, err)
		return ""
	}

	_, updateTime, ok := parseStatusPage(body)
	if !ok || updateTime == "" {
		c.log.Warnf(ctx, "無法取得訂單 %s 的更新時間", trackingNumber)
		return ""
	}

	formatted, err := formatTimelineDate(updateTime)
	if err != nil {
		c.log.Errorf(ctx, "時間格式轉換錯誤: %v", err)
		return ""
	}
	return formatted
}

// CollectedDate 查询集貨日期
// 已知状态就是「已集貨」时走便宜的状态页，省掉明细表抓取；
// 明细页解析失败按策略重试，耗尽后返回空串，调用方保留原值
func (c *Client) CollectedDate(ctx context.Context, trackingNumber, knownStatus string) string {
	if knownStatus != "" && knownStatus == c.cfg.StatusCollected {
		return c.StatusUpdateTime(ctx, trackingNumber)
	}

	var collected string
	err := c.detail.Do(ctx, func() error {
		body, err := c.fetch(ctx, c.detailURL(trackingNumber))
		if err != nil {
			return err
		}
		date, err := parseDetailPage(body, c.cfg.StatusCollected)
		if err != nil {
			return err
		}
		collected = date
		return nil
	})
	if err != nil {
		c.log.Errorf(ctx, "查詢訂單 %s 集貨時間失敗: %v", trackingNumber, err)
		return ""
	}

	if collected != "" {
		c.log.Debugf(ctx, "訂單 %s 集貨時間: %s", trackingNumber, collected)
	}
	return collected
}
