package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/internal/status"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
	"github.com/JasonSung0724/bagel-shopline/pkg/retry"
)

// ErrUnauthorized Token 错误或 IP 未授权
// 后续每个调用都会同样失败，必须中止整轮平台对账
var ErrUnauthorized = errors.New("platform: unauthorized (token or ip allowlist)")

// ErrNotFound 订单不存在或已封存（404/410），只跳过这一单
var ErrNotFound = errors.New("platform: resource missing or archived")

// Order Shopline 订单（只取对账需要的字段）
type Order struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"order_number"`
	Status        string        `json:"status"`
	OrderDelivery OrderDelivery `json:"order_delivery"`
	DeliveryData  DeliveryData  `json:"delivery_data"`
}

// OrderDelivery 配送子对象
type OrderDelivery struct {
	Status           string `json:"status"`
	DeliveryOptionID string `json:"delivery_option_id"`
}

// DeliveryData 物流子对象
type DeliveryData struct {
	TrackingNumber string `json:"tracking_number"`
}

// Pagination 分页信息
type Pagination struct {
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// SearchResult 搜索响应
type SearchResult struct {
	Items      []Order    `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// API Shopline open API 接口（测试替身实现它）
type API interface {
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	AllOutstanding(ctx context.Context) ([]Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID string, newStatus status.DeliveryStatus, notify bool) error
	UpdateOrderStatus(ctx context.Context, orderID string, newStatus status.OrderStatus, notify bool) error
	UpdateTrackingInfo(ctx context.Context, orderID, trackingNumber, trackingURL, providerName, locale string) error
}

// Client Shopline open API 客户端（bearer token）
type Client struct {
	cfg  config.PlatformConfig
	http *http.Client
	log  logger.Logger
}

// NewClient 创建 Shopline 客户端
func NewClient(cfg config.PlatformConfig, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// do 发请求并解 JSON；传输层错误与 5xx 重试，401/404/410 映射为哨兵错误
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return respBody, nil
		case http.StatusUnauthorized:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrUnauthorized, respBody))
		case http.StatusNotFound, http.StatusGone:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, respBody))
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return nil, fmt.Errorf("platform returned %d: %s", resp.StatusCode, respBody)
		default:
			return nil, backoff.Permanent(fmt.Errorf("platform returned %d: %s", resp.StatusCode, respBody))
		}
	}

	respBody, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(retry.Linear(time.Second)),
		backoff.WithMaxTries(3))
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// FindByOrderNumber 按订单号搜索，取第一笔
// 查不到返回 (nil, nil)：订单可能属于别的卖场，不是错误
func (c *Client) FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	query := url.Values{}
	query.Set("query", manifest.NormalizeOrderNumber(orderNumber))

	var result SearchResult
	if err := c.do(ctx, http.MethodGet, "/v1/orders/search", query, nil, &result); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	order := result.Items[0]
	return &order, nil
}

// outstandingPage 拉一页未完结订单
// 筛选条件：confirmed + 本系统托管的出货方式 + 非终态配送状态
func (c *Client) outstandingPage(ctx context.Context, page int) (*SearchResult, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(c.perPage()))
	query.Set("page", strconv.Itoa(page))
	query.Set("delivery_option_id", c.cfg.DeliveryMethodID)
	query.Set("status", string(status.OrderConfirmed))
	for _, ds := range status.OutstandingStatuses() {
		query.Add("delivery_statuses[]", string(ds))
	}

	var result SearchResult
	if err := c.do(ctx, http.MethodGet, "/v1/orders/search", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AllOutstanding 翻页拉全部未完结订单
// 终止条件用 page >= total_pages，不信任 total_count：
// total_count 与每页条数不一致时无界循环就是生产事故
func (c *Client) AllOutstanding(ctx context.Context) ([]Order, error) {
	var all []Order
	totalPages := 1

	for page := 1; page <= totalPages; page++ {
		result, err := c.outstandingPage(ctx, page)
		if err != nil {
			return all, fmt.Errorf("outstanding page %d: %w", page, err)
		}

		if page == 1 {
			totalPages = result.Pagination.TotalPages
			c.log.Infof(ctx, "待處理訂單總數: %d (共 %d 頁)", result.Pagination.TotalCount, totalPages)
		}
		all = append(all, result.Items...)
	}

	c.log.Infof(ctx, "總共獲取 %d 筆待處理訂單", len(all))
	return all, nil
}

// statusPatch PATCH body（两个状态端点共用同一形状）
type statusPatch struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	MailNotify bool   `json:"mail_notify"`
}

// UpdateDeliveryStatus 改配送状态
// notify=true 时平台会发客户通知信，由调用方控制
func (c *Client) UpdateDeliveryStatus(ctx context.Context, orderID string, newStatus status.DeliveryStatus, notify bool) error {
	payload := statusPatch{ID: orderID, Status: string(newStatus), MailNotify: notify}
	return c.do(ctx, http.MethodPatch, "/v1/orders/"+orderID+"/order_delivery_status", nil, payload, nil)
}

// UpdateOrderStatus 改订单状态
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, newStatus status.OrderStatus, notify bool) error {
	payload := statusPatch{ID: orderID, Status: string(newStatus), MailNotify: notify}
	return c.do(ctx, http.MethodPatch, "/v1/orders/"+orderID+"/status", nil, payload, nil)
}

// trackingPatch 物流信息 PATCH body
type trackingPatch struct {
	TrackingNumber       string            `json:"tracking_number"`
	TrackingURL          string            `json:"tracking_url"`
	DeliveryProviderName map[string]string `json:"delivery_provider_name"`
}

// UpdateTrackingInfo 补托运单号、查询链接与物流商显示名
func (c *Client) UpdateTrackingInfo(ctx context.Context, orderID, trackingNumber, trackingURL, providerName, locale string) error {
	payload := trackingPatch{
		TrackingNumber:       trackingNumber,
		TrackingURL:          trackingURL,
		DeliveryProviderName: map[string]string{locale: providerName},
	}
	return c.do(ctx, http.MethodPatch, "/v1/orders/"+orderID, nil, payload, nil)
}

func (c *Client) perPage() int {
	if c.cfg.PerPage > 0 {
		return c.cfg.PerPage
	}
	return 200
}
