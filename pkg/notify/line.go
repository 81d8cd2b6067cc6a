package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Sender 推送一段文字到通知群
type Sender interface {
	Push(ctx context.Context, text string) error
}

// LineSender LINE Messaging API 推送实现
type LineSender struct {
	api     *messaging_api.MessagingApiAPI
	groupID string
}

// NewLineSender 创建 LINE 推送器
func NewLineSender(channelToken, groupID string) (*LineSender, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create line client: %w", err)
	}
	return &LineSender{api: api, groupID: groupID}, nil
}

// Push 推送文字讯息
func (s *LineSender) Push(ctx context.Context, text string) error {
	_, err := s.api.PushMessage(&messaging_api.PushMessageRequest{
		To: s.groupID,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	}, "")
	if err != nil {
		return fmt.Errorf("push line message: %w", err)
	}
	return nil
}

// Reporter 讯息缓冲 + 推送
// 一轮运行中各步骤往里塞讯息，最后合并成一条推出去
type Reporter struct {
	mu       sync.Mutex
	messages []string
	sender   Sender
}

// NewReporter 创建 Reporter；sender 可为 nil（只攒不发，测试或 dry-run）
func NewReporter(sender Sender) *Reporter {
	return &Reporter{sender: sender}
}

// Add 追加一条讯息
func (r *Reporter) Add(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Combined 合并当前所有讯息
func (r *Reporter) Combined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.messages, "\n")
}

// Count 当前讯息条数
func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Flush 发送合并讯息并清空缓冲
// 没有讯息或没有 sender 时什么都不做
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	text := strings.Join(r.messages, "\n")
	r.messages = nil
	r.mu.Unlock()

	if text == "" || r.sender == nil {
		return nil
	}
	return r.sender.Push(ctx, text)
}
