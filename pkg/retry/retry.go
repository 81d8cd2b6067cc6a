package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Linear 线性退避：第 n 次重试等待 n × step
// 固定间隔会造成对被爬页面的同步冲击，指数退避又没必要
func Linear(step time.Duration) backoff.BackOff {
	return &linearBackOff{step: step}
}

type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// Policy 有界重试策略
// 显式循环替代递归重试，次数和间隔作为数据可独立测试
type Policy struct {
	MaxAttempts int           // 总尝试次数（含首次）
	Interval    time.Duration // 两次尝试之间的等待
}

// Do 执行 op，失败则按策略重试；返回最后一次的错误
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Interval):
			}
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
