package workflow

import (
	"context"

	"github.com/JasonSung0724/bagel-shopline/pkg/infra/mysql"
)

// Recorder 运行记录落库接口
// 可选能力：没配 MySQL 时传 nil，落库失败只告警不影响对账结果
type Recorder interface {
	Record(ctx context.Context, entry *mysql.RunLog) error
}

// maxReportedErrors 通知里最多带几条错误，超出的只在日志里
const maxReportedErrors = 5

// maxErrorLength 单条错误在通知里的截断长度
const maxErrorLength = 200

// appendError 有界收集错误文本
func appendError(errs []string, msg string) []string {
	if len(errs) >= maxReportedErrors {
		return errs
	}
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength] + "..."
	}
	return append(errs, msg)
}
