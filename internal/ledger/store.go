package ledger

import (
	"context"
	"errors"
)

// ErrLayoutDrift 表头布局与配置的字段映射对不上
// 这是 schema 漂移信号，对该表致命，绝不静默跳过
var ErrLayoutDrift = errors.New("ledger: sheet column layout drift")

// ErrDuplicateOrder 同一张表里出现重复订单号
// 台账假设订单号唯一；违反时宁可报错也不随便挑一行改
var ErrDuplicateOrder = errors.New("ledger: duplicate order number in sheet")

// SheetStore 台账存取接口
// Google Sheets 实现在 pkg/infra/gsheet，测试用带变更日志的假实现
type SheetStore interface {
	// ListSheets 列出所有可见的试算表名
	ListSheets(ctx context.Context) ([]string, error)

	// ReadAll 读取整张表（首个工作表）的全部值，首行是表头
	ReadAll(ctx context.Context, sheetName string) ([][]string, error)

	// WriteAll 整块覆写（不是逐格 patch，也不是 append）
	WriteAll(ctx context.Context, sheetName string, values [][]string) error
}
