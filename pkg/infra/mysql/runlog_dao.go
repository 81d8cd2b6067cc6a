package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// RunLog 同步执行历史记录
type RunLog struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Kind           string `gorm:"size:32;index"` // daily/outstanding/ledger_sync/platform_sync
	TaskID         string `gorm:"size:64"`
	StartDate      string `gorm:"size:16"`
	EndDate        string `gorm:"size:16"`
	TrackingCount  int
	StatusCount    int
	Success        bool
	ErrorMessage   string `gorm:"type:text"`
	StartedAt      time.Time
	FinishedAt     time.Time
	DurationMillis int64
}

// TableName 指定表名
func (RunLog) TableName() string {
	return "sync_run_logs"
}

// RunLogDAO 执行历史数据访问对象
type RunLogDAO struct {
	db *gorm.DB
}

// NewRunLogDAO 创建 RunLogDAO 实例
func NewRunLogDAO(dsn string) (*RunLogDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&RunLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run log table: %w", err)
	}

	return &RunLogDAO{db: db}, nil
}

// Record 写入一次同步执行记录
func (dao *RunLogDAO) Record(ctx context.Context, entry *RunLog) error {
	if entry.FinishedAt.After(entry.StartedAt) {
		entry.DurationMillis = entry.FinishedAt.Sub(entry.StartedAt).Milliseconds()
	}

	result := dao.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to record run log: %w", result.Error)
	}
	return nil
}

// RecentByKind 查询某类同步最近的执行记录
func (dao *RunLogDAO) RecentByKind(ctx context.Context, kind string, limit int) ([]RunLog, error) {
	var logs []RunLog
	result := dao.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query run logs: %w", result.Error)
	}
	return logs, nil
}

// Close 关闭数据库连接
func (dao *RunLogDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
