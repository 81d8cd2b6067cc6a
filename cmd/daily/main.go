package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/JasonSung0724/bagel-shopline/internal/app"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "配置文件路径")
		dateStr    = flag.String("date", "", "对账日期 YYYY-MM-DD，默认今天")
		mailNotify = flag.Bool("mail-notify", false, "更新状态时是否触发平台邮件通知")
	)
	flag.Parse()

	targetDate := time.Now()
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			log.Fatalf("Invalid -date %q: %v", *dateStr, err)
		}
		targetDate = parsed
	}

	application, cleanup, err := app.Build(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	ctx := logger.WithTraceID(context.Background(), time.Now().Format("daily-20060102150405"))
	result, err := application.Daily.Run(ctx, targetDate, targetDate, *mailNotify)
	if err != nil {
		application.Log.Errorf(ctx, "每日對帳失敗: %v", err)
		cleanup()
		os.Exit(1)
	}

	application.Log.Infof(ctx, "每日對帳結束: 台帳 %d 筆, Shopline 補單號 %d 筆 / 狀態 %d 筆, 錯誤 %d 筆",
		result.LedgerUpdated, result.PlatformTracking, result.PlatformStatus, len(result.Errors))
}
