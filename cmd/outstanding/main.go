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
		mailNotify = flag.Bool("mail-notify", false, "更新状态时是否触发平台邮件通知")
	)
	flag.Parse()

	application, cleanup, err := app.Build(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	ctx := logger.WithTraceID(context.Background(), time.Now().Format("outstanding-20060102150405"))
	result, err := application.Outstanding.Run(ctx, *mailNotify)
	if err != nil {
		application.Log.Errorf(ctx, "未完結訂單掃描失敗: %v", err)
		cleanup()
		os.Exit(1)
	}

	application.Log.Infof(ctx, "未完結訂單掃描結束: 更新狀態 %d 筆", result.StatusUpdated)
}
