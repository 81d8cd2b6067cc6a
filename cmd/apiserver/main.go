package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JasonSung0724/bagel-shopline/internal/app"
	"github.com/JasonSung0724/bagel-shopline/internal/server/handlers/sync"
	"github.com/JasonSung0724/bagel-shopline/internal/server/routers"
	"github.com/JasonSung0724/bagel-shopline/internal/task"
	"github.com/JasonSung0724/bagel-shopline/pkg/infra/redis"
)

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 1. 组装依赖
	application, cleanup, err := app.Build(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	// 2. 任务注册表 + 完成事件发布
	registry := task.NewRegistry(application.Log)
	if application.PubSub != nil {
		channel := application.Cfg.Redis.Channel
		pubsub := application.PubSub
		registry.OnFinish = func(ctx context.Context, t *task.Task) {
			notification := &redis.TaskNotification{
				TaskID:    t.ID,
				Kind:      string(t.Kind),
				State:     string(t.State),
				Error:     t.Error,
				Timestamp: time.Now().Unix(),
			}
			if err := pubsub.PublishTaskComplete(ctx, channel, notification); err != nil {
				application.Log.Warnf(ctx, "任務完成事件發布失敗: %v", err)
			}
		}
	}

	// 3. 路由
	syncHandler := sync.NewSyncHandler(registry, application.Daily, application.Log)
	engine := routers.SetupRoutes(syncHandler)

	addr := fmt.Sprintf(":%s", application.Cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	// 4. 启动 HTTP Server（后台 goroutine）
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 5. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
		gracefulShutdown(server, registry)
	case err := <-serverErrChan:
		log.Fatalf("HTTP server error: %v", err)
	}

	log.Println("Application stopped")
}

// gracefulShutdown 优雅停机：先停接单，再等在跑的任务收尾
func gracefulShutdown(server *http.Server, registry *task.Registry) {
	log.Println("Stopping HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	log.Println("Waiting for running tasks...")
	registry.Close()

	log.Println("All services stopped gracefully")
}
