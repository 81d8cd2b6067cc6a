package app

import (
	"context"
	"fmt"

	"github.com/JasonSung0724/bagel-shopline/internal/ledger"
	"github.com/JasonSung0724/bagel-shopline/internal/manifest"
	"github.com/JasonSung0724/bagel-shopline/internal/platform"
	"github.com/JasonSung0724/bagel-shopline/internal/status"
	"github.com/JasonSung0724/bagel-shopline/internal/workflow"
	"github.com/JasonSung0724/bagel-shopline/pkg/config"
	"github.com/JasonSung0724/bagel-shopline/pkg/infra/gsheet"
	"github.com/JasonSung0724/bagel-shopline/pkg/infra/mysql"
	"github.com/JasonSung0724/bagel-shopline/pkg/infra/redis"
	"github.com/JasonSung0724/bagel-shopline/pkg/logger"
	"github.com/JasonSung0724/bagel-shopline/pkg/notify"
)

// App 组装好的应用依赖
type App struct {
	Cfg         *config.Config
	Log         logger.Logger
	Daily       *workflow.Daily
	Outstanding *workflow.Outstanding

	// PubSub 任务完成事件发布端，没配 Redis 时为 nil
	PubSub *redis.PubSub
}

// Build 按配置组装全部依赖
// MySQL 与 Redis 是可选能力，没配就留空；其余缺一不可
func Build(configPath string) (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	log, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger failed: %w", err)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		_ = log.Sync()
	}

	mapper, err := status.NewMapper(cfg.StatusMap)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init status mapper failed: %w", err)
	}

	var store ledger.SheetStore
	store, err = gsheet.NewStore(context.Background(), cfg.Ledger.CredentialsFile)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init sheet store failed: %w", err)
	}

	api := platform.NewClient(cfg.Platform, log)

	var sender notify.Sender
	if cfg.Notify.ChannelToken != "" {
		lineSender, err := notify.NewLineSender(cfg.Notify.ChannelToken, cfg.Notify.GroupID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init line sender failed: %w", err)
		}
		sender = lineSender
	}
	reporter := notify.NewReporter(sender)

	var recorder workflow.Recorder
	if cfg.MySQL.DSN != "" {
		dao, err := mysql.NewRunLogDAO(cfg.MySQL.DSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init run log dao failed: %w", err)
		}
		cleanups = append(cleanups, func() { _ = dao.Close() })
		recorder = dao
	}

	var pubsub *redis.PubSub
	if cfg.Redis.Addr != "" {
		pubsub, err = redis.NewPubSub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init redis pubsub failed: %w", err)
		}
		cleanups = append(cleanups, func() { _ = pubsub.Close() })
	}

	fetcher := manifest.FileFetcher{Path: cfg.Manifest.Path}
	parser := manifest.CSVParser{}

	daily := workflow.NewDaily(fetcher, parser, store, api, mapper, cfg, reporter, recorder, log)
	outstanding := workflow.NewOutstanding(api, mapper, cfg, reporter, recorder, log)

	return &App{
		Cfg:         cfg,
		Log:         log,
		Daily:       daily,
		Outstanding: outstanding,
		PubSub:      pubsub,
	}, cleanup, nil
}
