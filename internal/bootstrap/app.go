// Package bootstrap wires configuration, platform clients, model services,
// and workers into one application container.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ragbase/internal/ai"
	appsvc "ragbase/internal/app"
	"ragbase/internal/cache"
	"ragbase/internal/chunker"
	"ragbase/internal/config"
	"ragbase/internal/docparse"
	"ragbase/internal/model"
	"ragbase/internal/ocr"
	mysqlClient "ragbase/internal/platform/mysql"
	rabbitmqClient "ragbase/internal/platform/rabbitmq"
	redisClient "ragbase/internal/platform/redis"
	"ragbase/internal/repository"
	"ragbase/internal/watcher"
	"ragbase/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	JobPublisher    *rabbitmqClient.JobPublisher
	IngestService   *appsvc.IngestService
	QAService       *appsvc.QAService
	DocumentService *appsvc.DocumentService

	ingestWorker *worker.IngestWorker
	dirWatcher   *watcher.Watcher
	ocrEngine    *ocr.Engine

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.DocumentChunk{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	// The OCR engine loads its model on first use, so constructing it here is
	// cheap even when no images are ever ingested.
	ocrEngine := ocr.NewEngine(cfg.OCR.ModelPath, cfg.OCR.CharsetPath, cfg.OCR.ONNXSharedLibPath)

	parser := docparse.NewParser(cfg.MaxFileSizeBytes(), ocrEngine, logger)
	splitter := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	aiClient := ai.NewClient()
	embedder := ai.NewEmbeddingService(aiClient, ai.EmbeddingConfig{
		BaseURL: cfg.Models.EmbeddingBaseURL,
		APIKey:  cfg.Models.EmbeddingAPIKey,
		Model:   cfg.Models.EmbeddingModel,
	})
	cachedEmbedder := cache.NewEmbeddingCache(
		embedder,
		redisCli,
		time.Duration(cfg.Redis.EmbeddingTTLSeconds)*time.Second,
		logger,
	)
	reranker := ai.NewRerankService(aiClient, ai.RerankConfig{
		BaseURL: cfg.Models.RerankBaseURL,
		APIKey:  cfg.Models.RerankAPIKey,
		Model:   cfg.Models.RerankModel,
	})
	generator := ai.NewChatService(aiClient, ai.ChatConfig{
		BaseURL: cfg.Models.LLMBaseURL,
		APIKey:  cfg.Models.LLMAPIKey,
		Model:   cfg.Models.LLMModel,
	})

	chunkRepo := repository.NewChunkRepository(mysqlDB)
	ingestService := appsvc.NewIngestService(cfg, parser, splitter, cachedEmbedder, chunkRepo, logger)
	qaService := appsvc.NewQAService(cfg, cachedEmbedder, reranker, generator, chunkRepo, logger)
	documentService := appsvc.NewDocumentService(cfg, chunkRepo, logger)

	publisher := rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.IngestJobQueue)

	ingestWorker := worker.NewIngestWorker(mqConn, cfg.RabbitMQ.IngestJobQueue, ingestService, logger)
	if err := ingestWorker.Start(); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	var dirWatcher *watcher.Watcher
	if len(cfg.Ingest.WatchDirs) > 0 {
		dirWatcher, err = watcher.New(publisher, cfg.Ingest.WatchDirs, logger)
		if err != nil {
			return nil, fmt.Errorf("create watcher failed: %w", err)
		}
		if err := dirWatcher.Start(); err != nil {
			return nil, fmt.Errorf("start watcher failed: %w", err)
		}
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		MySQL:           mysqlDB,
		Redis:           redisCli,
		MQConn:          mqConn,
		JobPublisher:    publisher,
		IngestService:   ingestService,
		QAService:       qaService,
		DocumentService: documentService,
		ingestWorker:    ingestWorker,
		dirWatcher:      dirWatcher,
		ocrEngine:       ocrEngine,
		StartedAt:       time.Now(),
	}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.App.Env == "dev" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zcfg.Build()
}

func (a *App) Close() error {
	var closeErr error
	if a.dirWatcher != nil {
		a.dirWatcher.Close()
	}
	if a.ingestWorker != nil {
		a.ingestWorker.Close()
	}
	if a.ocrEngine != nil {
		a.ocrEngine.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
