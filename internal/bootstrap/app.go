package bootstrap

import (
	"context"
	"fmt"
	"time"

	miniosdk "github.com/minio/minio-go/v7"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"legalchat/internal/ai"
	"legalchat/internal/app"
	"legalchat/internal/cache"
	"legalchat/internal/config"
	"legalchat/internal/extract"
	"legalchat/internal/model"
	minioClient "legalchat/internal/platform/minio"
	mysqlClient "legalchat/internal/platform/mysql"
	rabbitmqClient "legalchat/internal/platform/rabbitmq"
	redisClient "legalchat/internal/platform/redis"
	"legalchat/internal/repository"
	"legalchat/internal/storage"
	"legalchat/internal/store"
	"legalchat/internal/worker"
)

// App holds every long-lived dependency of the server process.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Minio  *miniosdk.Client

	Conversations   *store.ConversationStore
	AuthService     *app.AuthService
	ChatService     *app.ChatService
	DocumentService *app.DocumentService
	TitleWorker     *worker.TitleWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.Attachment{},
		&model.ProcessedDocument{},
	); err != nil {
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

	minioCli, err := minioClient.New(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey,
		cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
	if err != nil {
		return nil, err
	}

	convRepo := repository.NewConversationRepository(mysqlDB)
	msgRepo := repository.NewMessageRepository(mysqlDB)
	userRepo := repository.NewUserRepository(mysqlDB)
	docRepo := repository.NewDocumentRepository(mysqlDB)

	conversations := store.New(store.NewGormPersister(convRepo, msgRepo), logger)

	llmClient := ai.NewClient()
	llmConfig := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}

	historyCache := cache.NewHistoryCache(redisCli,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.DraftTTLSeconds)*time.Second)
	titlePublisher := rabbitmqClient.NewTitlePublisher(mqConn, cfg.RabbitMQ.TitleQueue)

	authService := app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		logger,
	)
	chatService := app.NewChatService(
		conversations,
		historyCache,
		titlePublisher,
		llmClient,
		llmConfig,
		cfg.LLM.MaxContextMessage,
		logger,
	)

	pipeline := extract.NewPipeline(logger,
		extract.WithMinPDFTextLen(cfg.Extract.MinPDFTextLen),
		extract.WithOCRFactory(extract.NewTesseractFactory(cfg.Extract.OCRLanguages...)),
	)
	blobs := storage.NewMinioStore(minioCli, cfg.Storage.Bucket)
	documentService := app.NewDocumentService(docRepo, blobs, pipeline, logger)

	titleWorker := worker.NewTitleWorker(mqConn, conversations, llmClient, llmConfig,
		cfg.RabbitMQ.TitleQueue, logger)
	if err := titleWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start title worker failed: %w", err)
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		MySQL:           mysqlDB,
		Redis:           redisCli,
		MQConn:          mqConn,
		Minio:           minioCli,
		Conversations:   conversations,
		AuthService:     authService,
		ChatService:     chatService,
		DocumentService: documentService,
		TitleWorker:     titleWorker,
		StartedAt:       time.Now(),
	}, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func (a *App) Close() error {
	var closeErr error
	if a.TitleWorker != nil {
		a.TitleWorker.Close()
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
