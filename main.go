package main

import (
	"context"
	"log"
	"os"
	"time"

	"docuchat/internal/api"
	"docuchat/internal/auth"
	"docuchat/internal/cache"
	"docuchat/internal/config"
	"docuchat/internal/embed"
	"docuchat/internal/extract"
	"docuchat/internal/ingest"
	"docuchat/internal/llm"
	"docuchat/internal/query"
	"docuchat/internal/redis"
	"docuchat/internal/segment"
	"docuchat/internal/storage"
	"docuchat/internal/vector"
	"docuchat/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("DOCUCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	dbType := os.Getenv("DOCUCHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	logger.Info("opening database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("create redis client", zap.Error(err))
	}
	defer rdb.Close()

	authService := auth.NewService(db, rdb, []byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	embedder, err := embed.NewOpenAIClient(cfg.Embedding)
	if err != nil {
		logger.Fatal("init embedding client", zap.Error(err))
	}
	indexes := vector.NewRegistry(cfg.VectorIndex.CollectionPrefix,
		func(namespace, owner string) (vector.Store, error) {
			return vector.NewQdrantStore(cfg.VectorIndex, namespace, owner), nil
		})
	generator, err := llm.NewChatGenerator(context.Background(), cfg)
	if err != nil {
		logger.Fatal("init chat model", zap.Error(err))
	}

	answers := cache.NewAnswerCache(rdb, time.Duration(cfg.BasicConfig.AnswerCacheTTL)*time.Minute)
	segmenter := segment.New(cfg.BasicConfig.ChunkSize, cfg.BasicConfig.ChunkOverlap)
	ingestService := ingest.NewService(extract.NewPDF(), segmenter, embedder, indexes, answers, logger)
	queryService := query.NewService(embedder, indexes, generator, answers, cfg.BasicConfig.TopK, logger)

	jobs := worker.NewManager(ingestService, queryService, worker.Options{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}, logger)

	handlers := api.NewHandler(authService, jobs, cfg.BasicConfig.MaxUploadMB, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	logger.Info("server starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
