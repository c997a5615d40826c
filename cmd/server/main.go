package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	llmopenai "hybridrag/internal/adapter/provider/llm/openai"
	"hybridrag/internal/api"
	"hybridrag/internal/db/memcache"
	"hybridrag/internal/db/postgres"
	redisdb "hybridrag/internal/db/redis"
	"hybridrag/internal/domain/intent"
	"hybridrag/internal/domain/rag"
	"hybridrag/internal/domain/router"
	"hybridrag/internal/domain/student"
	"hybridrag/internal/platform/config"
	applog "hybridrag/internal/platform/log"
	"hybridrag/internal/tool/websearch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.Ping(); err != nil {
		applog.Fatalf("❌ Failed to ping database: %v", err)
	}
	applog.Info("✅ Connected to PostgreSQL")

	store := postgres.NewStudentStore(db)
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.MigrationTimeoutSeconds)*time.Second)
	if err := store.EnsureSchema(migrateCtx); err != nil {
		migrateCancel()
		applog.Fatalf("❌ Failed to ensure students table: %v", err)
	}
	migrateCancel()
	applog.Info("✅ Students table ready")

	cache := initAnswerCache(cfg)

	llm := llmopenai.New(llmopenai.Config{
		APIKey:                cfg.LLM.APIKey,
		BaseURL:               cfg.LLM.BaseURL,
		ConnectTimeoutSeconds: cfg.LLM.ConnectTimeoutSeconds,
	})

	embedder := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.Embedding.Model,
		Dims:    cfg.Embedding.Dims,
	})

	index, err := rag.LoadFlatIndex(cfg.Index.VectorFile, cfg.Index.TextsFile)
	if err != nil {
		applog.Fatalf("❌ Failed to load vector index: %v", err)
	}
	applog.Infof("✅ Vector index loaded (%d passages, %d dims)", index.Len(), index.Dims())

	retriever, err := rag.NewRetriever(embedder, index)
	if err != nil {
		applog.Fatalf("❌ Failed to build retriever: %v", err)
	}
	assembler := rag.NewAssembler(retriever, llm, cfg.LLM.Model)

	searcher := websearch.NewClient(websearch.Config{
		BaseURL:        cfg.WebSearch.BaseURL,
		TimeoutSeconds: cfg.WebSearch.TimeoutSeconds,
	})

	studentSvc := student.NewService(store, llm, cfg.LLM.Model)

	queryRouter, err := router.New(router.Config{
		Cache:      cache,
		Classifier: intent.NewClassifier(),
		Students:   studentSvc,
		Web:        searcher,
		RAG:        assembler,
		LLM:        llm,
		Model:      cfg.LLM.Model,
	})
	if err != nil {
		applog.Fatalf("❌ Failed to build query router: %v", err)
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer
	server := api.NewServer(serverConfig, queryRouter, store)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// initAnswerCache Redis 可用时用 Redis，否则降级为进程内缓存
func initAnswerCache(cfg *config.AppConfig) router.AnswerCache {
	if cfg.Redis.URL == "" {
		applog.Info("ℹ️  No REDIS_URL set, using in-memory answer cache")
		return memcache.NewAnswerCache()
	}

	opt, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		applog.Warnf("⚠️  Invalid REDIS_URL, falling back to in-memory cache: %v", err)
		return memcache.NewAnswerCache()
	}

	client := goredis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		applog.Warnf("⚠️  Redis ping failed, falling back to in-memory cache: %v", err)
		return memcache.NewAnswerCache()
	}

	applog.Info("✅ Connected to Redis for answer cache")
	return redisdb.NewAnswerCache(client)
}
