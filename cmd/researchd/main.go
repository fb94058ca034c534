package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polyresearch/internal/catalog"
	"polyresearch/internal/config"
	cronrunner "polyresearch/internal/cron"
	"polyresearch/internal/db"
	"polyresearch/internal/evaluation"
	"polyresearch/internal/handler"
	"polyresearch/internal/logger"
	"polyresearch/internal/queue"
	gormrepository "polyresearch/internal/repository/gorm"
	"polyresearch/internal/research"
	"polyresearch/internal/research/provider"
)

func main() {
	cfgPath := os.Getenv("PR_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PR_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := queue.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()

	taskQueue := queue.New(rdb, cfg.Research.Stream, cfg.Research.Group)
	if err := taskQueue.EnsureGroup(ctx); err != nil {
		logger.Fatal("queue group init failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	registry := research.NewRegistry()
	if cfg.Providers.OpenAI.Configured() {
		registry.Register(research.TechniqueDeepResearch, provider.NewDeepResearch(
			cfg.Providers.OpenAI.APIKey,
			cfg.Providers.OpenAI.BaseURL,
			cfg.Research.DeepResearchModel,
		))
		registry.Register(research.TechniqueQuickSearch, provider.NewQuickSearch(
			cfg.Providers.OpenAI.APIKey,
			cfg.Providers.OpenAI.BaseURL,
			cfg.Research.QuickSearchModel,
		))
	} else {
		logger.Warn("openai credential missing; deep_research and quick_search disabled")
	}
	if cfg.Providers.Anthropic.Configured() {
		registry.Register(research.TechniqueSynthesis, provider.NewSynthesis(
			cfg.Providers.Anthropic.APIKey,
			cfg.Providers.Anthropic.BaseURL,
			cfg.Research.SynthesisModel,
			int64(cfg.Evaluation.EstimatorMaxTokens),
		))
	} else {
		logger.Warn("anthropic credential missing; synthesis and evaluation disabled")
	}

	var engine *evaluation.Engine
	if cfg.Providers.Anthropic.Configured() {
		engine = &evaluation.Engine{
			Repo: store,
			Estimator: evaluation.NewAnthropicEstimator(
				cfg.Providers.Anthropic.APIKey,
				cfg.Providers.Anthropic.BaseURL,
				cfg.Evaluation.EstimatorModel,
				int64(cfg.Evaluation.EstimatorMaxTokens),
			),
			Logger: logger,
			Config: cfg.Evaluation,
			Sizing: cfg.Sizing,
		}
	}

	orchestrator := &research.Orchestrator{
		Repo:      store,
		Providers: registry,
		Queue:     taskQueue,
		Logger:    logger,
		Config:    cfg.Research,
	}
	if engine != nil {
		orchestrator.Evaluator = engine
	}

	pool := &queue.WorkerPool{
		Queue:   taskQueue,
		Handler: orchestrator.Process,
		Logger:  logger,
		Workers: cfg.Research.Workers,
	}
	go func() {
		if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("worker pool stopped", zap.Error(err))
		}
	}()

	var syncService *catalog.SyncService
	if cfg.MarketSync.Enabled {
		gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
		syncService = &catalog.SyncService{
			Store:  store,
			Gamma:  catalog.NewGammaClient(gammaHTTP, cfg.Gamma.BaseURL),
			Logger: logger,
			Config: cfg.MarketSync,
		}
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Redis: rdb}
	healthHandler.Register(router)
	marketHandler := &handler.MarketHandler{Repo: store, Sync: syncService}
	marketHandler.Register(router)
	researchHandler := &handler.ResearchHandler{Repo: store, Orchestrator: orchestrator}
	researchHandler.Register(router)
	evalHandler := &handler.EvaluationHandler{Repo: store, Engine: engine}
	evalHandler.Register(router)
	pipelineHandler := &handler.PipelineHandler{Repo: store}
	pipelineHandler.Register(router)

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		if syncService != nil {
			_, err = cronRunner.Add(cfg.Cron.MarketSync, func(ctx context.Context) {
				result, err := syncService.Sync(ctx)
				if err != nil {
					logger.Warn("cron market sync failed", zap.Error(err))
					return
				}
				logger.Info("cron market sync ok",
					zap.Int("pages", result.Pages),
					zap.Int("markets", result.Markets),
				)
			})
			if err != nil {
				logger.Warn("cron register market sync failed", zap.Error(err))
			}
		}
		_, err = cronRunner.Add(cfg.Cron.StalenessSweep, func(ctx context.Context) {
			if _, err := orchestrator.Cleanup(ctx, cfg.Research.StalenessThreshold); err != nil {
				logger.Warn("cron staleness sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register staleness sweep failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.QueueReclaim, func(ctx context.Context) {
			msgs, err := taskQueue.Reclaim(ctx, "reclaimer", cfg.Research.VisibilityTimeout)
			if err != nil {
				logger.Warn("cron queue reclaim failed", zap.Error(err))
				return
			}
			for _, msg := range msgs {
				if err := orchestrator.Process(ctx, msg.TaskID); err != nil {
					logger.Warn("reclaimed task processing interrupted",
						zap.String("task_id", msg.TaskID),
						zap.Error(err),
					)
					continue
				}
				if err := taskQueue.Ack(ctx, msg.ID); err != nil {
					logger.Warn("reclaimed task ack failed", zap.String("message_id", msg.ID), zap.Error(err))
				}
			}
		})
		if err != nil {
			logger.Warn("cron register queue reclaim failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
