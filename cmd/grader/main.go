package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"judgeboard/internal/common/cache"
	"judgeboard/internal/common/db"
	commonmw "judgeboard/internal/common/http/middleware"
	"judgeboard/internal/common/mq"
	"judgeboard/internal/common/ratelimit"
	"judgeboard/internal/common/storage"
	judgecontroller "judgeboard/internal/judge/controller"
	judgerepo "judgeboard/internal/judge/repository"
	"judgeboard/internal/judge/sandbox"
	judgeservice "judgeboard/internal/judge/service"
	"judgeboard/internal/judge/transform"
	lbcontroller "judgeboard/internal/leaderboard/controller"
	lbrepo "judgeboard/internal/leaderboard/repository"
	lbservice "judgeboard/internal/leaderboard/service"
	submitcontroller "judgeboard/internal/submit/controller"
	submitrepo "judgeboard/internal/submit/repository"
	submitservice "judgeboard/internal/submit/service"
	"judgeboard/pkg/utils/logger"
	"judgeboard/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/grader.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	problems, err := buildProblemRepository(appCfg)
	if err != nil {
		logger.Error(ctx, "init problem repository failed", zap.Error(err))
		return
	}

	executor, err := sandbox.NewProcessExecutor(appCfg.Sandbox.toExecutorConfig())
	if err != nil {
		logger.Error(ctx, "init executor failed", zap.Error(err))
		return
	}

	judgeSvc, err := judgeservice.NewService(judgeservice.Config{
		Problems:      problems,
		Executor:      executor,
		Transformer:   transform.New(appCfg.Judge.toTransformConfig(), transform.DefaultInputRegistry()),
		Timeout:       appCfg.Judge.Timeout,
		MaxConcurrent: appCfg.Judge.MaxConcurrent,
		QueueWait:     appCfg.Judge.QueueWait,
		MaxCodeSize:   appCfg.Judge.MaxCodeSize,
	})
	if err != nil {
		logger.Error(ctx, "init judge service failed", zap.Error(err))
		return
	}

	persister, closePersister, err := buildPersister(ctx, appCfg)
	if err != nil {
		logger.Error(ctx, "init leaderboard persister failed", zap.Error(err))
		return
	}
	defer closePersister()

	store, err := lbservice.NewStore(ctx, persister)
	if err != nil {
		logger.Error(ctx, "load leaderboard failed", zap.Error(err))
		return
	}

	events, closeEvents, err := buildEventPublisher(appCfg.Kafka)
	if err != nil {
		logger.Error(ctx, "init event publisher failed", zap.Error(err))
		return
	}
	defer closeEvents()

	submitSvc, err := submitservice.NewSubmitService(submitservice.Config{
		Judge:       judgeSvc,
		Leaderboard: store,
		Events:      events,
	})
	if err != nil {
		logger.Error(ctx, "init submit service failed", zap.Error(err))
		return
	}

	limiter, closeLimiter, err := buildLimiter(appCfg)
	if err != nil {
		logger.Error(ctx, "init rate limiter failed", zap.Error(err))
		return
	}
	defer closeLimiter()

	httpServer := buildHTTPServer(appCfg.Server, limiter, judgeSvc, store, submitSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "grader http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if err := store.Flush(stopCtx); err != nil {
		logger.Error(ctx, "flush leaderboard failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, limiter ratelimit.Limiter, judgeSvc *judgeservice.Service, store *lbservice.Store, submitSvc *submitservice.SubmitService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.CORS != nil {
		router.Use(commonmw.CORSMiddleware(*cfg.CORS))
	}
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	api := router.Group("/api")
	api.Use(routeRateLimits(limiter, cfg.RateLimit))
	judgecontroller.NewJudgeController(judgeSvc).Register(api)
	submitcontroller.NewSubmitController(submitSvc).Register(api)
	lbcontroller.NewLeaderboardController(store).Register(api)
	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// routeRateLimits applies the run and submit policies by matched route.
func routeRateLimits(limiter ratelimit.Limiter, cfg RateLimitConfig) gin.HandlerFunc {
	limits := map[string]gin.HandlerFunc{
		"/api/run":    commonmw.RateLimitMiddleware(limiter, "run", cfg.Run, cfg.Window),
		"/api/submit": commonmw.RateLimitMiddleware(limiter, "submit", cfg.Submit, cfg.Window),
	}
	return func(c *gin.Context) {
		if limit, ok := limits[c.FullPath()]; ok {
			limit(c)
			return
		}
		c.Next()
	}
}

func buildLimiter(cfg *AppConfig) (ratelimit.Limiter, func(), error) {
	rl := cfg.Server.RateLimit
	if !rl.enabled() {
		return nil, func() {}, nil
	}
	if rl.Backend == limiterRedis {
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisLimiter(redisCache, rl.Window, rl.RedisTimeout), func() { _ = redisCache.Close() }, nil
	}
	return ratelimit.NewMemoryLimiter(rl.Window), func() {}, nil
}

func buildProblemRepository(cfg *AppConfig) (judgerepo.ProblemRepository, error) {
	var (
		source judgerepo.ProblemRepository
		err    error
	)
	switch cfg.Problems.Source {
	case sourceMinIO:
		var objStorage *storage.MinIOStorage
		objStorage, err = storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		source, err = judgerepo.NewObjectRepository(objStorage, cfg.Problems.Bucket, cfg.Problems.Prefix)
	default:
		source, err = judgerepo.NewDirRepository(cfg.Problems.Dir)
	}
	if err != nil {
		return nil, err
	}
	return judgerepo.NewCachedRepository(source), nil
}

func buildPersister(ctx context.Context, cfg *AppConfig) (lbrepo.Persister, func(), error) {
	switch cfg.Leaderboard.Backend {
	case backendRedis:
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return lbrepo.NewRedisPersister(redisCache, cfg.Leaderboard.RedisKey), func() { _ = redisCache.Close() }, nil
	case backendMySQL, backendPostgres:
		database, err := db.NewWithConfig(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		persister := lbrepo.NewSQLPersister(database)
		if err := persister.EnsureSchema(ctx); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		return persister, func() { _ = database.Close() }, nil
	default:
		return lbrepo.NewFilePersister(cfg.Leaderboard.File), func() {}, nil
	}
}

func buildEventPublisher(cfg KafkaConfig) (submitrepo.EventPublisher, func(), error) {
	if !cfg.enabled() {
		return submitrepo.NopEventPublisher{}, func() {}, nil
	}
	producer, err := mq.NewKafkaProducer(cfg.toMQConfig())
	if err != nil {
		return nil, nil, err
	}
	return submitrepo.NewMQEventPublisher(producer, cfg.Topic, cfg.PublishTimeout), func() { _ = producer.Close() }, nil
}
