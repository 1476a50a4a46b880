// Package app 组装病历服务：存储、加密、会话、HTTP 路由、事件消费者与定时任务.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/carevault/pkg/api"
	"github.com/yeisme/carevault/pkg/cache"
	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/extract"
	"github.com/yeisme/carevault/pkg/internal/auth"
	"github.com/yeisme/carevault/pkg/internal/handle"
	"github.com/yeisme/carevault/pkg/internal/jobs"
	"github.com/yeisme/carevault/pkg/internal/keystore"
	"github.com/yeisme/carevault/pkg/internal/service"
	"github.com/yeisme/carevault/pkg/internal/storage"
	"github.com/yeisme/carevault/pkg/log"
	"github.com/yeisme/carevault/pkg/metrics"
	"github.com/yeisme/carevault/pkg/middleware"
	"github.com/yeisme/carevault/pkg/scheduler"
	"github.com/yeisme/carevault/pkg/tracing"
)

// App 持有运行期资源.
type App struct {
	Engine *gin.Engine

	config    *configs.AppConfig
	manager   *storage.Manager
	records   *service.RecordService
	scheduler *scheduler.Scheduler
	consumers bool
}

// New 按配置初始化全部组件，调用方负责 Close.
func New(ctx context.Context, cfg *configs.AppConfig) (*App, error) {
	l := log.Logger()

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Metrics.Enabled {
		if err := metrics.Init(cfg.Metrics); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	manager, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a := &App{config: cfg, manager: manager}

	if err := a.wire(); err != nil {
		return nil, errors.Join(err, a.Close())
	}

	if a.records.Custody() == configs.KeyCustodyInline {
		l.Warn().Msg("content keys are stored next to ciphertext (vault.key_custody=inline)")
	}

	return a, nil
}

func (a *App) wire() error {
	cfg := a.config

	vault, err := keystore.New(cfg.Vault, a.manager.KV)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	sessions := auth.NewSessions(authenticator, a.manager.KV, cfg.Auth.SessionTTL)

	a.records = service.NewRecordService(service.Deps{
		DB:        a.manager.DB,
		Blob:      a.manager.Blob,
		Vault:     vault,
		Extractor: extract.Default(),
		Stats:     cache.New(a.manager.KV, "stats"),
		MQ:        a.manager.MQ,
		Events:    cfg.Events,
		Ingest:    cfg.Ingest,
		Logger:    log.Logger(),
	})

	if err := service.RegisterConsumers(a.manager.MQ, cfg.Events); err != nil {
		return fmt.Errorf("register consumers: %w", err)
	}

	a.consumers = cfg.Events.Enabled && cfg.Events.Consumer

	if a.scheduler, err = scheduler.NewScheduler(); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(a.scheduler, a.records, cfg.Jobs); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	a.Engine = a.engine(handle.New(a.records, sessions, cfg.Auth, cfg.Ingest), sessions)

	return nil
}

func (a *App) engine(h *handle.Handlers, sessions *auth.Sessions) *gin.Engine {
	cfg := a.config

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	engine.MaxMultipartMemory = cfg.Ingest.MaxUploadBytes()

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(cfg.Server),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
	)

	if cfg.Server.Gzip {
		engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/download$`})))
	}

	metrics.Mount(engine, cfg.Metrics)

	engine.Use(
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.AuthMiddleware(cfg.Auth, sessions),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.StorageMiddleware(a.manager),
		middleware.SchedulerMiddleware(a.scheduler),
	)

	api.RegisterGroup(engine, h, cfg.Server)

	return engine
}

// Run 启动 HTTP 服务、事件消费者与定时任务，ctx 取消后优雅退出.
func (a *App) Run(ctx context.Context) error {
	l := log.Logger()
	cfg := a.config.Server

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: cfg.GetTimeoutDuration(),
		WriteTimeout:      cfg.GetTimeoutDuration() * 4,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	if a.consumers {
		g.Go(func() error {
			if err := a.manager.MQ.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("mq router: %w", err)
			}

			return nil
		})
	}

	a.scheduler.Start()

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.GetShutdownDuration())
		defer cancel()

		l.Info().Msg("shutting down")

		return errors.Join(srv.Shutdown(shutdownCtx), tracing.ShutdownTracer(shutdownCtx))
	})

	return g.Wait()
}

// Records 返回病历服务，供 CLI 复用.
func (a *App) Records() *service.RecordService { return a.records }

// Close 释放资源，可重复调用.
func (a *App) Close() error {
	var errs []error

	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Stop())
		a.scheduler = nil
	}

	if a.manager != nil {
		errs = append(errs, a.manager.Close())
		a.manager = nil
	}

	return errors.Join(errs...)
}

// NewRecordsOnly 只初始化存储与病历服务，CLI 子命令使用.
func NewRecordsOnly(ctx context.Context, cfg *configs.AppConfig) (*App, error) {
	manager, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a := &App{config: cfg, manager: manager}

	vault, err := keystore.New(cfg.Vault, manager.KV)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init vault: %w", err), a.Close())
	}

	a.records = service.NewRecordService(service.Deps{
		DB:     manager.DB,
		Blob:   manager.Blob,
		Vault:  vault,
		Stats:  cache.New(manager.KV, "stats"),
		Ingest: cfg.Ingest,
		Logger: log.Logger(),
	})

	return a, nil
}
