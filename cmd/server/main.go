package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/thomaseleff/bunsen/common/id"
	"github.com/thomaseleff/bunsen/common/llm"
	"github.com/thomaseleff/bunsen/common/logger"
	"github.com/thomaseleff/bunsen/common/otel"
	"github.com/thomaseleff/bunsen/core/config"
	"github.com/thomaseleff/bunsen/internal/http/middleware"
	httprouter "github.com/thomaseleff/bunsen/internal/http/router"
	"github.com/thomaseleff/bunsen/internal/lock"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/prompt"
	"github.com/thomaseleff/bunsen/internal/service"
	"github.com/thomaseleff/bunsen/internal/service/issue_tracker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "bunsen starting", "env", cfg.Env, "agent", cfg.Agent.Identity)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Lock.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Lock.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		locker = lock.NewRedisLocker(redisClient, lock.Config{TTL: cfg.Lock.TTL, Wait: cfg.Lock.Wait})
		slog.InfoContext(ctx, "redis connected, per-issue locking enabled")
	} else {
		slog.WarnContext(ctx, "REDIS_URL not set, concurrent deliveries for one issue are not serialized")
	}

	trackers, err := issue_tracker.NewGitHubProvider(issue_tracker.ProviderConfig{
		AppID:      cfg.GitHub.AppID,
		PrivateKey: []byte(cfg.GitHub.PrivateKey),
		Token:      cfg.GitHub.Token,
		APIURL:     cfg.GitHub.APIURL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create github provider", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "llm client ready", "provider", cfg.LLM.Provider, "model", llmClient.Model())

	persona := prompt.Persona{Name: cfg.Agent.Name, Identity: model.AgentIdentity(cfg.Agent.Identity)}

	services, err := service.NewServices(service.ServicesConfig{
		Config:   cfg,
		Trackers: trackers,
		Replies:  service.NewLLMReplyGenerator(llmClient, persona, cfg.LLM.MaxTokens),
		Locker:   locker,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create services", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GitHub.Timeout*4 + cfg.LLM.Timeout + cfg.Lock.Wait,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName, otelgin.WithFilter(otel.TraceRequest)))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services)

	return router
}

const banner = `
██████╗ ██╗   ██╗███╗   ██╗███████╗███████╗███╗   ██╗
██╔══██╗██║   ██║████╗  ██║██╔════╝██╔════╝████╗  ██║
██████╔╝██║   ██║██╔██╗ ██║███████╗█████╗  ██╔██╗ ██║
██╔══██╗██║   ██║██║╚██╗██║╚════██║██╔══╝  ██║╚██╗██║
██████╔╝╚██████╔╝██║ ╚████║███████║███████╗██║ ╚████║
╚═════╝  ╚═════╝ ╚═╝  ╚═══╝╚══════╝╚══════╝╚═╝  ╚═══╝
`
