package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SimbaBuilds/NL-To-Automation/engine/dispatcher"
	"github.com/SimbaBuilds/NL-To-Automation/engine/executor"
	"github.com/SimbaBuilds/NL-To-Automation/engine/httpapi"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/cache"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/monitoring"
	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/postgres"
	"github.com/SimbaBuilds/NL-To-Automation/engine/poller"
	"github.com/SimbaBuilds/NL-To-Automation/engine/queue"
	"github.com/SimbaBuilds/NL-To-Automation/engine/scheduler"
	"github.com/SimbaBuilds/NL-To-Automation/engine/toolregistry"
	"github.com/SimbaBuilds/NL-To-Automation/engine/webhook"
	"github.com/SimbaBuilds/NL-To-Automation/engine/webhook/verify"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/config"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook ingress, poller, scheduler, dispatcher, and admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			ctx = logger.ContextWithLogger(ctx, log)
			return runServer(ctx, cfg, log)
		},
	}
}

// deps holds every collaborator wired from cfg, so tickers and route
// registration can share one fully-built graph.
type deps struct {
	store      *postgres.Store
	automation *postgres.AutomationRepo
	users      *postgres.UserRepo
	execLogs   *postgres.ExecutionLogRepo
	credential *postgres.CredentialRepo
	q          *queue.PostgresQueue
	mon        *monitoring.Service
	dispatch   *loggingExecutor
	sched      *scheduler.Scheduler
	poll       *poller.Poller
	drain      *dispatcher.Dispatcher
	ingress    *webhook.Ingress
	api        *httpapi.API
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, func(), error) {
	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, DBName: cfg.Database.DBName, SSLMode: cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	cleanup := func() { _ = store.Close(context.Background()) }

	redis, err := cache.NewRedis(ctx, &cache.Config{Host: splitHost(cfg.Redis.Addr), Port: splitPort(cfg.Redis.Addr), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	prevCleanup := cleanup
	cleanup = func() { prevCleanup(); _ = redis.Close() }

	dedup, err := cache.NewRedisAdapter(redis)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build redis adapter: %w", err)
	}

	mon, err := monitoring.NewMonitoringService(ctx, monitoring.DefaultConfig())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build monitoring service: %w", err)
	}

	automationRepo := postgres.NewAutomationRepo(store)
	userRepo := postgres.NewUserRepo(store)
	execLogRepo := postgres.NewExecutionLogRepo(store)
	credentialRepo := postgres.NewCredentialRepo(store, nil)
	q := queue.New(store, dedup)

	registry := toolregistry.NewRateLimitedClient(cfg.ToolRegistry.BaseURL, cfg.ToolRegistry.RateLimit, cfg.ToolRegistry.RatePeriod)
	exec := executor.New(registry, nil, mon.ExecutionMetrics(), cfg.Executor.ActionTimeout)
	loggingExec := newLoggingExecutor(exec, execLogRepo)

	sched := scheduler.New(automationRepo, execLogRepo, userRepo, loggingExec, scheduler.Options{BatchSize: cfg.Scheduler.BatchSize})
	poll := poller.New(automationRepo, registry, q, mon.PollMetrics(), poller.Options{BatchSize: cfg.Polling.BatchConcurrency})
	drain := dispatcher.New(q, automationRepo, userRepo, loggingExec, dispatcher.Options{BatchSize: cfg.Polling.BatchConcurrency})

	ingress := webhook.New(webhook.Config{
		Services:    webhookServices(cfg),
		Automations: automationRepo,
		Tenants:     credentialRepo,
		Queue:       q,
		Metrics:     mon.WebhookMetrics(),
	})

	api := httpapi.New(httpapi.Options{
		Scheduler:     sched,
		Poller:        poll,
		Dispatcher:    loggingExec,
		Automations:   automationRepo,
		Users:         userRepo,
		ScheduledRuns: automationRepo,
		ExecutionLogs: execLogRepo,
		Classifier:    poll.Classifier(),
	})

	return &deps{
		store: store, automation: automationRepo, users: userRepo, execLogs: execLogRepo,
		credential: credentialRepo, q: q, mon: mon, dispatch: loggingExec,
		sched: sched, poll: poll, drain: drain, ingress: ingress, api: api,
	}, cleanup, nil
}

func runServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Runtime.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), d.mon.GinMiddleware(ctx))
	webhook.RegisterRoutes(router, d.ingress)
	httpapi.RegisterRoutes(router, d.api)
	router.GET("/metrics", d.mon.GinHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	stopTickers := startTickers(ctx, cfg, d, log)
	defer stopTickers()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		log.Info("received shutdown signal")
	case err := <-errCh:
		log.Error("server reported failure, shutting down", "error", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server shutdown complete")
	return nil
}

// startTickers runs the scheduler's bucket cycle, the poller, and the
// queue dispatcher on their own intervals until ctx is canceled, and
// returns a func that waits for them all to stop.
func startTickers(ctx context.Context, cfg *config.Config, d *deps, log logger.Logger) func() {
	done := make(chan struct{}, 3)

	go func() {
		defer func() { done <- struct{}{} }()
		tick(ctx, time.Minute, func() {
			for _, bucket := range scheduler.Buckets {
				if err := d.sched.Tick(ctx, bucket); err != nil {
					log.Warn("scheduler tick failed", "bucket", bucket, "error", err)
				}
			}
		})
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		tick(ctx, time.Minute, func() {
			if err := d.poll.Tick(ctx); err != nil {
				log.Warn("poller tick failed", "error", err)
			}
		})
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		tick(ctx, cfg.Queue.PollInterval, func() {
			if err := d.drain.Tick(ctx); err != nil {
				log.Warn("dispatcher tick failed", "error", err)
			}
		})
	}()

	return func() {
		<-done
		<-done
		<-done
	}
}

// webhookServices binds each supported service to the verification
// strategy that actually matches how it signs deliveries (§4.4 step 2).
func webhookServices(cfg *config.Config) map[string]webhook.ServiceConfig {
	// The handshake compares the verify code literally, so an "env://NAME"
	// value is resolved here the way verify resolves signing secrets.
	verifyCode := cfg.Webhook.FitbitVerifyCode
	if len(verifyCode) > len("env://") && verifyCode[:len("env://")] == "env://" {
		verifyCode = os.Getenv(verifyCode[len("env://"):])
	}
	return map[string]webhook.ServiceConfig{
		"slack": {
			Verify: verify.Config{Strategy: "slack-v0", Secret: cfg.Webhook.SlackSigningSecret},
		},
		"notion": {
			Verify: verify.Config{Strategy: "notion", Secret: cfg.Webhook.NotionSecret},
		},
		"fitbit": {
			Verify: verify.Config{Strategy: "fitbit-sha1-base64", Secret: cfg.Webhook.FitbitSecret},
			Secret: verifyCode,
		},
		"todoist": {
			Verify: verify.Config{Strategy: "todoist-sha256-base64", Secret: cfg.Webhook.TodoistSecret},
		},
		"microsoft": {
			Verify: verify.Config{Strategy: "microsoft-clientstate"},
		},
		"gmail": {
			Verify: verify.Config{Strategy: "google", Secret: cfg.Webhook.GooglePublicKeyPEM},
		},
	}
}

// splitHost and splitPort pull apart a "host:port" address, since
// cache.Config (unlike RedisConfig) wants them separately.
func splitHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func splitPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "6379"
	}
	return port
}

func tick(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
