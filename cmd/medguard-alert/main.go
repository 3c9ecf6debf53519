package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"medguard-alert/internal/cache"
	"medguard-alert/internal/config"
	"medguard-alert/internal/escalator"
	httpapi "medguard-alert/internal/http"
	"medguard-alert/internal/logger"
	"medguard-alert/internal/notifier"
	"medguard-alert/internal/policy"
	"medguard-alert/internal/repository"
	"medguard-alert/internal/service"
	"medguard-alert/internal/ws"
)

func main() {
	// 1. 加载 .env（不存在则忽略）
	_ = godotenv.Load()

	// 2. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 3. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "medguard-alert")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 4. 连接 PostgreSQL
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdle)
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// 5. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// 6. 连接 MQTT（可选）
	var mqttClient notifier.MQTTPublisher
	if cfg.MQTT.Enabled {
		client, err := notifier.NewMQTTClient(&cfg.MQTT)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer client.Disconnect()
		mqttClient = client
		log.Info("MQTT notification channel enabled", zap.String("broker", cfg.MQTT.Broker))
	}

	// 7. 加载升级策略
	policyStore := loadPolicyStore(cfg, log)

	// 8. 创建 Repository
	alertsRepo := repository.NewPostgresAlertsRepository(db)
	acksRepo := repository.NewPostgresAcknowledgmentsRepository(db)
	escsRepo := repository.NewPostgresEscalationsRepository(db)
	auditRepo := repository.NewPostgresAuditLogsRepository(db)
	hospitalsRepo := repository.NewPostgresHospitalsRepository(db)
	usersRepo := repository.NewPostgresHealthcareUsersRepository(db)

	// 9. 缓存和通知
	activeCache := cache.NewActiveAlertCache(cfg, redisClient, log)

	var webhook *notifier.WebhookClient
	if cfg.Notify.WebhookURL != "" {
		webhook = notifier.NewWebhookClient(cfg.Notify.WebhookURL,
			time.Duration(cfg.Notify.WebhookTimeout)*time.Second, log)
		log.Info("Webhook notification channel enabled", zap.String("url", cfg.Notify.WebhookURL))
	}
	dispatcher := notifier.NewDispatcher(cfg, redisClient, mqttClient, webhook, usersRepo, log)

	// 10. 创建 Service
	alertService := service.NewAlertService(db, alertsRepo, acksRepo, escsRepo, auditRepo,
		policyStore, dispatcher, activeCache, log)
	auditService := service.NewAuditService(auditRepo, log)
	hospitalService := service.NewHospitalService(hospitalsRepo, log)
	userService := service.NewUserService(usersRepo, log)

	// 11. 后台任务上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 12. 策略文件热加载
	if cfg.Escalation.WatchPolicy {
		go func() {
			if err := policy.Watch(ctx, cfg.Escalation.PolicyFile, policyStore, log); err != nil {
				log.Error("Policy watcher exited", zap.Error(err))
			}
		}()
	}

	// 13. 升级调度器
	esc := escalator.NewEscalator(db, alertsRepo, escsRepo, auditRepo, policyStore, dispatcher, log,
		time.Duration(cfg.Escalation.PollInterval)*time.Second, cfg.Escalation.BatchSize)
	go esc.Run(ctx)

	// 14. WebSocket 推送中心
	hub := ws.NewHub(activeCache, time.Duration(cfg.WS.BroadcastInterval)*time.Second, log)
	go hub.Run(ctx)

	// 15. HTTP 路由
	router := httpapi.NewRouter(log)
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(alertService, log))
	router.RegisterAuditRoutes(httpapi.NewAuditHandler(auditService, log))
	router.RegisterAdminRoutes(httpapi.NewHospitalHandler(hospitalService, log),
		httpapi.NewUserHandler(userService, log))
	router.RegisterReportRoutes(httpapi.NewReportHandler(alertService, log))
	router.HandleHandler("/alert/api/v1/ws", hub)

	server := service.NewServer(cfg.HTTP.Addr, router, log)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// 16. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Fatal("HTTP server error", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop HTTP server gracefully", zap.Error(err))
	}

	log.Info("medguard-alert stopped")
}

// loadPolicyStore 加载升级策略；文件不存在或非法时回落到内置默认策略
func loadPolicyStore(cfg *config.Config, log *zap.Logger) *policy.Store {
	p, err := policy.Load(cfg.Escalation.PolicyFile)
	if err != nil {
		log.Warn("Failed to load escalation policy, using builtin defaults",
			zap.String("path", cfg.Escalation.PolicyFile),
			zap.Error(err),
		)
		return policy.NewStore(policy.Default())
	}
	log.Info("Escalation policy loaded", zap.String("path", cfg.Escalation.PolicyFile))
	return policy.NewStore(p)
}
