package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-vitals/internal/analysis"
	"wisefido-vitals/internal/cache"
	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/consumer"
	"wisefido-vitals/internal/httpapi"
	"wisefido-vitals/internal/logger"
	"wisefido-vitals/internal/mqtt"
	"wisefido-vitals/internal/registry"
	"wisefido-vitals/internal/repository"
	"wisefido-vitals/internal/router"
	"wisefido-vitals/internal/service"
	"wisefido-vitals/internal/simulator"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-vitals")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 核心组件
	deviceRegistry := registry.NewDeviceRegistry(log)
	generator := simulator.NewGenerator(cfg, deviceRegistry, log)
	eventRouter := router.NewEventRouter(log)
	analysisClient := analysis.NewClient(
		cfg.Analysis.BaseURL,
		time.Duration(cfg.Analysis.Timeout)*time.Second,
		log,
	)

	// 4. 可选依赖：不可用时服务降级运行，核心处理链不受影响
	var snapshotCache *cache.RealtimeCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("Redis unavailable, realtime cache disabled", zap.Error(err))
	} else {
		snapshotCache = cache.NewRealtimeCache(cfg, cache.NewRedisKVStore(redisClient), log)
	}

	var eventsRepo *repository.EmergencyEventsRepository
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err == nil {
		err = db.Ping()
	}
	if err != nil {
		log.Warn("PostgreSQL unavailable, event persistence disabled", zap.Error(err))
	} else {
		defer db.Close()
		eventsRepo = repository.NewEmergencyEventsRepository(db, log)
	}

	var mqttClient *mqtt.Client
	var alertMirror *mqtt.AlertMirror
	if cfg.MQTT.Broker != "" {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT broker unavailable, alert mirror disabled", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
			alertMirror = mqtt.NewAlertMirror(mqttClient, cfg.MQTT.QoS, log)
		}
	}

	// 5. 监测服务（nil 接口参数需要显式传递，避免接口持有 nil 指针）
	var cacheDep service.SnapshotCache
	if snapshotCache != nil {
		cacheDep = snapshotCache
	}
	var eventsDep service.EventStore
	if eventsRepo != nil {
		eventsDep = eventsRepo
	}
	var alertDep service.AlertSink
	if alertMirror != nil {
		alertDep = alertMirror
	}

	monitorService := service.NewMonitorService(
		cfg, deviceRegistry, generator, analysisClient, eventRouter,
		cacheDep, eventsDep, alertDep, log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. MQTT消费者（接收真实手环上报）
	if mqttClient != nil {
		mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, monitorService, log)
		go func() {
			if err := mqttConsumer.Start(ctx); err != nil {
				log.Error("MQTT consumer error", zap.Error(err))
			}
		}()
		defer mqttConsumer.Stop(context.Background())
	}

	// 7. HTTP入口
	var validator httpapi.TokenValidator
	if cfg.Auth.JWTSecret != "" {
		validator = httpapi.NewJWTValidator(cfg.Auth.JWTSecret)
	} else {
		log.Warn("AUTH_JWT_SECRET not set, API authentication disabled")
	}

	var snapshotsDep httpapi.SnapshotReader
	if snapshotCache != nil {
		snapshotsDep = snapshotCache
	}
	var eventsStoreDep httpapi.EventsStore
	if eventsRepo != nil {
		eventsStoreDep = eventsRepo
	}

	handler := httpapi.NewVitalsHandler(monitorService, snapshotsDep, eventsStoreDep, analysisClient, log)
	apiRouter := httpapi.NewRouter(log)
	apiRouter.RegisterVitalsRoutes(handler, validator)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: apiRouter,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server started", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// 8. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case err := <-serverErrChan:
		log.Error("HTTP server error", zap.Error(err))
	}

	// 9. 按序关闭：先停止遥测生成，再关HTTP
	monitorService.StopMonitoring()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Vitals monitoring service stopped")
}
