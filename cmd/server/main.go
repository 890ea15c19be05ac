package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/handler"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/bethreewater/island7/internal/cms/sse"
	"github.com/bethreewater/island7/internal/config"
	"github.com/bethreewater/island7/internal/middleware"
	"github.com/bethreewater/island7/internal/shared/broker"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting island7 service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	if cfg.JWT.Secret == "" {
		zapLogger.Fatal("JWT_SECRET is required")
	}

	// 初始化数据库
	db, err := initDatabase(cfg.Database, cfg.Server.Mode)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Case{},
		&entity.Method{},
		&entity.Material{},
		&entity.MethodRecipe{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// Redis 可选：令牌注销与多实例事件共享
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = initRedis(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, continuing without it", zap.Error(err))
			rdb.Close()
			rdb = nil
		}
		cancel()
	}

	hub := sse.NewHub(zapLogger.Named("hub"))
	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if rdb != nil {
		bus := broker.NewRedisBus(rdb, cfg.Redis.Channel, uuid.New().String(), zapLogger.Named("redis-bus"))
		hub.AddSink(bus)
		go func() {
			err := bus.Subscribe(runCtx, func(_ string, payload []byte) {
				ev, err := sse.DecodeCaseEvent(payload)
				if err != nil {
					zapLogger.Warn("drop remote case event", zap.Error(err))
					return
				}
				hub.Deliver(ev)
			})
			if err != nil {
				zapLogger.Warn("Redis subscription ended", zap.Error(err))
			}
		}()
	}

	var rabbit *broker.RabbitPublisher
	if cfg.RabbitMQ.Enabled() {
		rabbit, err = broker.NewRabbitPublisher(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Exchange, zapLogger.Named("rabbitmq"))
		if err != nil {
			zapLogger.Warn("RabbitMQ unavailable, integration events disabled", zap.Error(err))
		} else {
			hub.AddSink(rabbit)
		}
	}

	// 初始化仓库和服务
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, hub, cfg, zapLogger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if cfg.CMS.SeedCatalog {
		if n, err := services.Catalog.Seed(bootCtx); err != nil {
			zapLogger.Warn("Seed catalog failed", zap.Error(err))
		} else if n > 0 {
			zapLogger.Info("Catalog seeded", zap.Int("methods", n))
		}
	}
	if created, err := services.Auth.EnsureAdmin(bootCtx); err != nil {
		zapLogger.Warn("Create admin user failed", zap.Error(err))
	} else if created {
		zapLogger.Info("Admin user created", zap.String("username", cfg.CMS.AdminUsername))
	}
	if err := services.Photo.EnsureBucket(bootCtx); err != nil {
		zapLogger.Warn("MinIO bucket check failed", zap.Error(err))
	}
	cancelBoot()

	handlers := handler.NewHandlers(services, hub, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse", "/api/v1/ws"})))

	// 注册路由
	registerRoutes(router, handlers, services, cfg, db)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE 长连接不设写超时
		WriteTimeout: 0,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 落库未写入的编辑
	if err := services.WriteBehind.Close(ctx); err != nil {
		zapLogger.Error("Flush pending cases failed", zap.Error(err))
	}

	stopBackground()
	if rabbit != nil {
		rabbit.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig, mode string) (*gorm.DB, error) {
	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite 单写者
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, svc *service.Services, cfg *config.Config, db *gorm.DB) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"pending_cases": svc.WriteBehind.Pending(),
			"storage":       svc.Photo.Enabled(),
		})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	h.Register(v1, middleware.JWTAuth(cfg.JWT.Secret, svc.Auth.IsRevoked))
}
