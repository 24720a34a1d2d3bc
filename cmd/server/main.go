package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shortlink-analytics/internal/analytics"
	"shortlink-analytics/internal/authz"
	"shortlink-analytics/internal/cache"
	"shortlink-analytics/internal/config"
	"shortlink-analytics/internal/handler"
	"shortlink-analytics/internal/metrics"
	"shortlink-analytics/internal/redirect"
	"shortlink-analytics/internal/shortcode"
	"shortlink-analytics/internal/store"
	"shortlink-analytics/pkg/database"
	auth "shortlink-analytics/pkg/jwt"
	"shortlink-analytics/pkg/logger"
	"shortlink-analytics/pkg/redis"
)

var rootCmd = &cobra.Command{
	Use:           "shortlink",
	Short:         "短链接跳转和点击分析服务",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 HTTP 服务",
	RunE:  runServer,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移后退出",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "configs/config.yaml", "配置文件路径，为空时只使用默认值和环境变量")
	serverCmd.Flags().String("admin-user", "admin", "默认管理员用户名，密码取自 SHORTLINK_ADMIN_PASSWORD")
	rootCmd.AddCommand(serverCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志并连接数据库
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.Logger, *gorm.DB, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("配置加载失败: %w", err)
	}

	log, err := logger.InitLogger(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Name:         cfg.Database.Name,
		Charset:      cfg.Database.Charset,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("✅ 数据库连接成功", zap.String("driver", cfg.Database.Driver))

	if err := database.Migrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	log.Info("✅ 数据库迁移成功")

	return cfg, log, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, log, db, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, log, db, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	sugar := log.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Redis 不可用时退化为进程内缓存
	var cacheStore cache.Store
	rdb, err := redis.NewRedisClient(ctx, &redis.Options{
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	switch {
	case err != nil:
		sugar.Warnf("缓存连接失败，使用进程内缓存: %v", err)
	case rdb != nil:
		defer rdb.Close()
		cacheStore = cache.NewRedisStore(rdb, cfg.Cache.KeyPrefix)
		sugar.Info("✅ 缓存连接成功")
	}
	if cacheStore == nil {
		memory := cache.NewMemoryStore(time.Minute)
		defer memory.Close()
		cacheStore = memory
	}
	analyticsCache := cache.NewAnalyticsCache(cacheStore, log, m)

	links := store.NewLinkStore(db)
	clicks := store.NewClickStore(db)

	generator := shortcode.NewGenerator(links, shortcode.Config{
		Length:     cfg.Shortcode.Length,
		BufferSize: cfg.Shortcode.BufferSize,
		MinFill:    cfg.Shortcode.MinFill,
	}, log)
	generator.Start()
	defer generator.Stop()
	sugar.Info("✅ 短码生成器已启动")

	aggregator := analytics.NewAggregator(links, clicks, analyticsCache, analytics.Options{
		LinkTTL: cfg.Cache.LinkTTL,
		UserTTL: cfg.Cache.UserTTL,
	})
	service := redirect.NewService(links, clicks, analyticsCache,
		redirect.WithMetrics(m),
		redirect.WithLogger(log),
	)
	tokenManager := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, time.Duration(cfg.Auth.ExpirationHours)*time.Hour)

	if password := os.Getenv(config.EnvPrefix + "ADMIN_PASSWORD"); password != "" {
		username, _ := cmd.Flags().GetString("admin-user")
		created, err := handler.EnsureAdmin(db, username, password)
		if err != nil {
			sugar.Errorf("创建管理员失败: %v", err)
		} else if created {
			sugar.Infof("✅ 默认管理员 %s 创建成功", username)
		}
	}

	if cfg.App.Mode == "release" || cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.Handlers{
		Redirect:  handler.NewRedirectHandler(service, cfg.Server.RedirectTimeout, log),
		Links:     handler.NewLinkHandler(links, generator, aggregator, analyticsCache, authz.OwnerPolicy{}, cfg.Server.BaseURL, log),
		Dashboard: handler.NewDashboardHandler(aggregator, log),
		Auth:      handler.NewAuthHandler(db, tokenManager, log),
		Health:    handler.NewHealthHandler(db, rdb),
	}, handler.RouterOptions{
		Logger:       log,
		TokenManager: tokenManager,
		RateLimit:    &cfg.RateLimit,
		Gatherer:     registry,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		sugar.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("服务启动失败: %w", err)
		}
	case <-ctx.Done():
		sugar.Info("收到退出信号，正在关闭服务...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("服务关闭失败: %v", err)
	}
	analyticsCache.Wait()

	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	sugar.Info("服务已退出")
	return nil
}
