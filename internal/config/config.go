// Package config 加载 YAML 配置，并允许 .env 和 SHORTLINK_* 环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "SHORTLINK_"

// 主配置结构
type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Database  DB        `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Auth      Auth      `yaml:"auth"`
	RateLimit Limit     `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
	Shortcode Shortcode `yaml:"shortcode"`
}

// 应用配置
type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
}

// 服务器配置，超时单位为秒
type Server struct {
	Port            int           `yaml:"port"`
	ReadTimeout     int           `yaml:"read_timeout"`
	WriteTimeout    int           `yaml:"write_timeout"`
	RedirectTimeout time.Duration `yaml:"redirect_timeout"`
	BaseURL         string        `yaml:"base_url"`
}

// 数据库配置。DSN 非空时忽略其余连接参数。
type DB struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	Charset      string `yaml:"charset"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// 缓存配置（Redis）。Host 为空时使用进程内缓存。
type Cache struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	LinkTTL   time.Duration `yaml:"link_ttl"`
	UserTTL   time.Duration `yaml:"user_ttl"`
}

// 认证配置
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// 日志配置，File 为空时只输出到控制台
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// 短码生成配置
type Shortcode struct {
	Length     int `yaml:"length"`
	BufferSize int `yaml:"buffer_size"`
	MinFill    int `yaml:"min_fill"`
}

// Default 默认配置，使用本地 SQLite 和进程内缓存
func Default() *Config {
	return &Config{
		App: App{Name: "shortlink", Mode: "debug", Version: "dev"},
		Server: Server{
			Port:            8080,
			ReadTimeout:     10,
			WriteTimeout:    10,
			RedirectTimeout: 3 * time.Second,
			BaseURL:         "http://localhost:8080",
		},
		Database: DB{
			Driver:       "sqlite",
			DSN:          "file:shortlink.db?_busy_timeout=5000",
			Charset:      "utf8mb4",
			MaxOpenConns: 20,
			MaxIdleConns: 10,
		},
		Cache: Cache{
			Port:      6379,
			KeyPrefix: "shortlink:",
			LinkTTL:   10 * time.Minute,
			UserTTL:   5 * time.Minute,
		},
		Auth:      Auth{Issuer: "shortlink", ExpirationHours: 72},
		RateLimit: Limit{Enabled: true, Requests: 600, Burst: 50, SkipPaths: []string{"/health", "/metrics"}},
		Log:       Log{Level: "info", MaxSize: 10, MaxBackups: 5, MaxAge: 30},
		Shortcode: Shortcode{Length: 7, BufferSize: 1000, MinFill: 100},
	}
}

// Load 依次应用默认值、配置文件、.env 和环境变量，然后校验。path 为空时跳过配置文件。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// 生产环境一般没有 .env 文件
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("APP_MODE", &c.App.Mode)
	envString("SERVER_BASE_URL", &c.Server.BaseURL)
	envString("DATABASE_DRIVER", &c.Database.Driver)
	envString("DATABASE_DSN", &c.Database.DSN)
	envString("DATABASE_HOST", &c.Database.Host)
	envString("DATABASE_USER", &c.Database.User)
	envString("DATABASE_PASSWORD", &c.Database.Password)
	envString("DATABASE_NAME", &c.Database.Name)
	envString("CACHE_HOST", &c.Cache.Host)
	envString("CACHE_PASSWORD", &c.Cache.Password)
	envString("AUTH_SECRET", &c.Auth.Secret)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FILE", &c.Log.File)

	return errors.Join(
		envInt("SERVER_PORT", &c.Server.Port),
		envInt("DATABASE_PORT", &c.Database.Port),
		envInt("CACHE_PORT", &c.Cache.Port),
		envInt("CACHE_DB", &c.Cache.DB),
		envDuration("CACHE_LINK_TTL", &c.Cache.LinkTTL),
		envDuration("CACHE_USER_TTL", &c.Cache.UserTTL),
	)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("环境变量 %s%s 不是整数: %q", EnvPrefix, key, v)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("环境变量 %s%s 不是时长: %q", EnvPrefix, key, v)
	}
	*dst = d
	return nil
}

// Validate 校验配置，返回所有问题
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port 超出范围: %d", c.Server.Port)
	}
	if c.Server.RedirectTimeout <= 0 {
		add("server.redirect_timeout 必须大于 0")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DSN == "" {
			add("database.dsn 不能为空（sqlite）")
		}
	case "mysql", "postgres":
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
			add("database.host 和 database.name 不能为空（%s）", c.Database.Driver)
		}
	default:
		add("不支持的数据库驱动: %q", c.Database.Driver)
	}

	for name, ttl := range map[string]time.Duration{"cache.link_ttl": c.Cache.LinkTTL, "cache.user_ttl": c.Cache.UserTTL} {
		if ttl < 5*time.Minute || ttl > 10*time.Minute {
			add("%s 必须在 5m 到 10m 之间: %s", name, ttl)
		}
	}

	if c.Auth.Secret == "" {
		add("auth.secret 不能为空")
	}
	if c.Auth.ExpirationHours <= 0 {
		add("auth.expiration_hours 必须大于 0")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Burst <= 0) {
		add("rate_limit.requests_per_minute 和 rate_limit.burst 必须大于 0")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level 无效: %q", c.Log.Level)
	}

	if c.Shortcode.Length < 4 || c.Shortcode.Length > 100 {
		add("shortcode.length 必须在 4 到 100 之间: %d", c.Shortcode.Length)
	}

	return errors.Join(errs...)
}
