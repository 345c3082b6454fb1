// Package config 服务配置：默认值 → YAML 文件 → ALLOCATION_* 环境变量，后者覆盖前者
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"allocation/adapters/notifications"
	"allocation/adapters/readmodel"
	"allocation/messaging/transport/kafka"
	"allocation/messaging/transport/natsjetstream"
	"allocation/messaging/transport/redisstreams"
	"allocation/patterns/retry"
	"allocation/storage/database"
	"allocation/validation"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "ALLOCATION_"

// 传输层类型
const (
	TransportSync   = "sync"
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportNATS   = "nats"
	TransportKafka  = "kafka"
)

// Config 服务配置
type Config struct {
	Service       ServiceConfig         `yaml:"service"`
	HTTP          HTTPConfig            `yaml:"http"`
	Database      database.DBConfig     `yaml:"database"`
	Transport     TransportConfig       `yaml:"transport"`
	Notifications notifications.Config  `yaml:"notifications"`
	Cache         readmodel.CacheConfig `yaml:"cache"`
	Retry         retry.Config          `yaml:"retry"`
	Tracing       TracingConfig         `yaml:"tracing"`
}

// ServiceConfig 服务标识与日志
type ServiceConfig struct {
	Name string `yaml:"name"`
	// Mode development|production，决定 zap 的编码方式
	Mode     string `yaml:"mode"`
	LogLevel string `yaml:"log_level"`
}

// HTTPConfig HTTP 入口配置
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TransportConfig 外部通道配置；Kind 选择实现
type TransportConfig struct {
	Kind   string                `yaml:"kind"`
	Memory MemoryTransportConfig `yaml:"memory"`
	Redis  redisstreams.Config   `yaml:"redis"`
	NATS   natsjetstream.Config  `yaml:"nats"`
	Kafka  kafka.Config          `yaml:"kafka"`
	// Consume 是否订阅入站通道
	Consume bool `yaml:"consume"`
}

// MemoryTransportConfig 内存传输参数
type MemoryTransportConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Stdout 导出到标准输出（开发调试）
	Stdout bool `yaml:"stdout"`
}

// Default 默认配置：内存存储与同步传输，可直接运行
func Default() Config {
	return Config{
		Service: ServiceConfig{Name: "allocation", Mode: "development", LogLevel: "info"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database:      database.DBConfig{Driver: "memory", MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 300},
		Transport:     TransportConfig{Kind: TransportSync, Consume: true},
		Notifications: notifications.Config{StockDestination: "stock@made.com"},
		Cache:         readmodel.CacheConfig{MaxSize: 1024, TTL: time.Minute},
		Retry:         retry.DefaultConfig(),
	}
}

// Load 从默认值开始，叠加可选的 YAML 文件与进程环境变量
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv 与 Load 相同，环境变量来源可替换
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "pgx", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn required for driver %s", c.Database.Driver)
	}
	switch c.Transport.Kind {
	case TransportSync, TransportMemory, TransportRedis, TransportNATS, TransportKafka:
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport.Kind)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	for key, addr := range map[string]string{
		"notifications.stock_destination": c.Notifications.StockDestination,
		"notifications.from_address":      c.Notifications.FromAddress,
	} {
		if addr == "" {
			continue
		}
		if err := validation.ValidateEmail(addr); err != nil {
			return fmt.Errorf("%s %q: %w", key, addr, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("SERVICE_NAME", &cfg.Service.Name)
	str("LOG_MODE", &cfg.Service.Mode)
	str("LOG_LEVEL", &cfg.Service.LogLevel)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_DSN", &cfg.Database.DSN)
	str("TRANSPORT", &cfg.Transport.Kind)
	str("REDIS_ADDR", &cfg.Transport.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Transport.Redis.Password)
	str("NATS_URL", &cfg.Transport.NATS.URL)
	str("SENDGRID_API_KEY", &cfg.Notifications.APIKey)
	str("NOTIFY_FROM", &cfg.Notifications.FromAddress)
	str("STOCK_DESTINATION", &cfg.Notifications.StockDestination)

	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok {
		cfg.Transport.Kafka.Brokers = splitList(v)
	}
	bools := map[string]*bool{
		"TRACING_ENABLED":   &cfg.Tracing.Enabled,
		"TRACING_STDOUT":    &cfg.Tracing.Stdout,
		"TRANSPORT_CONSUME": &cfg.Transport.Consume,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	if v, ok := lookup(EnvPrefix + "RETRY_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRY_MAX_ATTEMPTS: %w", EnvPrefix, err)
		}
		cfg.Retry.MaxAttempts = n
	}
	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sCACHE_TTL: %w", EnvPrefix, err)
		}
		cfg.Cache.TTL = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
