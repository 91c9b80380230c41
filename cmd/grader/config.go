package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"judgeboard/internal/common/cache"
	"judgeboard/internal/common/db"
	commonmw "judgeboard/internal/common/http/middleware"
	"judgeboard/internal/common/mq"
	"judgeboard/internal/common/storage"
	"judgeboard/internal/judge/sandbox"
	"judgeboard/internal/judge/transform"
	"judgeboard/pkg/utils/logger"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8000"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultQueueWait       = 30 * time.Second
	defaultProblemsDir     = "test_cases"
	defaultLeaderboardFile = "leaderboard.json"
	defaultEventTopic      = "judgeboard.submission.graded"
	defaultRateWindow      = time.Minute
	envPrefix              = "JUDGEBOARD_"
)

// Leaderboard backends.
const (
	backendFile     = "file"
	backendRedis    = "redis"
	backendMySQL    = "mysql"
	backendPostgres = "postgres"
)

// Rate limit backends.
const (
	limiterMemory = "memory"
	limiterRedis  = "redis"
)

// Problem sources.
const (
	sourceDir   = "dir"
	sourceMinIO = "minio"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string               `yaml:"addr"`
	ReadTimeout  time.Duration        `yaml:"readTimeout"`
	WriteTimeout time.Duration        `yaml:"writeTimeout"`
	IdleTimeout  time.Duration        `yaml:"idleTimeout"`
	CORS         *commonmw.CORSConfig `yaml:"cors"`
	RateLimit    RateLimitConfig      `yaml:"rateLimit"`
}

// RateLimitConfig bounds how often clients may call the grading routes.
type RateLimitConfig struct {
	Backend      string                   `yaml:"backend"`
	Window       time.Duration            `yaml:"window"`
	RedisTimeout time.Duration            `yaml:"redisTimeout"`
	Run          commonmw.RateLimitPolicy `yaml:"run"`
	Submit       commonmw.RateLimitPolicy `yaml:"submit"`
}

func (r RateLimitConfig) enabled() bool {
	return r.Run.Active() || r.Submit.Active()
}

// JudgeConfig holds grading settings.
type JudgeConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrent  int           `yaml:"maxConcurrent"`
	QueueWait      time.Duration `yaml:"queueWait"`
	MaxCodeSize    int           `yaml:"maxCodeSize"`
	EntryFunction  string        `yaml:"entryFunction"`
	RewriteReturns *bool         `yaml:"rewriteReturns"`
}

// SandboxConfig holds process executor settings.
type SandboxConfig struct {
	Command        string `yaml:"command"`
	WorkDir        string `yaml:"workDir"`
	SourceSuffix   string `yaml:"sourceSuffix"`
	MaxOutputBytes int64  `yaml:"maxOutputBytes"`
}

// ProblemsConfig selects where test data lives.
type ProblemsConfig struct {
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// LeaderboardConfig selects the persistence backend.
type LeaderboardConfig struct {
	Backend  string `yaml:"backend"`
	File     string `yaml:"file"`
	RedisKey string `yaml:"redisKey"`
}

// KafkaConfig holds Kafka producer settings. Events are disabled without brokers.
type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	ClientID       string        `yaml:"clientID"`
	Topic          string        `yaml:"topic"`
	BatchSize      int           `yaml:"batchSize"`
	BatchTimeout   time.Duration `yaml:"batchTimeout"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	RequiredAcks   int           `yaml:"requiredAcks"`
	Compression    string        `yaml:"compression"`
	PublishTimeout time.Duration `yaml:"publishTimeout"`
}

// AppConfig holds grader config.
type AppConfig struct {
	Server      ServerConfig        `yaml:"server"`
	Logger      logger.Config       `yaml:"logger"`
	Judge       JudgeConfig         `yaml:"judge"`
	Sandbox     SandboxConfig       `yaml:"sandbox"`
	Problems    ProblemsConfig      `yaml:"problems"`
	Leaderboard LeaderboardConfig   `yaml:"leaderboard"`
	Redis       cache.RedisConfig   `yaml:"redis"`
	Database    db.Config           `yaml:"database"`
	MinIO       storage.MinIOConfig `yaml:"minio"`
	Kafka       KafkaConfig         `yaml:"kafka"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the YAML file (a missing file means all defaults), applies
// .env and JUDGEBOARD_* overrides, then fills defaults and validates.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env failed: %w", err)
	}
	applyEnvOverrides(&cfg, os.LookupEnv)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("SERVER_ADDR", &cfg.Server.Addr)
	str("LOG_LEVEL", &cfg.Logger.Level)
	str("PROBLEMS_SOURCE", &cfg.Problems.Source)
	str("PROBLEMS_DIR", &cfg.Problems.Dir)
	str("LEADERBOARD_BACKEND", &cfg.Leaderboard.Backend)
	str("LEADERBOARD_FILE", &cfg.Leaderboard.File)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("DATABASE_DSN", &cfg.Database.DSN)
	str("MINIO_ENDPOINT", &cfg.MinIO.Endpoint)
	str("MINIO_ACCESS_KEY", &cfg.MinIO.AccessKey)
	str("MINIO_SECRET_KEY", &cfg.MinIO.SecretKey)
	str("MINIO_BUCKET", &cfg.MinIO.Bucket)
	str("SANDBOX_COMMAND", &cfg.Sandbox.Command)
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.CORS == nil {
		cors := commonmw.DefaultCORSConfig()
		cfg.Server.CORS = &cors
	}
	cfg.Server.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.Server.RateLimit.Backend))
	if cfg.Server.RateLimit.Backend == "" {
		cfg.Server.RateLimit.Backend = limiterMemory
	}
	if cfg.Server.RateLimit.Window <= 0 {
		cfg.Server.RateLimit.Window = defaultRateWindow
	}
	if cfg.Judge.Timeout <= 0 {
		cfg.Judge.Timeout = sandbox.DefaultTimeout
	}
	if cfg.Judge.MaxConcurrent <= 0 {
		cfg.Judge.MaxConcurrent = 4
	}
	if cfg.Judge.QueueWait <= 0 {
		cfg.Judge.QueueWait = defaultQueueWait
	}
	if cfg.Judge.RewriteReturns == nil {
		enabled := true
		cfg.Judge.RewriteReturns = &enabled
	}
	cfg.Problems.Source = strings.ToLower(strings.TrimSpace(cfg.Problems.Source))
	if cfg.Problems.Source == "" {
		cfg.Problems.Source = sourceDir
	}
	if cfg.Problems.Dir == "" {
		cfg.Problems.Dir = defaultProblemsDir
	}
	if cfg.Problems.Bucket == "" {
		cfg.Problems.Bucket = cfg.MinIO.Bucket
	}
	cfg.Leaderboard.Backend = strings.ToLower(strings.TrimSpace(cfg.Leaderboard.Backend))
	if cfg.Leaderboard.Backend == "" {
		cfg.Leaderboard.Backend = backendFile
	}
	if cfg.Leaderboard.File == "" {
		cfg.Leaderboard.File = defaultLeaderboardFile
	}
	switch cfg.Leaderboard.Backend {
	case backendMySQL:
		cfg.Database.Dialect = db.DialectMySQL
	case backendPostgres:
		cfg.Database.Dialect = db.DialectPostgres
	}
	applyRedisDefaults(&cfg.Redis)
	applyDatabaseDefaults(&cfg.Database)
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = defaultEventTopic
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Server.RateLimit.Backend {
	case limiterMemory:
	case limiterRedis:
		if cfg.Server.RateLimit.enabled() && cfg.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for rate limit backend %q", limiterRedis)
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", cfg.Server.RateLimit.Backend)
	}

	switch cfg.Problems.Source {
	case sourceDir:
	case sourceMinIO:
		if cfg.MinIO.Endpoint == "" {
			return fmt.Errorf("minio endpoint is required for problem source %q", sourceMinIO)
		}
		if cfg.Problems.Bucket == "" {
			return fmt.Errorf("problems bucket is required for problem source %q", sourceMinIO)
		}
	default:
		return fmt.Errorf("unknown problem source %q", cfg.Problems.Source)
	}

	switch cfg.Leaderboard.Backend {
	case backendFile:
	case backendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for leaderboard backend %q", backendRedis)
		}
	case backendMySQL, backendPostgres:
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for leaderboard backend %q", cfg.Leaderboard.Backend)
		}
	default:
		return fmt.Errorf("unknown leaderboard backend %q", cfg.Leaderboard.Backend)
	}
	return nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func applyDatabaseDefaults(cfg *db.Config) {
	defaults := db.DefaultConfig()
	if cfg.Dialect == "" {
		cfg.Dialect = defaults.Dialect
	}
	if cfg.MaxOpenConnections == 0 {
		cfg.MaxOpenConnections = defaults.MaxOpenConnections
	}
	if cfg.MaxIdleConnections == 0 {
		cfg.MaxIdleConnections = defaults.MaxIdleConnections
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
}

func (s SandboxConfig) toExecutorConfig() sandbox.Config {
	return sandbox.Config{
		Command:        s.Command,
		WorkDir:        s.WorkDir,
		SourceSuffix:   s.SourceSuffix,
		MaxOutputBytes: s.MaxOutputBytes,
	}
}

func (j JudgeConfig) toTransformConfig() transform.Config {
	return transform.Config{
		EntryFunction:  j.EntryFunction,
		RewriteReturns: j.RewriteReturns == nil || *j.RewriteReturns,
	}
}

func (k KafkaConfig) enabled() bool {
	return len(k.Brokers) > 0
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  parseCompression(k.Compression),
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
