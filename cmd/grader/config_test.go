package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"judgeboard/internal/common/db"

	"github.com/segmentio/kafka-go"
)

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory failed: %v", err)
		}
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grader.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != defaultHTTPAddr {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Judge.Timeout != 5*time.Second || cfg.Judge.RewriteReturns == nil || !*cfg.Judge.RewriteReturns {
		t.Fatalf("unexpected judge defaults %+v", cfg.Judge)
	}
	if cfg.Problems.Source != sourceDir || cfg.Leaderboard.Backend != backendFile {
		t.Fatalf("unexpected backends %q %q", cfg.Problems.Source, cfg.Leaderboard.Backend)
	}
	if cfg.Kafka.enabled() {
		t.Fatalf("kafka should be disabled without brokers")
	}
}

func TestLoadAppConfigFromYAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
judge:
  timeout: 2s
  maxConcurrent: 8
  rewriteReturns: false
leaderboard:
  backend: Postgres
database:
  dsn: "postgres://u:p@localhost:5432/judge?sslmode=disable"
kafka:
  brokers: ["k1:9092"]
  compression: zstd
  requiredAcks: -1
`)
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Judge.Timeout != 2*time.Second || cfg.Judge.MaxConcurrent != 8 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Judge.toTransformConfig().RewriteReturns {
		t.Fatalf("rewriteReturns false should be kept")
	}
	if cfg.Leaderboard.Backend != backendPostgres || cfg.Database.Dialect != db.DialectPostgres {
		t.Fatalf("unexpected database selection %q %q", cfg.Leaderboard.Backend, cfg.Database.Dialect)
	}
	mqCfg := cfg.Kafka.toMQConfig()
	if mqCfg.Compression != kafka.Zstd || mqCfg.RequiredAcks != kafka.RequireAll || cfg.Kafka.Topic != defaultEventTopic {
		t.Fatalf("unexpected kafka config %+v", mqCfg)
	}
}

func TestLoadAppConfigEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JUDGEBOARD_LEADERBOARD_BACKEND", "redis")
	t.Setenv("JUDGEBOARD_REDIS_ADDR", "redis:6379")
	t.Setenv("JUDGEBOARD_KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := loadAppConfig(writeConfig(t, "leaderboard:\n  backend: file\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Leaderboard.Backend != backendRedis || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("env overrides not applied: %+v", cfg.Leaderboard)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Redis.PoolSize == 0 {
		t.Fatalf("redis defaults not applied")
	}
}

func TestLoadAppConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("JUDGEBOARD_PROBLEMS_DIR=/srv/problems\n"), 0644); err != nil {
		t.Fatalf("write .env failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("JUDGEBOARD_PROBLEMS_DIR") })

	cfg, err := loadAppConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Problems.Dir != "/srv/problems" {
		t.Fatalf("expected .env value, got %q", cfg.Problems.Dir)
	}
}

func TestLoadAppConfigValidation(t *testing.T) {
	chdir(t, t.TempDir())
	cases := []struct {
		name string
		body string
	}{
		{name: "redis without addr", body: "leaderboard:\n  backend: redis\n"},
		{name: "mysql without dsn", body: "leaderboard:\n  backend: mysql\n"},
		{name: "unknown backend", body: "leaderboard:\n  backend: etcd\n"},
		{name: "minio without endpoint", body: "problems:\n  source: minio\n"},
		{name: "unknown source", body: "problems:\n  source: ftp\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadAppConfig(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadAppConfigServerMiddleware(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.CORS == nil || !cfg.Server.CORS.Enabled {
		t.Fatalf("cors should default to enabled")
	}
	if cfg.Server.RateLimit.enabled() || cfg.Server.RateLimit.Backend != limiterMemory {
		t.Fatalf("unexpected rate limit defaults %+v", cfg.Server.RateLimit)
	}

	path := writeConfig(t, `
server:
  cors:
    enabled: false
  rateLimit:
    backend: redis
    submit:
      userMax: 5
`)
	if _, err := loadAppConfig(path); err == nil {
		t.Fatalf("expected redis addr to be required for redis rate limiting")
	}

	path = writeConfig(t, `
server:
  cors:
    enabled: false
  rateLimit:
    window: 30s
    submit:
      userMax: 5
`)
	cfg, err = loadAppConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.CORS.Enabled {
		t.Fatalf("explicit cors setting should be kept")
	}
	if !cfg.Server.RateLimit.enabled() || cfg.Server.RateLimit.Window != 30*time.Second {
		t.Fatalf("unexpected rate limit %+v", cfg.Server.RateLimit)
	}
	limiter, closeLimiter, err := buildLimiter(cfg)
	if err != nil || limiter == nil {
		t.Fatalf("expected memory limiter, got %v %v", limiter, err)
	}
	closeLimiter()
}
