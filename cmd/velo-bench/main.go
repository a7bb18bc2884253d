// README: Bench runner against a live engine; checks connectivity, single-use promotions under load and quote throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	Strict      bool
	Timeout     time.Duration
	Concurrency int
	Duration    time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("VELO_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("VELO_DB_DSN", ""), "Postgres DSN")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("VELO_REDIS_ADDR", ""), "Redis address")
	flag.BoolVar(&cfg.Strict, "strict", cast.ToBool(envOrDefault("VELO_BENCH_STRICT", "false")), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", cast.ToDuration(envOrDefault("VELO_BENCH_TIMEOUT", "60s")), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", cast.ToInt(envOrDefault("VELO_BENCH_CONCURRENCY", "50")), "Concurrent charges and quote workers")
	flag.DurationVar(&cfg.Duration, "duration", cast.ToDuration(envOrDefault("VELO_BENCH_DURATION", "10s")), "Duration of the quote load test")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
