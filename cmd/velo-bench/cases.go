package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// planID is the plan seeded by the setup case, shared by later cases.
	planID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, tc.Name, res.Latency.Round(time.Millisecond))
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "API: health", Run: checkHealth},
		{Name: "Setup: seed plan", Run: seedPlan},
		{Name: "Concurrency: single-use promotion", Run: singleUsePromotion},
		{Name: "Perf: quote throughput", Run: quoteLoad},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "dsn not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pricing_plans`).Scan(&n); err != nil {
		return Result{Status: StatusFail, Note: "schema missing: " + err.Error()}
	}
	return Result{Status: StatusPass, Note: fmt.Sprintf("plans=%d", n)}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: StatusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, _, err := r.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: StatusFail, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: StatusPass}
}

func seedPlan(ctx context.Context, r *Runner) Result {
	id := "bench_" + uuid.NewString()[:8]
	status, body, err := r.do(ctx, http.MethodPost, "/api/v1/admin/plans", map[string]any{
		"id":            id,
		"name":          "Bench plan",
		"hourly_rate":   "1000",
		"daily_rate":    "6000",
		"weekly_rate":   "30000",
		"monthly_rate":  "90000",
		"minimum_hours": 1,
		"discount":      "0",
	})
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: StatusFail, Note: fmt.Sprintf("status=%d body=%s", status, body)}
	}
	r.planID = id
	return Result{Status: StatusPass, Note: id}
}

// singleUsePromotion creates a promotion with usage_limit=1 and fires
// Concurrency charges at once; exactly one of them may get the discount.
func singleUsePromotion(ctx context.Context, r *Runner) Result {
	if r.planID == "" {
		return Result{Status: StatusSkip, Note: "no plan seeded"}
	}
	promoID := "bench_promo_" + uuid.NewString()[:8]
	status, body, err := r.do(ctx, http.MethodPost, "/api/v1/admin/promotions", map[string]any{
		"id":             promoID,
		"name":           "Bench single use",
		"discount_type":  "fixed_amount",
		"discount_value": "300",
		"start_date":     time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"end_date":       time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"usage_limit":    1,
		"plan_ids":       []string{r.planID},
	})
	if err != nil || status != http.StatusCreated {
		return Result{Status: StatusFail, Note: fmt.Sprintf("create promotion: status=%d err=%v body=%s", status, err, body)}
	}

	start := time.Now().Add(-time.Hour).UTC()
	var (
		wg         sync.WaitGroup
		discounted atomic.Int64
		failed     atomic.Int64
	)
	begin := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, body, err := r.do(ctx, http.MethodPost, "/api/v1/charges", map[string]any{
				"plan_id":    r.planID,
				"ride_id":    fmt.Sprintf("bench_ride_%d", i),
				"start_time": start.Format(time.RFC3339),
				"end_time":   start.Add(time.Hour).Format(time.RFC3339),
			})
			if err != nil || status != http.StatusOK {
				failed.Add(1)
				return
			}
			var resp struct {
				PromotionID *string `json:"promotion_id"`
			}
			if json.Unmarshal(body, &resp) == nil && resp.PromotionID != nil && *resp.PromotionID == promoID {
				discounted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	took := time.Since(begin)

	note := fmt.Sprintf("charges=%d discounted=%d failed=%d", r.cfg.Concurrency, discounted.Load(), failed.Load())
	if failed.Load() > 0 || discounted.Load() != 1 {
		return Result{Status: StatusFail, Latency: took, Note: note}
	}
	return Result{Status: StatusPass, Latency: took, Note: note}
}

func quoteLoad(ctx context.Context, r *Runner) Result {
	if r.planID == "" {
		return Result{Status: StatusSkip, Note: "no plan seeded"}
	}
	start := time.Now().UTC()
	payload := map[string]any{
		"plan_id":    r.planID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(90 * time.Minute).Format(time.RFC3339),
	}

	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, http.MethodPost, "/api/v1/quotes", payload)
				if err != nil || status != http.StatusOK {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Latency: r.cfg.Duration, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func (r *Runner) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}
