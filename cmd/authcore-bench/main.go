// Command authcore-bench measures register, login and authenticate
// throughput against Redis or an in-process miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/conduitblog/authcore"
	"github.com/conduitblog/authcore/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const benchPassword = "bench-password"

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts to register")
		concurrency = flag.Int("concurrency", 16, "number of concurrent workers")
		ops         = flag.Int("ops", 2000, "operations per phase (login + authenticate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	ctx := context.Background()
	cfg, err := authcore.LoadConfig(ctx)
	log := logger.Init(logger.Options{Level: os.Getenv("LOG_LEVEL"), Pretty: true})
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		log.Fatal().Msg("users, concurrency, and ops must be > 0")
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("start miniredis")
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		log.Info().Str("addr", mr.Addr()).Msg("using miniredis")
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
			DB:    cfg.Store.DB,
		})
		cleanup = func() { _ = client.Close() }
		log.Info().Str("addr", addr).Msg("using redis")
	}
	defer cleanup()

	// Throttling would turn the benchmark into a rate limiter test.
	cfg.Security.EnableIPThrottle = false
	cfg.Security.MaxLoginAttempts = *ops + 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAuditSink(authcore.NewLoggerSink(log.Level(zerolog.WarnLevel))).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}
	defer engine.Close()

	emails, seedStats := runRegisterPhase(ctx, engine, *users, *concurrency)
	if len(emails) == 0 {
		log.Fatal().Msg("no accounts registered")
	}

	var tokensMu sync.Mutex
	tokens := make([]string, len(emails))
	loginStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		idx := r.Intn(len(emails))
		res, err := engine.Login(ctx, authcore.LoginRequest{Email: emails[idx], Password: benchPassword})
		if err != nil {
			return err
		}
		tokensMu.Lock()
		tokens[idx] = res.Token
		tokensMu.Unlock()
		return nil
	})

	issued := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok != "" {
			issued = append(issued, tok)
		}
	}
	if len(issued) == 0 {
		log.Fatal().Msg("no tokens issued")
	}
	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.Authenticate(ctx, issued[r.Intn(len(issued))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("register", seedStats)
	printStats("login", loginStats)
	printStats("authenticate", authStats)

	snap := engine.MetricsSnapshot()
	log.Info().
		Uint64("tokens_issued", snap.Counters[authcore.MetricTokenIssued]).
		Uint64("login_failures", snap.Counters[authcore.MetricLoginFailure]).
		Dur("hash_time_total", snap.HistogramSums[authcore.MetricPasswordHashLatency]).
		Msg("engine counters")
}

func runRegisterPhase(ctx context.Context, engine *authcore.Engine, users, concurrency int) ([]string, phaseStats) {
	emails := make([]string, users)
	stats := runPhase(users, concurrency, func(_ *rand.Rand, i int) error {
		email := fmt.Sprintf("bench-%d@example.com", i)
		_, err := engine.Register(ctx, authcore.RegisterRequest{
			Username: fmt.Sprintf("bench-%d", i),
			Email:    email,
			Password: benchPassword,
		})
		if err != nil {
			return err
		}
		emails[i] = email
		return nil
	})

	out := emails[:0]
	for _, e := range emails {
		if e != "" {
			out = append(out, e)
		}
	}
	return out, stats
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
