// Command tokenbench measures concurrent issue and validate throughput of an
// in-process engine.
//
//	go run ./cmd/tokenbench -clients 10000 -ops 200000 -method jwe -report otel
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/cipher"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type clientState struct {
	req   goToken.StaticRequest
	token string
}

func main() {
	var (
		clients     = flag.Int("clients", 10000, "number of distinct client addresses to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (issue + validate)")
		method      = flag.String("method", string(cipher.MethodSealed), "cipher method: sealed or jwe")
		payloadSize = flag.Int("payload", 256, "payload size in bytes")
		rateLimit   = flag.Bool("rate-limit", false, "enable the redis issuance limiter")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		report      = flag.String("report", "summary", "counter report format: summary, prometheus or otel")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 || *payloadSize < 2 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and ops must be > 0; payload must be >= 2")
		os.Exit(2)
	}

	ctx := context.Background()

	key := make([]byte, cipher.KeySize)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	cfg := goToken.DefaultConfig()
	cfg.Cipher.Method = cipher.Method(*method)
	cfg.Cipher.Key = key
	cfg.Cipher.KeyID = "bench"
	cfg.Token.MaxPayloadBytes = *payloadSize + 16
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := goToken.New()

	if *rateLimit {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.MaxIssues = *ops
		cfg.RateLimit.Window = time.Hour

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
				fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
				os.Exit(1)
			}
			addr = mr.Addr()
			client = redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs: []string{addr},
			})
			cleanup = func() {
				_ = client.Close()
				mr.Close()
			}
			fmt.Printf("using miniredis at %s\n", addr)
		} else {
			client = redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs: []string{addr},
			})
			cleanup = func() { _ = client.Close() }
			fmt.Printf("using redis at %s\n", addr)
		}
		defer cleanup()

		builder = builder.WithRedis(client)
	}

	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	payload := make([]byte, *payloadSize)
	for i := range payload {
		payload[i] = 'a' + byte(i%26)
	}
	body := string(payload[:len(payload)-2]) // quotes added by JSON encoding

	states := make([]clientState, *clients)
	fmt.Printf("seeding %d clients (%s)...\n", *clients, cfg.Cipher.Method)
	startSeed := time.Now()
	for i := range states {
		states[i].req = goToken.StaticRequest{
			HostName: "bench.example.com",
			Peer:     clientIP(i),
		}
		tok, err := engine.ForRequest(states[i].req).Issue(ctx, body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed issue failed: %v\n", err)
			os.Exit(1)
		}
		states[i].token = tok
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(s *clientState) error {
		_, err := engine.ForRequest(s.req).Validate(ctx, s.token)
		return err
	})
	issueStats := runPhase(states, *ops, *concurrency, 6151, func(s *clientState) error {
		_, err := engine.ForRequest(s.req).Issue(ctx, body)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("issue", issueStats)

	if err := writeReport(os.Stdout, *report, engine); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}

func runPhase(states []clientState, ops, concurrency int, seed int64, op func(*clientState) error) phaseStats {
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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				t0 := time.Now()
				err := op(&states[idx])
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

// clientIP spreads i over 10.0.0.0/8.
func clientIP(i int) string {
	return fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
}
