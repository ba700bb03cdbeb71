package test

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	goToken "github.com/MrEthical07/goToken"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with a Redis-backed issuance throttle.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := goToken.DefaultConfig()
	cfg.Cipher.Key = bytes.Repeat([]byte{1}, 32)
	cfg.RateLimit.Enabled = true

	engine, _ := goToken.New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	_ = engine
}

// ExampleManager shows an issue and validate round trip for one request.
func ExampleManager() {
	cfg := goToken.DefaultConfig()
	cfg.Cipher.Key = bytes.Repeat([]byte{1}, 32)
	engine, err := goToken.New().WithConfig(cfg).Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	req := goToken.StaticRequest{HostName: "api.example.com", Vars: map[string]string{"REMOTE_ADDR": "203.0.113.7"}}
	m := engine.ForRequest(req).WithAudience("billing")

	tok, err := m.Issue(context.Background(), map[string]int{"uid": 42})
	if err != nil {
		panic(err)
	}

	var out struct{ UID int }
	if err := m.ValidateInto(context.Background(), tok, &out); err != nil {
		panic(err)
	}
	fmt.Println(out.UID)

	_, err = engine.ForRequest(req).WithAudience("admin").Validate(context.Background(), tok)
	fmt.Println(errors.Is(err, goToken.ErrInvalidAudience), goToken.CodeOf(err))
	// Output:
	// 42
	// true 41000
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *goToken.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
