package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	apex "github.com/Ap3pp3rs94/chartly-apex/sdk/go"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

func main() {
	var (
		baseURL   = flag.String("base", "http://localhost:8080", "chartd base URL")
		requestID = flag.String("request", "req_basic_client", "Request ID")
		timeout   = flag.Duration("timeout", 10*time.Second, "Request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = telemetry.WithRequestID(ctx, *requestID)

	c := apex.NewClient(*baseURL)

	health, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "health failed:", err)
		os.Exit(1)
	}
	fmt.Printf("chartd %s\n", health.Overall)

	chart, err := c.CreateChart(ctx, map[string]any{
		"type":  "donut",
		"title": "Traffic",
		"data":  [][]any{{"Desktop", 44}, {"Mobile", 23}},
	}, apex.WithIdempotencyKey("basic-client-donut"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "create failed:", err)
		os.Exit(1)
	}

	cfg, err := c.Config(ctx, chart.ID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config failed:", err)
		os.Exit(1)
	}
	fmt.Printf("chart %s: type=%s labels=%v\n", chart.ID, cfg.Type, cfg.Labels)
}
