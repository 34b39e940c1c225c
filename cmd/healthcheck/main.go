// Command healthcheck probes the configured classifier endpoint and reports
// reachability. It exits non-zero when the endpoint cannot answer a minimal
// chat request, making it usable from cron or a service manager.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"MarketMonitor/internal/config"
	"MarketMonitor/internal/infrastructure/llm"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "probe timeout")
	flag.Parse()

	cfg := config.Load()
	client := llm.NewClient(cfg.LLM, nil)

	diag := client.Check(context.Background(), *timeout)

	out, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal diagnostics:", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !diag.OK {
		os.Exit(1)
	}
}
