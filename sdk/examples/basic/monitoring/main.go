// Monitoring Example
// This example exposes SDK metrics for Prometheus and logs every call
// through the LogObserver.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yiancode/zsxq-sdk/sdk"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	reg := prometheus.NewRegistry()
	promObserver := sdk.NewPrometheusObserver(reg)
	collector := sdk.NewMetricsCollector()

	config := sdk.DefaultConfig().
		WithToken(os.Getenv("ZSXQ_TOKEN")).
		WithBaseURL(getEnv("ZSXQ_BASE_URL", "http://127.0.0.1:8090")).
		WithRetries(2).
		WithRetryDelay(200 * time.Millisecond).
		WithLogger(logger.WithField("component", "zsxq")).
		WithObserver(sdk.NewCompositeObserver(promObserver, collector, sdk.NewLogObserver(logger)))

	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	// Expose metrics
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log.Println("📊 Metrics available at http://localhost:2112/metrics")
		if err := http.ListenAndServe(":2112", nil); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	// Poll a few endpoints so there is something to look at
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	paths := []string{"/v2/users/self", "/v2/groups", "/v2/groups/404"}
	for i := 0; ; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := client.Get(ctx, paths[i%len(paths)], nil)
		cancel()
		if err != nil {
			log.Printf("Call failed: %s", sdk.KindOf(err))
		}

		snapshot := collector.GetMetrics()
		log.Printf("requests=%v errors=%v retries=%v", snapshot["requests"], snapshot["error_kinds"], snapshot["retries"])

		<-ticker.C
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
