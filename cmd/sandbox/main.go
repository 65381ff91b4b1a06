package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yiancode/zsxq-sdk/internal/sandbox"
	"github.com/yiancode/zsxq-sdk/internal/telemetry"
)

func main() {
	// Initialize telemetry first so startup failures are logged
	telCfg := telemetry.NewConfigFromEnv("zsxq-sandbox")
	if err := telemetry.Init(telCfg); err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	cfg, err := sandbox.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("🧪 zsxq sandbox starting (admin routes: %t)...", cfg.EnableAdmin)
	if len(cfg.Tokens) == 0 {
		log.Println("⚠️  No SANDBOX_TOKENS set, any non-empty token is accepted")
	}

	srv := sandbox.New(cfg,
		sandbox.WithLogger(telemetry.L()),
		sandbox.WithMetrics(telemetry.M(), prometheus.DefaultGatherer),
	)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown failed: %v", err)
		}
	}()

	log.Printf("🚀 zsxq sandbox listening on %s (metrics at %s)", cfg.Addr(), cfg.MetricsPath)

	if err := srv.Listen(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
