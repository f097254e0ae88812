// Command simserver runs the platform simulator: the REST API and push
// channel the client core develops and tests against.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brilho/internal/config"
	"brilho/internal/observability"
	"brilho/internal/simserver"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "brilho-sim",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExport,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv, err := simserver.New(simserver.Options{
		DBPath:    cfg.SimDBPath,
		RedisURL:  cfg.SimRedisURL,
		JWTSecret: cfg.SimJWTSecret,
		SeedUsers: cfg.SimSeedUsers,
	})
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down simulator...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Simulator shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	log.Printf("Simulator starting on port %s (login %q / password \"password\")...",
		cfg.SimPort, simserver.DemoUsername)
	log.Fatal(srv.Listen(":" + cfg.SimPort))
}
