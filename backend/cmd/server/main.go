package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"schoolapi/backend/internal/gateway"
	"schoolapi/backend/internal/shared"
)

const healthService = "school.API"

func main() {
	log.Println("INFO: Starting School API...")

	// Load environment variables
	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// 1. Load Configuration (validates MONGO_URI and JWT_SECRET are present)
	cfg, err := shared.LoadServiceConfig("api")
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if err := shared.ValidateServiceConfig(cfg); err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}
	if shared.IsDevelopment(cfg) {
		shared.PrintConfig(cfg)
	}

	// 2. Connect to MongoDB and make sure the unique indexes exist
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to MongoDB: %v", err)
	}
	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := shared.EnsureIndexes(indexCtx, db); err != nil {
		cancel()
		log.Fatalf("FATAL: Failed to create indexes: %v", err)
	}
	cancel()

	// 3. Optional principal cache
	rdb, err := shared.ConnectRedis(&cfg.Redis)
	if err != nil {
		log.Printf("WARN: %v; continuing without principal cache", err)
		rdb = nil
	}

	// 4. Wire services and routes
	services, err := gateway.NewServices(db, rdb, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialise services: %v", err)
	}
	defer services.Close()

	router := gateway.SetupRoutes(services, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Ops endpoint: gRPC health + reflection
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", ":"+cfg.OpsPort)
	if err != nil {
		log.Fatalf("FATAL: Failed to listen on port %s: %v", cfg.OpsPort, err)
	}

	go func() {
		log.Printf("INFO: Health endpoint listening on port %s", cfg.OpsPort)
		if err := grpcServer.Serve(listener); err != nil {
			log.Printf("WARN: health server stopped: %v", err)
		}
	}()

	go func() {
		log.Printf("INFO: API listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: HTTP server error: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down School API...")

	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("WARN: HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()

	if err := shared.DisconnectMongoDB(client); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	}
	log.Println("INFO: School API stopped.")
}
