package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	adapter "github.com/bcnelson/casbin-dynamodb-adapter"
	"github.com/bcnelson/casbin-dynamodb-adapter/internal/api"
	"github.com/bcnelson/casbin-dynamodb-adapter/internal/authz"
	"github.com/bcnelson/casbin-dynamodb-adapter/internal/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize the DynamoDB client
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})

	// Initialize the policy adapter
	policyAdapter, err := adapter.New(client, cfg.DynamoDB.TableName)
	if err != nil {
		log.Fatalf("Failed to initialize policy adapter: %v", err)
	}

	// Initialize the authorizer (loads the policy from the table)
	mode, err := authz.ParseMode(cfg.Authz.Mode)
	if err != nil {
		log.Fatalf("Invalid authz mode: %v", err)
	}
	authorizer, err := authz.New(cfg.Authz.ModelPath, policyAdapter, mode)
	if err != nil {
		log.Fatalf("Failed to initialize authorizer: %v", err)
	}

	// Create router
	router := api.NewRouter(authorizer, cfg.Authz.APIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting policy service on http://%s (table %s, mode %s)",
		cfg.Server.Addr(), cfg.DynamoDB.TableName, mode)
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
