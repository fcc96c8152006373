package main

import (
	"log"

	"github.com/cartblanche/cartblanche-api/internal/config"
	"github.com/cartblanche/cartblanche-api/internal/ledger"
	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cartblanche/cartblanche-api/internal/server"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		// It's often okay if the .env file is missing, especially in production
		// where variables might be set directly in the environment.
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	// Initialize logger first
	logger.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ledgerClient, err := ledger.NewEthClient(cfg.RPCURL)
	if err != nil {
		logger.Fatal("Unable to connect to ledger", zap.Error(err))
	}
	defer ledgerClient.Close()

	router, err := server.New(cfg, ledgerClient)
	if err != nil {
		logger.Fatal("Unable to initialize server", zap.Error(err))
	}

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Error starting server", zap.Error(err))
	}
}
