package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/cartblanche/cartblanche-api/internal/authorizer"
	"github.com/cartblanche/cartblanche-api/internal/config"
	"github.com/cartblanche/cartblanche-api/internal/handlers"
	"github.com/cartblanche/cartblanche-api/internal/ledger"
	"github.com/cartblanche/cartblanche-api/internal/settlement"
	"github.com/cartblanche/cartblanche-api/internal/vault"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New wires the service dependencies and returns the configured router. The
// ledger client is injected so tests can run against a mock.
func New(cfg *config.Config, ledgerClient ledger.Client) (*gin.Engine, error) {
	var cipher vault.Cipher
	if len(cfg.VaultKey) > 0 {
		secretboxCipher, err := vault.NewSecretboxCipher(cfg.VaultKey)
		if err != nil {
			return nil, err
		}
		cipher = secretboxCipher
	} else {
		cipher = vault.NewThresholdStubCipher()
	}

	executor, err := settlement.NewExecutor(ledgerClient, settlement.Config{
		SenderKey:        cfg.SenderKey,
		TokenAddress:     cfg.TokenAddress,
		InclusionTimeout: cfg.InclusionTimeout,
	})
	if err != nil {
		return nil, err
	}

	common := handlers.NewCommonServices(
		vault.NewBudgetVault(cipher),
		authorizer.NewAuthorizer(),
		executor,
	)
	paymentHandler := handlers.NewPaymentHandler(common)
	budgetHandler := handlers.NewBudgetHandler(common)

	router := gin.Default()
	router.Use(configureCORS())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	v1 := router.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/authorize", paymentHandler.AuthorizeMandate)
			payments.POST("/settle", paymentHandler.SettleMandate)
		}

		budget := v1.Group("/budget")
		{
			budget.POST("/encrypt", budgetHandler.EncryptBudget)
			budget.POST("/decrypt", budgetHandler.DecryptBudget)
		}
	}

	return router, nil
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		// Default to localhost if not set
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		// Split and trim the origins
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}

	return cors.New(corsConfig)
}
