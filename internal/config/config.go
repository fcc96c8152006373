package config

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config holds the service configuration, read from the environment at
// startup. All lifetimes are caller controlled; nothing here is a singleton.
type Config struct {
	Port string

	// RPCURL is the JSON-RPC endpoint of the settlement ledger.
	RPCURL string

	// SenderKey is the custodial account key transfers are paid from. It is
	// never the requester's key; requester signatures arrive from outside.
	SenderKey *ecdsa.PrivateKey

	// TokenAddress, when set, settles line items as ERC-20 transfers of
	// this token instead of native value.
	TokenAddress *common.Address

	// InclusionTimeout bounds the per-transfer wait for ledger inclusion.
	InclusionTimeout time.Duration

	// VaultKey enables the local secretbox cipher when set (64 hex chars);
	// otherwise the threshold gateway stub cipher is used.
	VaultKey []byte
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnvWithDefault("PORT", "8000"),
		RPCURL:           os.Getenv("LEDGER_RPC_URL"),
		InclusionTimeout: 90 * time.Second,
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("LEDGER_RPC_URL environment variable is required")
	}

	keyHex := strings.TrimPrefix(os.Getenv("SENDER_PRIVATE_KEY"), "0x")
	if keyHex == "" {
		return nil, fmt.Errorf("SENDER_PRIVATE_KEY environment variable is required")
	}
	senderKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("SENDER_PRIVATE_KEY is not a valid private key: %w", err)
	}
	cfg.SenderKey = senderKey

	if tokenAddr := os.Getenv("SETTLEMENT_TOKEN_ADDRESS"); tokenAddr != "" {
		if !common.IsHexAddress(tokenAddr) {
			return nil, fmt.Errorf("SETTLEMENT_TOKEN_ADDRESS is not a valid address")
		}
		addr := common.HexToAddress(tokenAddr)
		cfg.TokenAddress = &addr
	}

	if timeoutSec := os.Getenv("INCLUSION_TIMEOUT_SECONDS"); timeoutSec != "" {
		seconds, err := strconv.Atoi(timeoutSec)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("INCLUSION_TIMEOUT_SECONDS must be a positive integer")
		}
		cfg.InclusionTimeout = time.Duration(seconds) * time.Second
	}

	if vaultKeyHex := os.Getenv("VAULT_SECRETBOX_KEY"); vaultKeyHex != "" {
		key, err := hex.DecodeString(vaultKeyHex)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("VAULT_SECRETBOX_KEY must be 64 hex characters")
		}
		cfg.VaultKey = key
	}

	return cfg, nil
}

// getEnvWithDefault returns environment variable value or default
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
