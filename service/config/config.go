package config

import (
	"fmt"
	"os"
)

// USDCMainnetMint is the canonical USDC mint on mainnet-beta, used when no
// override is configured.
const USDCMainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURL    string
	USDCMintAddress string

	// Classifier configuration
	GeminiAPIKey string
	GeminiModel  string

	// Swap aggregator configuration
	JupiterBaseURL string

	// Agent signing configuration. Optional: when empty, agent-signed
	// transactions are unavailable and requests for them fail explicitly
	// rather than falling back to an insecure default.
	AgentPrivateKey string

	// Audit store configuration. Optional: when empty, auditing is disabled.
	DatabaseURL string

	// Event streaming configuration. Optional: when empty, streaming is disabled.
	NATSURL string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.USDCMintAddress = getEnvOrDefault("USDC_MINT_ADDRESS", USDCMainnetMint)

	// Classifier configuration
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		errs = append(errs, fmt.Errorf("GEMINI_API_KEY is required"))
	}
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash")

	// Swap aggregator configuration
	cfg.JupiterBaseURL = getEnvOrDefault("JUPITER_BASE_URL", "https://quote-api.jup.ag/v6")

	// Optional integrations
	cfg.AgentPrivateKey = os.Getenv("AGENT_PRIVATE_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.GeminiAPIKey == "" {
		errs = append(errs, fmt.Errorf("GeminiAPIKey is required"))
	}

	if c.USDCMintAddress == "" {
		errs = append(errs, fmt.Errorf("USDCMintAddress is required"))
	}

	if c.JupiterBaseURL == "" {
		errs = append(errs, fmt.Errorf("JupiterBaseURL is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// AgentSigningConfigured reports whether an agent credential is present.
func (c *Config) AgentSigningConfigured() bool {
	return c.AgentPrivateKey != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
