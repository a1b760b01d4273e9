package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Stage constants define the possible deployment/runtime environments.
const (
	StageProd  = "prod"
	StageDev   = "dev"
	StageLocal = "local"
)

// Chain identifiers used throughout the service. The EVM test network is the
// primary execution chain; Solana devnet is the secondary settlement chain.
const (
	ChainBaseSepolia  = "base-sepolia"
	ChainSolanaDevnet = "solana-devnet"
)

// Config is the immutable runtime configuration, resolved once at startup.
// Nothing outside this package reads environment variables.
type Config struct {
	Stage string
	Port  string

	DatabaseURL string
	RedisURL    string

	JWTSecret string

	// EVM execution chain
	RPCURL             string
	ChainID            int64
	ExplorerBaseURL    string
	SessionRegistry    common.Address
	ActionRouter       common.Address
	RelayerPrivateKey  string
	FundingWalletKey   string
	MinRelayerBalance  *big.Int // wei
	RelayerTopupTarget *big.Int // wei

	// Adapter allowlist at the service level. The on-chain allowlist is
	// checked separately and both must agree.
	AllowedAdapters map[string]common.Address // kind -> adapter
	AllowedTokens   []common.Address
	TokenSymbols    map[string]common.Address // uppercase symbol -> token

	// Plan limits
	MaxSwapAmountUnits int64

	// Gas sponsorship drips
	DripAmountWei    *big.Int
	DripMaxPerWallet int32

	// Cross-chain routing
	BridgeAPIURL string

	// Timeouts and retention
	TopupTimeout    time.Duration
	ReceiptTimeout  time.Duration
	ReceiptInterval time.Duration
	RouteTimeout    time.Duration
	QueueRetention  time.Duration

	RateLimitPerSecond int
	RateLimitBurst     int
}

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageProd, StageDev, StageLocal:
		return true
	default:
		return false
	}
}

// Load resolves the full configuration from the environment. A .env file is
// honored for local development, matching deployed behavior where the
// variables are injected directly.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// Missing .env is fine; a malformed one is not.
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	stage := getEnv("STAGE", StageLocal)
	if !IsValidStage(stage) {
		return nil, fmt.Errorf("invalid STAGE %q: must be one of %s, %s, %s", stage, StageProd, StageDev, StageLocal)
	}

	cfg := &Config{
		Stage:       stage,
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		RPCURL:            os.Getenv("EVM_RPC_URL"),
		ExplorerBaseURL:   getEnv("EXPLORER_BASE_URL", "https://sepolia.basescan.org"),
		RelayerPrivateKey: os.Getenv("RELAYER_PRIVATE_KEY"),
		FundingWalletKey:  os.Getenv("FUNDING_WALLET_PRIVATE_KEY"),

		BridgeAPIURL: os.Getenv("BRIDGE_API_URL"),

		TopupTimeout:    getEnvDuration("TOPUP_TIMEOUT", 15*time.Second),
		ReceiptTimeout:  getEnvDuration("RECEIPT_TIMEOUT", 60*time.Second),
		ReceiptInterval: getEnvDuration("RECEIPT_INTERVAL", 2*time.Second),
		RouteTimeout:    getEnvDuration("ROUTE_TIMEOUT", 20*time.Second),
		QueueRetention:  getEnvDuration("QUEUE_RETENTION", 15*time.Minute),

		RateLimitPerSecond: getEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),

		DripMaxPerWallet:   int32(getEnvInt("DRIP_MAX_PER_WALLET", 3)),
		MaxSwapAmountUnits: int64(getEnvInt("MAX_SWAP_AMOUNT_UNITS", 5_000_000_000)),
	}

	cfg.ChainID = int64(getEnvInt("EVM_CHAIN_ID", 84532))

	var err error
	if cfg.MinRelayerBalance, err = getEnvWei("MIN_RELAYER_BALANCE_WEI", "3000000000000000"); err != nil { // 0.003 ETH
		return nil, err
	}
	if cfg.RelayerTopupTarget, err = getEnvWei("RELAYER_TOPUP_TARGET_WEI", "10000000000000000"); err != nil { // 0.01 ETH
		return nil, err
	}
	if cfg.DripAmountWei, err = getEnvWei("DRIP_AMOUNT_WEI", "1000000000000000"); err != nil { // 0.001 ETH
		return nil, err
	}

	cfg.SessionRegistry = common.HexToAddress(os.Getenv("SESSION_REGISTRY_ADDRESS"))
	cfg.ActionRouter = common.HexToAddress(os.Getenv("ACTION_ROUTER_ADDRESS"))

	cfg.AllowedAdapters = map[string]common.Address{
		"swap":  common.HexToAddress(os.Getenv("ADAPTER_SWAP_ADDRESS")),
		"perp":  common.HexToAddress(os.Getenv("ADAPTER_PERP_ADDRESS")),
		"defi":  common.HexToAddress(os.Getenv("ADAPTER_DEFI_ADDRESS")),
		"event": common.HexToAddress(os.Getenv("ADAPTER_EVENT_ADDRESS")),
	}

	for _, raw := range strings.Split(os.Getenv("ALLOWED_TOKENS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid token address in ALLOWED_TOKENS: %q", raw)
		}
		cfg.AllowedTokens = append(cfg.AllowedTokens, common.HexToAddress(raw))
	}

	// TOKEN_SYMBOLS maps symbols the intent parser can recognize onto
	// allowlisted tokens, e.g. "USDC=0x...,WETH=0x...".
	cfg.TokenSymbols = make(map[string]common.Address)
	for _, raw := range strings.Split(os.Getenv("TOKEN_SYMBOLS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		sym, addr, ok := strings.Cut(raw, "=")
		if !ok || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid entry in TOKEN_SYMBOLS: %q", raw)
		}
		cfg.TokenSymbols[strings.ToUpper(strings.TrimSpace(sym))] = common.HexToAddress(strings.TrimSpace(addr))
	}

	if stage != StageLocal {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for stage %s", stage)
		}
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required for stage %s", stage)
		}
		if cfg.RelayerPrivateKey == "" {
			return nil, fmt.Errorf("RELAYER_PRIVATE_KEY is required for stage %s", stage)
		}
	}

	return cfg, nil
}

// AdapterAllowlist returns the flat list of allowlisted adapter addresses.
func (c *Config) AdapterAllowlist() []common.Address {
	out := make([]common.Address, 0, len(c.AllowedAdapters))
	for _, addr := range c.AllowedAdapters {
		if addr != (common.Address{}) {
			out = append(out, addr)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvWei(key, fallback string) (*big.Int, error) {
	raw := getEnv(key, fallback)
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount for %s: %q", key, raw)
	}
	return n, nil
}
