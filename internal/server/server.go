// Package server wires configuration, storage, chain clients, services, and
// HTTP routes into a runnable API server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/chain"
	"github.com/blossomfi/blossom-api/internal/config"
	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/funding"
	"github.com/blossomfi/blossom-api/internal/handlers"
	"github.com/blossomfi/blossom-api/internal/intent"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/middleware"
	"github.com/blossomfi/blossom-api/internal/parser"
	"github.com/blossomfi/blossom-api/internal/plan"
	"github.com/blossomfi/blossom-api/internal/policy"
	"github.com/blossomfi/blossom-api/internal/routing"
	"github.com/blossomfi/blossom-api/internal/services"
)

// intentContextTTL bounds how long an unconfirmed conversation survives.
const intentContextTTL = 30 * time.Minute

// workerSweepInterval paces the background janitor and balance watcher.
const workerSweepInterval = 1 * time.Minute

// Server is the assembled API process.
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	pool   *pgxpool.Pool

	janitor *services.QueueJanitor
	watcher *services.BalanceWatcher
}

// New builds the full server from configuration.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	queries := db.New(pool)

	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}
	registry, err := chain.NewRegistry(client, cfg.SessionRegistry)
	if err != nil {
		return nil, err
	}
	relayer, err := chain.NewAccount(cfg.RelayerPrivateKey, client)
	if err != nil {
		return nil, fmt.Errorf("failed to load relayer key: %w", err)
	}

	// The funding wallet is optional; without it the ladder skips top-up
	// and drip.
	var gasSource funding.GasSource
	if cfg.FundingWalletKey != "" {
		fundingWallet, err := chain.NewAccount(cfg.FundingWalletKey, client)
		if err != nil {
			return nil, fmt.Errorf("failed to load funding wallet key: %w", err)
		}
		gasSource = fundingWallet
	}

	fundingSvc := funding.NewService(client, relayer.Address(), gasSource, queries, funding.Config{
		MinRelayerBalance: cfg.MinRelayerBalance,
		TopupTarget:       cfg.RelayerTopupTarget,
		TopupTimeout:      cfg.TopupTimeout,
		DripAmount:        cfg.DripAmountWei,
		DripMaxPerWallet:  int64(cfg.DripMaxPerWallet),
	})

	bridge := routing.NewBridgeClient(cfg.BridgeAPIURL)
	router := routing.NewRouter(bridge, bridge, queries,
		[]string{config.ChainBaseSepolia, config.ChainSolanaDevnet}, cfg.RouteTimeout)

	validator := plan.NewValidator(plan.ValidatorConfig{
		AllowedTokens:      cfg.AllowedTokens,
		Adapters:           adapterBindings(cfg),
		MaxSwapAmountUnits: cfg.MaxSwapAmountUnits,
	}, registry, nil)

	lookup := policy.SessionLookup(registry.GetSession)
	engine := policy.NewEngine(nil)

	execution := services.NewExecutionService(
		validator, engine, lookup, fundingSvc, router,
		relayer, client, queries,
		services.ExecutionConfig{
			Chain:           config.ChainBaseSepolia,
			Network:         "testnet",
			ExplorerBaseURL: cfg.ExplorerBaseURL,
			ActionRouter:    cfg.ActionRouter,
			AllowedAdapters: cfg.AdapterAllowlist(),
			ReceiptTimeout:  cfg.ReceiptTimeout,
			ReceiptInterval: cfg.ReceiptInterval,
		}, nil)

	contextStore := newContextStore(cfg)
	machine := intent.NewMachine(contextStore, nil)
	fallback := parser.NewDeterministic(cfg.TokenSymbols)
	intents := services.NewIntentService(machine, fallback)

	sessions := services.NewSessionService(lookup, queries, nil)
	ledger := services.NewLedgerService(queries)

	s := &Server{
		cfg:     cfg,
		pool:    pool,
		janitor: services.NewQueueJanitor(queries, cfg.QueueRetention, workerSweepInterval),
		watcher: services.NewBalanceWatcher(client, gasSource, relayer,
			cfg.MinRelayerBalance, cfg.RelayerTopupTarget, workerSweepInterval),
	}
	s.router = s.buildRouter(execution, intents, sessions, ledger)
	return s, nil
}

// Run starts the background workers and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.janitor.Run(ctx)
	go s.watcher.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		s.pool.Close()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) buildRouter(
	execution *services.ExecutionService,
	intents *services.IntentService,
	sessions *services.SessionService,
	ledger *services.LedgerService,
) *gin.Engine {
	if s.cfg.Stage == config.StageProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(configureCORS(s.cfg))
	r.Use(middleware.CorrelationIDMiddleware())

	limiter := middleware.NewRateLimiter(s.cfg.RateLimitPerSecond, s.cfg.RateLimitBurst)
	r.Use(limiter.Middleware())

	executeHandler := handlers.NewExecuteHandler(execution)
	intentHandler := handlers.NewIntentHandler(intents)
	sessionHandler := handlers.NewSessionHandler(sessions)
	executionHandler := handlers.NewExecutionHandler(ledger)
	healthHandler := handlers.NewHealthHandler()

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(s.cfg.JWTSecret))
	{
		v1.POST("/execute", executeHandler.Execute)
		v1.POST("/intent/message", intentHandler.Message)
		v1.POST("/intent/reset", intentHandler.Reset)
		v1.GET("/sessions/:id/status", sessionHandler.Status)
		v1.GET("/executions", executionHandler.List)
		v1.GET("/executions/:id", executionHandler.Get)
	}

	return r
}

// newContextStore picks redis when configured, memory otherwise.
func newContextStore(cfg *config.Config) intent.ContextStore {
	if cfg.RedisURL == "" {
		return intent.NewMemoryStore(intentContextTTL, nil)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, falling back to in-memory intent store", zap.Error(err))
		return intent.NewMemoryStore(intentContextTTL, nil)
	}
	return intent.NewRedisStore(redis.NewClient(opts), intentContextTTL)
}

// adapterBindings maps action kinds onto their configured adapters.
func adapterBindings(cfg *config.Config) map[plan.Kind]common.Address {
	out := make(map[plan.Kind]common.Address, len(cfg.AllowedAdapters))
	for kind, addr := range cfg.AllowedAdapters {
		out[plan.Kind(kind)] = addr
	}
	return out
}

func configureCORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if cfg.Stage == config.StageLocal {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		corsConfig.AllowOrigins = []string{"https://app.blossom.fi"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Wallet-Address", "X-Correlation-ID"}
	corsConfig.ExposeHeaders = []string{"X-Correlation-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	return cors.New(corsConfig)
}
