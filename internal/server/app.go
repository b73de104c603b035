package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/auth"
	"github.com/alexjbarnes/status-mcp/internal/config"
	"github.com/alexjbarnes/status-mcp/internal/fields"
	"github.com/alexjbarnes/status-mcp/internal/mcpserver"
	"github.com/alexjbarnes/status-mcp/internal/ratelimit"
	"github.com/alexjbarnes/status-mcp/internal/secrets"
	"github.com/alexjbarnes/status-mcp/internal/state"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App is the assembled server: the HTTP handler plus the background
// work that keeps its stores tidy.
type App struct {
	Handler http.Handler
	APIKeys *auth.APIKeyService

	cfg      *config.Config
	state    *state.State
	logger   *slog.Logger
	memories []*ratelimit.Memory
	redis    *redis.Client
}

// Build wires every component from cfg over an open state database.
// The caller owns st and must call Close on the returned App.
func Build(cfg *config.Config, st *state.State, version string, logger *slog.Logger) (*App, error) {
	table, err := loadFields(cfg.ConnectFieldsFile)
	if err != nil {
		return nil, err
	}

	master := secrets.NewMasterKey(cfg.MasterKey, logger)
	cipher := secrets.NewCipher(master)

	if !cipher.Ready() {
		logger.Warn("MASTER_KEY is not set; connect, token and api key issuance will fail")
	}

	policy := auth.NewRedirectPolicy(cfg.RedirectURIAllowlistMode, cfg.ParseRedirectAllowlist())
	registry := auth.NewRegistry(st, policy, cfg.MaxClients, logger)
	codes := auth.NewCodeIssuer(registry, st, cipher, table, cfg.ServerURL, cfg.CodeTTL, logger)
	tokens := auth.NewTokenService(cfg.TokenMode, master, st, cfg.ServerURL, cfg.TokenTTL)
	keys := auth.NewAPIKeyService(st, cipher, table, cfg.UserAPIKeysEnabled, logger)

	app := &App{
		APIKeys: keys,
		cfg:     cfg,
		state:   st,
		logger:  logger,
	}

	limiters, err := app.buildLimiters()
	if err != nil {
		return nil, err
	}

	app.logCounts()

	app.Handler = NewRouter(RouterConfig{
		Registry:    registry,
		Codes:       codes,
		Tokens:      tokens,
		APIKeys:     keys,
		Connections: st,
		Resolvers: []auth.Resolver{
			auth.NewUserKeyResolver(keys, st, cipher),
			auth.NewBearerResolver(tokens, st, cipher),
			auth.NewGlobalKeyResolver(cfg.ParseGlobalAPIKeys()),
		},
		Fields:            table,
		Limiters:          limiters,
		MCPHandler:        mcpserver.Handler(table, version, logger),
		Logger:            logger,
		ServerURL:         cfg.ServerURL,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	return app, nil
}

// logCounts reports how many clients and connections the state database
// holds at startup.
func (a *App) logCounts() {
	clients, err := a.state.ClientCount()
	if err != nil {
		a.logger.Warn("counting clients", slog.String("error", err.Error()))
		return
	}

	connections, err := a.state.ConnectionCount()
	if err != nil {
		a.logger.Warn("counting connections", slog.String("error", err.Error()))
		return
	}

	a.logger.Info("state loaded", slog.Int("clients", clients), slog.Int("connections", connections))
}

func loadFields(path string) (*fields.Table, error) {
	table, err := fields.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading connect fields: %w", err)
	}

	return table, nil
}

// buildLimiters uses Redis when RATE_LIMIT_REDIS_URL is set so counters
// are shared across replicas, and in-process windows otherwise.
func (a *App) buildLimiters() (Limiters, error) {
	if a.cfg.RateLimitRedisURL != "" {
		client, err := ratelimit.NewRedisClient(a.cfg.RateLimitRedisURL)
		if err != nil {
			return Limiters{}, err
		}

		a.redis = client
		a.logger.Info("rate limits shared through redis")

		newRedis := func(name string, rl config.RateLimit) ratelimit.Limiter {
			return ratelimit.NewRedis(client, name, ratelimit.Rule{Max: rl.Max, Window: rl.Window})
		}

		return Limiters{
			Register: newRedis("register", a.cfg.RegisterLimit),
			Connect:  newRedis("connect", a.cfg.ConnectLimit),
			Token:    newRedis("token", a.cfg.TokenLimit),
			APIKeys:  newRedis("api_keys", a.cfg.APIKeyLimit),
			MCP:      newRedis("mcp", a.cfg.MCPLimit),
		}, nil
	}

	newMemory := func(rl config.RateLimit) ratelimit.Limiter {
		m := ratelimit.NewMemory(ratelimit.Rule{Max: rl.Max, Window: rl.Window})
		a.memories = append(a.memories, m)

		return m
	}

	return Limiters{
		Register: newMemory(a.cfg.RegisterLimit),
		Connect:  newMemory(a.cfg.ConnectLimit),
		Token:    newMemory(a.cfg.TokenLimit),
		APIKeys:  newMemory(a.cfg.APIKeyLimit),
		MCP:      newMemory(a.cfg.MCPLimit),
	}, nil
}

// Run serves HTTP on cfg.ListenAddr and runs the limiter sweeps and the
// expired record purge until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := New(a.cfg.ListenAddr, a.Handler)
	g.Go(func() error {
		return Run(gctx, srv, a.logger)
	})

	a.RunBackground(gctx, g)

	return g.Wait()
}

// RunBackground starts the maintenance loops on g.
func (a *App) RunBackground(ctx context.Context, g *errgroup.Group) {
	if a.cfg.RateLimitSweepPeriod > 0 {
		for _, m := range a.memories {
			g.Go(func() error {
				return m.Run(ctx, a.cfg.RateLimitSweepPeriod)
			})
		}
	}

	if a.cfg.PurgeInterval > 0 {
		g.Go(func() error {
			return a.purgeLoop(ctx, a.cfg.PurgeInterval)
		})
	}
}

// Purge deletes expired codes and sessions once.
func (a *App) Purge(now time.Time) {
	res, err := a.state.PurgeExpired(now)
	if err != nil {
		a.logger.Warn("purging expired records", slog.String("error", err.Error()))
		return
	}

	if res.Codes > 0 || res.Sessions > 0 {
		a.logger.Debug("purged expired records",
			slog.Int("codes", res.Codes),
			slog.Int("sessions", res.Sessions),
		)
	}
}

func (a *App) purgeLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.Purge(now)
		}
	}
}

// Close releases the Redis client, if any.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}

	return a.redis.Close()
}
