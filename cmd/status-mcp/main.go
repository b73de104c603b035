package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/status-mcp/internal/auth"
	"github.com/alexjbarnes/status-mcp/internal/config"
	"github.com/alexjbarnes/status-mcp/internal/logging"
	"github.com/alexjbarnes/status-mcp/internal/server"
	"github.com/alexjbarnes/status-mcp/internal/state"
)

var Version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error

	switch cmd {
	case "serve":
		err = run()
	case "revoke-inactive":
		err = revokeInactive(os.Args[2:])
	case "gen-secret":
		// 32 random bytes, the same length MASTER_KEY decodes to.
		fmt.Println(auth.RandomHex(32))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve, revoke-inactive or gen-secret)\n", cmd)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("status-mcp starting",
		slog.String("version", Version),
		slog.String("server_url", cfg.ServerURL),
		slog.String("token_mode", cfg.TokenMode),
		slog.Bool("user_api_keys", cfg.UserAPIKeysEnabled),
	)

	st, err := openState(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	app, err := server.Build(cfg, st, Version, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return err
	}

	logger.Info("status-mcp stopped")

	return nil
}

// revokeInactive is the batch job for the key inactivity policy. It
// revokes user API keys not used within -days (default
// API_KEY_INACTIVE_AFTER).
func revokeInactive(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fs := flag.NewFlagSet("revoke-inactive", flag.ContinueOnError)
	days := fs.Int("days", int(cfg.APIKeyInactiveAfter/(24*time.Hour)), "revoke keys idle for this many days")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *days <= 0 {
		return errors.New("-days must be positive")
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)

	st, err := openState(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	app, err := server.Build(cfg, st, Version, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.APIKeys.RevokeInactive(context.Background(), time.Duration(*days)*24*time.Hour)
	if err != nil {
		return err
	}

	fmt.Printf("revoked %d inactive api key(s)\n", n)

	return nil
}

func openState(cfg *config.Config) (*state.State, error) {
	var (
		st  *state.State
		err error
	)

	if cfg.StateDBPath != "" {
		st, err = state.LoadAt(cfg.StateDBPath)
	} else {
		st, err = state.Load()
	}

	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}

	return st, nil
}
