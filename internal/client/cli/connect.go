package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/client/presence"
	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/client/store/boltdb"
	"github.com/iudanet/boardsync/internal/client/store/httpstore"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/config"
	"github.com/iudanet/boardsync/pkg/api"
)

// Connect dials the relay, opens the local cache and starts a session of the
// configured board. The returned func closes the channel and the cache.
func Connect(ctx context.Context, cfg *config.ClientConfig, token string, logger *slog.Logger) (*session.Session, func(), error) {
	wsURL, err := channel.BoardSocketURL(cfg.ServerURL, cfg.BoardID)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	cache, err := boltdb.New(ctx, cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}

	ws, err := channel.DialWS(ctx, channel.WSConfig{URL: wsURL, Token: token}, logger)
	if err != nil {
		cache.Close()
		return nil, nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	cleanup := func() {
		if err := ws.Close(); err != nil {
			logger.Warn("Failed to close channel", "error", err)
		}
		if err := cache.Close(); err != nil {
			logger.Warn("Failed to close cache", "error", err)
		}
	}

	st := store.NewCached(httpstore.NewClient(cfg.ServerURL, token), cache, logger)
	s, err := session.Open(ctx, sessionConfig(cfg), ws, st, clock.Real(), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

func sessionConfig(cfg *config.ClientConfig) session.Config {
	return session.Config{
		BoardID:        cfg.BoardID,
		Identity:       presence.Identity{Name: cfg.Name, Color: cfg.Color},
		CursorInterval: cfg.CursorInterval,
		SnapshotDelay:  cfg.SnapshotDelay,
	}
}

func checkHealth(ctx context.Context, serverURL, token string) (*api.HealthResponse, error) {
	return httpstore.NewClient(serverURL, token).Health(ctx)
}
