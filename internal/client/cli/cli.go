// Package cli implements the commands of the board client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/iudanet/boardsync/internal/client/iocli"
	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/config"
	"github.com/iudanet/boardsync/internal/discovery"
	"github.com/iudanet/boardsync/pkg/api"
)

// EnvToken переменная окружения с токеном доступа
const EnvToken = "BOARDSYNC_TOKEN"

// Tokens источники токена доступа, кроме переменной окружения
type Tokens struct {
	FromFile string
	FromArgs string
}

// Connector открывает сессию доски. close освобождает канал и кэш.
type Connector func(ctx context.Context, cfg *config.ClientConfig, token string, logger *slog.Logger) (s *session.Session, close func(), err error)

// Browser ищет relay-серверы в локальной сети
type Browser func(ctx context.Context, timeout time.Duration, logger *slog.Logger) ([]discovery.Relay, error)

// HealthChecker запрашивает состояние relay-сервера
type HealthChecker func(ctx context.Context, serverURL, token string) (*api.HealthResponse, error)

// Cli is the board client command runner.
type Cli struct {
	io      iocli.IO
	cfg     *config.ClientConfig
	logger  *slog.Logger
	connect Connector
	browse  Browser
	health  HealthChecker
	tokens  Tokens
}

// New creates the command runner with the network implementations of the
// connector, browser and health checker.
func New(io iocli.IO, cfg *config.ClientConfig, tokens Tokens, logger *slog.Logger) *Cli {
	return &Cli{
		io:      io,
		cfg:     cfg,
		logger:  logger,
		tokens:  tokens,
		connect: Connect,
		browse:  discovery.Browse,
		health:  checkHealth,
	}
}

// getToken retrieves the access token from various sources with priority:
// 1. Environment variable BOARDSYNC_TOKEN
// 2. File specified in tokens.FromFile
// 3. Command-line parameter or config file
// 4. Interactive prompt (fallback)
func (c *Cli) getToken() (string, error) {
	// Priority 1: Environment variable
	if envToken := os.Getenv(EnvToken); envToken != "" {
		return envToken, nil
	}

	// Priority 2: File
	if c.tokens.FromFile != "" {
		content, err := os.ReadFile(c.tokens.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(content))
		if token == "" {
			return "", fmt.Errorf("token file is empty")
		}
		return token, nil
	}

	// Priority 3: CLI parameter or config
	if c.tokens.FromArgs != "" {
		return c.tokens.FromArgs, nil
	}
	if c.cfg.Token != "" {
		return c.cfg.Token, nil
	}

	// Priority 4: Interactive prompt (fallback)
	token, err := c.io.ReadSecret("Access token: ")
	if err != nil {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return token, nil
}

// PrintUsage prints the command reference.
func (c *Cli) PrintUsage() {
	c.io.Println("Boardsync Client")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  boardsync [OPTIONS] COMMAND [ARGS]")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version             Show version information")
	c.io.Println("  --config PATH         YAML config file (or BOARDSYNC_CONFIG)")
	c.io.Println("  --server URL          Relay URL (default: http://localhost:8080)")
	c.io.Println("  --board ID            Board to open")
	c.io.Println("  --name NAME           Name shown to other participants")
	c.io.Println("  --color #RRGGBB       Cursor color")
	c.io.Println("  --token TOKEN         Access token (not recommended, use env var or file)")
	c.io.Println("  --token-file PATH     Path to file containing the access token")
	c.io.Println("  --verbose             Debug logging")
	c.io.Println()
	c.io.Println("Token Priority (highest to lowest):")
	c.io.Println("  1. BOARDSYNC_TOKEN environment variable")
	c.io.Println("  2. --token-file (file path)")
	c.io.Println("  3. --token or token in the config file")
	c.io.Println("  4. Interactive prompt (fallback)")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  join [--script FILE] [--exit]   Open the board and follow its activity")
	c.io.Println("  export [--out FILE]             Render the board to PDF")
	c.io.Println("  discover [--timeout DURATION]   Find relays on the local network")
	c.io.Println("  status                          Check the relay")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  export BOARDSYNC_TOKEN=$(boardsync-server token --role editor --board standup)")
	c.io.Println("  boardsync --board standup --name Ann join")
	c.io.Println("  boardsync --board standup join --script drawing.jsonl --exit")
	c.io.Println("  boardsync --board standup export --out standup.pdf")
	c.io.Println("  boardsync discover")
}
