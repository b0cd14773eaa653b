package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"github.com/iudanet/boardsync/internal/config"
	"github.com/iudanet/boardsync/internal/discovery"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/handlers"
	"github.com/iudanet/boardsync/internal/server/hub"
	"github.com/iudanet/boardsync/internal/server/middleware"
	"github.com/iudanet/boardsync/internal/server/storage/sqlite"
	"github.com/iudanet/boardsync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// envJWTSecret переопределяет jwt_secret из файла конфигурации
const envJWTSecret = "BOARDSYNC_JWT_SECRET"

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := pflag.Bool("version", false, "Show version information")
	configPath := pflag.String("config", "", "YAML config file (or BOARDSYNC_CONFIG)")
	addr := pflag.String("addr", "", "Listen address, overrides the config")
	verbose := pflag.Bool("verbose", false, "Debug logging")
	pflag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadServer(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if secret := os.Getenv(envJWTSecret); secret != "" {
		cfg.JWTSecret = secret
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	args := pflag.Args()
	if len(args) > 0 && args[0] == "token" {
		if err := runToken(cfg, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	jwtConfig := handlers.JWTConfig{Secret: []byte(cfg.JWTSecret), AccessTokenTTL: cfg.TokenTTL}

	relay := hub.New(logger, cfg.HistoryLimit)
	boardHandler := handlers.NewBoardHandler(logger, db, relay)
	relay.OnPublish(boardHandler.HandlePublish)
	healthHandler := handlers.NewHealthHandler(logger, Version, db.DB())
	wsHandler := handlers.NewWSHandler(logger, relay)

	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{"/api/v1/health"}))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Requests > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
		defer limiter.Stop()
		r.Use(middleware.RateLimitMiddleware(limiter))
	}

	r.HandleFunc("/api/v1/health", healthHandler.Health).Methods(http.MethodGet)

	boards := r.PathPrefix("/api/v1/boards").Subrouter()
	boards.Use(middleware.AuthMiddleware(logger, jwtConfig))
	boards.HandleFunc("/{board}/ws", wsHandler.Serve).Methods(http.MethodGet)
	boardHandler.Routes(boards)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	if cfg.MDNS.Enabled {
		port := listener.Addr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(cfg.MDNS.Instance, port, discovery.Info{Version: Version}, logger)
		if err != nil {
			// Сервер работает и без объявления в сети
			logger.Warn("Failed to advertise relay", "error", err)
		} else {
			defer func() { _ = adv.Shutdown() }()
		}
	}

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Boardsync relay started", "addr", listener.Addr().String(), "version", Version)
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// runToken печатает access token для участника доски
func runToken(cfg *config.ServerConfig, args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.String("user", "", "User id placed in the token subject")
	role := fs.String("role", string(models.RoleEditor), "viewer, editor or owner")
	board := fs.String("board", "", "Restrict the token to one board (empty - any board)")
	ttl := fs.Duration("ttl", 0, "Token lifetime, overrides token_ttl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *board != "" {
		if err := validation.ValidateBoardID(*board); err != nil {
			return fmt.Errorf("invalid board: %w", err)
		}
	}
	if *user == "" {
		*user = "user-" + strconv.FormatInt(time.Now().Unix(), 36)
	}

	jwtConfig := handlers.JWTConfig{Secret: []byte(cfg.JWTSecret), AccessTokenTTL: cfg.TokenTTL}
	if *ttl > 0 {
		jwtConfig.AccessTokenTTL = *ttl
	}

	token, _, err := handlers.GenerateAccessToken(jwtConfig, *user, models.Role(*role), *board)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func printVersion() {
	fmt.Printf("Boardsync Relay\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
