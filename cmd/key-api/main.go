package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/keyservice/internal/api"
	"github.com/edvin/keyservice/internal/config"
	"github.com/edvin/keyservice/internal/core"
	"github.com/edvin/keyservice/internal/keystore"
	"github.com/edvin/keyservice/internal/logging"
	"github.com/edvin/keyservice/internal/metrics"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-key" {
		createKey(os.Args[2:])
		return
	}

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	store := keystore.NewFileStore(cfg.KeyFile)
	srv := api.NewServer(logger, store, cfg)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	servers := []*http.Server{httpServer}
	if cfg.MetricsListenAddr != "" {
		servers = append(servers, metrics.NewServer(cfg.MetricsListenAddr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Str("addr", s.Addr).Msg("shutdown failed")
			}
		}
		return nil
	})

	logger.Info().
		Int("port", cfg.Port).
		Str("key_file", cfg.KeyFile).
		Str("static_dir", cfg.StaticDir).
		Str("metrics_addr", cfg.MetricsListenAddr).
		Msg("server is running")

	err = g.Wait()
	srv.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func createKey(args []string) {
	fs := flag.NewFlagSet("create-key", flag.ExitOnError)
	file := fs.String("file", "", "Key table file (default: KEY_FILE or key.json)")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *file != "" {
		cfg.KeyFile = *file
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Only problems with the key file are interesting here.
	logger := logging.NewLogger(cfg).Level(zerolog.WarnLevel)
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), 10*time.Second)
	defer cancel()

	svc := core.NewKeyService(keystore.NewFileStore(cfg.KeyFile), cfg.KeyTTL)
	key, err := svc.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Key created successfully.\n\n")
	fmt.Printf("  Key:     %s\n", key.Key)
	fmt.Printf("  Expires: %s\n", time.UnixMilli(key.Expiry).UTC().Format(time.RFC3339))
	fmt.Printf("  File:    %s\n", cfg.KeyFile)
}
