package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"noiserelay/internal/api"
	"noiserelay/internal/config"
	"noiserelay/internal/logger"
	"noiserelay/internal/prompt"
	"noiserelay/internal/service/ai"
	"noiserelay/internal/service/relay"
	"noiserelay/internal/staging"
)

func main() {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("NOISERELAY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	client, err := ai.NewClient(ctx, cfg.Model.APIKey, ai.Options{})
	if err != nil {
		return err
	}

	prompts, err := loadPrompts(cfg.Prompts)
	if err != nil {
		return err
	}
	if cfg.Prompts.Path != "" && cfg.Prompts.Watch {
		watcher, err := prompt.NewWatcher(prompts, cfg.Prompts.Path, log)
		if err != nil {
			return err
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("prompt watcher stopped")
			}
		}()
	}

	stager, err := staging.New(cfg.Staging.Dir, cfg.Staging.Suffix, log)
	if err != nil {
		return err
	}
	stager.StartSweeper(ctx, cfg.Staging.SweepInterval, cfg.Staging.MaxAge)

	svc := relay.NewService(client, prompts, stager, relay.Options{
		Model:         cfg.Model.Name,
		Timeout:       cfg.Model.Timeout,
		DeleteUploads: cfg.Model.DeleteUploads,
	}, log)
	handlers := api.NewHandler(svc, api.Options{
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		Model:           cfg.Model.Name,
		DescribeVariant: prompts.DefaultVariant(),
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("model", cfg.Model.Name).
			Str("describe_variant", prompts.DefaultVariant()).
			Strs("variants", prompts.Variants()).
			Dur("upstream_timeout", cfg.Model.Timeout).
			Msg("noiserelay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadPrompts(cfg config.PromptsConfig) (*prompt.Store, error) {
	set := prompt.Defaults()
	if cfg.Path != "" {
		loaded, err := prompt.LoadFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		set = loaded
	}
	return prompt.NewStore(set, cfg.DescribeVariant)
}
