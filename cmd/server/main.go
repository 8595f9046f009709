package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/veliq/telecall/config"
	dirmemory "github.com/veliq/telecall/internal/adapter/driven/directory/memory"
	repomemory "github.com/veliq/telecall/internal/adapter/driven/persistence/memory"
	handler "github.com/veliq/telecall/internal/adapter/driving/http"
	"github.com/veliq/telecall/internal/core/service"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	cfg := config.Load()

	repo := repomemory.NewMessageRepository()
	directory := dirmemory.NewDirectory()
	registry := service.NewRegistry()

	coordinator := service.NewCoordinator(registry, directory, cfg.SetupTimeout)
	chat := service.NewChatService(repo, registry)
	h := handler.NewHandler(registry, coordinator, chat, directory, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.Addr).Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	l.Info().Msg("Server exited")
}
