package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tasksync/api"
	"tasksync/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve task boards over HTTP and server-sent events",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}
	logger := log.StandardLogger()

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}
	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := api.NewSessions(ctx, be.newBoard(cfg, logger), logger)
	defer sessions.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	api.Register(e, sessions, auth, logger, cfg.Location())

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{"addr": cfg.ListenAddr, "backend": cfg.StorageBackend}).Info("listening")
		errCh <- e.Start(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newAuthenticator(cfg config.Config) (*api.Auth, error) {
	if cfg.AuthTestSecret != "" {
		log.Warn("using local HS256 tokens")
		return api.NewLocalAuth([]byte(cfg.AuthTestSecret)), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, cfg.Auth0Audience, "https://"+cfg.Auth0Domain+"/"), nil
}
