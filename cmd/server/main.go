package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-token-broker/cache"
	"github.com/jrsteele09/go-token-broker/dataapi"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/logging"
	"github.com/jrsteele09/go-token-broker/server"
	"github.com/jrsteele09/go-token-broker/server/authflowrepo"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := newStore(ctx, c, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing redis client")
		}
	}()

	broker, err := newBroker(c, store)
	if err != nil {
		return err
	}

	oauthConfig, verifier, err := server.NewOAuth2Config(ctx, c)
	if err != nil {
		return err
	}

	handler, err := server.New(c, server.Deps{
		Broker:   broker,
		Flows:    authflowrepo.NewCacheRepo(store, c.GetStateTTL()),
		OAuth:    oauthConfig,
		Verifier: verifier,
		API:      dataapi.New(oauthConfig, c.GetGmailAPIURL(), c.GetPeopleAPIURL(), dataapi.WithRevokeURL(c.GetRevokeURL())),
		Health:   store,
		Metrics:  registry,
		Logger:   logging.Component("server"),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func newStore(ctx context.Context, c config.Config, reg prometheus.Registerer) (*cache.Client, error) {
	store, err := cache.New(c.GetRedisURL(),
		cache.WithPrefix(c.GetRedisKeyPrefix()),
		cache.WithTTL(c.GetRedisTTL()),
		cache.WithOpTimeout(c.GetRedisOpTimeout()),
		cache.WithLogger(logging.Component("cache")),
		cache.WithMetrics(cache.NewMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}

	if index := c.GetRedisIndex(); index >= 0 {
		if err := store.SelectIndex(ctx, index); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("select redis index %d: %w", index, err)
		}
	}

	// An unreachable store is reported but not fatal: requests degrade to
	// "logged out" until it comes back.
	if err := store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Redis is not reachable yet")
	}
	return store, nil
}

func newBroker(c config.Config, store *cache.Client) (*sessions.Broker, error) {
	opts := []sessions.Option{
		sessions.WithSessionTTL(c.GetSessionTTL()),
		sessions.WithLogger(logging.Component("sessions")),
	}
	if encoded := c.GetSessionEncryptionKey(); encoded != "" {
		key, err := sessions.ParseKey(encoded)
		if err != nil {
			return nil, err
		}
		codec, err := sessions.NewSealedCodec(key, sessions.JSONCodec{})
		if err != nil {
			return nil, err
		}
		opts = append(opts, sessions.WithCodec(codec))
		log.Info().Msg("Session payloads are encrypted at rest")
	}
	return sessions.NewBroker(store, opts...), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
