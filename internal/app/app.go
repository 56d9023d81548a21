package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/admission"
	"github.com/vovakirdan/roomchat/internal/assistant"
	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/mirror"
	"github.com/vovakirdan/roomchat/internal/service/accounts"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomchat/internal/transport/http"
	"github.com/vovakirdan/roomchat/internal/utils"
)

const (
	sessionBackendMemory = "memory"
	sessionBackendRedis  = "redis"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	sessions        session.Store
	mirror          mirror.Publisher
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	if err := a.wire(ctx, cfg); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config) error {
	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.sessions = sessions
	a.log.Info().Str("backend", cfg.Session.Backend).Msg("session store ready")

	secret := cfg.Session.Secret
	if secret == "" {
		secret = utils.NewID()
		a.log.Warn().Msg("session.secret is empty, generated an ephemeral one; tokens will not survive a restart")
	}
	authService := auth.NewService(a.store, sessions, &auth.JWTConfig{
		Secret: []byte(secret),
		Issuer: "roomchat",
		TTL:    cfg.Session.TTL,
	})

	moderator := access.Moderator(cfg.Moderator.Username)
	gate := access.NewGate(a.store, moderator, a.log)
	roomService := rooms.New(a.store, gate, a.log)

	accountService := accounts.New(a.store, moderator, a.log)
	if err := accountService.SeedModerator(ctx, cfg.Moderator.Password); err != nil {
		return fmt.Errorf("seed moderator: %w", err)
	}

	a.mirror = mirror.Nop{}
	if cfg.NATSURL != "" {
		nc, err := mirror.NewNATS(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		a.mirror = nc
		a.log.Info().Str("url", cfg.NATSURL).Msg("mirroring room messages to nats")
	}

	lockdown := admission.New()

	a.hub = core.NewHub(core.Options{
		Rooms:            roomService,
		Sessions:         authService,
		Admission:        lockdown,
		Moderator:        moderator,
		Assistants:       assistants(cfg.Assistant, a.log),
		AssistantTimeout: cfg.Assistant.Timeout,
		Mirror:           a.mirror,
		Logger:           a.log,
	})

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Hub:       a.hub,
		Auth:      authService,
		Accounts:  accountService,
		Rooms:     roomService,
		Admission: lockdown,
	}, cfg, a.log)

	return nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "", sessionBackendMemory:
		return session.NewMemoryStore(cfg.Session.TTL), nil
	case sessionBackendRedis:
		rs, err := session.NewRedisStore(ctx, cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// assistants builds the "@ai " and "lam " producers that have enough configuration to run.
func assistants(cfg config.AssistantConfig, logger *zerolog.Logger) []core.Assistant {
	client := &stdhttp.Client{}
	var out []core.Assistant

	if cfg.OpenRouter.APIKey != "" {
		out = append(out, core.Assistant{
			Prefix: "@ai ",
			Sender: cfg.OpenRouter.Sender,
			Producer: assistant.Render(assistant.NewOpenRouter(assistant.OpenRouterOptions{
				URL:          cfg.OpenRouter.URL,
				APIKey:       cfg.OpenRouter.APIKey,
				Model:        cfg.OpenRouter.Model,
				SystemPrompt: cfg.OpenRouter.SystemPrompt,
			}, client)),
		})
		logger.Info().Str("model", cfg.OpenRouter.Model).Msg("openrouter assistant enabled")
	}

	if cfg.Ollama.URL != "" {
		out = append(out, core.Assistant{
			Prefix: "lam ",
			Sender: cfg.Ollama.Sender,
			Producer: assistant.Render(assistant.NewOllama(assistant.OllamaOptions{
				URL:   cfg.Ollama.URL,
				Model: cfg.Ollama.Model,
			}, client)),
		})
		logger.Info().Str("model", cfg.Ollama.Model).Msg("ollama assistant enabled")
	}

	return out
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Stopping the hub first closes live WebSockets, which Shutdown does not track.
		stopHub()
		<-hubDone
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	stopHub()
	<-hubDone
	a.cleanup()
	return runErr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.mirror != nil {
		a.mirror.Close()
	}
	if closer, ok := a.sessions.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close session store")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
