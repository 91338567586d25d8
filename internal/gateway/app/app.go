package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"uigen/internal/componentgen"
	"uigen/internal/gateway/config"
	"uigen/internal/gateway/entity"
	"uigen/internal/gateway/handler"
	"uigen/internal/gateway/middleware"
	"uigen/internal/gateway/server"
	sessionsvc "uigen/internal/gateway/service/session"
	"uigen/internal/gateway/service/sessionevent"
	llmclient "uigen/internal/llm/client"
	llmmw "uigen/internal/llm/middleware"
)

type App struct {
	server *server.Server
	stores *gatewayStores
	llm    llmclient.Client
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	editMode, err := sessionsvc.ParseEditMode(cfg.ManualEditMode)
	if err != nil {
		return nil, err
	}
	tokens, err := middleware.ParseTokens(cfg.Auth.Tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AUTH_TOKENS: %w", err)
	}

	client, err := NewLLMClient(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	stores, err := initStores(cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	// Dependencies
	gen := componentgen.New(client, componentgen.Config{
		DefaultModel:  cfg.LLM.Model,
		MaxTokens:     cfg.LLM.MaxTokens,
		ChatMaxTokens: cfg.LLM.ChatMaxTokens,
	})
	svc := sessionsvc.New(stores.sessions, gen, stores.bundles, sessionevent.NewBroker(), sessionsvc.Config{
		ManualEditMode:   editMode,
		DefaultMaxTokens: cfg.LLM.MaxTokens,
	})

	// Routing & Server
	mux := server.NewMux(handler.NewSet(svc, cfg.Env), server.MuxConfig{
		FrontendURL: cfg.FrontendURL,
		Auth:        middleware.Auth(tokens, cfg.Auth.AllowAnonymous),
		RateLimit: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
		}),
		Logger: middleware.RequestLogger(nil),
	})
	if cfg.Auth.AllowAnonymous {
		log.Printf("auth: anonymous requests run as %s", entity.DemoUserID)
	}

	return &App{
		server: server.New(cfg.Port, mux),
		stores: stores,
		llm:    client,
	}, nil
}

// NewLLMClient builds the provider client wrapped with request logging and
// the optional usage ledger.
func NewLLMClient(ctx context.Context, cfg config.LLMConfig) (llmclient.Client, error) {
	var inner llmclient.Client
	switch cfg.Provider {
	case "fake":
		log.Printf("llm: using offline fake client")
		inner = llmclient.NewFakeClient()
	default:
		g, err := llmclient.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		inner = g
	}
	return llmmw.Wrap(inner,
		llmmw.WithLogging(nil),
		llmmw.WithUsageLedger(cfg.UsageLedgerPath),
	), nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	return errors.Join(err, a.stores.Close(), a.llm.Close())
}
