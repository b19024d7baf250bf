// Package setup wires the application graph from configuration.
package setup

import (
	"context"
	"fmt"

	"github.com/askline-dev/askline/internal/blobstore"
	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/internal/docstore/memstore"
	"github.com/askline-dev/askline/internal/docstore/pg"
	"github.com/askline-dev/askline/internal/handler"
	"github.com/askline-dev/askline/internal/identity"
	"github.com/askline-dev/askline/internal/middleware"
	"github.com/askline-dev/askline/internal/payments"
	"github.com/askline-dev/askline/internal/service"
	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/markdown"
)

// Dependencies holds the initialized application graph.
type Dependencies struct {
	Config         *config.Config
	Store          docstore.Client
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Payments       *payments.Handler
}

// SetupDependencies initializes everything the router needs. backend
// selects the document store: "pg" for Postgres, "memory" for the
// in-process store used in development and tests.
func SetupDependencies(ctx context.Context, cfg *config.Config, backend string) (*Dependencies, error) {
	var store docstore.Client
	switch backend {
	case "pg":
		pgStore, err := pg.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect document store: %w", err)
		}
		store = pgStore
	case "memory", "":
		store = memstore.New()
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}

	media, err := blobstore.NewFS(cfg.Public.MediaRoot, cfg.Public.MediaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init media store: %w", err)
	}

	var email identity.EmailSender = identity.LogEmailSender{}
	if cfg.Private.Email.SMTPServer != "" {
		email = identity.NewSMTPEmailSender(&cfg.Private.Email)
	}

	tokens := identity.NewTokens(cfg.JwtKey(), cfg.JwtTTL())
	auth := identity.NewService(store, tokens, identity.LogSMSSender{}, email, &cfg.Public)

	posts := service.NewPosts(store, media, markdown.NewRenderer())
	messaging := service.NewMessaging(store, cfg.Public.LastMessageLen)
	profile := service.NewProfile(store, media)

	h := handler.New(auth, posts, messaging, profile, store, cfg)

	stripe := payments.NewStripeClient(cfg.Private.StripeSk)
	paymentsHandler := payments.NewHandler(stripe, int64(cfg.Public.PaymentMinAmount), cfg.Public.PaymentCurrency)

	return &Dependencies{
		Config:         cfg,
		Store:          store,
		Handler:        h,
		AuthMiddleware: middleware.NewAuth(auth),
		Payments:       paymentsHandler,
	}, nil
}
