// Package bootstrap wires configuration into stores, the identity provider
// and the services shared by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/abem93/progress-widgets/internal/auth"
	"github.com/abem93/progress-widgets/internal/config"
	"github.com/abem93/progress-widgets/internal/database"
	"github.com/abem93/progress-widgets/internal/embed"
	"github.com/abem93/progress-widgets/internal/handlers"
	"github.com/abem93/progress-widgets/internal/services"
	"github.com/abem93/progress-widgets/internal/store"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Firebase *services.Firebase

	Widgets  store.WidgetStore
	Profiles store.ProfileStore
	Provider auth.Provider

	WidgetService *store.WidgetService
	Auth          *auth.Service
	Tokens        *auth.Tokens
	Resolver      *embed.Resolver
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// The local provider keeps its links in SQL even when widgets live in
	// Firestore.
	if cfg.StoreBackend == config.BackendSQL || cfg.AuthProvider == config.ProviderLocal {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		app.DB = db
	}

	if cfg.UsesFirebase() {
		fb, err := services.InitFirebase(ctx, services.FirebaseOptions{
			CredentialsFile: cfg.FirebaseCredentials,
			ProjectID:       cfg.FirebaseProjectID,
			WithAuth:        cfg.AuthProvider == config.ProviderFirebase,
			WithFirestore:   cfg.StoreBackend == config.BackendFirestore,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Firebase = fb
	}

	var tables []interface{}
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		app.Widgets = store.NewFirestoreWidgetStore(app.Firebase.Firestore)
		app.Profiles = store.NewFirestoreProfileStore(app.Firebase.Firestore)
	default:
		widgets := store.NewGormWidgetStore(app.DB)
		profiles := store.NewGormProfileStore(app.DB)
		tables = append(tables, widgets.Models()...)
		tables = append(tables, profiles.Models()...)
		app.Widgets = widgets
		app.Profiles = profiles
	}

	mailer := newMailer(cfg)
	switch cfg.AuthProvider {
	case config.ProviderFirebase:
		app.Provider = auth.NewFirebaseProvider(app.Firebase.Auth, mailer, cfg.FirebaseAPIKey)
	default:
		local := auth.NewLocalProvider(app.DB, mailer, cfg.MagicLinkTTL)
		tables = append(tables, local.Models()...)
		app.Provider = local
	}

	if len(tables) > 0 {
		if err := database.Migrate(app.DB, tables...); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("Database migrated successfully")
	}

	app.WidgetService = store.NewWidgetService(app.Widgets)
	app.Auth = auth.NewService(app.Provider, app.Profiles, cfg.CompleteURL())
	app.Tokens = auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL).WithRevocations(app.Auth)
	app.Resolver = embed.NewResolver(app.Widgets, cfg.EmbedViewTimeout)
	return app, nil
}

func newMailer(cfg *config.Config) auth.LinkMailer {
	if cfg.SMTPHost == "" {
		log.Info("Mail: No SMTP server configured, sign-in links will be logged")
		return services.LogMailer{}
	}
	return services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
}

// Handler builds the HTTP handler set on top of the app.
func (a *App) Handler() *handlers.Handler {
	return &handlers.Handler{
		Widgets:      a.WidgetService,
		Auth:         a.Auth,
		Tokens:       a.Tokens,
		Embeds:       a.Resolver,
		Sessions:     handlers.NewHub(),
		BaseURL:      a.Config.BaseURL,
		LinkTTL:      a.Config.MagicLinkTTL,
		SecureCookie: a.Config.SecureCookies(),
	}
}

// Manager returns the process-wide session manager over the given state.
func (a *App) Manager(state auth.State) *auth.Manager {
	return auth.NewManager(a.Auth, a.Tokens, state)
}

// Close waits for pending view counts and releases connections.
func (a *App) Close() error {
	if a.Resolver != nil {
		a.Resolver.Wait()
	}
	var errs []error
	if a.Firebase != nil {
		errs = append(errs, a.Firebase.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
