// Package app wires configuration, infrastructure and the Auth Service into
// a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trackhub/auth-service/internal/api"
	"github.com/trackhub/auth-service/internal/api/handler"
	"github.com/trackhub/auth-service/internal/api/middleware"
	"github.com/trackhub/auth-service/internal/core/domain"
	"github.com/trackhub/auth-service/internal/core/ports"
	"github.com/trackhub/auth-service/internal/core/service"
	"github.com/trackhub/auth-service/internal/infrastructure/config"
	"github.com/trackhub/auth-service/internal/infrastructure/db/mongo"
	"github.com/trackhub/auth-service/internal/infrastructure/db/postgres"
	"github.com/trackhub/auth-service/internal/infrastructure/db/redis"
	"github.com/trackhub/auth-service/internal/infrastructure/mail"
	"github.com/trackhub/auth-service/internal/infrastructure/queue"
	"github.com/trackhub/auth-service/internal/infrastructure/security"
)

const (
	serviceName     = "authsvc"
	shutdownTimeout = 15 * time.Second
)

// App owns every long-lived dependency of the service.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	auth       *service.AuthService
	tokens     *security.JWTIssuer
	dispatcher *queue.MailDispatcher
	health     map[string]handler.Pinger
	closers    []func(context.Context) error
}

// store is the persistence selected by STORE_DRIVER.
type store struct {
	accounts ports.AccountRepository
	audit    ports.AuditLog
	ping     handler.Pinger
	close    func(context.Context) error
}

// New connects to the configured backends and builds the Auth Service.
// Call Close to release connections.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		log:    log,
		health: make(map[string]handler.Pinger),
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)
	a.health[cfg.Store.Driver] = st.ping

	var guard ports.TokenGuard
	if cfg.Redis.Enabled {
		client, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		guard = redis.NewTokenGuard(client)
		a.health["redis"] = handler.PingFunc(func(ctx context.Context) error { return redis.Ping(ctx, client) })
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	} else {
		log.Warn().Msg("redis disabled: password reset tokens are not single-use")
	}

	sender, err := newSender(cfg.Mail, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.dispatcher = queue.NewMailDispatcher(
		cfg.Mail.Workers,
		mail.NewPasswordResetMailer(sender, cfg.Mail.AppBaseURL),
		log,
	)

	a.tokens, err = security.NewJWTIssuer(security.JWTConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.JWTIssuer,
		SessionTTL: cfg.Auth.SessionTTL,
		ResetTTL:   cfg.Auth.ResetTTL,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.auth = service.NewAuthService(
		st.accounts,
		st.audit,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		a.tokens,
		a.dispatcher,
		guard,
		log,
		service.Options{UniformLoginErrors: cfg.Auth.UniformLoginErrors},
	)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = postgres.Close(db)
			return nil, err
		}
		return &store{
			accounts: postgres.NewAccountRepository(db),
			audit:    postgres.NewAuditRepository(db),
			ping: handler.PingFunc(func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}),
			close: func(context.Context) error { return postgres.Close(db) },
		}, nil

	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			AppName:     serviceName,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
		})
		if err != nil {
			return nil, err
		}
		accounts := mongo.NewAccountRepository(db)
		if err := accounts.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &store{
			accounts: accounts,
			audit:    mongo.NewAuditRepository(db),
			ping:     handler.PingFunc(func(ctx context.Context) error { return mongo.Ping(ctx, db) }),
			close:    client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newSender(cfg config.MailConfig, log zerolog.Logger) (mail.Sender, error) {
	switch cfg.Provider {
	case config.MailResend:
		return mail.NewResendSender(cfg.ResendAPIKey, cfg.From)
	case config.MailLog, "":
		return mail.NewLogSender(log), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}

// Auth returns the wired Auth Service.
func (a *App) Auth() ports.AuthService {
	return a.auth
}

// Router builds the HTTP router over the wired service.
func (a *App) Router() *echo.Echo {
	return api.NewRouter(api.Deps{
		AuthService: a.auth,
		Verifier:    a.tokens,
		Health:      a.health,
		RateLimiter: middleware.NewRateLimiter(a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window, a.cfg.RateLimit.Burst),
		CORSOrigins: a.cfg.HTTP.CORSOrigins,
		BodyLimit:   a.cfg.HTTP.BodyLimit,
		Log:         a.log,
	})
}

// Serve runs the HTTP server and the mail workers until ctx is cancelled,
// then shuts both down gracefully.
func (a *App) Serve(ctx context.Context) error {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer func() {
		stopWorkers()
		a.dispatcher.Wait()
	}()
	a.dispatcher.Start(workerCtx)

	e := a.Router()
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info().Str("addr", addr).Str("store", a.cfg.Store.Driver).Msg("http server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// AdminInput carries the fields for CreateAdmin.
type AdminInput struct {
	Name     string
	Email    string
	Password string
	Company  string
}

// CreateAdmin registers an account with the admin role.
func (a *App) CreateAdmin(ctx context.Context, in AdminInput) (*domain.Account, error) {
	res, err := a.auth.Register(ctx, ports.RegisterInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Company:  in.Company,
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		return nil, err
	}
	return res.Account, nil
}

// Close releases every backend connection in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
