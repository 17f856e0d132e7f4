package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/linemk/shop-api/internal/authz"
	"github.com/linemk/shop-api/internal/authz/rules"
	"github.com/linemk/shop-api/internal/config"
	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/shop-api/internal/ratelimit"
	"github.com/linemk/shop-api/internal/service"
	"github.com/linemk/shop-api/internal/storage"
	"github.com/linemk/shop-api/internal/storage/filedb"
	"github.com/linemk/shop-api/internal/storage/postgres"
	"github.com/linemk/shop-api/internal/validation"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.Store
	Redis  *redis.Client

	Auth        *service.AuthService
	Collections *service.CollectionService
	Authorizer  *authz.Authorizer
	Validator   *validation.Validator
	Guard       *rules.Guard
	Resolver    *jwtmiddleware.Resolver
	Limiter     *ratelimit.Limiter
}

// NewApp создаёт новый экземпляр App: открывает хранилище, подключает redis, если он настроен,
// и создает администратора из конфигурации
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err = ratelimit.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			// без redis сервис работает, просто без ограничения частоты
			log.Warn("redis unavailable, rate limiting disabled", slog.Any("error", err))
			rdb = nil
		}
	}

	app, err := New(log, cfg, store, rdb)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Auth.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return app, nil
}

// New собирает сервисы и слои проверок поверх готового хранилища. rdb может быть nil
func New(log *slog.Logger, cfg *config.Config, store storage.Store, rdb *redis.Client) (*App, error) {
	table, err := rules.NewTable(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	userRepo := storage.NewUserRepository(store)

	app := &App{
		Config:      cfg,
		Logger:      log,
		Store:       store,
		Redis:       rdb,
		Auth:        service.NewAuthService(log, userRepo, cfg.JWT.Secret, cfg.JWT.TokenTTL),
		Collections: service.NewCollectionService(log, store),
		Authorizer:  authz.New(store),
		Validator:   validation.New(store),
		Guard:       rules.NewGuard(table, store),
		Resolver:    jwtmiddleware.NewResolver(userRepo, cfg.JWT.Secret),
	}
	if rdb != nil {
		app.Limiter = ratelimit.New(rdb, cfg.Redis.Limit, cfg.Redis.Window)
	}
	return app, nil
}

// Close освобождает хранилище и соединение с redis
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.StorageFile, "":
		store, err := filedb.Open(cfg.Path, Collections())
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return store, nil
	case config.StoragePostgres:
		// реализуем подключение к БД через DSN
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return postgres.New(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Collections имена всех коллекций документа
func Collections() []string {
	names := make([]string, 0, len(models.Resources()))
	for _, res := range models.Resources() {
		names = append(names, res.Collection())
	}
	return names
}
