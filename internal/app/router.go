package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/linemk/shop-api/internal/app/handlers"
	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/shop-api/internal/lib/logger/handlers/requestlog"
	"github.com/linemk/shop-api/internal/lib/metrics"
	"github.com/linemk/shop-api/internal/ratelimit"
)

// Router строит маршруты. Коллекция привязывается к каждому маршруту здесь, один раз;
// запрос к коллекции проходит: разбор тела, авторизация, валидация, таблица прав, обработчик
func (a *App) Router() http.Handler {
	log := a.Logger
	router := chi.NewRouter()

	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestlog.New(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{handlers.TotalCountHeader, "Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(metrics.Middleware)

	router.Get("/health", handlers.HealthHandler(log))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		if a.Limiter != nil {
			r.Use(ratelimit.Middleware(log, a.Limiter))
		}
		r.Use(jwtmiddleware.NewIdentityMiddleware(log, a.Resolver))

		// эндпоинты аутентификации
		register := handlers.RegisterHandler(log, a.Auth)
		login := handlers.LoginHandler(log, a.Auth)
		r.Post("/register", register)
		r.Post("/signup", register)
		r.Post("/users", register)
		r.Post("/login", login)
		r.Post("/signin", login)

		for _, res := range models.Resources() {
			a.mountCollection(r, res)
		}
	})

	return router
}

func (a *App) mountCollection(r chi.Router, res models.Resource) {
	log := a.Logger
	svc := a.Collections

	chain := chi.Chain(
		handlers.BindRoute(log, res),
		handlers.ParseBody(log),
		handlers.Authorize(log, a.Authorizer),
		handlers.Validate(log, a.Validator),
		handlers.Rules(log, a.Guard),
	)

	base := "/" + res.Collection()
	item := base + "/{id}"

	r.With(chain...).Get(base, handlers.ListHandler(log, svc))
	if res != models.ResourceUsers {
		r.With(chain...).Post(base, handlers.CreateHandler(log, svc))
	}
	r.With(chain...).Get(item, handlers.GetHandler(log, svc))
	r.With(chain...).Put(item, handlers.ReplaceHandler(log, svc))
	r.With(chain...).Patch(item, handlers.PatchHandler(log, svc))
	r.With(chain...).Delete(item, handlers.DeleteHandler(log, svc))
}
