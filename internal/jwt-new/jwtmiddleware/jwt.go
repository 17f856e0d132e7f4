package jwtmiddleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/linemk/shop-api/internal/domain/models"
	security "github.com/linemk/shop-api/internal/jwt-new"
	"github.com/linemk/shop-api/internal/storage"
)

type contextKey string

const UserKey contextKey = "user"

var (
	ErrNoToken        = errors.New("missing token")
	ErrTokenFormat    = errors.New("invalid token format")
	ErrUnknownSubject = errors.New("token subject does not match any user")
	ErrLookup         = errors.New("user lookup failed")
)

// UserLookup поиск пользователя по id из токена
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (models.Document, error)
}

// Result итог разрешения личности: либо пользователь, либо причина, по которой его нет.
// В неаутентифицированное состояние причина сворачивается только на границе авторизации
type Result struct {
	User *models.User
	Err  error
}

// Authenticated сообщает, что пользователь определен
func (r Result) Authenticated() bool {
	return r.Err == nil && r.User != nil
}

type Resolver struct {
	users  UserLookup
	secret string
}

func NewResolver(users UserLookup, secret string) *Resolver {
	return &Resolver{users: users, secret: secret}
}

// Resolve определяет пользователя запроса. Если личность уже прикреплена выше по цепочке,
// используется она; иначе разбирается Bearer-токен и пользователь ищется по sub
func (r *Resolver) Resolve(req *http.Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("panic while resolving identity: %v", p)}
		}
	}()

	if user, ok := FromContext(req.Context()); ok {
		return Result{User: user}
	}

	// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return Result{Err: ErrNoToken}
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Result{Err: ErrTokenFormat}
	}

	userID, err := security.ParseToken(parts[1], r.secret)
	if err != nil {
		return Result{Err: err}
	}

	doc, err := r.users.GetUserByID(req.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return Result{Err: fmt.Errorf("%w: id %d", ErrUnknownSubject, userID)}
		}
		return Result{Err: fmt.Errorf("%w: %v", ErrLookup, err)}
	}
	user, ok := models.UserFromDocument(doc)
	if !ok {
		return Result{Err: fmt.Errorf("%w: id %d", ErrUnknownSubject, userID)}
	}
	return Result{User: user}
}

// NewIdentityMiddleware прикрепляет пользователя к контексту запроса. Запрос никогда не отклоняется:
// отсутствие личности является обычным состоянием, решение принимают слои авторизации
func NewIdentityMiddleware(log *slog.Logger, resolver *Resolver) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/identity"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(r)
			switch {
			case res.Authenticated():
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), res.User)))
				return
			case errors.Is(res.Err, ErrNoToken):
				log.Debug("anonymous request", slog.String("path", r.URL.Path))
			default:
				log.Warn("failed to resolve identity, treating request as anonymous",
					slog.String("path", r.URL.Path),
					slog.Any("error", res.Err),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser прикрепляет пользователя к контексту
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// FromContext извлекает пользователя из контекста.
func FromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}
