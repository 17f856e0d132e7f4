package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/authz"
	"github.com/linemk/shop-api/internal/authz/rules"
	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/shop-api/internal/lib/metrics"
	"github.com/linemk/shop-api/internal/validation"
)

// Authorizer решение о праве изменить запись
type Authorizer interface {
	Authorize(ctx context.Context, req *authz.Request) error
}

// Validator проверка тела записи
type Validator interface {
	Validate(ctx context.Context, in validation.Input) error
}

// Guard таблица прав по коллекциям
type Guard interface {
	Check(ctx context.Context, req *authz.Request) (rules.Scope, error)
}

type stateKey struct{}

// requestState то, что этапы конвейера узнали о запросе к коллекции
type requestState struct {
	Route models.Route
	Body  models.Document
	Scope rules.Scope
}

func stateFrom(ctx context.Context) *requestState {
	if st, ok := ctx.Value(stateKey{}).(*requestState); ok {
		return st
	}
	return &requestState{}
}

func caller(ctx context.Context) *models.User {
	user, _ := jwtmiddleware.FromContext(ctx)
	return user
}

func reject(w http.ResponseWriter, logger *slog.Logger, stage string, err error) {
	metrics.Rejected(stage, apperr.StatusOf(err))
	writeError(w, logger, err)
}

// BindRoute привязывает к запросу коллекцию маршрута и id из пути
func BindRoute(log *slog.Logger, res models.Resource) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/route"), slog.String("collection", res.Collection()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := models.Route{Resource: res}
			if raw := chi.URLParam(r, "id"); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					writeError(w, log, apperr.NotFound(res.Collection()+" record not found"))
					return
				}
				route.ID, route.HasID = id, true
			}
			ctx := context.WithValue(r.Context(), stateKey{}, &requestState{Route: route})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseBody читает JSON-объект тела для POST/PUT/PATCH. Ссылки вида *Id, пришедшие строкой, приводятся к числам
func ParseBody(log *slog.Logger) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/body"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}
			body, err := readBody(r)
			if err != nil {
				reject(w, log, "body", err)
				return
			}
			stateFrom(r.Context()).Body = body
			next.ServeHTTP(w, r)
		})
	}
}

func readBody(r *http.Request) (models.Document, error) {
	var body models.Document
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Document{}, nil
		}
		return nil, apperr.BadRequest("Request body must be a JSON object")
	}
	if body == nil {
		body = models.Document{}
	}
	normalizeRefs(body)
	return body, nil
}

// normalizeRefs приводит "12" к 12 в полях *Id, в том числе во вложенных объектах (позиции заказа)
func normalizeRefs(v any) {
	switch t := v.(type) {
	case models.Document:
		normalizeRefs(map[string]any(t))
	case map[string]any:
		for key, val := range t {
			if s, ok := val.(string); ok && (key == models.IDField || strings.HasSuffix(key, "Id")) {
				if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
					t[key] = float64(id)
				}
				continue
			}
			normalizeRefs(val)
		}
	case []any:
		for _, item := range t {
			normalizeRefs(item)
		}
	}
}

// Authorize проверка роли и владельца. Для личных коллекций userId в теле выставляется здесь
func Authorize(log *slog.Logger, a Authorizer) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/authz"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := stateFrom(r.Context())
			req := &authz.Request{Method: r.Method, Route: st.Route, Caller: caller(r.Context()), Body: st.Body}
			if err := a.Authorize(r.Context(), req); err != nil {
				reject(w, log, "authz", err)
				return
			}
			st.Body = req.Body
			next.ServeHTTP(w, r)
		})
	}
}

// Validate проверка тела записи правилами коллекции
func Validate(log *slog.Logger, v Validator) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/validation"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := stateFrom(r.Context())
			in := validation.Input{Method: r.Method, Route: st.Route, Body: st.Body}
			if err := v.Validate(r.Context(), in); err != nil {
				reject(w, log, "validation", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Rules таблица прав; для списков личных коллекций запоминает, что нужно отдать только свои записи
func Rules(log *slog.Logger, g Guard) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/rules"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := stateFrom(r.Context())
			req := &authz.Request{Method: r.Method, Route: st.Route, Caller: caller(r.Context()), Body: st.Body}
			scope, err := g.Check(r.Context(), req)
			if err != nil {
				reject(w, log, "rules", err)
				return
			}
			st.Scope = scope
			next.ServeHTTP(w, r)
		})
	}
}
