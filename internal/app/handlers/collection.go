package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/authz/rules"
	"github.com/linemk/shop-api/internal/service"
	"github.com/linemk/shop-api/internal/storage"
)

// TotalCountHeader число записей выборки до пагинации
const TotalCountHeader = "X-Total-Count"

// ListHandler GET /{collection} с фильтрами, сортировкой и пагинацией
func ListHandler(log *slog.Logger, svc service.CollectionServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListHandler"
		st := stateFrom(r.Context())
		logger := log.With(slog.String("op", op), slog.String("collection", st.Route.Resource.Collection()))

		q, err := storage.ParseQuery(r.URL.Query())
		if err != nil {
			writeError(w, logger, apperr.BadRequest("%s", err.Error()))
			return
		}
		if st.Scope == rules.ScopeOwner {
			if user := caller(r.Context()); user != nil {
				q = q.Where(st.Route.Resource.OwnerField(), user.ID)
			}
		}

		docs, total, err := svc.List(r.Context(), st.Route.Resource, q)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if q.Paginated() {
			w.Header().Set(TotalCountHeader, strconv.Itoa(total))
		}
		writeJSON(w, logger, http.StatusOK, docs)
	}
}

// GetHandler GET /{collection}/{id}
func GetHandler(log *slog.Logger, svc service.CollectionServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetHandler"
		st := stateFrom(r.Context())
		logger := log.With(slog.String("op", op), slog.String("collection", st.Route.Resource.Collection()))

		doc, err := svc.Get(r.Context(), st.Route.Resource, st.Route.ID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, doc)
	}
}

// CreateHandler POST /{collection}
func CreateHandler(log *slog.Logger, svc service.CollectionServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateHandler"
		st := stateFrom(r.Context())
		logger := log.With(slog.String("op", op), slog.String("collection", st.Route.Resource.Collection()))

		doc, err := svc.Create(r.Context(), st.Route.Resource, st.Body)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, doc)
	}
}

// ReplaceHandler PUT /{collection}/{id}
func ReplaceHandler(log *slog.Logger, svc service.CollectionServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReplaceHandler"
		st := stateFrom(r.Context())
		logger := log.With(slog.String("op", op), slog.String("collection", st.Route.Resource.Collection()))

		doc, err := svc.Replace(r.Context(), st.Route.Resource, st.Route.ID, st.Body)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, doc)
	}
}

// PatchHandler PATCH /{collection}/{id}
func PatchHandler(log *slog.Logger, svc service.CollectionServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PatchHandler"
		st := stateFrom(r.Context())
		logger := log.With(slog.String("op", op), slog.String("collection", st.Route.Resource.Collection()))

		doc, err := svc.Patch(r.Context(), st.Route.Resource, st.Route.ID, st.Body)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, doc)
	}
}

// DeleteHandler DELETE /{collection}/{id}, в ответе пустой объект
func DeleteHandler(log *slog.Logger, svc service.CollectionServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteHandler"
		st := stateFrom(r.Context())
		logger := log.With(slog.String("op", op), slog.String("collection", st.Route.Resource.Collection()))

		if err := svc.Delete(r.Context(), st.Route.Resource, st.Route.ID); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, struct{}{})
	}
}

// HealthHandler проверка живости процесса
func HealthHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, http.StatusOK, map[string]string{"status": "ok"})
	}
}
