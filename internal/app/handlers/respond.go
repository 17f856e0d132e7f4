package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/shop-api/internal/apperr"
)

// ErrorResponse тело ответа при любой ошибке
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError отвечает {"error": msg} со статусом ошибки. Внутренние детали клиенту не отдаются
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr := apperr.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
	} else {
		logger.Info("request rejected", slog.Int("status", appErr.Status), slog.String("reason", appErr.Message))
	}
	writeJSON(w, logger, appErr.Status, ErrorResponse{Error: appErr.Message})
}
