package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// InternalMessage безопасный текст для клиента при внутренних ошибках
const InternalMessage = "internal server error"

// Error ошибка запроса с HTTP-статусом и сообщением для клиента.
// Любая такая ошибка завершает обработку запроса до записи в хранилище
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создает ошибку с заданным статусом
func New(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// BadRequest тело запроса некорректно или нарушает бизнес-правило (400)
func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// Unauthorized вызывающий не аутентифицирован (401)
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message, nil)
}

// Forbidden вызывающий известен, но не имеет прав (403)
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

// NotFound запись не найдена (404)
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

// Internal заворачивает неожиданную ошибку в 500 без раскрытия деталей клиенту
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, InternalMessage, err)
}

// From приводит произвольную ошибку к *Error; неизвестные ошибки становятся 500
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// StatusOf возвращает HTTP-статус ошибки
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
