// Package authz решает, может ли вызывающий изменить запись: по роли для коллекций
// администратора и по владельцу (поле userId) для личных коллекций.
package authz

import (
	"context"
	"net/http"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/domain/models"
)

// Lookup чтение записи по id; любая ошибка трактуется как отсутствие записи
type Lookup interface {
	Get(ctx context.Context, collection string, id int64) (models.Document, error)
}

// Request все, что нужно для решения: метод, маршрут, вызывающий (nil для анонима) и тело
type Request struct {
	Method string
	Route  models.Route
	Caller *models.User
	Body   models.Document
}

type Authorizer struct {
	store Lookup
}

func New(store Lookup) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize возвращает *apperr.Error при отказе. Для личных коллекций тело запроса
// изменяется: userId всегда выставляется сервером, значение клиента перезаписывается
func (a *Authorizer) Authorize(ctx context.Context, req *Request) error {
	if !IsWrite(req.Method) {
		return nil
	}

	res := req.Route.Resource
	switch res.Policy() {
	case models.PolicyAdmin:
		if !req.Caller.IsAdmin() {
			return apperr.Forbidden("Only admins can modify " + res.Collection())
		}
		return nil
	case models.PolicyOwner:
		return a.authorizeOwner(ctx, req)
	default:
		return nil
	}
}

func (a *Authorizer) authorizeOwner(ctx context.Context, req *Request) error {
	res := req.Route.Resource

	// создание пользователя является регистрацией, у нее нет владельца
	if res == models.ResourceUsers && req.Method == http.MethodPost {
		return nil
	}
	if req.Caller == nil {
		return apperr.Unauthorized("Authentication required")
	}

	if req.Method == http.MethodPost {
		req.setOwner()
		return nil
	}
	if !req.Route.HasID {
		return nil
	}

	target, err := a.store.Get(ctx, res.Collection(), req.Route.ID)
	if err != nil {
		return apperr.NotFound(res.Collection() + " record not found")
	}
	owner, ok := target.Int64(res.OwnerField())
	if !ok || owner != req.Caller.ID {
		return apperr.Forbidden("You can only modify your own data")
	}

	if req.Method != http.MethodDelete {
		req.setOwner()
	}
	return nil
}

// setOwner закрепляет запись за вызывающим. У пользователей владельцем считается сам id записи
func (r *Request) setOwner() {
	if r.Route.Resource == models.ResourceUsers {
		return
	}
	if r.Body == nil {
		r.Body = models.Document{}
	}
	r.Body["userId"] = r.Caller.ID
}

// IsWrite метод изменяет данные
func IsWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
