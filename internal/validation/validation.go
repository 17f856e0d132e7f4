// Package validation проверяет тело запроса перед записью в хранилище.
// Для каждой коллекции своя функция; ошибка всегда *apperr.Error со статусом 400.
package validation

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/domain/models"
)

// Tolerance допустимое расхождение денежных сумм (0.01), поглощает ошибки округления
func Tolerance() decimal.Decimal {
	return decimal.New(1, -2)
}

// Query чтение хранилища, доступное валидаторам. Любая ошибка чтения трактуется как "не найдено"
type Query interface {
	Get(ctx context.Context, collection string, id int64) (models.Document, error)
	Find(ctx context.Context, collection string, match models.Document) ([]models.Document, error)
}

// Input проверяемый запрос. Для PATCH Body содержит только изменяемые поля
type Input struct {
	Method string
	Route  models.Route
	Body   models.Document
}

type ruleFunc func(ctx context.Context, v *Validator, in Input) error

var rules = map[models.Resource]ruleFunc{
	models.ResourceProducts:   validateProduct,
	models.ResourceCategories: validateCategory,
	models.ResourceCart:       validateCart,
	models.ResourceCoupons:    validateCoupon,
	models.ResourceOrders:     validateOrder,
	models.ResourceReviews:    validateReview,
	models.ResourceAddresses:  validateAddress,
	models.ResourceWishlists:  validateWishlist,
	models.ResourcePayments:   validatePayment,
	models.ResourceUsers:      validateUser,
}

type Validator struct {
	query    Query
	now      func() time.Time
	validate *validator.Validate
}

type Option func(*Validator)

// WithClock подменяет источник текущего времени (для сроков действия купонов)
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func New(query Query, opts ...Option) *Validator {
	v := &Validator{
		query:    query,
		now:      time.Now,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate проверяет POST/PUT/PATCH. PATCH проверяется по итоговой записи: сохраненная запись плюс изменения
func (v *Validator) Validate(ctx context.Context, in Input) error {
	switch in.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil
	}
	rule, ok := rules[in.Route.Resource]
	if !ok {
		return nil
	}

	if in.Method == http.MethodPatch && in.Route.HasID {
		current, err := v.query.Get(ctx, in.Route.Resource.Collection(), in.Route.ID)
		if err != nil {
			return apperr.NotFound(in.Route.Resource.Collection() + " record not found")
		}
		in.Body = current.Merge(in.Body)
	}
	if in.Body == nil {
		in.Body = models.Document{}
	}
	return rule(ctx, v, in)
}

func invalid(format string, args ...any) error {
	return apperr.BadRequest(format, args...)
}

// exists проверяет, что запись есть в коллекции; ошибки хранилища равны отсутствию
func (v *Validator) exists(ctx context.Context, collection string, id int64) (models.Document, bool) {
	doc, err := v.query.Get(ctx, collection, id)
	if err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

// duplicate ищет другую запись с теми же полями; запись, которую сейчас обновляют, не считается
func (v *Validator) duplicate(ctx context.Context, in Input, match models.Document) bool {
	found, err := v.query.Find(ctx, in.Route.Resource.Collection(), match)
	if err != nil {
		return false
	}
	for _, doc := range found {
		if id, ok := doc.ID(); ok && in.Route.HasID && id == in.Route.ID {
			continue
		}
		return true
	}
	return false
}

// money переводит число в decimal по кратчайшему десятичному представлению: 9.99 остается 9.99
func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance())
}
