// Package rules содержит декларативную таблица прав по коллекциям в стиле json-server-auth.
// Значение из трех восьмеричных цифр: владелец, вошедший пользователь, аноним; 4 означает чтение, 2 запись.
// Например 660: владелец и вошедшие пользователи читают и пишут, аноним не имеет доступа.
package rules

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/authz"
	"github.com/linemk/shop-api/internal/domain/models"
)

const (
	read  = 4
	write = 2
)

// Permission права одной коллекции
type Permission struct {
	Owner    uint8
	LoggedIn uint8
	Public   uint8
}

// Parse разбирает строку вида "644"
func Parse(s string) (Permission, error) {
	if len(s) != 3 {
		return Permission{}, fmt.Errorf("permission %q must have three octal digits", s)
	}
	var digits [3]uint8
	for i, c := range s {
		if c < '0' || c > '7' {
			return Permission{}, fmt.Errorf("permission %q: %q is not an octal digit", s, c)
		}
		digits[i] = uint8(c - '0')
	}
	return Permission{Owner: digits[0], LoggedIn: digits[1], Public: digits[2]}, nil
}

func MustParse(s string) Permission {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Permission) String() string {
	return fmt.Sprintf("%d%d%d", p.Owner, p.LoggedIn, p.Public)
}

// Table права по коллекциям. Коллекции без записи открыты
type Table map[models.Resource]Permission

// DefaultTable права по умолчанию
func DefaultTable() Table {
	return Table{
		models.ResourceUsers:      MustParse("640"),
		models.ResourceProducts:   MustParse("664"),
		models.ResourceCategories: MustParse("664"),
		models.ResourceCart:       MustParse("660"),
		models.ResourceOrders:     MustParse("660"),
		models.ResourceAddresses:  MustParse("660"),
		models.ResourceWishlists:  MustParse("660"),
		models.ResourcePayments:   MustParse("660"),
		models.ResourceReviews:    MustParse("644"),
		models.ResourceCoupons:    MustParse("664"),
	}
}

// NewTable накладывает переопределения из конфигурации на таблицу по умолчанию
func NewTable(overrides map[string]string) (Table, error) {
	table := DefaultTable()
	for name, raw := range overrides {
		res, ok := models.ParseResource(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("rules: unknown collection %q", name)
		}
		p, err := Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("rules: %s: %w", name, err)
		}
		table[res] = p
	}
	return table, nil
}

// Scope какие записи можно отдавать при чтении списка
type Scope int

const (
	ScopeAll Scope = iota
	// ScopeOwner только записи вызывающего
	ScopeOwner
)

// Guard применяет таблицу к запросу. Проверки слоя authz выполняются раньше и дополняются этими
type Guard struct {
	table Table
	store authz.Lookup
}

func NewGuard(table Table, store authz.Lookup) *Guard {
	return &Guard{table: table, store: store}
}

// Check возвращает область видимости для чтения или *apperr.Error при отказе
func (g *Guard) Check(ctx context.Context, req *authz.Request) (Scope, error) {
	p, ok := g.table[req.Route.Resource]
	if !ok {
		return ScopeAll, nil
	}

	bit := uint8(read)
	if authz.IsWrite(req.Method) {
		bit = write
	}

	if p.Public&bit != 0 {
		return ScopeAll, nil
	}
	if req.Caller == nil {
		return ScopeAll, apperr.Unauthorized("Authentication required")
	}
	if p.LoggedIn&bit != 0 {
		return ScopeAll, nil
	}
	if p.Owner&bit == 0 {
		return ScopeAll, apperr.Forbidden("Access to " + req.Route.Resource.Collection() + " is not allowed")
	}
	return g.checkOwner(ctx, req)
}

func (g *Guard) checkOwner(ctx context.Context, req *authz.Request) (Scope, error) {
	res := req.Route.Resource
	field := res.OwnerField()

	if req.Method == http.MethodPost {
		owner, ok := req.Body.Int64(field)
		if !ok || owner != req.Caller.ID {
			return ScopeAll, apperr.Forbidden("Private resource creation: request body must have a reference to the owner id")
		}
		return ScopeAll, nil
	}

	if !req.Route.HasID {
		if req.Method == http.MethodGet {
			return ScopeOwner, nil
		}
		return ScopeAll, apperr.Forbidden("Access to " + res.Collection() + " is not allowed")
	}

	target, err := g.store.Get(ctx, res.Collection(), req.Route.ID)
	if err != nil {
		return ScopeAll, apperr.NotFound(res.Collection() + " record not found")
	}
	owner, ok := target.Int64(field)
	if !ok || owner != req.Caller.ID {
		return ScopeAll, apperr.Forbidden("Access to another user's record is not allowed")
	}
	return ScopeOwner, nil
}
