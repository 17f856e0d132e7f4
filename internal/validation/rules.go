package validation

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linemk/shop-api/internal/domain/models"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
)

func validateProduct(_ context.Context, _ *Validator, in Input) error {
	b := in.Body
	if !b.Has("name") || !b.Has("price") || !b.Has("stock") || !b.Has("categoryId") {
		return invalid("name, price, stock and categoryId are required")
	}
	price, ok := b.Number("price")
	if !ok || price < 0 {
		return invalid("price must be a non-negative number")
	}
	stock, ok := b.Number("stock")
	if !ok || stock < 0 {
		return invalid("stock must be a non-negative number")
	}
	return nil
}

func validateCategory(_ context.Context, v *Validator, in Input) error {
	name, _ := in.Body.String("name")
	if err := v.validate.Var(strings.TrimSpace(name), "required"); err != nil {
		return invalid("name is required")
	}
	return nil
}

func validateCart(ctx context.Context, v *Validator, in Input) error {
	productID, ok := in.Body.Int64("productId")
	if !ok {
		return invalid("productId is required")
	}
	if _, ok := v.exists(ctx, productsCollection, productID); !ok {
		return invalid("Product not found")
	}
	if in.Body.Has("quantity") {
		if q, ok := in.Body.Number("quantity"); !ok || q <= 0 {
			return invalid("quantity must be a positive number")
		}
	}
	return nil
}

func validateCoupon(_ context.Context, v *Validator, in Input) error {
	b := in.Body
	code, _ := b.String("code")
	if strings.TrimSpace(code) == "" || !b.Has("discount") || !b.Has("expires") {
		return invalid("code, discount and expires are required")
	}
	if _, ok := b.Number("discount"); !ok {
		return invalid("discount must be a number")
	}
	expires, ok := parseExpiry(b["expires"])
	if !ok {
		return invalid("expires must be a valid date")
	}
	if !expires.After(v.now()) {
		return invalid("Coupon expiry date must be in the future")
	}
	return nil
}

func validateOrder(ctx context.Context, v *Validator, in Input) error {
	items, ok := models.OrderItems(in.Body)
	if !ok {
		if _, isArray := in.Body["items"].([]any); isArray {
			return invalid("Each item needs a productId and a numeric quantity")
		}
		return invalid("Order must contain at least one item")
	}
	if len(items) == 0 {
		return invalid("Order must contain at least one item")
	}
	total, ok := in.Body.Number("total")
	if !ok {
		return invalid("total must be a number")
	}

	sum := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return invalid("quantity must be a positive number")
		}
		product, ok := v.exists(ctx, productsCollection, item.ProductID)
		if !ok {
			return invalid("Product %d not found", item.ProductID)
		}
		price, ok := product.Number("price")
		if !ok {
			return invalid("Product %d has no price", item.ProductID)
		}
		sum = sum.Add(money(price).Mul(money(item.Quantity)))
	}

	if !withinTolerance(money(total), sum) {
		return invalid("Total mismatch: expected %s, got %s", sum.StringFixed(2), money(total).StringFixed(2))
	}
	return nil
}

func validateReview(ctx context.Context, v *Validator, in Input) error {
	productID, ok := in.Body.Int64("productId")
	if !ok {
		return invalid("productId and a numeric rating are required")
	}
	if _, ok := in.Body.Number("rating"); !ok {
		return invalid("productId and a numeric rating are required")
	}
	if _, ok := v.exists(ctx, productsCollection, productID); !ok {
		return invalid("Product not found")
	}
	userID, ok := in.Body.Int64("userId")
	if ok && v.duplicate(ctx, in, models.Document{"productId": productID, "userId": userID}) {
		return invalid("You have already reviewed this product")
	}
	return nil
}

func validateAddress(_ context.Context, v *Validator, in Input) error {
	address, _ := in.Body.String("address")
	if strings.TrimSpace(address) == "" {
		return invalid("address is required")
	}
	kind, _ := in.Body.String("type")
	if err := v.validate.Var(kind, "required,oneof=shipping billing"); err != nil {
		return invalid("type must be either shipping or billing")
	}
	return nil
}

func validateWishlist(ctx context.Context, v *Validator, in Input) error {
	productID, ok := in.Body.Int64("productId")
	if !ok {
		return invalid("productId is required")
	}
	if _, ok := v.exists(ctx, productsCollection, productID); !ok {
		return invalid("Product not found")
	}
	userID, ok := in.Body.Int64("userId")
	if ok && v.duplicate(ctx, in, models.Document{"userId": userID, "productId": productID}) {
		return invalid("Product already in wishlist")
	}
	return nil
}

func validatePayment(ctx context.Context, v *Validator, in Input) error {
	b := in.Body
	if !b.Has("orderId") || !b.Has("amount") || !b.Has("method") {
		return invalid("orderId, amount and method are required")
	}
	amount, ok := b.Number("amount")
	if !ok {
		return invalid("amount must be a number")
	}
	orderID, ok := b.Int64("orderId")
	if !ok {
		return invalid("Order not found")
	}
	order, ok := v.exists(ctx, ordersCollection, orderID)
	if !ok {
		return invalid("Order not found")
	}
	total, ok := order.Number("total")
	if !ok || !withinTolerance(money(amount), money(total)) {
		return invalid("Payment amount does not match order total")
	}
	return nil
}

// validateUser проверяет изменения профиля; создание пользователя идет через регистрацию
func validateUser(_ context.Context, v *Validator, in Input) error {
	if in.Body.Has("email") {
		email, _ := in.Body.String("email")
		if err := v.validate.Var(email, "required,email"); err != nil {
			return invalid("email must be a valid email address")
		}
	}
	if in.Body.Has(models.PasswordField) {
		password, _ := in.Body.String(models.PasswordField)
		if err := v.validate.Var(password, "required,min=4"); err != nil {
			return invalid("password is too short")
		}
	}
	return nil
}

// parseExpiry принимает RFC3339, дату YYYY-MM-DD или число миллисекунд с эпохи
func parseExpiry(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		ms, ok := models.ToFloat(v)
		if !ok {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)), true
	}
}
