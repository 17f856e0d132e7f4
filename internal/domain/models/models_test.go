package models_test

import (
	"encoding/json"
	"testing"

	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Int64(t *testing.T) {
	doc := models.Document{"a": 3.0, "b": "12", "c": 1.5, "d": "x", "e": int64(7), "f": json.Number("9")}

	for key, want := range map[string]int64{"a": 3, "b": 12, "e": 7, "f": 9} {
		got, ok := doc.Int64(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	for _, key := range []string{"c", "d", "missing"} {
		_, ok := doc.Int64(key)
		assert.False(t, ok, key)
	}
}

func TestDocument_NumberDoesNotCoerceStrings(t *testing.T) {
	doc := models.Document{"price": "9.99", "stock": 3}
	_, ok := doc.Number("price")
	assert.False(t, ok)

	n, ok := doc.Number("stock")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
}

func TestDocument_MergeAndClone(t *testing.T) {
	base := models.Document{"id": int64(1), "name": "Mug", "tags": []any{"a"}}
	merged := base.Merge(models.Document{"name": "Big mug", "price": 5})

	assert.Equal(t, models.Document{"id": 1.0, "name": "Big mug", "tags": []any{"a"}, "price": 5.0}, merged)
	assert.Equal(t, "Mug", base["name"], "Merge must not modify the receiver")

	clone := base.Clone()
	clone["tags"].([]any)[0] = "b"
	assert.Equal(t, "a", base["tags"].([]any)[0])
}

func TestDocument_Matches(t *testing.T) {
	doc := models.Document{"userId": 7.0, "productId": 2.0, "name": "Mug"}
	assert.True(t, doc.Matches(models.Document{"userId": int64(7)}))
	assert.True(t, doc.Matches(models.Document{"userId": 7, "name": "Mug"}))
	assert.False(t, doc.Matches(models.Document{"userId": "7"}))
	assert.False(t, doc.Matches(models.Document{"missing": 1}))
}

func TestResource_Classification(t *testing.T) {
	for _, res := range models.Resources() {
		parsed, ok := models.ParseResource(res.Collection())
		require.True(t, ok, res.Collection())
		assert.Equal(t, res, parsed)
	}

	assert.Equal(t, models.PolicyAdmin, models.ResourceProducts.Policy())
	assert.Equal(t, models.PolicyAdmin, models.ResourceCategories.Policy())
	assert.Equal(t, models.PolicyOpen, models.ResourceCoupons.Policy())
	for _, res := range []models.Resource{models.ResourceCart, models.ResourceOrders, models.ResourceAddresses, models.ResourceWishlists, models.ResourcePayments, models.ResourceReviews, models.ResourceUsers} {
		assert.Equal(t, models.PolicyOwner, res.Policy(), res.Collection())
	}

	assert.Equal(t, "id", models.ResourceUsers.OwnerField())
	assert.Equal(t, "userId", models.ResourceCart.OwnerField())
	assert.Equal(t, "productId", models.ResourceProducts.ForeignKey())

	_, ok := models.ParseResource("spaceships")
	assert.False(t, ok)
	assert.Equal(t, "unknown", models.ResourceUnknown.String())
}

func TestPublicUser(t *testing.T) {
	doc := models.Document{"id": 3.0, "name": "Ann", "email": "a@b.co", "role": "customer", "password": "$2a$10$hash", "address": "x"}
	assert.Equal(t, models.Document{"id": 3.0, "name": "Ann", "email": "a@b.co", "role": "customer"}, models.PublicUser(doc))

	user, ok := models.UserFromDocument(models.Document{"id": 3.0})
	require.True(t, ok)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.False(t, user.IsAdmin())

	var nobody *models.User
	assert.False(t, nobody.IsAdmin())
}

func TestOrderItems(t *testing.T) {
	items, ok := models.OrderItems(models.Document{"items": []any{
		map[string]any{"productId": "1", "quantity": 2.0},
		models.Document{"productId": 2.0, "quantity": 1},
	}})
	require.True(t, ok)
	assert.Equal(t, []models.OrderItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}, items)

	_, ok = models.OrderItems(models.Document{"items": []any{map[string]any{"productId": 1.0, "quantity": "2"}}})
	assert.False(t, ok)

	_, ok = models.OrderItems(models.Document{"items": "nope"})
	assert.False(t, ok)
}
