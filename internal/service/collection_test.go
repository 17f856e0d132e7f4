package service_test

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/service"
	"github.com/linemk/shop-api/internal/storage"
	"github.com/linemk/shop-api/internal/storage/filedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func collections() []string {
	var names []string
	for _, res := range models.Resources() {
		names = append(names, res.Collection())
	}
	return names
}

func newCollectionService(t *testing.T) (*service.CollectionService, *filedb.Store) {
	t.Helper()
	store, err := filedb.Open(filepath.Join(t.TempDir(), "db.json"), collections())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return service.NewCollectionService(logger, store), store
}

func TestCollectionService_CRUD(t *testing.T) {
	svc, _ := newCollectionService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.ResourceProducts, models.Document{"id": 50.0, "name": "Mug", "price": 9.99})
	require.NoError(t, err)
	assert.Equal(t, 1.0, created["id"], "client id is ignored")

	second, err := svc.Create(ctx, models.ResourceProducts, models.Document{"name": "Tee", "price": 20.0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, second["id"])

	got, err := svc.Get(ctx, models.ResourceProducts, 1)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got["name"])

	replaced, err := svc.Replace(ctx, models.ResourceProducts, 1, models.Document{"name": "Big mug"})
	require.NoError(t, err)
	assert.Equal(t, models.Document{"id": 1.0, "name": "Big mug"}, replaced)

	patched, err := svc.Patch(ctx, models.ResourceProducts, 2, models.Document{"price": 25.0})
	require.NoError(t, err)
	assert.Equal(t, "Tee", patched["name"])
	assert.Equal(t, 25.0, patched["price"])

	require.NoError(t, svc.Delete(ctx, models.ResourceProducts, 1))
	_, err = svc.Get(ctx, models.ResourceProducts, 1)
	assert.Equal(t, 404, apperr.StatusOf(err))

	_, err = svc.Patch(ctx, models.ResourceProducts, 77, models.Document{})
	assert.Equal(t, 404, apperr.StatusOf(err))
	assert.Equal(t, 404, apperr.StatusOf(svc.Delete(ctx, models.ResourceProducts, 77)))
}

func TestCollectionService_ListQuery(t *testing.T) {
	svc, _ := newCollectionService(t)
	ctx := context.Background()

	for _, p := range []models.Document{
		{"name": "Mug", "price": 9.0, "userId": 1.0},
		{"name": "Tee", "price": 20.0, "userId": 2.0},
		{"name": "Cap", "price": 15.0, "userId": 1.0},
	} {
		_, err := svc.Create(ctx, models.ResourceCart, p)
		require.NoError(t, err)
	}

	q, err := storage.ParseQuery(url.Values{"_sort": {"price"}, "_order": {"desc"}, "_page": {"1"}, "_limit": {"2"}})
	require.NoError(t, err)
	docs, total, err := svc.List(ctx, models.ResourceCart, q)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, docs, 2)
	assert.Equal(t, "Tee", docs[0]["name"])
	assert.Equal(t, "Cap", docs[1]["name"])

	owned, total, err := svc.List(ctx, models.ResourceCart, storage.Query{}.Where("userId", int64(1)))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, owned, 2)
}

func TestCollectionService_UsersAreShaped(t *testing.T) {
	svc, store := newCollectionService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = store.Create(ctx, "users", models.Document{"name": "Ann", "email": "ann@example.com", "password": string(hash), "role": "customer", "address": "x"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, models.ResourceUsers, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Document{"id": 1.0, "name": "Ann", "email": "ann@example.com", "role": "customer"}, got)

	list, _, err := svc.List(ctx, models.ResourceUsers, storage.Query{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "password")
}

func TestCollectionService_UserUpdateKeepsRoleAndHashesPassword(t *testing.T) {
	svc, store := newCollectionService(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "users", models.Document{"name": "Ann", "email": "ann@example.com", "password": "old-hash", "role": "customer"})
	require.NoError(t, err)

	patched, err := svc.Patch(ctx, models.ResourceUsers, 1, models.Document{"role": "admin", "password": "newpass"})
	require.NoError(t, err)
	assert.Equal(t, "customer", patched["role"])
	assert.NotContains(t, patched, "password")

	raw, err := store.Get(ctx, "users", 1)
	require.NoError(t, err)
	hash, _ := raw.String("password")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("newpass")))

	// PUT без пароля сохраняет прежний хэш
	_, err = svc.Replace(ctx, models.ResourceUsers, 1, models.Document{"name": "Ann B", "email": "ann@example.com"})
	require.NoError(t, err)
	raw, err = store.Get(ctx, "users", 1)
	require.NoError(t, err)
	assert.Equal(t, hash, raw["password"])
	assert.Equal(t, "customer", raw["role"])
}

func TestCollectionService_UserEmailStaysUnique(t *testing.T) {
	svc, store := newCollectionService(t)
	ctx := context.Background()

	for _, email := range []string{"ann@example.com", "bob@example.com"} {
		_, err := store.Create(ctx, "users", models.Document{"email": email, "password": "hash", "role": "customer"})
		require.NoError(t, err)
	}

	_, err := svc.Patch(ctx, models.ResourceUsers, 2, models.Document{"email": "ANN@example.com"})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusOf(err))
	assert.Equal(t, "Email already exists", apperr.From(err).Message)

	_, err = svc.Replace(ctx, models.ResourceUsers, 2, models.Document{"email": "ann@example.com"})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusOf(err))

	_, err = svc.Create(ctx, models.ResourceUsers, models.Document{"email": "bob@example.com", "password": "secret"})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusOf(err))

	raw, err := store.Get(ctx, "users", 2)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", raw["email"])

	patched, err := svc.Patch(ctx, models.ResourceUsers, 2, models.Document{"email": "bobby@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "bobby@example.com", patched["email"])
}

func TestCollectionService_DeleteCascades(t *testing.T) {
	svc, store := newCollectionService(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "products", models.Document{"name": "Mug"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "products", models.Document{"name": "Tee"})
	require.NoError(t, err)
	for _, pid := range []float64{1, 2, 1} {
		_, err = store.Create(ctx, "reviews", models.Document{"productId": pid, "rating": 5.0})
		require.NoError(t, err)
	}
	_, err = store.Create(ctx, "wishlists", models.Document{"productId": 1.0})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, models.ResourceProducts, 1))

	reviews, err := store.List(ctx, "reviews")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 2.0, reviews[0]["productId"])

	wishlists, err := store.List(ctx, "wishlists")
	require.NoError(t, err)
	assert.Empty(t, wishlists)
}
