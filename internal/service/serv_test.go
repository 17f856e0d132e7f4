package service_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/domain/models"
	security "github.com/linemk/shop-api/internal/jwt-new"
	"github.com/linemk/shop-api/internal/service"
	"github.com/linemk/shop-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "testsecret"

type fakeUserRepo struct {
	users  []models.Document
	nextID int64
	err    error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if stored, _ := u.String("email"); strings.EqualFold(stored, email) {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (models.Document, error) {
	for _, u := range f.users {
		if uid, _ := u.ID(); uid == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user models.Document) (models.Document, error) {
	email, _ := user.String("email")
	if _, err := f.GetUserByEmail(ctx, email); err == nil {
		return nil, storage.ErrUserExists
	}
	user = user.Clone()
	user[models.IDField] = float64(f.nextID)
	f.nextID++
	f.users = append(f.users, user)
	return user, nil
}

func (f *fakeUserRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	user, err := f.GetUserByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	id, _ := user.ID()
	return id != exceptID, nil
}

func newAuthService(repo storage.UserStorage) *service.AuthService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return service.NewAuthService(logger, repo, testSecret, 60*time.Minute)
}

func badRequest(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %v", err)
	assert.Equal(t, 400, appErr.Status)
	return appErr.Message
}

func TestAuthService_Register(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuthService(repo)
	ctx := context.Background()

	res, err := authSvc.Register(ctx, models.Document{
		"email":    "ann@example.com",
		"password": "secret",
		"name":     "Ann",
		"role":     "admin",
		"id":       99.0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.Document{"id": 1.0, "name": "Ann", "email": "ann@example.com", "role": "customer"}, res.User)

	// токен указывает на созданного пользователя
	userID, err := security.ParseToken(res.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)

	// пароль хранится в виде хэша
	stored, err := repo.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	hash, _ := stored.String("password")
	assert.NotEqual(t, "secret", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))
}

func TestAuthService_Register_Rejects(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuthService(repo)
	ctx := context.Background()

	_, err := authSvc.Register(ctx, models.Document{"email": "ann@example.com", "password": "secret"})
	require.NoError(t, err)

	tests := []struct {
		name string
		body models.Document
		want string
	}{
		{"duplicate email", models.Document{"email": "ANN@example.com", "password": "secret"}, "Email already exists"},
		{"missing password", models.Document{"email": "bob@example.com"}, "Email and password are required"},
		{"bad email", models.Document{"email": "bob", "password": "secret"}, "Email format is invalid"},
		{"short password", models.Document{"email": "bob@example.com", "password": "123"}, "Password is too short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authSvc.Register(ctx, tt.body)
			assert.Equal(t, tt.want, badRequest(t, err))
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuthService(repo)
	ctx := context.Background()

	_, err := authSvc.Register(ctx, models.Document{"email": "ann@example.com", "password": "secret", "name": "Ann"})
	require.NoError(t, err)

	res, err := authSvc.Login(ctx, "ann@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotContains(t, res.User, "password")

	_, err = authSvc.Login(ctx, "ann@example.com", "wrong-password")
	assert.Equal(t, "Incorrect password", badRequest(t, err))

	_, err = authSvc.Login(ctx, "nobody@example.com", "secret")
	assert.Equal(t, "Cannot find user", badRequest(t, err))
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.err = errors.New("disk on fire")
	authSvc := newAuthService(repo)

	_, err := authSvc.Login(context.Background(), "ann@example.com", "secret")
	require.Error(t, err)
	assert.Equal(t, 500, apperr.StatusOf(err))
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuthService(repo)
	ctx := context.Background()

	require.NoError(t, authSvc.EnsureAdmin(ctx, "Root", "", ""))
	assert.Empty(t, repo.users)

	require.NoError(t, authSvc.EnsureAdmin(ctx, "Root", "root@example.com", "rootpass"))
	require.NoError(t, authSvc.EnsureAdmin(ctx, "Root", "root@example.com", "rootpass"))
	require.Len(t, repo.users, 1)
	assert.Equal(t, "admin", repo.users[0]["role"])

	res, err := authSvc.Login(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, "admin", res.User["role"])
}
