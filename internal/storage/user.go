package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/linemk/shop-api/internal/domain/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

const usersCollection = "users"

type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (models.Document, error)
	GetUserByID(ctx context.Context, id int64) (models.Document, error)
	CreateUser(ctx context.Context, user models.Document) (models.Document, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
}

// userRepository пользователи поверх коллекции users общего хранилища
type userRepository struct {
	store Store
}

func NewUserRepository(store Store) *userRepository {
	return &userRepository{store: store}
}

// получение уже существующего пользователя, email сравнивается без учета регистра
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (models.Document, error) {
	users, err := r.store.List(ctx, usersCollection)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if stored, ok := user.String("email"); ok && strings.EqualFold(stored, email) {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (models.Document, error) {
	user, err := r.store.Get(ctx, usersCollection, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateUser сохраняет пользователя, если email еще не занят.
// Проверка и запись не атомарны: при гонке двух регистраций побеждает последняя
func (r *userRepository) CreateUser(ctx context.Context, user models.Document) (models.Document, error) {
	email, _ := user.String("email")
	taken, err := r.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUserExists
	}

	created, err := r.store.Create(ctx, usersCollection, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// EmailTaken сообщает, занят ли email другим пользователем. exceptID исключает запись, которую
// сейчас обновляют; 0 не совпадает ни с одной записью
func (r *userRepository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	users, err := r.store.List(ctx, usersCollection)
	if err != nil {
		return false, err
	}
	for _, user := range users {
		if id, ok := user.ID(); ok && exceptID != 0 && id == exceptID {
			continue
		}
		if stored, ok := user.String("email"); ok && strings.EqualFold(stored, email) {
			return true, nil
		}
	}
	return false, nil
}
