package storage

import (
	"context"
	"errors"

	"github.com/linemk/shop-api/internal/domain/models"
)

var (
	// ErrNotFound запись с указанным id отсутствует в коллекции
	ErrNotFound = errors.New("record not found")
	// ErrInvalidDocument запись не сериализуется в JSON
	ErrInvalidDocument = errors.New("invalid document")
)

// Store хранилище именованных коллекций JSON-записей.
// Запись получает числовой id при создании; id в теле при создании игнорируется
type Store interface {
	// List возвращает все записи коллекции в порядке id
	List(ctx context.Context, collection string) ([]models.Document, error)
	// Get ищет запись по id, ErrNotFound если ее нет
	Get(ctx context.Context, collection string, id int64) (models.Document, error)
	// Find возвращает записи, у которых все поля match совпадают
	Find(ctx context.Context, collection string, match models.Document) ([]models.Document, error)
	Create(ctx context.Context, collection string, doc models.Document) (models.Document, error)
	// Replace заменяет запись целиком, id сохраняется
	Replace(ctx context.Context, collection string, id int64, doc models.Document) (models.Document, error)
	// Patch накладывает поля patch поверх записи
	Patch(ctx context.Context, collection string, id int64, patch models.Document) (models.Document, error)
	Delete(ctx context.Context, collection string, id int64) error
	Close() error
}
