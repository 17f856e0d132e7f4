package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/storage"
)

// CollectionServiceInterface CRUD над коллекциями документа
type CollectionServiceInterface interface {
	List(ctx context.Context, res models.Resource, q storage.Query) ([]models.Document, int, error)
	Get(ctx context.Context, res models.Resource, id int64) (models.Document, error)
	Create(ctx context.Context, res models.Resource, body models.Document) (models.Document, error)
	Replace(ctx context.Context, res models.Resource, id int64, body models.Document) (models.Document, error)
	Patch(ctx context.Context, res models.Resource, id int64, body models.Document) (models.Document, error)
	Delete(ctx context.Context, res models.Resource, id int64) error
}

// CollectionService выполняет уже проверенные запросы к хранилищу.
// Записи пользователей наружу отдаются только в виде {id, name, email, role}
type CollectionService struct {
	log   *slog.Logger
	store storage.Store
	users storage.UserStorage
}

func NewCollectionService(log *slog.Logger, store storage.Store) *CollectionService {
	return &CollectionService{log: log, store: store, users: storage.NewUserRepository(store)}
}

func (s *CollectionService) List(ctx context.Context, res models.Resource, q storage.Query) ([]models.Document, int, error) {
	const op = "collection.List"

	docs, err := s.store.List(ctx, res.Collection())
	if err != nil {
		s.log.Error("failed to list records", slog.String("op", op), slog.String("collection", res.Collection()), slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if res == models.ResourceUsers {
		// по хэшу пароля нельзя ни фильтровать, ни искать
		q = q.Without(models.PasswordField)
	}
	page, total, err := q.Apply(docs)
	if err != nil {
		return nil, 0, apperr.BadRequest("%s", err.Error())
	}
	return shapeAll(res, page), total, nil
}

func (s *CollectionService) Get(ctx context.Context, res models.Resource, id int64) (models.Document, error) {
	const op = "collection.Get"

	doc, err := s.store.Get(ctx, res.Collection(), id)
	if err != nil {
		return nil, s.storeError(op, res, id, err)
	}
	return shape(res, doc), nil
}

func (s *CollectionService) Create(ctx context.Context, res models.Resource, body models.Document) (models.Document, error) {
	const op = "collection.Create"
	logger := s.log.With(slog.String("op", op), slog.String("collection", res.Collection()))

	doc := body.Clone()
	if doc == nil {
		doc = models.Document{}
	}
	delete(doc, models.IDField)

	if res == models.ResourceUsers {
		doc["role"] = models.RoleCustomer
		if err := s.checkEmail(ctx, doc, 0); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := hashPassword(doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	created, err := s.store.Create(ctx, res.Collection(), doc)
	if err != nil {
		logger.Error("failed to create record", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Debug("record created", slog.Any("id", created[models.IDField]))
	return shape(res, created), nil
}

// Replace заменяет запись целиком. У пользователя сохраняются роль и, если пароль не передан, прежний хэш
func (s *CollectionService) Replace(ctx context.Context, res models.Resource, id int64, body models.Document) (models.Document, error) {
	const op = "collection.Replace"

	doc := body.Clone()
	if doc == nil {
		doc = models.Document{}
	}
	if res == models.ResourceUsers {
		current, err := s.store.Get(ctx, res.Collection(), id)
		if err != nil {
			return nil, s.storeError(op, res, id, err)
		}
		if err := s.prepareUser(ctx, id, doc, current); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !doc.Has(models.PasswordField) {
			doc[models.PasswordField] = current[models.PasswordField]
		}
	}

	replaced, err := s.store.Replace(ctx, res.Collection(), id, doc)
	if err != nil {
		return nil, s.storeError(op, res, id, err)
	}
	return shape(res, replaced), nil
}

func (s *CollectionService) Patch(ctx context.Context, res models.Resource, id int64, body models.Document) (models.Document, error) {
	const op = "collection.Patch"

	patch := body.Clone()
	if patch == nil {
		patch = models.Document{}
	}
	if res == models.ResourceUsers {
		current, err := s.store.Get(ctx, res.Collection(), id)
		if err != nil {
			return nil, s.storeError(op, res, id, err)
		}
		if err := s.prepareUser(ctx, id, patch, current); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	patched, err := s.store.Patch(ctx, res.Collection(), id, patch)
	if err != nil {
		return nil, s.storeError(op, res, id, err)
	}
	return shape(res, patched), nil
}

// Delete удаляет запись и записи других коллекций, ссылающиеся на нее через <имя>Id
func (s *CollectionService) Delete(ctx context.Context, res models.Resource, id int64) error {
	const op = "collection.Delete"
	logger := s.log.With(slog.String("op", op), slog.String("collection", res.Collection()), slog.Int64("id", id))

	if err := s.store.Delete(ctx, res.Collection(), id); err != nil {
		return s.storeError(op, res, id, err)
	}

	fk := res.ForeignKey()
	for _, other := range models.Resources() {
		if other == res {
			continue
		}
		dependents, err := s.store.Find(ctx, other.Collection(), models.Document{fk: id})
		if err != nil {
			logger.Warn("failed to find dependents", slog.String("dependent", other.Collection()), slog.Any("error", err))
			continue
		}
		for _, dep := range dependents {
			depID, ok := dep.ID()
			if !ok {
				continue
			}
			if err := s.store.Delete(ctx, other.Collection(), depID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				logger.Warn("failed to delete dependent", slog.String("dependent", other.Collection()), slog.Int64("dependent_id", depID), slog.Any("error", err))
			}
		}
		if len(dependents) > 0 {
			logger.Info("dependents removed", slog.String("dependent", other.Collection()), slog.Int("count", len(dependents)))
		}
	}
	return nil
}

// prepareUser не дает сменить роль через CRUD, занять чужой email и хэширует новый пароль
func (s *CollectionService) prepareUser(ctx context.Context, id int64, doc, current models.Document) error {
	role, ok := current.String("role")
	if !ok || role == "" {
		role = models.RoleCustomer
	}
	doc["role"] = role
	delete(doc, models.IDField)
	if err := s.checkEmail(ctx, doc, id); err != nil {
		return err
	}
	return hashPassword(doc)
}

// checkEmail проверяет, что email из тела не принадлежит другому пользователю
func (s *CollectionService) checkEmail(ctx context.Context, doc models.Document, id int64) error {
	email, ok := doc.String("email")
	if !ok || email == "" {
		return nil
	}
	taken, err := s.users.EmailTaken(ctx, email, id)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return apperr.BadRequest("Email already exists")
	}
	return nil
}

func (s *CollectionService) storeError(op string, res models.Resource, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(fmt.Sprintf("%s record %d not found", res.Collection(), id))
	}
	s.log.Error("store operation failed",
		slog.String("op", op),
		slog.String("collection", res.Collection()),
		slog.Int64("id", id),
		slog.Any("error", err),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func hashPassword(doc models.Document) error {
	if !doc.Has(models.PasswordField) {
		return nil
	}
	password, ok := doc.String(models.PasswordField)
	if !ok {
		return apperr.BadRequest("password must be a string")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	doc[models.PasswordField] = string(hash)
	return nil
}

func shape(res models.Resource, doc models.Document) models.Document {
	if res == models.ResourceUsers {
		return models.PublicUser(doc)
	}
	return doc
}

func shapeAll(res models.Resource, docs []models.Document) []models.Document {
	out := make([]models.Document, len(docs))
	for i, doc := range docs {
		out[i] = shape(res, doc)
	}
	return out
}
