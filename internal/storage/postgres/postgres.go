// Package postgres хранит коллекции в одной таблице documents с телом записи в jsonb.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/storage"
)

const (
	queryList    = "SELECT body FROM documents WHERE collection = $1 ORDER BY id"
	queryGet     = "SELECT body FROM documents WHERE collection = $1 AND id = $2"
	queryFind    = "SELECT body FROM documents WHERE collection = $1 AND body @> $2 ORDER BY id"
	queryNextID  = "SELECT COALESCE(MAX(id), 0) + 1 FROM documents WHERE collection = $1"
	queryInsert  = "INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)"
	queryReplace = "UPDATE documents SET body = $3 WHERE collection = $1 AND id = $2"
	queryPatch   = "UPDATE documents SET body = body || $3 WHERE collection = $1 AND id = $2 RETURNING body"
	queryDelete  = "DELETE FROM documents WHERE collection = $1 AND id = $2"
)

// уникальный ключ (collection, id), значит две параллельные вставки получили один id
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) List(ctx context.Context, collection string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, queryList, collection)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (s *Store) Get(ctx context.Context, collection string, id int64) (models.Document, error) {
	var body []byte
	if err := s.db.QueryRowContext(ctx, queryGet, collection, id).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return decode(body)
}

func (s *Store) Find(ctx context.Context, collection string, match models.Document) ([]models.Document, error) {
	filter, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
	}
	rows, err := s.db.QueryContext(ctx, queryFind, collection, filter)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// Create выдает id как max+1 внутри транзакции
func (s *Store) Create(ctx context.Context, collection string, doc models.Document) (models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, queryNextID, collection).Scan(&id); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	record := doc.Clone()
	if record == nil {
		_ = tx.Rollback()
		return nil, storage.ErrInvalidDocument
	}
	record[models.IDField] = id
	body, err := json.Marshal(record)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
	}

	if _, err := tx.ExecContext(ctx, queryInsert, collection, id, body); err != nil {
		_ = tx.Rollback()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("id %d is already taken, please try again: %w", id, err)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return decode(body)
}

func (s *Store) Replace(ctx context.Context, collection string, id int64, doc models.Document) (models.Document, error) {
	record := doc.Clone()
	if record == nil {
		return nil, storage.ErrInvalidDocument
	}
	record[models.IDField] = id
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
	}

	res, err := s.db.ExecContext(ctx, queryReplace, collection, id, body)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return decode(body)
}

func (s *Store) Patch(ctx context.Context, collection string, id int64, patch models.Document) (models.Document, error) {
	fields := patch.Clone()
	if fields == nil {
		fields = models.Document{}
	}
	fields[models.IDField] = id
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
	}

	var body []byte
	if err := s.db.QueryRowContext(ctx, queryPatch, collection, id, raw).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return decode(body)
}

func (s *Store) Delete(ctx context.Context, collection string, id int64) error {
	res, err := s.db.ExecContext(ctx, queryDelete, collection, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		doc, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func decode(body []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
