// Package filedb хранит все коллекции в одном JSON-файле вида {"products": [...], "users": [...]}.
// Файл перезаписывается целиком после каждой изменяющей операции.
package filedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/linemk/shop-api/internal/domain/models"
	"github.com/linemk/shop-api/internal/storage"
)

// Store файловое хранилище. Мьютекс защищает только память процесса:
// последовательности "прочитать, проверить, записать" из разных запросов не атомарны
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string][]models.Document
}

var _ storage.Store = (*Store)(nil)

// Open читает файл документа. Если файла нет, он создается с пустыми коллекциями
func Open(path string, collections []string) (*Store, error) {
	const op = "filedb.Open"

	s := &Store{path: path, data: make(map[string][]models.Document)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		for _, c := range collections {
			s.data[c] = []models.Document{}
		}
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: parse %s: %w", op, path, err)
	}
	for name, body := range doc {
		var records []models.Document
		if err := json.Unmarshal(body, &records); err != nil {
			// json-server допускает объекты-синглтоны на верхнем уровне, здесь они не маршрутизируются
			continue
		}
		s.data[name] = records
	}
	for _, c := range collections {
		if _, ok := s.data[c]; !ok {
			s.data[c] = []models.Document{}
		}
	}
	return s, nil
}

func (s *Store) List(_ context.Context, collection string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.data[collection]
	out := make([]models.Document, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, collection string, id int64) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(collection, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	return s.data[collection][i].Clone(), nil
}

func (s *Store) Find(_ context.Context, collection string, match models.Document) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Document
	for _, r := range s.data[collection] {
		if r.Matches(match) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, collection string, doc models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := doc.Clone()
	if record == nil {
		return nil, storage.ErrInvalidDocument
	}
	record[models.IDField] = s.nextID(collection)

	records := append(append([]models.Document{}, s.data[collection]...), record)
	if err := s.commit(collection, records); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

func (s *Store) Replace(_ context.Context, collection string, id int64, doc models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(collection, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	record := doc.Clone()
	if record == nil {
		return nil, storage.ErrInvalidDocument
	}
	record[models.IDField] = id

	records := append([]models.Document{}, s.data[collection]...)
	records[i] = record
	if err := s.commit(collection, records); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

func (s *Store) Patch(_ context.Context, collection string, id int64, patch models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(collection, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	record := s.data[collection][i].Merge(patch)
	record[models.IDField] = id

	records := append([]models.Document{}, s.data[collection]...)
	records[i] = record
	if err := s.commit(collection, records); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

func (s *Store) Delete(_ context.Context, collection string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(collection, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	old := s.data[collection]
	records := make([]models.Document, 0, len(old)-1)
	records = append(records, old[:i]...)
	records = append(records, old[i+1:]...)
	return s.commit(collection, records)
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) indexOf(collection string, id int64) int {
	for i, r := range s.data[collection] {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextID(collection string) int64 {
	var max int64
	for _, r := range s.data[collection] {
		if id, ok := r.ID(); ok && id > max {
			max = id
		}
	}
	return max + 1
}

// commit подменяет коллекцию и сохраняет файл; при ошибке записи состояние откатывается
func (s *Store) commit(collection string, records []models.Document) error {
	old, existed := s.data[collection]
	s.data[collection] = records
	if err := s.save(); err != nil {
		if existed {
			s.data[collection] = old
		} else {
			delete(s.data, collection)
		}
		return err
	}
	return nil
}

// save пишет документ во временный файл и переименовывает его поверх основного
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".db-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
