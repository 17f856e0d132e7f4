package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Document одна запись коллекции в том виде, в каком она хранится в JSON-документе
type Document map[string]any

// IDField имя поля с идентификатором записи
const IDField = "id"

// ID возвращает идентификатор записи
func (d Document) ID() (int64, bool) {
	return d.Int64(IDField)
}

// Int64 читает целочисленное значение поля. Числовые строки тоже принимаются:
// ссылки на записи часто приходят от клиента строкой
func (d Document) Int64(key string) (int64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return ToInt64(v)
}

// Number читает числовое поле. Строки не приводятся к числу
func (d Document) Number(key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// String читает строковое поле
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Has сообщает, что поле присутствует и не равно null
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// Clone делает глубокую копию через JSON, заодно приводя числа к float64
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		out := make(Document, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Merge возвращает копию записи с наложенными поверх полями patch
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch.Clone() {
		out[k] = v
	}
	return out
}

// Matches проверяет, что каждое поле match совпадает с полем записи
func (d Document) Matches(match Document) bool {
	for k, want := range match {
		if !ValuesEqual(d[k], want) {
			return false
		}
	}
	return true
}

// ToInt64 приводит число или числовую строку к int64. Дробные значения не принимаются
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		f, ok := ToFloat(v)
		if !ok || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	}
}

// ValuesEqual сравнивает значения полей без учета конкретного числового типа
func ValuesEqual(a, b any) bool {
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}

// ToFloat приводит числовое значение любого типа к float64
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
