package storage

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/linemk/shop-api/internal/domain/models"
)

// DefaultPageLimit размер страницы, если передан _page без _limit
const DefaultPageLimit = 10

// Операции фильтра
const (
	OpEq   = "eq"
	OpNe   = "ne"
	OpGte  = "gte"
	OpLte  = "lte"
	OpLike = "like"
)

// Filter условие на поле записи. Для eq достаточно совпадения с любым из Values
type Filter struct {
	Field  string
	Op     string
	Values []string

	// для like шаблон компилируется один раз при разборе
	re *regexp.Regexp
}

// SortKey поле сортировки
type SortKey struct {
	Field string
	Desc  bool
}

// Query разобранные параметры выборки коллекции: фильтры, поиск, сортировка, пагинация
type Query struct {
	Filters []Filter
	Search  string
	Sort    []SortKey

	Page  int
	Limit int
	Start int
	End   int

	hasPage  bool
	hasLimit bool
	hasStart bool
	hasEnd   bool
}

var filterSuffixes = []string{OpGte, OpLte, OpNe, OpLike}

// ParseQuery разбирает query-параметры запроса списка
func ParseQuery(values url.Values) (Query, error) {
	var q Query
	var sortFields, sortOrders []string

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "q":
			q.Search = vals[0]
		case "_sort":
			sortFields = splitList(vals)
		case "_order":
			sortOrders = splitList(vals)
		case "_page":
			n, err := parsePositive(key, vals[0])
			if err != nil {
				return Query{}, err
			}
			q.Page, q.hasPage = n, true
		case "_limit":
			n, err := parsePositive(key, vals[0])
			if err != nil {
				return Query{}, err
			}
			q.Limit, q.hasLimit = n, true
		case "_start":
			n, err := parseNonNegative(key, vals[0])
			if err != nil {
				return Query{}, err
			}
			q.Start, q.hasStart = n, true
		case "_end":
			n, err := parseNonNegative(key, vals[0])
			if err != nil {
				return Query{}, err
			}
			q.End, q.hasEnd = n, true
		default:
			if strings.HasPrefix(key, "_") {
				continue
			}
			f, err := parseFilter(key, vals)
			if err != nil {
				return Query{}, err
			}
			q.Filters = append(q.Filters, f)
		}
	}

	for i, field := range sortFields {
		desc := i < len(sortOrders) && strings.EqualFold(sortOrders[i], "desc")
		q.Sort = append(q.Sort, SortKey{Field: field, Desc: desc})
	}
	return q, nil
}

// Where добавляет фильтр на равенство поля значению
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: OpEq, Values: []string{valueString(value)}})
	return q
}

// Without убирает фильтры по полю; поиск q по строкам записи при этом тоже выключается
func (q Query) Without(field string) Query {
	filters := make([]Filter, 0, len(q.Filters))
	for _, f := range q.Filters {
		if f.Field != field && !strings.HasPrefix(f.Field, field+".") {
			filters = append(filters, f)
		}
	}
	q.Filters = filters
	q.Search = ""
	return q
}

// Paginated сообщает, что клиент запросил часть выборки
func (q Query) Paginated() bool {
	return q.hasPage || q.hasLimit || q.hasStart || q.hasEnd
}

// Apply фильтрует, сортирует и режет выборку. Второе значение равно количеству записей до пагинации
func (q Query) Apply(docs []models.Document) ([]models.Document, int, error) {
	filtered := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		ok, err := q.match(doc)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			filtered = append(filtered, doc)
		}
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(filtered, func(i, j int) bool {
			for _, key := range q.Sort {
				c := compareValues(lookup(filtered[i], key.Field), lookup(filtered[j], key.Field))
				if c == 0 {
					continue
				}
				if key.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	total := len(filtered)
	start, end := q.bounds(total)
	return filtered[start:end], total, nil
}

func (q Query) bounds(total int) (int, int) {
	start, end := 0, total
	switch {
	case q.hasPage:
		limit := DefaultPageLimit
		if q.hasLimit {
			limit = q.Limit
		}
		start = total
		if q.Page-1 <= total/limit {
			start = (q.Page - 1) * limit
		}
		end = addClamped(start, limit, total)
	case q.hasStart || q.hasEnd || q.hasLimit:
		start = min(q.Start, total)
		switch {
		case q.hasEnd:
			end = q.End
		case q.hasLimit:
			end = addClamped(start, q.Limit, total)
		}
	}
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return start, end
}

// addClamped возвращает start+n, но не больше total. start не превышает total
func addClamped(start, n, total int) int {
	if n > total-start {
		return total
	}
	return start + n
}

func (q Query) match(doc models.Document) (bool, error) {
	for _, f := range q.Filters {
		ok, err := f.match(doc)
		if err != nil || !ok {
			return false, err
		}
	}
	if q.Search != "" && !containsText(doc, strings.ToLower(q.Search)) {
		return false, nil
	}
	return true, nil
}

func (f Filter) match(doc models.Document) (bool, error) {
	value := lookup(doc, f.Field)
	switch f.Op {
	case OpEq:
		s := valueString(value)
		for _, want := range f.Values {
			if value != nil && s == want {
				return true, nil
			}
		}
		return false, nil
	case OpNe:
		s := valueString(value)
		for _, v := range f.Values {
			if s == v {
				return false, nil
			}
		}
		return true, nil
	case OpGte, OpLte:
		if value == nil {
			return false, nil
		}
		c := compareValues(value, f.Values[0])
		if f.Op == OpGte {
			return c >= 0, nil
		}
		return c <= 0, nil
	case OpLike:
		re := f.re
		if re == nil {
			var err error
			if re, err = compileLike(f.Field, f.Values[0]); err != nil {
				return false, err
			}
		}
		return value != nil && re.MatchString(valueString(value)), nil
	}
	return false, nil
}

func parseFilter(key string, vals []string) (Filter, error) {
	for _, suffix := range filterSuffixes {
		field, ok := strings.CutSuffix(key, "_"+suffix)
		if !ok || field == "" {
			continue
		}
		f := Filter{Field: field, Op: suffix, Values: vals}
		if suffix == OpLike {
			re, err := compileLike(field, vals[0])
			if err != nil {
				return Filter{}, err
			}
			f.re = re
		}
		return f, nil
	}
	return Filter{Field: key, Op: OpEq, Values: vals}, nil
}

func compileLike(field, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid %s_like pattern: %w", field, err)
	}
	return re, nil
}

// lookup достает значение по пути вида "a.b"
func lookup(doc models.Document, path string) any {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[part]
		case models.Document:
			cur = m[part]
		default:
			return nil
		}
	}
	return cur
}

func containsText(v any, needle string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), needle)
	case map[string]any:
		for _, inner := range t {
			if containsText(inner, needle) {
				return true
			}
		}
	case models.Document:
		return containsText(map[string]any(t), needle)
	case []any:
		for _, inner := range t {
			if containsText(inner, needle) {
				return true
			}
		}
	}
	return false
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	}
	if id, ok := models.ToInt64(v); ok {
		return strconv.FormatInt(id, 10)
	}
	if f, ok := models.ToFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// compareValues сравнивает числа как числа, остальное как строки
func compareValues(a, b any) int {
	fa, okA := asNumber(a)
	fb, okB := asNumber(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(valueString(a), valueString(b))
}

func asNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return models.ToFloat(v)
}

func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parsePositive(key, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func parseNonNegative(key, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
