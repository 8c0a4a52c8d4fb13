package tracksim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
)

// Page size bounds applied by the list endpoints, mirroring the live
// service's defaults.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Query selects assets for Search. The zero value matches every record.
type Query struct {
	// Field names the attribute to match, empty for none. The HTTP list
	// endpoint restricts it to custom-field names; in-process callers may
	// also use tracker.FieldName and tracker.FieldID.
	Field         tracker.Field
	Keyword       string
	StatusID      int // 0 matches every status
	CaseSensitive bool
	ExactMatch    bool
}

// search filters in insertion order. Records lacking the queried field are
// skipped, never an error. Callers hold the session lock.
func (st *simState) search(q Query) ([]tracker.Asset, error) {
	if q.Field != "" && !searchable(q.Field) {
		return nil, fmt.Errorf("unknown search field %q", q.Field)
	}
	var out []tracker.Asset
	for _, id := range st.order {
		a := st.assets[id]
		if q.StatusID != 0 && a.Status.ID != q.StatusID {
			continue
		}
		if q.Field != "" {
			value, ok := fieldValue(a, q.Field)
			if !ok || !match(value, q.Keyword, q.CaseSensitive, q.ExactMatch) {
				continue
			}
		}
		out = append(out, cloneAsset(*a))
	}
	return out, nil
}

func searchable(f tracker.Field) bool {
	if f == tracker.FieldName || f == tracker.FieldID {
		return true
	}
	_, ok := f.CustomField()
	return ok
}

func fieldValue(a *tracker.Asset, f tracker.Field) (string, bool) {
	switch f {
	case tracker.FieldName:
		return a.Name, true
	case tracker.FieldID:
		return strconv.Itoa(a.ID), true
	}
	def, ok := f.CustomField()
	if !ok {
		return "", false
	}
	for _, cf := range a.CustomFields {
		if cf.ID == def.ID {
			return cf.Value, true
		}
	}
	return "", false
}

func match(value, keyword string, caseSensitive, exact bool) bool {
	if !caseSensitive {
		value = strings.ToLower(value)
		keyword = strings.ToLower(keyword)
	}
	if exact {
		return value == keyword
	}
	return strings.Contains(value, keyword)
}

// Paginate slices items by offset and limit and reports the total count. A
// zero or negative limit applies DefaultPageSize; limits above MaxPageSize
// are capped. Offsets past the end produce an empty page with the true
// total.
func Paginate[T any](items []T, offset, limit int) ([]T, int) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	limit = pageLimit(limit)
	if offset >= total {
		return []T{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end:end], total
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
