package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

// Key is the last evaluated key of a range query. Values are opaque to the
// codec; each store decides which attributes it needs to resume a scan.
type Key map[string]string

func Encode(key Key) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. An empty cursor yields a nil key, meaning start
// from the beginning.
func Decode(cursor string) (Key, error) {
	if cursor == "" {
		return nil, nil
	}
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, domain.InvalidInput("malformed nextToken")
	}
	var key Key
	if err := json.Unmarshal(data, &key); err != nil || len(key) == 0 {
		return nil, domain.InvalidInput("malformed nextToken")
	}
	return key, nil
}

func ParsePageSize(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.InvalidInput("pageSize must be a positive integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

type Request struct {
	Limit int
	After Key
}

type Page[T any] struct {
	Items      []T     `json:"items"`
	TotalCount int     `json:"totalCount"`
	NextToken  *string `json:"nextToken"`
}

// NewPage builds the list response. TotalCount is the number of items in
// this page.
func NewPage[T any](items []T, next Key) (Page[T], error) {
	if items == nil {
		items = []T{}
	}
	page := Page[T]{Items: items, TotalCount: len(items)}
	if len(next) > 0 {
		token, err := Encode(next)
		if err != nil {
			return Page[T]{}, err
		}
		page.NextToken = &token
	}
	return page, nil
}

// Slice pages an in-memory slice. The cursor stores the offset of the next
// element.
func Slice[T any](all []T, req Request) ([]T, Key, error) {
	start := 0
	if req.After != nil {
		n, err := strconv.Atoi(req.After["offset"])
		if err != nil || n < 0 {
			return nil, nil, domain.InvalidInput("malformed nextToken")
		}
		start = n
	}
	if start >= len(all) {
		return []T{}, nil, nil
	}
	end := start + req.Limit
	if end >= len(all) {
		return all[start:], nil, nil
	}
	return all[start:end], Key{"offset": strconv.Itoa(end)}, nil
}
