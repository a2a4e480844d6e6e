package pagination

import "net/http"

type Limits struct {
	Default int
	Max     int
}

// ParseRequest reads the pageSize and nextToken query parameters.
func (l Limits) ParseRequest(r *http.Request) (Request, error) {
	q := r.URL.Query()

	limit, err := ParsePageSize(q.Get("pageSize"), l.Default, l.Max)
	if err != nil {
		return Request{}, err
	}

	after, err := Decode(q.Get("nextToken"))
	if err != nil {
		return Request{}, err
	}

	return Request{Limit: limit, After: after}, nil
}
