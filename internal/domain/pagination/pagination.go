// Package pagination holds the shared page envelope returned by all listing
// operations.
package pagination

// Params are the normalized page request values.
type Params struct {
	Page  int
	Limit int
}

// Normalize applies defaults and bounds to raw client-supplied values.
func Normalize(page, limit, defaultLimit, maxLimit int) Params {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of results plus navigation metadata.
type Page[T any] struct {
	Data           []T  `json:"data"`
	Page           int  `json:"page"`
	Limit          int  `json:"limit"`
	TotalDocuments int  `json:"totalDocuments"`
	TotalPages     int  `json:"totalPages"`
	HasNextPage    bool `json:"hasNextPage"`
	HasPrevPage    bool `json:"hasPrevPage"`
}

// NewPage assembles the envelope from the fetched rows and the total count.
func NewPage[T any](data []T, params Params, total int) Page[T] {
	totalPages := (total + params.Limit - 1) / params.Limit
	return Page[T]{
		Data:           data,
		Page:           params.Page,
		Limit:          params.Limit,
		TotalDocuments: total,
		TotalPages:     totalPages,
		HasNextPage:    params.Page < totalPages,
		HasPrevPage:    params.Page > 1,
	}
}
