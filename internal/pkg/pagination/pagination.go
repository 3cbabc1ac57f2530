package pagination

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Request is a normalized page request.
type Request struct {
	Page  int
	Limit int
}

// Meta is the pagination block returned next to every listing.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// New normalizes page and limit: values below 1 fall back to the defaults and
// limit is capped at MaxLimit.
func New(page, limit int) Request {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Request{Page: page, Limit: limit}
}

// Offset is the number of rows to skip.
func (r Request) Offset() int {
	return (r.Page - 1) * r.Limit
}

// Meta builds the response block for total matching rows.
func (r Request) Meta(total int64) Meta {
	pages := 0
	if r.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(r.Limit)))
	}
	return Meta{
		Page:  r.Page,
		Limit: r.Limit,
		Total: total,
		Pages: pages,
	}
}
