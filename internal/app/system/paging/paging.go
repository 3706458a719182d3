// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit is the page size when the request names none.
const DefaultLimit = 20

// MaxLimit caps the page size a client may ask for.
const MaxLimit = 100

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// Default is the first page at DefaultLimit.
var Default = Page{Number: 1, Limit: DefaultLimit}

// Parse reads ?page= and ?limit= from r. Missing or invalid values fall
// back to page 1 and DefaultLimit; limit is clamped to MaxLimit.
func Parse(r *http.Request) Page {
	return New(atoi(query.Get(r, "page")), atoi(query.Get(r, "limit")))
}

// New builds a Page, applying the same defaults and clamping as Parse.
func New(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Number: number, Limit: limit}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Skip is the number of documents before this page.
func (p Page) Skip() int64 {
	return int64((p.Number - 1) * p.Limit)
}

// FindOptions returns skip/limit/sort options for this page. sort may be
// nil.
func (p Page) FindOptions(sort bson.D) *options.FindOptions {
	opts := options.Find().SetSkip(p.Skip()).SetLimit(int64(p.Limit))
	if sort != nil {
		opts.SetSort(sort)
	}
	return opts
}

// Meta describes a page of results for API responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
}

// NewMeta computes the response metadata for p given the total count.
func NewMeta(p Page, total int64) Meta {
	pages := int64(0)
	if total > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Meta{
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    int64(p.Number) < pages,
	}
}

// Result is a page of items with its metadata.
type Result[T any] struct {
	Items []T  `json:"items"`
	Meta  Meta `json:"meta"`
}

// NewResult wraps items, replacing a nil slice with an empty one so the
// JSON is [] rather than null.
func NewResult[T any](items []T, p Page, total int64) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Meta: NewMeta(p, total)}
}
