package repository

import (
	"net/url"
	"strconv"
	"time"
)

// SortField names a sortable post attribute as it appears in the public API.
type SortField string

const (
	SortTitle         SortField = "title"
	SortContent       SortField = "content"
	SortAuthor        SortField = "author"
	SortCreatedAt     SortField = "created_at"
	SortUpdatedAt     SortField = "updated_at"
	SortAverageRating SortField = "averageRating"
)

var sortColumns = map[SortField]string{
	SortTitle:         "title",
	SortContent:       "content",
	SortAuthor:        "author_id",
	SortCreatedAt:     "created_at",
	SortUpdatedAt:     "updated_at",
	SortAverageRating: "average_rating",
}

// IsSortable reports whether field can be used as ListCriteria.SortBy.
func IsSortable(field string) bool {
	_, ok := sortColumns[SortField(field)]
	return ok
}

// ListCriteria selects one page of posts. Nil filters match everything; all
// set filters must match. CreatedFrom and CreatedTo are inclusive.
type ListCriteria struct {
	AverageRating *float64
	AuthorID      *uint
	CreatedFrom   *time.Time
	CreatedTo     *time.Time

	// SortBy is empty for insertion order.
	SortBy   SortField
	SortDesc bool

	Page  int
	Limit int
}

// Offset returns the number of posts skipped before this page.
func (c ListCriteria) Offset() int {
	if c.Page < 1 {
		return 0
	}
	return (c.Page - 1) * c.Limit
}

// Fingerprint returns a stable string identifying the criteria, used in list cache keys.
func (c ListCriteria) Fingerprint() string {
	v := url.Values{}
	if c.AverageRating != nil {
		v.Set("avg", strconv.FormatFloat(*c.AverageRating, 'g', -1, 64))
	}
	if c.AuthorID != nil {
		v.Set("author", strconv.FormatUint(uint64(*c.AuthorID), 10))
	}
	if c.CreatedFrom != nil {
		v.Set("from", c.CreatedFrom.UTC().Format(time.RFC3339Nano))
	}
	if c.CreatedTo != nil {
		v.Set("to", c.CreatedTo.UTC().Format(time.RFC3339Nano))
	}
	if c.SortBy != "" {
		v.Set("sort", string(c.SortBy))
		v.Set("desc", strconv.FormatBool(c.SortDesc))
	}
	v.Set("page", strconv.Itoa(c.Page))
	v.Set("limit", strconv.Itoa(c.Limit))
	return v.Encode()
}
