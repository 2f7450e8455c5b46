package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int.
	MaxPage = math.MaxInt / MaxLimit
)

// ListQuery holds the raw listing query parameters.
type ListQuery struct {
	Page                  string
	Limit                 string
	SortBy                string
	SortOrder             string
	FilterByAverageRating string
	FilterByAuthor        string
	FilterByDate          string
}

// ParseListQuery validates q and converts it into repository criteria.
func ParseListQuery(q ListQuery) (repository.ListCriteria, error) {
	var c repository.ListCriteria

	page, err := parsePositive(q.Page, DefaultPage, "page")
	if err != nil {
		return c, err
	}
	limit, err := parsePositive(q.Limit, DefaultLimit, "limit")
	if err != nil {
		return c, err
	}
	if page > MaxPage {
		return c, models.NewValidationError("page is too large")
	}
	c.Page = page
	c.Limit = min(limit, MaxLimit)

	if q.SortBy != "" {
		if !repository.IsSortable(q.SortBy) {
			return c, models.NewValidationError("Invalid sortBy field: " + q.SortBy)
		}
		c.SortBy = repository.SortField(q.SortBy)
	}
	switch strings.ToLower(strings.TrimSpace(q.SortOrder)) {
	case "", "asc":
	case "desc":
		c.SortDesc = true
	default:
		return c, models.NewValidationError("sortOrder must be asc or desc")
	}

	if raw := strings.TrimSpace(q.FilterByAverageRating); raw != "" {
		avg, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(avg) || math.IsInf(avg, 0) {
			return c, models.NewValidationError("filterByAverageRating must be a number")
		}
		c.AverageRating = &avg
	}

	if raw := strings.TrimSpace(q.FilterByAuthor); raw != "" {
		author, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || author == 0 {
			return c, models.NewValidationError("filterByAuthor must be a user id")
		}
		id := uint(author)
		c.AuthorID = &id
	}

	if raw := strings.TrimSpace(q.FilterByDate); raw != "" {
		from, to, err := parseDateRange(raw)
		if err != nil {
			return c, err
		}
		c.CreatedFrom, c.CreatedTo = from, to
	}

	return c, nil
}

func parsePositive(raw string, fallback int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, models.NewValidationError(name + " must be a positive integer")
	}
	return n, nil
}

// parseDateRange parses "start,end". Either side may be empty for an open range.
func parseDateRange(raw string) (*time.Time, *time.Time, error) {
	startRaw, endRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, nil, models.NewValidationError("filterByDate must be start,end")
	}
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" && endRaw == "" {
		return nil, nil, models.NewValidationError("filterByDate needs a start or an end")
	}

	var from, to *time.Time
	if startRaw != "" {
		t, err := parseDate(startRaw, false)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if endRaw != "" {
		t, err := parseDate(endRaw, true)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, models.NewValidationError("filterByDate start is after end")
	}
	return from, to, nil
}

// parseDate accepts YYYY-MM-DD or RFC3339. A bare end date covers the whole day.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			return day.Add(24*time.Hour - time.Nanosecond), nil
		}
		return day, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, models.NewValidationError("Invalid date in filterByDate: " + raw)
}
