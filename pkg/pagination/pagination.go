package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// FromContext extracts page and pageSize from the query string. Missing or
// malformed values fall back to the defaults; pageSize is clamped to
// [1, MaxPageSize].
func FromContext(c echo.Context) Params {
	return New(c.QueryParam("page"), c.QueryParam("pageSize"))
}

// New parses raw page and pageSize values.
func New(rawPage, rawSize string) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}

	size, err := strconv.Atoi(rawSize)
	switch {
	case err != nil:
		size = DefaultPageSize
	case size < 1:
		size = 1
	case size > MaxPageSize:
		size = MaxPageSize
	}

	return Params{Page: page, PageSize: size}
}

// Offset returns the number of rows to skip. It saturates at math.MaxInt
// for pages too far out to address.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the maximum number of rows on the page.
func (p Params) Limit() int {
	return p.PageSize
}

// Bounds returns the [start, end) bounds of at most limit items following
// offset within a slice of n items. An offset outside [0, n] yields an empty
// range at n.
func Bounds(n, limit, offset int) (start, end int) {
	start = n
	if offset >= 0 && offset < n {
		start = offset
	}
	end = n
	if limit >= 0 && limit < n-start {
		end = start + limit
	}
	return start, end
}

// Response is the list envelope returned by every collection endpoint.
type Response[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// NewResponse builds a list envelope. A nil items slice is rendered as [].
func NewResponse[T any](items []T, p Params, total int) *Response[T] {
	if items == nil {
		items = []T{}
	}
	return &Response[T]{
		Items:    items,
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
	}
}
