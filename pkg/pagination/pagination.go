// Package pagination provides pagination utilities.
package pagination

// Defaults and limits.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Pagination holds normalized page parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// Normalize clamps raw page parameters into valid ranges.
func Normalize(page, perPage int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset returns the SQL offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the SQL limit for the current page.
func (p Pagination) Limit() int {
	return p.PerPage
}

// TotalPages computes the page count for a total row count.
func (p Pagination) TotalPages(total int64) int {
	if total == 0 {
		return 0
	}
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		pages++
	}
	return pages
}
