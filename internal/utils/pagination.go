package utils

import (
	"strconv" // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

// Page holds parsed pagination parameters
type Page struct {
	Page     int // Current page, 1 based
	PageSize int // Items per page
}

// Offset is the number of rows to skip
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns the page count for total rows
func (p Page) TotalPages(total int64) int {
	return (int(total) + p.PageSize - 1) / p.PageSize
}

// ParsePage reads page and page_size from the query string, defaulting to 1 and 20 with a cap of 100
func ParsePage(c *gin.Context) Page {
	p := Page{Page: 1, PageSize: 20}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= 100 {
		p.PageSize = v
	}
	return p
}

// Paginated builds the standard list response under key
func Paginated(key string, items any, p Page, total int64) gin.H {
	return gin.H{
		key:           items,
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total":       total,
		"total_pages": p.TotalPages(total),
	}
}
