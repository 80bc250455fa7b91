// Package source defines the record sources a sitemap is generated from and
// the adapters for SQL Server, SQLite, MongoDB and in-memory data.
package source

import (
	"context"
	"time"
)

// Source is a named, queryable collection of records.
type Source interface {
	Name() string
	// Count returns the number of records matching filter, ignoring filter.Limit.
	Count(ctx context.Context, filter Filter) (int64, error)
	// Fetch returns at most page.Limit records matching filter. When
	// page.OrderBy is set, results are ascending by that field.
	Fetch(ctx context.Context, filter Filter, page Page) ([]Record, error)
}

// Keyed is implemented by sources that declare an orderable primary key.
// An empty PrimaryKey means the source has none.
type Keyed interface {
	PrimaryKey() string
}

// PrimaryKeyOf returns the primary key field of src, or "" when it declares none.
func PrimaryKeyOf(src Source) string {
	if k, ok := src.(Keyed); ok {
		return k.PrimaryKey()
	}
	return ""
}

// Page bounds a single fetch.
type Page struct {
	Limit   int64
	Offset  int64
	OrderBy string
}

// Record is one row or document turned into sitemap material.
type Record struct {
	Key      interface{} // primary key value, nil when the source has none
	Param    string      // canonical URL path segment
	Modified *time.Time
	Fields   map[string]interface{}
}
