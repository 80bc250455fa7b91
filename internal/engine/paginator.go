package engine

import (
	"context"
	"fmt"
	"iter"

	"github.com/BartekS5/bigsitemap/internal/source"
	"github.com/BartekS5/bigsitemap/pkg/logger"
	"github.com/BartekS5/bigsitemap/pkg/models"
	"github.com/BartekS5/bigsitemap/pkg/utils"
)

// Cursor is the pagination state of one source during one run.
type Cursor struct {
	LastKey interface{}
	Offset  int64 // only meaningful while there is no watermark
	Emitted int64
}

// HasWatermark reports whether key-based paging can be used.
func (c *Cursor) HasWatermark() bool {
	return c.LastKey != nil
}

// advance records that the consumer took a record with key.
func (c *Cursor) advance(key interface{}) {
	if key != nil {
		c.LastKey = key
	}
	c.Emitted++
}

// Paginator walks a source batch by batch following a Plan. Until a watermark
// exists it pages by offset; afterwards every fetch is "key > watermark" with
// no offset, so cost does not grow with the number of records already read.
type Paginator struct {
	src    source.Source
	key    string
	filter source.Filter
	plan   *Plan
	cursor *Cursor
}

// NewPaginator builds a paginator over filter. cursor is owned by the
// paginator for the rest of the run.
func NewPaginator(src source.Source, filter source.Filter, plan *Plan, cursor *Cursor) *Paginator {
	if cursor == nil {
		cursor = &Cursor{}
	}
	return &Paginator{
		src:    src,
		key:    source.PrimaryKeyOf(src),
		filter: filter,
		plan:   plan,
		cursor: cursor,
	}
}

func (p *Paginator) Cursor() *Cursor {
	return p.cursor
}

// File yields the records of every batch owned by f, in batch order. The
// cursor advances after each record has been handed to the consumer. A fetch
// error is yielded once and ends the sequence; nothing of that batch is yielded.
func (p *Paginator) File(ctx context.Context, f FileRange) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		for batch := f.FirstBatch; batch <= f.LastBatch; batch++ {
			remaining := p.plan.TotalCount - p.cursor.Emitted
			if p.filter.Limit > 0 && remaining <= 0 {
				return
			}

			filter, page := p.nextQuery(batch)
			if page.Limit <= 0 {
				return
			}

			records, err := p.src.Fetch(ctx, filter, page)
			if err != nil {
				yield(source.Record{}, p.batchError(f, batch, fmt.Errorf("%w: %w", models.ErrAdapter, err)))
				return
			}
			logger.Debugf("%s: file %d batch %d fetched %d records (filter %s, offset %d, limit %d)",
				p.src.Name(), f.Index, batch, len(records), filter, page.Offset, page.Limit)

			if len(records) == 0 {
				return
			}
			for _, rec := range records {
				if p.key == "" {
					rec.Key = nil
				}
				if err := p.checkKey(rec.Key); err != nil {
					yield(source.Record{}, p.batchError(f, batch, fmt.Errorf("%w: %w", models.ErrAdapter, err)))
					return
				}
				if !yield(rec, nil) {
					return
				}
				p.cursor.advance(rec.Key)
			}
		}
	}
}

// nextQuery returns the filter and page for batch. With a watermark the
// offset is dropped in favour of a key condition.
func (p *Paginator) nextQuery(batch int64) (source.Filter, source.Page) {
	size := p.plan.BatchSize
	page := source.Page{OrderBy: p.key}

	if p.key != "" && p.cursor.HasWatermark() {
		page.Limit = size
		if p.filter.Limit > 0 {
			page.Limit = min(size, p.plan.TotalCount-p.cursor.Emitted)
		}
		return p.filter.And(source.Condition{Field: p.key, Op: source.OpGt, Value: p.cursor.LastKey}), page
	}

	offset := (batch - 1) * size
	p.cursor.Offset = offset
	page.Offset = offset
	page.Limit = min(size, p.plan.TotalCount-offset)
	return p.filter, page
}

// checkKey rejects keys that do not move the watermark forward before the
// record is handed out.
func (p *Paginator) checkKey(key interface{}) error {
	if p.key == "" {
		return nil
	}
	if key == nil {
		return fmt.Errorf("record without primary key %s", p.key)
	}
	if p.cursor.LastKey == nil {
		return nil
	}
	order, err := utils.CompareKeys(key, p.cursor.LastKey)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrKeyOrder, err)
	}
	if order <= 0 {
		return fmt.Errorf("%w: %v after %v", models.ErrKeyOrder, key, p.cursor.LastKey)
	}
	return nil
}

func (p *Paginator) batchError(f FileRange, batch int64, err error) error {
	return &models.BatchError{Source: p.src.Name(), File: f.Index, Batch: batch, Err: err}
}
