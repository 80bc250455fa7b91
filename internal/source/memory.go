package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BartekS5/bigsitemap/pkg/utils"
)

// MemorySource serves records held in memory. It is used for tests and for
// callers that already have their records loaded.
type MemorySource struct {
	mu      sync.RWMutex
	name    string
	key     string
	records []Record

	// FetchHook, when set, runs before every Fetch and may fail it.
	FetchHook func(filter Filter, page Page) error
	// Fetches counts Fetch calls.
	Fetches int
}

// NewMemorySource copies records. With a primary key they are kept sorted by
// key and each record's Fields[key] mirrors Record.Key.
func NewMemorySource(name, primaryKey string, records ...Record) *MemorySource {
	m := &MemorySource{name: name, key: primaryKey}
	m.Insert(records...)
	return m
}

func (m *MemorySource) Name() string { return m.name }

func (m *MemorySource) PrimaryKey() string { return m.key }

// Insert adds records, keeping key order.
func (m *MemorySource) Insert(records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.Fields == nil {
			r.Fields = map[string]interface{}{}
		}
		if m.key != "" {
			r.Fields[m.key] = r.Key
		}
		m.records = append(m.records, r)
	}
	if m.key != "" {
		sort.SliceStable(m.records, func(i, j int) bool {
			c, _ := utils.CompareKeys(m.records[i].Key, m.records[j].Key)
			return c < 0
		})
	}
}

func (m *MemorySource) Count(ctx context.Context, filter Filter) (int64, error) {
	matched, err := m.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (m *MemorySource) Fetch(ctx context.Context, filter Filter, page Page) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.Fetches++
	hook := m.FetchHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(filter, page); err != nil {
			return nil, err
		}
	}

	matched, err := m.match(filter)
	if err != nil {
		return nil, err
	}
	if page.OrderBy != "" && page.OrderBy != m.key {
		return nil, fmt.Errorf("memory source %s cannot order by %s", m.name, page.OrderBy)
	}

	if page.Offset >= int64(len(matched)) {
		return nil, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && page.Limit < int64(len(matched)) {
		matched = matched[:page.Limit]
	}
	out := make([]Record, len(matched))
	copy(out, matched)
	return out, nil
}

func (m *MemorySource) match(filter Filter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		ok, err := matches(r, filter.Conditions)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func matches(r Record, conds []Condition) (bool, error) {
	for _, c := range conds {
		v, ok := r.Fields[c.Field]
		if !ok {
			return false, nil
		}
		cmp, err := utils.CompareKeys(v, c.Value)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", c, err)
		}
		var pass bool
		switch c.Op {
		case OpEq:
			pass = cmp == 0
		case OpNe:
			pass = cmp != 0
		case OpGt:
			pass = cmp > 0
		case OpGte:
			pass = cmp >= 0
		case OpLt:
			pass = cmp < 0
		case OpLte:
			pass = cmp <= 0
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}
