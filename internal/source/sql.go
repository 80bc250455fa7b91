package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BartekS5/bigsitemap/pkg/models"
)

// Dialect selects placeholder and paging syntax.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectSQLite    Dialect = "sqlite"
)

// SQLSource reads records from one table.
type SQLSource struct {
	DB      *sql.DB
	Dialect Dialect
	Table   string
	Mapping FieldMapping
	name    string
}

// NewSQLSource validates every identifier up front; values are always bound
// as parameters.
func NewSQLSource(db *sql.DB, dialect Dialect, name, table string, mapping FieldMapping) (*SQLSource, error) {
	if dialect != DialectSQLServer && dialect != DialectSQLite {
		return nil, fmt.Errorf("%w: unknown SQL dialect %q", models.ErrConfiguration, dialect)
	}
	for _, id := range []string{table, mapping.PrimaryKey, mapping.ParamColumn, mapping.LastModColumn} {
		if id == "" {
			continue
		}
		if err := ValidateIdentifier(id); err != nil {
			return nil, err
		}
	}
	if table == "" {
		return nil, fmt.Errorf("%w: source %s has no table", models.ErrConfiguration, name)
	}
	if name == "" {
		name = table
	}
	return &SQLSource{DB: db, Dialect: dialect, Table: table, Mapping: mapping, name: name}, nil
}

func (s *SQLSource) Name() string { return s.name }

func (s *SQLSource) PrimaryKey() string { return s.Mapping.PrimaryKey }

func (s *SQLSource) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args, err := s.where(filter)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.quote(s.Table), where)

	var n int64
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.Table, err)
	}
	return n, nil
}

func (s *SQLSource) Fetch(ctx context.Context, filter Filter, page Page) ([]Record, error) {
	query, args, err := s.selectQuery(filter, page)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Record
	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}
		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		m := make(map[string]interface{}, len(cols))
		for i, colName := range cols {
			val := columns[i]
			if b, ok := val.([]byte); ok {
				m[colName] = string(b)
			} else {
				m[colName] = val
			}
		}

		rec, err := s.Mapping.ToRecord(m)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", s.Table, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Table, err)
	}
	return results, nil
}

func (s *SQLSource) selectQuery(filter Filter, page Page) (string, []interface{}, error) {
	where, args, err := s.where(filter)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s%s", s.quote(s.Table), where)

	if page.OrderBy != "" {
		if err := ValidateIdentifier(page.OrderBy); err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " ORDER BY %s", s.quote(page.OrderBy))
	}

	switch s.Dialect {
	case DialectSQLServer:
		if page.Limit > 0 || page.Offset > 0 {
			if page.OrderBy == "" {
				b.WriteString(" ORDER BY (SELECT NULL)")
			}
			fmt.Fprintf(&b, " OFFSET %s ROWS", s.placeholder(len(args)+1))
			args = append(args, page.Offset)
			if page.Limit > 0 {
				fmt.Fprintf(&b, " FETCH NEXT %s ROWS ONLY", s.placeholder(len(args)+1))
				args = append(args, page.Limit)
			}
		}
	case DialectSQLite:
		if page.Limit > 0 || page.Offset > 0 {
			limit := page.Limit
			if limit <= 0 {
				limit = -1
			}
			fmt.Fprintf(&b, " LIMIT %s OFFSET %s", s.placeholder(len(args)+1), s.placeholder(len(args)+2))
			args = append(args, limit, page.Offset)
		}
	}
	return b.String(), args, nil
}

func (s *SQLSource) where(filter Filter) (string, []interface{}, error) {
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}
	if len(filter.Conditions) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, len(filter.Conditions))
	args := make([]interface{}, len(filter.Conditions))
	for i, c := range filter.Conditions {
		op := string(c.Op)
		if c.Op == OpNe {
			op = "<>"
		}
		clauses[i] = fmt.Sprintf("(%s %s %s)", s.quote(c.Field), op, s.placeholder(i+1))
		args[i] = c.Value
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *SQLSource) placeholder(n int) string {
	if s.Dialect == DialectSQLServer {
		return fmt.Sprintf("@p%d", n)
	}
	return "?"
}

func (s *SQLSource) quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if s.Dialect == DialectSQLServer {
			parts[i] = "[" + p + "]"
		} else {
			parts[i] = `"` + p + `"`
		}
	}
	return strings.Join(parts, ".")
}
