package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BartekS5/bigsitemap/pkg/models"
)

// Op is a comparison operator of a Condition.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

var validOps = map[Op]bool{OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Condition is a single typed predicate: Field Op Value.
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Filter is a conjunction of conditions plus an optional result limit.
// Filters are values; And never modifies the receiver.
type Filter struct {
	Conditions []Condition
	Limit      int64
}

// And returns a filter holding the receiver's conditions followed by conds.
func (f Filter) And(conds ...Condition) Filter {
	out := Filter{Limit: f.Limit}
	out.Conditions = make([]Condition, 0, len(f.Conditions)+len(conds))
	out.Conditions = append(out.Conditions, f.Conditions...)
	out.Conditions = append(out.Conditions, conds...)
	return out
}

func (f Filter) String() string {
	if len(f.Conditions) == 0 {
		return "<all>"
	}
	parts := make([]string, len(f.Conditions))
	for i, c := range f.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Validate checks operators and field names so adapters can render them safely.
func (f Filter) Validate() error {
	for _, c := range f.Conditions {
		if !validOps[c.Op] {
			return fmt.Errorf("%w: unsupported operator %q on %s", models.ErrConfiguration, c.Op, c.Field)
		}
		if err := ValidateIdentifier(c.Field); err != nil {
			return err
		}
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", models.ErrConfiguration, f.Limit)
	}
	return nil
}

// ValidateIdentifier rejects anything but plain (optionally dotted) names.
func ValidateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid field name %q", models.ErrConfiguration, name)
	}
	return nil
}

// ParseOp converts a configured operator string.
func ParseOp(s string) (Op, error) {
	op := Op(strings.TrimSpace(s))
	if op == "==" {
		op = OpEq
	}
	if op == "<>" {
		op = OpNe
	}
	if !validOps[op] {
		return "", fmt.Errorf("%w: unsupported operator %q", models.ErrConfiguration, s)
	}
	return op, nil
}
