package storage

import (
	"fmt"
	"strings"
)

// ActiveFilter selects between active rows and all rows. The zero value
// restricts queries to active rows.
type ActiveFilter struct {
	IncludeInactive bool
}

var (
	// ActiveOnly excludes soft-deleted rows
	ActiveOnly = ActiveFilter{}
	// AllRows includes soft-deleted rows
	AllRows = ActiveFilter{IncludeInactive: true}
)

// Predicate returns the SQL predicate for column, or "" when no restriction applies
func (f ActiveFilter) Predicate(column string) string {
	if f.IncludeInactive {
		return ""
	}
	return column + " IS NULL"
}

// Apply adds the predicate for column to c
func (f ActiveFilter) Apply(c *Conditions, column string) {
	if p := f.Predicate(column); p != "" {
		c.Raw(p)
	}
}

func (f ActiveFilter) String() string {
	if f.IncludeInactive {
		return "all"
	}
	return "active"
}

// Conditions accumulates AND-ed WHERE clauses with numbered placeholders.
// Placeholders are issued in ascending order so they bind identically on
// PostgreSQL and SQLite.
type Conditions struct {
	clauses []string
	args    []interface{}
}

// Arg records value and returns its placeholder
func (c *Conditions) Arg(value interface{}) string {
	c.args = append(c.args, value)
	return fmt.Sprintf("$%d", len(c.args))
}

// Eq adds "column = value"
func (c *Conditions) Eq(column string, value interface{}) {
	c.clauses = append(c.clauses, column+" = "+c.Arg(value))
}

// NotEq adds "column <> value"
func (c *Conditions) NotEq(column string, value interface{}) {
	c.clauses = append(c.clauses, column+" <> "+c.Arg(value))
}

// Like adds a case-insensitive substring match on column
func (c *Conditions) Like(column, substr string) {
	c.clauses = append(c.clauses, "LOWER("+column+") LIKE "+c.Arg("%"+strings.ToLower(substr)+"%"))
}

// In adds "column IN (...)". An empty list matches nothing.
func (c *Conditions) In(column string, values []int64) {
	if len(values) == 0 {
		c.clauses = append(c.clauses, "1 = 0")
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = c.Arg(v)
	}
	c.clauses = append(c.clauses, column+" IN ("+strings.Join(placeholders, ", ")+")")
}

// Raw adds a clause verbatim. Any placeholders in it must come from Arg.
func (c *Conditions) Raw(clause string) {
	c.clauses = append(c.clauses, clause)
}

// Where renders " WHERE a AND b", or "" when empty
func (c *Conditions) Where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// Args returns the accumulated arguments in placeholder order
func (c *Conditions) Args() []interface{} {
	return c.args
}
