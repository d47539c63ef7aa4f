package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is a single ORDER BY term on a logical field.
type SortField struct {
	Field      string
	Descending bool
}

type condition struct {
	clause string
	args   []any
}

// Builder accumulates conditions against a projection and numbers
// placeholders when the statement is built.
type Builder struct {
	projection *ProjectionMap
	conditions []condition
	sort       []SortField
	limit      int
}

// NewBuilder creates a Builder with an optional default ordering.
func NewBuilder(projection *ProjectionMap, sort ...SortField) *Builder {
	return &Builder{
		projection: projection,
		sort:       sort,
	}
}

// WhereEquals adds an equality condition. Nil values (including typed nil pointers) are ignored.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.conditions = append(b.conditions, condition{
		clause: b.projection.Column(field) + " = $%d",
		args:   []any{value},
	})
	return b
}

// WhereIn adds an IN condition. Empty value lists are ignored.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = "$%d"
	}
	b.conditions = append(b.conditions, condition{
		clause: fmt.Sprintf("%s IN (%s)", b.projection.Column(field), strings.Join(placeholders, ", ")),
		args:   values,
	})
	return b
}

// Limit caps the number of rows returned by Build. Zero means unlimited.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build returns the SELECT statement and its positional arguments.
func (b *Builder) Build() (string, []any) {
	where, args := b.buildWhere()

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", b.projection.Columns(), b.projection.From(), where)

	if len(b.sort) > 0 {
		parts := make([]string, len(b.sort))
		for i, s := range b.sort {
			dir := "ASC"
			if s.Descending {
				dir = "DESC"
			}
			parts[i] = b.projection.Column(s.Field) + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}

	return sb.String(), args
}

// BuildSingle returns a SELECT statement for one record by its key field.
func (b *Builder) BuildSingle(keyField string, key any) (string, []any) {
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(keyField),
	), []any{key}
}

func (b *Builder) buildWhere() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(b.conditions))
	var args []any
	param := 1

	for _, cond := range b.conditions {
		clause := cond.clause
		for _, arg := range cond.args {
			clause = strings.Replace(clause, "$%d", fmt.Sprintf("$%d", param), 1)
			args = append(args, arg)
			param++
		}
		clauses = append(clauses, clause)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
