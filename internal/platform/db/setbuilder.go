package db

import (
	"fmt"
	"strings"
	"time"
)

// SetBuilder assembles the SET list of an UPDATE statement. Column names are
// expected to be compile-time constants; values are always bound as
// positional parameters.
type SetBuilder struct {
	sets []string
	args []any
}

// NewSetBuilder starts a builder whose first parameters are the given key
// values, so the WHERE clause can refer to them as $1, $2, ...
func NewSetBuilder(keys ...any) *SetBuilder {
	return &SetBuilder{args: append([]any(nil), keys...)}
}

// Set adds "column = $n".
func (b *SetBuilder) Set(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// Touch stamps column with now, or with one microsecond past its stored value
// if that is later, so the column strictly increases on every update.
func (b *SetBuilder) Touch(column string, now time.Time) {
	b.args = append(b.args, now)
	b.sets = append(b.sets, fmt.Sprintf("%s = GREATEST($%d, %s + INTERVAL '1 microsecond')", column, len(b.args), column))
}

// Len returns the number of assignments.
func (b *SetBuilder) Len() int {
	return len(b.sets)
}

// SQL returns the comma separated assignments.
func (b *SetBuilder) SQL() string {
	return strings.Join(b.sets, ", ")
}

// Args returns the key values followed by the assigned values.
func (b *SetBuilder) Args() []any {
	return b.args
}

// NextAfter returns the timestamp an update at now assigns to a column whose
// stored value is prev. It mirrors Touch for stores that are not SQL backed.
func NextAfter(prev, now time.Time) time.Time {
	floor := prev.Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}
