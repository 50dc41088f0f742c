package repository

import (
	"fmt"
	"strings"
)

// updateBuilder assembles a single UPDATE statement out of the non-nil
// fields of a domain update struct. $1 is always the row ID.
type updateBuilder struct {
	table string
	sets  []string
	args  []any
}

func newUpdateBuilder(table, id string) *updateBuilder {
	return &updateBuilder{table: table, args: []any{id}}
}

// set adds a column assignment when the value is present.
func (b *updateBuilder) set(column string, v *string) {
	if v == nil {
		return
	}
	b.setRaw(column, *v)
}

// setRaw adds a column assignment unconditionally.
func (b *updateBuilder) setRaw(column string, v any) {
	b.args = append(b.args, v)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// appendHistory appends a serialized history entry to the change_history
// array within the same statement, keeping the audit trail atomic with the
// field updates.
func (b *updateBuilder) appendHistory(entry []byte) {
	b.args = append(b.args, entry)
	b.sets = append(b.sets, fmt.Sprintf("change_history = change_history || $%d::jsonb", len(b.args)))
}

// build renders the statement with a RETURNING clause over the given
// columns.
func (b *updateBuilder) build(returning string) (string, []any) {
	sets := append(b.sets, "updated_at = now()")
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 RETURNING %s",
		b.table, strings.Join(sets, ", "), returning)
	return sql, b.args
}
