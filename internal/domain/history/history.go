// Package history models append-only audit trails: every mutation of a
// client, product, or order records who changed what, and when.
package history

import "time"

// FieldChange documents a single field transition inside an Entry.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Entry is one immutable audit record. Entries are only ever appended to an
// entity's history, never rewritten or removed.
type Entry struct {
	Date    time.Time     `json:"date"`
	User    string        `json:"user"`
	Changes []FieldChange `json:"changes"`
}

// NewEntry builds an audit entry stamped with the current time.
func NewEntry(user string, changes ...FieldChange) Entry {
	return Entry{
		Date:    time.Now().UTC(),
		User:    user,
		Changes: changes,
	}
}

// Creation returns the conventional entry recorded when an entity is created.
func Creation(user string) Entry {
	return NewEntry(user, FieldChange{Field: "create", Before: "", After: "created"})
}

// Diff accumulates field-level comparisons between explicit before/after
// values. Callers decide which fields to compare and in what order; Diff
// never introspects arbitrary structures.
type Diff struct {
	changes []FieldChange
}

// Compare records a change when before and after differ.
func (d *Diff) Compare(field, before, after string) {
	if before == after {
		return
	}
	d.changes = append(d.changes, FieldChange{Field: field, Before: before, After: after})
}

// Record unconditionally appends a change, used for fields whose before and
// after views are not directly comparable as strings (e.g. item lists).
func (d *Diff) Record(field, before, after string) {
	d.changes = append(d.changes, FieldChange{Field: field, Before: before, After: after})
}

// Empty reports whether no comparison produced a change.
func (d *Diff) Empty() bool {
	return len(d.changes) == 0
}

// Entry packages the accumulated changes into an audit entry for the given
// actor, or returns false when nothing changed.
func (d *Diff) Entry(user string) (Entry, bool) {
	if len(d.changes) == 0 {
		return Entry{}, false
	}
	return NewEntry(user, d.changes...), true
}
