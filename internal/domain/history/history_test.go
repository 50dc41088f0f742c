package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_OnlyChangedFields(t *testing.T) {
	var d Diff
	d.Compare("name", "CocaCola", "CocaCola")
	d.Compare("stock", "10", "7")
	d.Compare("priceSell", "100.00", "110.00")

	entry, ok := d.Entry("seller@distriplus.com")
	require.True(t, ok)
	require.Len(t, entry.Changes, 2)
	assert.Equal(t, FieldChange{Field: "stock", Before: "10", After: "7"}, entry.Changes[0])
	assert.Equal(t, FieldChange{Field: "priceSell", Before: "100.00", After: "110.00"}, entry.Changes[1])
	assert.Equal(t, "seller@distriplus.com", entry.User)
	assert.WithinDuration(t, time.Now().UTC(), entry.Date, time.Minute)
}

func TestDiff_NothingChanged(t *testing.T) {
	var d Diff
	d.Compare("name", "same", "same")

	assert.True(t, d.Empty())
	_, ok := d.Entry("someone")
	assert.False(t, ok)
}

func TestDiff_RecordAlwaysAppends(t *testing.T) {
	var d Diff
	d.Record("items", "2 items", "2 items")

	require.False(t, d.Empty())
	entry, ok := d.Entry("someone")
	require.True(t, ok)
	assert.Equal(t, "items", entry.Changes[0].Field)
}

func TestCreation(t *testing.T) {
	entry := Creation("admin@distriplus.com")
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "create", entry.Changes[0].Field)
}
