package roster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeRoster(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.xlsx")
	f := excelize.NewFile()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoad(t *testing.T) {
	path := writeRoster(t, [][]any{
		{"Department", "Name", "Email"},
		{"Lab", "Alice", "alice@example.com"},
		{"QA", "Bob"},
		{"QA", "Alice", "other@example.com"},
		{"QA", ""},
	})
	r, err := Load(path)
	require.NoError(t, err)

	users := r.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "Alice (Lab)", users[0].Label())

	m, ok := r.Lookup("Bob")
	require.True(t, ok)
	assert.Equal(t, "QA", m.Department)
	assert.Empty(t, m.Email)

	_, ok = r.Lookup("bob")
	assert.False(t, ok)

	assert.Equal(t, []string{"alice@example.com"}, r.Emails([]string{"Bob", "Alice", "Carol"}))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.xlsx"))
	assert.ErrorIs(t, err, ErrRosterMissing)
}

func TestLoadWithoutNameColumn(t *testing.T) {
	path := writeRoster(t, [][]any{{"Department", "Email"}, {"Lab", "x@example.com"}})
	_, err := Load(path)
	assert.Error(t, err)
}
