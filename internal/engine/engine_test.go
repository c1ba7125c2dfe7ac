package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func sampleRecords() []schema.TrainingRecord {
	return []schema.TrainingRecord{
		{Subject: "alice", Department: "Lab", LastScore: 8, LastEvaluatedAt: t0, RemainingDays: 365},
		{Subject: "bob", Department: "QA", LastScore: 3, LastEvaluatedAt: t0.Add(48 * time.Hour), RemainingDays: 12},
	}
}

type failingStore struct {
	MemStore
}

func (f *failingStore) SaveAll([]schema.TrainingRecord) error {
	return fmt.Errorf("%w: disk full", ErrStoreUnavailable)
}

func TestMemStore_SaveLoad(t *testing.T) {
	ms := NewMemStore(nil, nil)
	require.NoError(t, ms.SaveAll(sampleRecords()))

	got, err := ms.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Subject)
	assert.Equal(t, schema.StatusNormal, got[0].Status)
	assert.Equal(t, schema.StatusWarning, got[1].Status)

	rec, err := ms.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 12, rec.RemainingDays)

	_, err = ms.Get("carol")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, []string{"alice", "bob"}, ms.Subjects())
}

func TestMemStore_LoadAllReturnsCopy(t *testing.T) {
	ms := NewMemStore(sampleRecords(), nil)
	got, _ := ms.LoadAll()
	got[0].RemainingDays = 0

	again, _ := ms.LoadAll()
	assert.Equal(t, 365, again[0].RemainingDays)
}

func TestMemStore_RejectsDuplicates(t *testing.T) {
	ms := NewMemStore(nil, nil)
	recs := sampleRecords()
	recs[1].Subject = "alice"
	assert.Error(t, ms.SaveAll(recs))
	assert.Error(t, ms.SaveAll([]schema.TrainingRecord{{Subject: ""}}))
}

func TestMemStore_WriteThroughFailureKeepsState(t *testing.T) {
	ms := NewMemStore(sampleRecords(), &failingStore{})
	err := ms.SaveAll(nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, []string{"alice", "bob"}, ms.Subjects())
}

func TestMemStore_LoadAllRereadsBacking(t *testing.T) {
	backing := NewMemStore(sampleRecords(), nil)
	ms := NewMemStore(sampleRecords(), backing)

	// edited behind the front store's back
	require.NoError(t, backing.SaveAll(sampleRecords()[:1]))

	got, err := ms.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"alice"}, ms.Subjects())
}

func TestMemStore_Concurrent(t *testing.T) {
	ms := NewMemStore(nil, nil)
	const numGoroutines = 10
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			recs := []schema.TrainingRecord{{Subject: fmt.Sprintf("s-%d", id), RemainingDays: id}}
			assert.NoError(t, ms.SaveAll(recs))
			_, err := ms.LoadAll()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, _ := ms.LoadAll()
	assert.Len(t, got, 1)
}

func TestWorkbookStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	ws, err := NewWorkbookStore(path)
	require.NoError(t, err)

	got, err := ws.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, ws.SaveAll(sampleRecords()))
	_, err = os.Stat(path)
	require.NoError(t, err)

	got, err = ws.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, sampleRecords()[0].LastEvaluatedAt.Equal(got[0].LastEvaluatedAt))
	assert.Equal(t, "QA", got[1].Department)
	assert.Equal(t, schema.StatusWarning, got[1].Status)

	// no temporary workbooks left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

var recordHeader = []any{"name", "department", "score", "time", "valid_days", "status"}

func TestWorkbookStore_StatusColumnIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	writeWorkbook(t, path, [][]any{
		recordHeader,
		{"alice", "Lab", 10, "2024-03-01 09:30:00", 5, "Normal"},
		{},
	})

	ws, err := NewWorkbookStore(path)
	require.NoError(t, err)
	ws.Location = time.UTC
	got, err := ws.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, schema.StatusWarning, got[0].Status)
	assert.True(t, t0.Equal(got[0].LastEvaluatedAt))
}

func TestWorkbookStore_LegacyCellForms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	writeWorkbook(t, path, [][]any{
		recordHeader,
		{"alice", "Lab", "8.0", "2024-03-01 09:30:00.250000", "365.0", "Normal"},
		{"bob", "QA", 7.0, t0, 20.0, "Warning"},
		{"carol", "QA", 9, "2024-03-01", 100, ""},
	})

	ws, err := NewWorkbookStore(path)
	require.NoError(t, err)
	ws.Location = time.UTC
	got, err := ws.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 8, got[0].LastScore)
	assert.Equal(t, 365, got[0].RemainingDays)
	assert.True(t, t0.Add(250*time.Millisecond).Equal(got[0].LastEvaluatedAt))

	assert.Equal(t, 7, got[1].LastScore)
	assert.Equal(t, 20, got[1].RemainingDays)
	assert.True(t, t0.Equal(got[1].LastEvaluatedAt), "date cell read as %s", got[1].LastEvaluatedAt)

	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(got[2].LastEvaluatedAt))
}

func TestWorkbookStore_UnreadableRowFailsLoad(t *testing.T) {
	for name, row := range map[string][]any{
		"empty name":     {"", "Lab", 10, "2024-03-01 09:30:00", 5},
		"text score":     {"bob", "Lab", "ten", "2024-03-01 09:30:00", 5},
		"blank score":    {"bob", "Lab", "", "2024-03-01 09:30:00", 5},
		"fractional day": {"bob", "Lab", 10, "2024-03-01 09:30:00", 5.5},
		"bad time":       {"bob", "Lab", 10, "yesterday", 5},
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "records.xlsx")
			writeWorkbook(t, path, [][]any{
				recordHeader,
				{"alice", "Lab", 10, "2024-03-01 09:30:00", 5},
				row,
			})
			ws, err := NewWorkbookStore(path)
			require.NoError(t, err)
			_, err = ws.LoadAll()
			assert.ErrorIs(t, err, ErrStoreUnavailable)
		})
	}
}

func TestWorkbookStore_WallClockInLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	ws, err := NewWorkbookStore(path)
	require.NoError(t, err)
	ws.Location = time.FixedZone("CST", 8*3600)
	require.NoError(t, ws.SaveAll(sampleRecords()[:1]))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	cell, err := f.GetCellValue("Sheet1", "D2")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "2024-03-01 17:30:00", cell)

	got, err := ws.LoadAll()
	require.NoError(t, err)
	assert.True(t, t0.Equal(got[0].LastEvaluatedAt))
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	got, err := ss.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, ss.SaveAll(sampleRecords()))
	got, err = ss.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Subject)
	assert.True(t, sampleRecords()[1].LastEvaluatedAt.Equal(got[1].LastEvaluatedAt))

	// replacing the set drops absent subjects
	require.NoError(t, ss.SaveAll(sampleRecords()[1:]))
	got, err = ss.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Subject)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, typ := range []string{TypeMemory, TypeXLSX, TypeSQLite} {
		t.Run(typ, func(t *testing.T) {
			st, err := Open(Conf{Type: typ, Path: filepath.Join(dir, "sub", "records."+typ)})
			require.NoError(t, err)
			require.NoError(t, st.SaveAll(sampleRecords()))
			require.NoError(t, st.Close())
		})
	}

	st, err := Open(Conf{Type: TypeSQLite, Path: filepath.Join(dir, "sub", "records.sqlite")})
	require.NoError(t, err)
	defer st.Close()
	got, err := st.LoadAll()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = Open(Conf{Type: "csv"})
	assert.Error(t, err)
}

func TestOpen_RereadsFileOnEveryLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	st, err := Open(Conf{Type: TypeXLSX, Path: path})
	require.NoError(t, err)
	defer st.Close()

	recs := sampleRecords()
	recs[1].Subject = "leaver"
	require.NoError(t, st.SaveAll(recs))

	// an admin removes leaver from the workbook
	direct, err := NewWorkbookStore(path)
	require.NoError(t, err)
	require.NoError(t, direct.SaveAll(recs[:1]))

	got, err := st.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	got = append(got, schema.TrainingRecord{Subject: "bob", LastEvaluatedAt: t0, RemainingDays: 365})
	require.NoError(t, st.SaveAll(got))

	onDisk, err := direct.LoadAll()
	require.NoError(t, err)
	var subjects []string
	for _, r := range onDisk {
		subjects = append(subjects, r.Subject)
	}
	assert.Equal(t, []string{"alice", "bob"}, subjects)
}

func TestOpen_UnreadableWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	writeWorkbook(t, path, [][]any{recordHeader, {"alice", "Lab", "n/a", "2024-03-01 09:30:00", 5}})
	_, err := Open(Conf{Type: TypeXLSX, Path: path})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMigrate(t *testing.T) {
	src := NewMemStore(sampleRecords(), nil)
	dst := NewMemStore([]schema.TrainingRecord{
		{Subject: "bob", RemainingDays: 300, LastEvaluatedAt: t0},
		{Subject: "carol", RemainingDays: 100, LastEvaluatedAt: t0},
	}, nil)

	require.NoError(t, Migrate(src, dst))

	got, _ := dst.LoadAll()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"bob", "carol", "alice"}, dst.Subjects())
	bob, err := dst.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 12, bob.RemainingDays)
}

func TestMigrate_DestinationFailure(t *testing.T) {
	err := Migrate(NewMemStore(sampleRecords(), nil), &failingStore{})
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestFind(t *testing.T) {
	rec, err := Find(sampleRecords(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "QA", rec.Department)
	_, err = Find(nil, "bob")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
