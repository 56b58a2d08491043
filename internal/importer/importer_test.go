package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&DelimitedReader{Name: "csv", Comma: ','})
	rd := r.Get("csv")
	require.NotNil(t, rd)
	assert.Equal(t, "csv", rd.Format())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("CSV"))
	assert.NotNil(t, r.ForFile("ledger.XLSX"))
	assert.NotNil(t, r.ForFile("batch.tsv"))
	assert.Nil(t, r.ForFile("notes.txt"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&XLSXReader{})
	assert.Panics(t, func() { r.Register(&XLSXReader{}) })
}

func TestRegistry_Load(t *testing.T) {
	r := DefaultRegistry()
	tbl, err := r.Load("../../testdata/import_journal.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Voucher", "Date", "Account", "Debit", "Credit", "Narration"}, tbl.Columns)
	assert.Len(t, tbl.Rows, 6)

	_, err = r.Load("../../testdata/missing.csv")
	assert.Error(t, err)

	_, err = r.Load("notes.txt")
	assert.Error(t, err)
}

func TestScan_FindsImportableFiles(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "site.xlsx"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir, "", DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.Equal(t, "csv", files[0].Format)
	assert.Equal(t, "xlsx", files[1].Format)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processedDir := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir, "import", DefaultRegistry())
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_EmptyDir(t *testing.T) {
	files, err := Scan(t.TempDir(), "", DefaultRegistry())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "batches")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "batches", "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Join(importDir, "processed", "bank.csv"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
