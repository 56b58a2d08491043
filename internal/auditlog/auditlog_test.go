package auditlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		UserID:    "u-42",
		CompanyID: "acme",
		Action:    "voucher.post",
		Entity:    "voucher",
		EntityID:  "JV-2025-0001",
		Before:    `{"status":"DRAFT"}`,
		After:     `{"status":"POSTED"}`,
	}
}

func logPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "logs", "audit-log.csv")
}

func TestAppend_NewFile(t *testing.T) {
	path := logPath(t)
	err := Append(path, []Entry{testEntry()})
	require.NoError(t, err)

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "voucher.post", entries[0].Action)
}

func TestAppend_ExistingFile(t *testing.T) {
	path := logPath(t)
	require.NoError(t, Append(path, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Action = "voucher.reverse"
	require.NoError(t, Append(path, []Entry{e2}))

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "voucher.post", entries[0].Action)
	assert.Equal(t, "voucher.reverse", entries[1].Action)
}

func TestRead_RoundTrip(t *testing.T) {
	path := logPath(t)
	original := testEntry()
	require.NoError(t, Append(path, []Entry{original}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, original.UserID, got.UserID)
	assert.Equal(t, original.CompanyID, got.CompanyID)
	assert.Equal(t, original.Entity, got.Entity)
	assert.Equal(t, original.EntityID, got.EntityID)
	assert.JSONEq(t, original.Before, got.Before)
	assert.JSONEq(t, original.After, got.After)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(logPath(t))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_EmptyFile(t *testing.T) {
	path := logPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(Header+"\n"), 0o644))

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_BadFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"one", "two"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 8 fields")
}

func TestTimestampFormat(t *testing.T) {
	row := MarshalEntry(testEntry())
	assert.Equal(t, "2025-01-15T10:30:00Z", row[0])
}

func TestFileSink(t *testing.T) {
	path := logPath(t)
	sink := NewFileSink(path)
	require.NoError(t, sink.Record(context.Background(), testEntry()))
	require.NoError(t, sink.Record(context.Background(), testEntry()))

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Record(context.Background(), testEntry()))

	r.Err = errors.New("disk full")
	assert.Error(t, r.Record(context.Background(), testEntry()))
	assert.Len(t, r.Entries(), 2)
}
