package commands_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/auditlog"
)

func copyFixture(t *testing.T, name, dst string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0o644))
}

func TestMigrate_MemoryDriver(t *testing.T) {
	dir := initProject(t)
	out, err := runSitebooks(t, "migrate", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "nothing to migrate")
}

func TestAccountsExport(t *testing.T) {
	dir := initProject(t)
	out, err := runSitebooks(t, "accounts", "export", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "code,name,type,parent_code,active")
	assert.Contains(t, out, "1010,Cash,ASSET,1000,true")
}

func TestAccountsLoad_File(t *testing.T) {
	dir := initProject(t)
	chart := filepath.Join(dir, "extra.csv")
	copyFixture(t, "chart-of-accounts.csv", chart)

	out, err := runSitebooks(t, "accounts", "load", "--repo", dir, "--file", chart)
	require.NoError(t, err, out)
	// 6090 is the only code the starter chart lacks.
	assert.Contains(t, out, "1 created, 10 updated")
}

func TestVoucherCreate_Post(t *testing.T) {
	dir := initProject(t)

	out, err := runSitebooks(t, "voucher", "create", "--repo", dir,
		"--date", "2025-03-01", "--narration", "Cash sale",
		"--line", "1010,100,", "--line", "4010,,100", "--post")
	require.NoError(t, err, out)
	assert.Contains(t, out, "JV-2025-0001 POSTED 2025-03-01 debit 100.00 credit 100.00")

	entries, err := auditlog.Read(filepath.Join(dir, "logs", "audit-log.csv"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "tester", entries[0].UserID)
}

func TestVoucherCreate_PostUnbalanced(t *testing.T) {
	dir := initProject(t)

	out, err := runSitebooks(t, "voucher", "create", "--repo", dir,
		"--date", "2025-03-01",
		"--line", "1010,100,", "--line", "4010,,99.99", "--post")
	require.Error(t, err)
	assert.Contains(t, out, "Voucher is not balanced. Total Debit: 100.00, Total Credit: 99.99, Difference: 0.01")
}

func TestVoucherCreate_BadLine(t *testing.T) {
	dir := initProject(t)
	out, err := runSitebooks(t, "voucher", "create", "--repo", dir, "--date", "2025-03-01", "--line", "1010")
	require.Error(t, err)
	assert.Contains(t, out, "ACCOUNT,DEBIT,CREDIT")
}

func TestImportScanAndParse(t *testing.T) {
	dir := initProject(t)
	copyFixture(t, "import_journal.csv", filepath.Join(dir, "import", "journal.csv"))

	out, err := runSitebooks(t, "import", "scan", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "journal.csv\tcsv")

	out, err = runSitebooks(t, "import", "parse", "journal.csv", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "6 rows, 3 vouchers, 0 with errors")
	assert.Contains(t, out, "JV-2\t2025-03-02\tok\tdebit 1500.00\tcredit 1500.00")
}

func TestImportCommit_PostAndArchive(t *testing.T) {
	dir := initProject(t)
	copyFixture(t, "import_journal.csv", filepath.Join(dir, "import", "journal.csv"))

	out, err := runSitebooks(t, "import", "commit", "journal.csv", "--repo", dir, "--post")
	require.NoError(t, err, out)
	// "Revenue" names the 4000 group account, which cannot take postings.
	assert.Contains(t, out, "Imported 3, skipped 0, posted 2")
	assert.Contains(t, out, "JV-1: post: Account 4000 (Revenue) is not a leaf account.")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "journal.csv"))
	assert.NoError(t, err, "committed file is moved to processed/")
}

func TestImportCommit_RefusesInvalidBatch(t *testing.T) {
	dir := initProject(t)
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "import_journal.csv"))
	require.NoError(t, err)
	bad := string(data) + "JV-4,2025-03-04,Petty Cash,10,,\nJV-4,2025-03-04,1010,,10,\n"
	path := filepath.Join(dir, "import", "journal.csv")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	out, err := runSitebooks(t, "import", "commit", "journal.csv", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "1 of 4 vouchers have errors")
	assert.True(t, strings.Contains(out, `Account "Petty Cash" not found (rows 8)`), out)

	_, err = os.Stat(path)
	assert.NoError(t, err, "rejected file stays in the import dir")

	out, err = runSitebooks(t, "import", "commit", "journal.csv", "--repo", dir, "--exclude", "JV-4")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 3, skipped 0, posted 0")
}

func TestVoucherExport_Empty(t *testing.T) {
	dir := initProject(t)
	out, err := runSitebooks(t, "voucher", "export", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "voucher_no,date,type,status,account_code,account_name,debit,credit,description,narration")
}
