package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/pipeline"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	inv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"invoice_number":"A-1","date":"2024-02-10","client_name":"Umbrella",
			"type":"Services","total_amount":"300","tax_amount":"0","currency":"USD"}`))
	}))
	t.Cleanup(inv.Close)
	cred := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"credibility": 64.5}`))
	}))
	t.Cleanup(cred.Close)

	dir := t.TempDir()
	t.Setenv("LEDGER_CONFIG", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", filepath.Join(dir, "ledger.db"))
	t.Setenv("INVOICE_API_URL", inv.URL)
	t.Setenv("CREDIBILITY_API_URL", cred.URL)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProcessSealAndShare(t *testing.T) {
	dir := setupEnv(t)
	file := writeFile(t, dir, "a-1.txt", "Invoice A-1 total 300 USD")

	out, err := run(t, "process", file, "--name", "February", "--approve", "--attestation", "sig-1", "--share")
	require.NoError(t, err)

	var snap pipeline.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, constants.LedgerStatusShared, snap.Status)
	assert.Equal(t, "February", snap.Document.Name)
	assert.Equal(t, "a-1.txt", snap.Document.Filename, "--name does not change the source format")
	assert.Equal(t, "sig-1", snap.Entry.Attestation)
	assert.Equal(t, 64.5, snap.Entry.Score.Value)

	out, err = run(t, "dbhealth")
	require.NoError(t, err)
	assert.Contains(t, out, "entries=1")

	xlsx := filepath.Join(dir, "out.xlsx")
	out, err = run(t, "export", "--out", xlsx, "--shared")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+xlsx)
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestProcessStopsAtScoredWithoutApproval(t *testing.T) {
	dir := setupEnv(t)
	file := writeFile(t, dir, "a-1.txt", "Invoice A-1")

	out, err := run(t, "process", file)
	require.NoError(t, err)
	var snap pipeline.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, constants.LedgerStatusScored, snap.Status)
	assert.Equal(t, "a-1.txt", snap.Document.Name)
}

func TestProcessFlagValidation(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "process", "x.pdf", "--attestation", "sig")
	assert.ErrorIs(t, err, common.ErrInput)

	_, err = run(t, "process", "x.pdf", "--approve", "--share")
	assert.ErrorIs(t, err, common.ErrInput)

	_, err = run(t, "process")
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	dir := setupEnv(t)
	files := []string{
		writeFile(t, dir, "one.txt", "Invoice one"),
		writeFile(t, dir, "two.txt", "Invoice two"),
		writeFile(t, dir, "three.txt", "Invoice three"),
	}

	out, err := run(t, append([]string{"batch", "--workers", "2"}, files...)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	seen := map[string]bool{}
	for _, l := range lines {
		var bl batchLine
		require.NoError(t, json.Unmarshal([]byte(l), &bl))
		assert.Equal(t, constants.LedgerStatusScored, bl.Status)
		assert.Empty(t, bl.Error)
		require.NotNil(t, bl.Score)
		seen[bl.File] = true
	}
	assert.Len(t, seen, 3)
}

func TestBatchReportsFailures(t *testing.T) {
	dir := setupEnv(t)
	good := writeFile(t, dir, "good.txt", "Invoice good")
	blank := writeFile(t, dir, "blank.txt", "   \n")

	out, err := run(t, "batch", good, blank)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, out, `"file":"blank.txt"`)
}

func TestOCRPlainText(t *testing.T) {
	dir := setupEnv(t)
	file := writeFile(t, dir, "note.txt", "Invoice   42\r\nTotal 10 EUR")

	out, err := run(t, "ocr", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Invoice")
	assert.Contains(t, out, "Total 10 EUR")
}

func TestExportRejectsBadDate(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "export", "--from", "2024/01/01")
	assert.ErrorIs(t, err, common.ErrInput)
}

func TestBatchDir(t *testing.T) {
	dir := setupEnv(t)
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, ".trash"), 0o755))
	writeFile(t, inbox, "one.txt", "Invoice one")
	writeFile(t, inbox, "readme.md", "not an invoice")
	writeFile(t, filepath.Join(inbox, ".trash"), "old.txt", "Invoice old")

	out, err := run(t, "batch", "--dir", inbox)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"file":"one.txt"`)

	_, err = run(t, "batch", "--dir", filepath.Join(dir, "empty-missing"))
	assert.Error(t, err)

	_, err = run(t, "batch")
	assert.ErrorIs(t, err, common.ErrInput)
}

func TestWatchProcessesExistingFiles(t *testing.T) {
	dir := setupEnv(t)
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	writeFile(t, inbox, "first.txt", "Invoice first")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch", inbox, "--existing", "--debounce", "10ms"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	var bl batchLine
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &bl))
	assert.Equal(t, "first.txt", bl.File)
	assert.Equal(t, constants.LedgerStatusScored, bl.Status)
}
