package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceEmbedded(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)

	matches, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, matches, "00001_init.sql")
	assert.Contains(t, matches, "00002_detach_ledger_from_profiles.sql")
}

func TestLedgerHasNoProfileForeignKey(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)

	detach, err := fs.ReadFile(fsys, "00002_detach_ledger_from_profiles.sql")
	require.NoError(t, err)
	up, _, found := strings.Cut(string(detach), "-- +goose Down")
	require.True(t, found)
	assert.Contains(t, up, "DROP CONSTRAINT IF EXISTS deployment_records_uid_fkey")
}

func TestSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00001_x.sql"), []byte("-- +goose Up\n"), 0o600))

	fsys, err := Source(dir)
	require.NoError(t, err)
	_, err = fs.Stat(fsys, "00001_x.sql")
	assert.NoError(t, err)
}

func TestSourceMissingDirectory(t *testing.T) {
	_, err := Source(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNewValidatesInputs(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)

	_, err = New("", fsys, nil)
	assert.Error(t, err)
	_, err = New("postgres://localhost/db", nil, nil)
	assert.Error(t, err)

	runner, err := New("postgres://localhost/db", fsys, nil)
	require.NoError(t, err)
	assert.NotNil(t, runner.log)
}
