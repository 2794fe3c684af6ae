package snapshotfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupName(t *testing.T) {
	ts := time.Date(2026, 10, 18, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, filepath.Join("reports", "acme_backup_20261018_140509.md"), BackupName(filepath.Join("reports", "acme.md"), ts))
	assert.Equal(t, filepath.Join("reports", "README_backup_20261018_140509"), BackupName(filepath.Join("reports", "README"), ts))
}

func TestBackupFile_CopiesContentAndMode(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "report.md")
	require.NoError(t, os.WriteFile(target, []byte("# Report\n"), 0600))

	backup, err := BackupFile(target, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_backup_20261018_090000.md"), backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))

	info, err := os.Stat(backup)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestBackupFile_MissingTarget(t *testing.T) {
	_, err := BackupFile(filepath.Join(t.TempDir(), "missing.md"), time.Now())
	assert.Error(t, err)
}
