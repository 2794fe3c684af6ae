package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/storage/snapshotfs"
)

// WriteReport writes content to path atomically. An existing file is first
// copied to its timestamped backup, whose path is returned.
func WriteReport(path, content string, now time.Time) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", &common.Error{
			Kind:      common.KindReportWriteError,
			Component: "report",
			Stage:     "write",
			Err:       fmt.Errorf("failed to create directory for %s: %w", path, err),
		}
	}

	perm := os.FileMode(0644)
	backup := ""
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
		backup, err = snapshotfs.BackupFile(path, now)
		if err != nil {
			return "", &common.Error{Kind: common.KindReportWriteError, Component: "report", Stage: "backup", Err: err}
		}
	}

	if err := snapshotfs.WriteFileAtomic(path, []byte(content), perm); err != nil {
		return backup, &common.Error{
			Kind:       common.KindReportWriteError,
			Component:  "report",
			Stage:      "write",
			BackupPath: backup,
			Err:        err,
		}
	}
	return backup, nil
}
