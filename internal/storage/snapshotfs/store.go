// Package snapshotfs implements file-based storage for case snapshots and
// validation reports.
package snapshotfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
)

// Store provides file-based JSON storage for case snapshots and validation reports.
type Store struct {
	basePath      string
	snapshotsDir  string
	validationDir string
	logger        *common.Logger
}

// NewStore creates a new file store rooted at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store path %s: %w", path, err)
	}
	snapshotsDir := filepath.Join(path, "snapshots")
	validationDir := filepath.Join(path, "validation")
	for _, dir := range []string{snapshotsDir, validationDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger.Debug().Str("path", path).Msg("Snapshot store opened")
	return &Store{
		basePath:      path,
		snapshotsDir:  snapshotsDir,
		validationDir: validationDir,
		logger:        logger,
	}, nil
}

// DataPath returns the base data path.
func (s *Store) DataPath() string {
	return s.basePath
}

// ValidationDir returns the directory validation reports are written to.
func (s *Store) ValidationDir() string {
	return s.validationDir
}

// WithValidationDir redirects validation reports to dir.
func (s *Store) WithValidationDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	s.validationDir = dir
	return nil
}

// GetSnapshot returns the snapshot stored under key.
func (s *Store) GetSnapshot(ctx context.Context, key string) (*interfaces.CaseSnapshot, error) {
	var snap interfaces.CaseSnapshot
	if err := readJSON(filePath(s.snapshotsDir, key), key, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveSnapshot stores a snapshot under its key, atomically.
func (s *Store) SaveSnapshot(ctx context.Context, snap *interfaces.CaseSnapshot) error {
	if snap.Key == "" {
		return fmt.Errorf("snapshot key is empty")
	}
	return writeJSON(s.snapshotsDir, filePath(s.snapshotsDir, snap.Key), snap)
}

// LatestSnapshot returns the most recently fetched snapshot with the key prefix.
func (s *Store) LatestSnapshot(ctx context.Context, prefix string) (*interfaces.CaseSnapshot, error) {
	keys, err := listKeys(s.snapshotsDir)
	if err != nil {
		return nil, err
	}
	safePrefix := sanitizeKey(prefix)
	var latest *interfaces.CaseSnapshot
	for _, key := range keys {
		if !strings.HasPrefix(key, safePrefix) {
			continue
		}
		snap, err := s.GetSnapshot(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Skipping unreadable snapshot")
			continue
		}
		if latest == nil || snap.FetchedAt.After(latest.FetchedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no snapshot with prefix '%s'", prefix)
	}
	return latest, nil
}

// SaveValidationReport writes content_validation_report_<YYYYMMDD_HHMMSS>.json
// and returns its path.
func (s *Store) SaveValidationReport(ctx context.Context, report *models.ValidationReport) (string, error) {
	name := fmt.Sprintf("content_validation_report_%s.json", common.FileTimestamp(report.ValidationTimestamp))
	target := filepath.Join(s.validationDir, name)
	if err := writeJSON(s.validationDir, target, report); err != nil {
		return "", err
	}
	return target, nil
}

// LoadValidationReport reads a persisted validation report.
func (s *Store) LoadValidationReport(ctx context.Context, path string) (*models.ValidationReport, error) {
	var report models.ValidationReport
	if err := readJSON(path, filepath.Base(path), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// PurgeSnapshots removes all snapshot files and returns the count.
func (s *Store) PurgeSnapshots() int {
	keys, err := listKeys(s.snapshotsDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, key := range keys {
		if os.Remove(filePath(s.snapshotsDir, key)) == nil {
			count++
		}
	}
	return count
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func filePath(dir, key string) string {
	return filepath.Join(dir, sanitizeKey(key)+".json")
}

func readJSON(path, key string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("'%s' not found", key)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("'%s' is empty", key)
	}
	return json.Unmarshal(data, dest)
}

func writeJSON(dir, target string, data interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')
	return WriteFileAtomic(target, jsonData, 0644)
}

func listKeys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".tmp-") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}
