package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apierrors "paydash/internal/errors"
)

// ledgerExtensions are the file types FileSource can read.
var ledgerExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
}

// LedgerFile describes a candidate ledger file found in a directory.
type LedgerFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FindLedgerFiles lists readable ledger files in dir, newest first. Office
// lock files (~$name.xlsx) and subdirectories are skipped.
func FindLedgerFiles(dir string) ([]LedgerFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []LedgerFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}
		if !ledgerExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, LedgerFile{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Newest first; ties broken by name for a stable pick.
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// resolveLedgerPath returns path itself, or the newest ledger file when path
// is a directory.
func resolveLedgerPath(path string) (string, error) {
	if path == "" {
		return "", apierrors.NewConfigError("no ledger file configured", ErrEmptySource)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", apierrors.NewSourceError("open ledger file", err).WithContext("path", path)
	}
	if !info.IsDir() {
		return path, nil
	}

	files, err := FindLedgerFiles(path)
	if err != nil {
		return "", apierrors.NewSourceError("scan ledger directory", err).WithContext("path", path)
	}
	if len(files) == 0 {
		return "", apierrors.NewSourceError("no ledger files in directory", ErrEmptySource).WithContext("path", path)
	}
	return files[0].Path, nil
}
