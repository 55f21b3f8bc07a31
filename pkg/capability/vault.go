package capability

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const searchResultLimit = 10

// FileVault is a markdown note vault rooted at a directory.
type FileVault struct {
	root string
}

// NewFileVault opens a vault at root. The directory is created lazily on
// first write, so a missing vault still searches (finding nothing).
func NewFileVault(root string) *FileVault {
	return &FileVault{root: root}
}

// SearchNotes returns vault-relative paths of markdown notes whose name or
// content matches query, case-insensitive, capped at 10 results.
func (v *FileVault) SearchNotes(ctx context.Context, query string) ([]string, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	var results []string
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		rel, relErr := filepath.Rel(v.root, path)
		if relErr != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(rel), needle) {
			results = append(results, rel)
		} else if data, readErr := os.ReadFile(path); readErr == nil &&
			strings.Contains(strings.ToLower(string(data)), needle) {
			results = append(results, rel)
		}
		if len(results) >= searchResultLimit {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return results, err
	}
	return results, nil
}

// ReadNote returns a note's content. The ".md" suffix is appended when
// missing; paths escaping the vault are rejected.
func (v *FileVault) ReadNote(ctx context.Context, path string) (string, error) {
	full, err := v.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return string(data), nil
}

// WriteNote creates or replaces a note, creating parent directories.
func (v *FileVault) WriteNote(ctx context.Context, path, content string) error {
	full, err := v.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create note dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

func (v *FileVault) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty note path")
	}
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		path += ".md"
	}
	full := filepath.Join(v.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(v.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("note path escapes vault: %s", path)
	}
	return full, nil
}
