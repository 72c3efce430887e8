package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pders01/przepisy/internal/config"
)

// PathValidator checks user supplied database, index and log paths.
type PathValidator struct {
	// AllowedBaseDirs restricts paths to these directories; empty allows all.
	AllowedBaseDirs []string
	MaxPathLength   int
}

// NewPathValidator accepts any directory.
func NewPathValidator() *PathValidator {
	return &PathValidator{MaxPathLength: 4096}
}

// NewRestrictedPathValidator keeps paths inside the data, config and temp
// directories.
func NewRestrictedPathValidator() *PathValidator {
	home, _ := os.UserHomeDir()
	return &PathValidator{
		AllowedBaseDirs: []string{
			filepath.Join(home, ".przepisy"),
			filepath.Join(home, ".config", "przepisy"),
			os.TempDir(),
		},
		MaxPathLength: 4096,
	}
}

// Clean expands ~, makes the path absolute and rejects control characters,
// traversal and paths outside AllowedBaseDirs.
func (v *PathValidator) Clean(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if len(path) > v.MaxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", v.MaxPathLength)
	}
	for _, r := range path {
		if r < 32 && r != '\t' {
			return "", fmt.Errorf("path contains control characters")
		}
	}
	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return "", fmt.Errorf("directory traversal not allowed")
		}
	}

	if strings.HasPrefix(path, "~") && !strings.HasPrefix(path, "~/") {
		return "", fmt.Errorf("invalid tilde usage")
	}
	abs, err := filepath.Abs(config.ExpandPath(path))
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}

	if err := v.checkBaseDirs(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (v *PathValidator) checkBaseDirs(abs string) error {
	if len(v.AllowedBaseDirs) == 0 {
		return nil
	}
	for _, base := range v.AllowedBaseDirs {
		absBase, err := filepath.Abs(base)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absBase, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("path not within allowed directories: %v", v.AllowedBaseDirs)
}

// ValidateFile cleans path and makes sure it is not a directory.
func (v *PathValidator) ValidateFile(path string) (string, error) {
	clean, err := v.Clean(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(clean); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", clean)
	}
	return clean, nil
}

// ValidateDirectory cleans path and makes sure it is not a regular file.
// Bleve indexes are directories.
func (v *PathValidator) ValidateDirectory(path string) (string, error) {
	clean, err := v.Clean(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(clean); err == nil && !info.IsDir() {
		return "", fmt.Errorf("path exists but is not a directory: %s", clean)
	}
	return clean, nil
}
