package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Storage writes filtered pages and reports under a base directory.
type Storage struct {
	BaseDir string
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

func New(baseDir string) *Storage {
	return &Storage{BaseDir: baseDir}
}

// Path resolves name against the base directory. Absolute names are kept.
func (s *Storage) Path(name string) string {
	if filepath.IsAbs(name) || s.BaseDir == "" {
		return name
	}
	return filepath.Join(s.BaseDir, name)
}

// SaveFile writes content, creating parent directories.
func (s *Storage) SaveFile(name string, content []byte) (string, error) {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

func (s *Storage) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *Storage) HasFile(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// GetFileStats returns metadata about a file using os.Stat.
func (s *Storage) GetFileStats(name string) (*FileStats, error) {
	info, err := os.Stat(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// PageFileName builds a stable file name for a filtered copy of rawURL,
// e.g. "www.reddit.com-r-news.html".
func PageFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.Trim(unsafeChars.ReplaceAllString(rawURL, "-"), "-") + ".html"
	}

	name := u.Hostname()
	if p := strings.Trim(u.Path, "/"); p != "" {
		name += "-" + p
	}
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-")
	if len(name) > 120 {
		name = name[:120]
	}
	return name + ".html"
}
