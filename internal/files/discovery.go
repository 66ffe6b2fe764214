package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Ext     string
	Size    int64
	ModTime time.Time
}

// DataExtensions lists the file extensions Discovery treats as data files.
var DataExtensions = []string{".csv", ".xlsx", ".parquet", ".db", ".sqlite", ".sqlite3"}

// IsDataFile reports whether name has one of DataExtensions.
func IsDataFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range DataExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance. Relative inputs are
// resolved against basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(path string) string {
	if filepath.IsAbs(path) || d.basePath == "" {
		return path
	}
	return filepath.Join(d.basePath, path)
}

// FindDataFiles lists the data files directly inside dir, sorted by name.
func (d *Discovery) FindDataFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsDataFile(entry.Name()) || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, newFileInfo(filepath.Join(fullPath, entry.Name()), info))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// FindFilesByPattern finds data files matching a glob pattern
func (d *Discovery) FindFilesByPattern(pattern string) ([]FileInfo, error) {
	matches, err := filepath.Glob(d.resolve(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}
	sort.Strings(matches)

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() || !IsDataFile(match) {
			continue
		}
		files = append(files, newFileInfo(match, info))
	}
	return files, nil
}

// Expand turns job inputs into data files. A directory contributes its
// data files, a pattern its matches, and a file itself. Inputs that match
// nothing are an error; a file listed twice is returned once.
func (d *Discovery) Expand(inputs []string) ([]FileInfo, error) {
	seen := make(map[string]bool)
	var out []FileInfo
	add := func(found []FileInfo) {
		for _, f := range found {
			if !seen[f.Path] {
				seen[f.Path] = true
				out = append(out, f)
			}
		}
	}

	for _, input := range inputs {
		if strings.ContainsAny(input, "*?[") {
			found, err := d.FindFilesByPattern(input)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return nil, fmt.Errorf("pattern %s matched no data files", input)
			}
			add(found)
			continue
		}

		fullPath := d.resolve(input)
		info, err := os.Stat(fullPath)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", input, err)
		}
		if info.IsDir() {
			found, err := d.FindDataFiles(input)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return nil, fmt.Errorf("directory %s contains no data files", input)
			}
			add(found)
			continue
		}
		if !IsDataFile(fullPath) {
			return nil, fmt.Errorf("input %s is not a supported data file", input)
		}
		add([]FileInfo{newFileInfo(fullPath, info)})
	}
	return out, nil
}

func newFileInfo(path string, info os.FileInfo) FileInfo {
	return FileInfo{
		Path:    path,
		Name:    filepath.Base(path),
		Ext:     strings.ToLower(filepath.Ext(path)),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
