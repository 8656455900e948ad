package papers

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File is a PDF found on disk.
type File struct {
	Filename string    `json:"filename"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// ScanDirs lists PDFs across the given directories and their immediate
// subdirectories, newest first. When the same filename appears more than
// once the most recently modified copy wins. Missing directories are
// skipped.
func ScanDirs(dirs ...string) []File {
	seen := make(map[string]File)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				scanInto(seen, filepath.Join(dir, entry.Name()))
				continue
			}
			collect(seen, dir, entry)
		}
	}

	files := make([]File, 0, len(seen))
	for _, f := range seen {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Filename < files[j].Filename
	})
	return files
}

// scanInto collects the PDFs directly inside dir. Nested directories
// are not followed.
func scanInto(seen map[string]File, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		collect(seen, dir, entry)
	}
}

func collect(seen map[string]File, dir string, entry os.DirEntry) {
	if !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
		return
	}
	info, err := entry.Info()
	if err != nil {
		return
	}
	f := File{
		Filename: entry.Name(),
		Path:     filepath.Join(dir, entry.Name()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}
	if prev, ok := seen[f.Filename]; !ok || f.ModTime.After(prev.ModTime) {
		seen[f.Filename] = f
	}
}

// FindFile locates a filename across the given directories and their
// immediate subdirectories, returning its full path. The boolean
// reports whether it was found.
func FindFile(filename string, dirs ...string) (string, bool) {
	for _, dir := range dirs {
		path := filepath.Join(dir, filename)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			sub := filepath.Join(dir, entry.Name(), filename)
			if info, err := os.Stat(sub); err == nil && !info.IsDir() {
				return sub, true
			}
		}
	}
	return "", false
}
