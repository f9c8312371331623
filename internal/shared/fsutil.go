package shared

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// DirectoryIsWritable reports whether path is an existing directory in which a file can be created.
func DirectoryIsWritable(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	f, err := afero.TempFile(fs, path, ".podsync-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	fs.Remove(name)
	return true
}

// CalculateSize returns the size of a file, or the summed size of every regular file below a directory.
//
// Unreadable entries are skipped.
func CalculateSize(fs afero.Fs, path string) int64 {
	info, err := fs.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}

	var total int64
	afero.Walk(fs, path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.Mode().IsRegular() {
			total += fi.Size()
		}
		return nil
	})
	return total
}

// SplitExt returns the base name of path without extension and the extension without its leading dot.
func SplitExt(path string) (string, string) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		return base, ""
	}
	return base[:len(base)-len(ext)], ext[1:]
}
