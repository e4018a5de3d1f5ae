package utils

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// GetLatestFile returns the path to the latest modified file in the directory
func GetLatestFile(directory string) (string, error) {
	var latestFile string
	var latestModTime time.Time

	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.ModTime().After(latestModTime) {
			latestModTime = info.ModTime()
			latestFile = path
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "walk %s", directory)
	}
	return latestFile, nil
}

// ListLogFiles returns every regular file below directory, sorted by path.
// Hidden files (leading dot) are skipped, so in-flight snapshot temp files
// never get parsed as logs.
func ListLogFiles(directory string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != directory && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "list log files in %s", directory)
	}

	slices.Sort(files)
	return files, nil
}

// FileStamp identifies one version of a file on disk.
type FileStamp struct {
	ModTime time.Time
	Size    int64
}

func StatFile(path string) (FileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStamp{}, eris.Wrapf(err, "stat %s", path)
	}
	return FileStamp{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Same reports whether both stamps describe the same file contents.
func (s FileStamp) Same(o FileStamp) bool {
	return s.Size == o.Size && s.ModTime.Equal(o.ModTime)
}
