package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	errpkg "github.com/veranemoloko/hls-relay-bot/internal/errors"
)

// FileStorage provides methods to manage files in the download directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage instance with the given directory.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Path returns the full path of filename inside the storage directory.
func (s *FileStorage) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// StagingName returns a unique local name for an uploaded manifest.
func (s *FileStorage) StagingName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".txt"
	}
	return "manifest-" + uuid.NewString() + ext
}

// CreateFile creates a new file with the given filename in the storage directory.
func (s *FileStorage) CreateFile(filename string) (*os.File, error) {
	return os.Create(s.Path(filename))
}

// FileExists checks whether a file exists in the storage directory.
func (s *FileStorage) FileExists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// GetFileSize returns the size of the file in bytes.
func (s *FileStorage) GetFileSize(filename string) (int64, error) {
	info, err := os.Stat(s.Path(filename))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadFileLimited reads a whole file, refusing files larger than limit bytes.
func (s *FileStorage) ReadFileLimited(filename string, limit int64) ([]byte, error) {
	f, err := os.Open(s.Path(filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", filename, limit, errpkg.ErrManifestTooLarge)
	}
	return data, nil
}

// RemoveFile deletes filename. It reports whether a file was actually removed;
// a missing file is not an error.
func (s *FileStorage) RemoveFile(filename string) (bool, error) {
	err := os.Remove(s.Path(filename))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveWithStem deletes stem itself and every file named "<stem>.*", which
// covers the final output and the downloader's intermediate formats. It
// returns the names that were removed.
func (s *FileStorage) RemoveWithStem(stem string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var removed []string
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (name != stem && !strings.HasPrefix(name, stem+".")) {
			continue
		}
		ok, err := s.RemoveFile(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed = append(removed, name)
		}
	}
	return removed, errors.Join(errs...)
}
