package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Error constants for better error handling
var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

// Filesystem gives read access to files below a single root directory.
// Paths are slash separated and relative to that root; anything that would
// escape it is rejected with ErrInvalidPath.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	FileExists(path string) (bool, error)
	DirectoryExists(path string) (bool, error)
	Root() string
}

type localFileSystem struct {
	root string
}

func NewLocalFileSystem(root string) Filesystem {
	return &localFileSystem{root: filepath.Clean(root)}
}

func (filesystem *localFileSystem) Root() string {
	return filesystem.root
}

func (filesystem *localFileSystem) resolve(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}

	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return filepath.Join(filesystem.root, local), nil
}

// ReadFile reads the whole file. Every call goes to disk; nothing is cached.
func (filesystem *localFileSystem) ReadFile(path string) ([]byte, error) {
	fullPath, err := filesystem.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}

	return content, nil
}

func (filesystem *localFileSystem) FileExists(path string) (bool, error) {
	fullPath, err := filesystem.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return info.Mode().IsRegular(), nil
}

// DirectoryExists reports whether path is a directory; "." is the root.
func (filesystem *localFileSystem) DirectoryExists(path string) (bool, error) {
	fullPath, err := filesystem.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, path)
	}

	return true, nil
}
