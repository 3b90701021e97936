// Package pathutil provides path validation utilities.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CheckDirectoryWritable checks if a directory exists and is writable on
// the given filesystem. If the directory doesn't exist, it attempts to
// create it. Writability is proven by creating a temporary file, not by
// mode bits, so network mounts and containers answer truthfully.
func CheckDirectoryWritable(fsys afero.Fs, path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// Convert to absolute path for clearer error messages
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path // fallback to original if abs fails
	}

	info, err := fsys.Stat(absPath)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("path %s exists but is not a directory", absPath)
		}
	case os.IsNotExist(err):
		if err := fsys.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", absPath, err)
		}
	default:
		return fmt.Errorf("cannot access directory %s: %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".cineripr-write-test")
	file, err := fsys.Create(testFile)
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, err)
	}

	_, writeErr := file.Write([]byte("test"))
	file.Close()
	fsys.Remove(testFile)

	if writeErr != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, writeErr)
	}

	return nil
}

// CheckFileDirectoryWritable checks if the directory containing a file path
// is writable.
func CheckFileDirectoryWritable(fsys afero.Fs, filePath string, fileType string) error {
	if filePath == "" {
		return nil // Empty path is valid for some config options (like log file)
	}

	dir := filepath.Dir(filePath)
	if dir == "" || dir == "." {
		dir = "./" // current directory
	}

	if err := CheckDirectoryWritable(fsys, dir); err != nil {
		return fmt.Errorf("%s file directory check failed: %w", fileType, err)
	}

	return nil
}
