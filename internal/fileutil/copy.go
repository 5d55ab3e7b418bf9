package fileutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pgenv/pgenv/internal/sentinel"
)

// ErrEmptySrc is returned when a source path is empty.
const ErrEmptySrc = sentinel.Error("source path must not be empty")

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// CopyFile copies a regular file from src to dst, creating parent
// directories as needed. The destination is created with the given mode via
// os.OpenFile, so the file never exists with broader permissions than
// intended. Mode matters here because the copied trees include server
// executables under bin/ whose execute bits must survive the copy.
func CopyFile(src, dst string, mode os.FileMode) (retErr error) {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}

	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if closeErr := srcFile.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close source: %w", closeErr)
		}
	}()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// CopyTree recursively copies the directory tree rooted at src into dst.
// Regular files keep their permission bits, directories are created with
// 0755, and symlinks are recreated with their original targets (PostgreSQL
// distributions link shared libraries under lib/). Other file types are
// rejected.
func CopyTree(src, dst string) error {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return EnsureDir(target)

		case d.Type()&fs.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("read link %s: %w", path, err)
			}
			if err := EnsureDir(filepath.Dir(target)); err != nil {
				return err
			}
			// Replace a stale link from a previous partial copy.
			_ = os.Remove(target)
			if err := os.Symlink(linkTarget, target); err != nil {
				return fmt.Errorf("create link %s: %w", target, err)
			}
			return nil

		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			return CopyFile(path, target, info.Mode().Perm())

		default:
			return fmt.Errorf("unsupported file type %s at %s", d.Type(), path)
		}
	})
}
