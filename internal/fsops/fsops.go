// Package fsops implements the filesystem steps of a build: clean removal,
// pattern copies, relocation and strict removal of scratch directories.
package fsops

import (
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// ErrSourceMissing is returned by CopyMatching when the source directory does not exist.
var ErrSourceMissing = stderrors.New("source directory does not exist")

// RemoveAll deletes path and everything below it. A path that does not exist
// counts as removed; every other failure is returned.
func RemoveAll(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			slog.Debug("Nothing to remove", logfields.Path(path))
			return nil
		}
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to inspect directory before removal").
			WithContext("path", path).
			Build()
	}
	if err := os.RemoveAll(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove "+path).
			WithContext("path", path).
			Build()
	}
	slog.Debug("Removed directory", logfields.Path(path))
	return nil
}

// Recreate removes path and creates it again empty, including missing parents.
func Recreate(path string) error {
	if err := RemoveAll(path); err != nil {
		return err
	}
	return MkdirAll(path)
}

// MkdirAll creates path and its parents.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create "+path).
			WithContext("path", path).
			Build()
	}
	return nil
}

// CopyMatching copies the regular files directly inside srcDir whose names
// match pattern into dstDir, which must exist. It returns the copied file
// names in lexical order. A missing srcDir yields ErrSourceMissing wrapped in
// a classified error and copies nothing.
func CopyMatching(srcDir, pattern, dstDir string) ([]string, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapError(ErrSourceMissing, errors.CategoryNotFound, "asset source missing").
				WithContext("path", srcDir).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read asset source").
			WithContext("path", srcDir).
			Build()
	}
	if !info.IsDir() {
		return nil, errors.FileSystemError("asset source is not a directory").WithContext("path", srcDir).Build()
	}

	matches, err := doublestar.Glob(os.DirFS(srcDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid asset pattern").
			WithContext("pattern", pattern).
			Build()
	}
	sort.Strings(matches)

	copied := make([]string, 0, len(matches))
	for _, name := range matches {
		src := filepath.Join(srcDir, filepath.FromSlash(name))
		fi, err := os.Stat(src)
		if err != nil {
			return copied, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat asset").WithContext("path", src).Build()
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		dst := filepath.Join(dstDir, filepath.Base(name))
		if err := CopyFile(src, dst); err != nil {
			return copied, err
		}
		copied = append(copied, filepath.Base(name))
	}
	return copied, nil
}

// CopyFile copies a single file from src to dst, preserving its permission bits.
func CopyFile(src, dst string) error {
	wrap := func(err error, msg string) error {
		return errors.WrapError(err, errors.CategoryFileSystem, msg).
			WithContext("source", src).
			WithContext("target", dst).
			Build()
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return wrap(err, "failed to open "+src)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	info, err := srcFile.Stat()
	if err != nil {
		return wrap(err, "failed to stat "+src)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return wrap(err, "failed to create "+dst)
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return wrap(err, "failed to copy "+src)
	}
	if err := dstFile.Close(); err != nil {
		return wrap(err, "failed to close "+dst)
	}
	return nil
}

// Move renames src to dst. dst must not exist, so src never ends up nested inside it.
func Move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return errors.FileSystemError("move target already exists").
			WithContext("source", src).
			WithContext("target", dst).
			Build()
	}
	if err := os.Rename(src, dst); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to move "+src).
			WithContext("source", src).
			WithContext("target", dst).
			Build()
	}
	return nil
}

// RemoveEmptyDir removes dir, failing when it still has entries.
func RemoveEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read "+dir).WithContext("path", dir).Build()
	}
	if len(entries) > 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return errors.InternalError("scratch directory is not empty: "+dir).
			WithContext("path", dir).
			WithContext("entries", names).
			Build()
	}
	if err := os.Remove(dir); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove "+dir).WithContext("path", dir).Build()
	}
	return nil
}
