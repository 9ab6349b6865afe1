// Package archive implements the zip export collaborator: given a package
// directory and a set of exclusion globs, it streams a zip of the
// directory's contents to a writer.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes is applied when the caller supplies no exclusion globs:
// a package's _resources sub-tree is not exported.
var DefaultExcludes = []string{"_resources/**"}

// Archiver streams zip archives of package directories.
type Archiver struct {
	log *slog.Logger
}

// New creates an archiver.
func New(log *slog.Logger) *Archiver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Archiver{log: log}
}

// Stream writes a zip of dir's contents to w. Entry names are relative to
// dir and slash-separated, in lexical walk order, so archives of identical
// trees are byte-comparable. Paths matching any exclusion glob are left
// out; a nil excludes slice applies DefaultExcludes, an empty non-nil slice
// excludes nothing. Writing stops at the first error since a partially
// written zip stream cannot be repaired.
func (a *Archiver) Stream(ctx context.Context, dir string, excludes []string, w io.Writer) (err error) {
	if excludes == nil {
		excludes = DefaultExcludes
	}

	zw := zip.NewWriter(w)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	entries := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("archive walk %s: %w", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if excluded(rel, true, excludes) {
				return fs.SkipDir
			}
			return nil
		}
		if excluded(rel, false, excludes) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("archive stat %s: %w", path, infoErr)
		}
		header, headerErr := zip.FileInfoHeader(info)
		if headerErr != nil {
			return fmt.Errorf("archive header %s: %w", path, headerErr)
		}
		header.Name = rel
		header.Method = zip.Deflate

		entry, createErr := zw.CreateHeader(header)
		if createErr != nil {
			return fmt.Errorf("archive entry %s: %w", rel, createErr)
		}

		file, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("archive open %s: %w", path, openErr)
		}
		_, copyErr := io.Copy(entry, file)
		if closeErr := file.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return fmt.Errorf("archive copy %s: %w", rel, copyErr)
		}
		entries++
		return nil
	})
	if walkErr != nil {
		return walkErr
	}
	a.log.Debug("archive streamed", "dir", dir, "entries", entries)
	return nil
}

// excluded mirrors the scanner's ignore semantics: directory globs of the
// form "sub/**" also match "sub" itself so the sub-tree is pruned.
func excluded(rel string, isDir bool, globs []string) bool {
	for _, glob := range globs {
		if ok, err := doublestar.Match(glob, rel); err == nil && ok {
			return true
		}
		if isDir && strings.HasSuffix(glob, "/**") {
			if ok, err := doublestar.Match(strings.TrimSuffix(glob, "/**"), rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}
