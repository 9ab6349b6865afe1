// Package scanner performs the per-candidate package walk: reading the
// metadata file, extracting fields through the configured rules, and
// listing the package directory's files.
//
// A walk is never fatal. A missing metadata file is not an error, an
// unreadable one is logged and extraction proceeds on empty text, and a
// listing failure leaves the package with whatever partial listing was
// gathered. The walk's outcome is a single typed event: created on the
// first successful walk of an instance, updated on subsequent walks, or
// missing-requirement when extraction leaves a required field empty.
package scanner

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	pherrors "github.com/packhouse/packhouse/internal/errors"
	"github.com/packhouse/packhouse/internal/metadata"
	"github.com/packhouse/packhouse/internal/types"
)

// DefaultMetadataFilename is used when a repository configures none.
const DefaultMetadataFilename = "package.json"

// Definition describes what makes a directory a package: the metadata
// filename that marks it, the extraction rules applied to that file's text,
// and the globs excluded from its file listing.
type Definition struct {
	// MetadataFilename marks candidate directories; DefaultMetadataFilename
	// when empty
	MetadataFilename string
	// Rules extract fields from the raw metadata text; metadata.Default()
	// when nil
	Rules metadata.RuleSet
	// Ignore holds doublestar globs, relative to the package directory,
	// excluded from the item listing
	Ignore []string
}

// Normalize fills in the definition's defaults.
func (d Definition) Normalize() Definition {
	if d.MetadataFilename == "" {
		d.MetadataFilename = DefaultMetadataFilename
	}
	if d.Rules == nil {
		d.Rules = metadata.Default()
	}
	return d
}

// Walker walks package candidates under one repository root.
type Walker struct {
	root string
	def  Definition
	log  *slog.Logger
}

// New creates a walker for the given repository root and definition.
func New(root string, def Definition, log *slog.Logger) *Walker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Walker{root: root, def: def.Normalize(), log: log}
}

// Definition returns the walker's normalized package definition.
func (w *Walker) Definition() Definition {
	return w.def
}

// Walk performs the read/extract/list sequence on pkg and returns its
// outcome event. The same instance may be walked again later (a watcher
// re-walk); the first successful walk yields a created event, every
// subsequent one an updated event.
func (w *Walker) Walk(pkg *types.PackageInfo) types.PackageEvent {
	dir := filepath.Join(w.root, filepath.FromSlash(pkg.Path))

	text, err := os.ReadFile(filepath.Join(dir, w.def.MetadataFilename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// extraction proceeds on empty text
		w.log.Warn("metadata read failed",
			"package", pkg.Path,
			"error", err)
	}

	pkg.Fields = w.def.Rules.Extract(text)
	pkg.Name = pkg.Fields[metadata.FieldName]
	pkg.Identifier = pkg.Fields[metadata.FieldIdentifier]

	items, err := ListFiles(dir, w.def.Ignore)
	if err != nil {
		w.log.Warn("package listing incomplete",
			"package", pkg.Path,
			"error", err)
	}
	pkg.Items = items

	if !pkg.Valid() {
		return types.PackageEvent{
			Type:      types.PackageMissingRequirement,
			Package:   pkg,
			Err:       pherrors.MissingRequirement(pkg.Path, pkg.MissingFields()),
			Timestamp: time.Now(),
		}
	}

	eventType := types.PackageCreated
	if !pkg.LastWalk.IsZero() {
		eventType = types.PackageUpdated
	}
	pkg.LastWalk = time.Now()

	return types.PackageEvent{
		Type:      eventType,
		Package:   pkg,
		Timestamp: pkg.LastWalk,
	}
}

// ListFiles returns the relative, slash-separated paths of every file under
// dir, in lexical order, excluding paths matched by the ignore globs.
// Unreadable subdirectories are skipped; the listing gathered so far is
// returned together with the first error encountered.
func ListFiles(dir string, ignore []string) ([]string, error) {
	var items []string
	var firstErr error

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if firstErr == nil {
				firstErr = pherrors.Filesystem("list", path, err)
			}
			return nil
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
			if Ignored(rel, true, ignore) {
				return fs.SkipDir
			}
			return nil
		}
		if !Ignored(rel, false, ignore) {
			items = append(items, rel)
		}
		return nil
	})
	if err != nil && firstErr == nil {
		firstErr = pherrors.Filesystem("list", dir, err)
	}

	sort.Strings(items)
	return items, firstErr
}

// Ignored reports whether the relative path rel matches any of the globs.
// For directories a glob of the form "sub/**" also matches "sub" itself so
// the whole sub-tree can be pruned without descending into it.
func Ignored(rel string, isDir bool, globs []string) bool {
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
