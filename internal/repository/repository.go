// Package repository implements the repository scan state machine: one
// directory tree walked for packages, an in-memory index keyed by
// identifier, and a typed event stream announcing progress.
//
// A scan pass runs in two sequenced phases. Population performs the full
// recursive traversal from the root, pushing every directory containing the
// configured metadata filename onto the pending-work queue; draining then
// walks one package at a time, strictly sequentially, until the queue is
// empty. Identifier uniqueness is enforced within a pass: the first package
// claiming an identifier wins and later claimants are routed to the invalid
// list. An identifier indexed by an earlier pass is overwritten silently,
// which makes re-scanning an unchanged tree idempotent.
package repository

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	pherrors "github.com/packhouse/packhouse/internal/errors"
	"github.com/packhouse/packhouse/internal/queue"
	"github.com/packhouse/packhouse/internal/scanner"
	"github.com/packhouse/packhouse/internal/types"
)

// watchBuffer is the event buffer per subscriber; slow subscribers drop
// events rather than stall the scan.
const watchBuffer = 100

// Settings configures one repository.
type Settings struct {
	// Name uniquely identifies the repository within a manager
	Name string
	// Directory is the root of the scanned tree
	Directory string
	// Ignore holds doublestar globs, relative to the root, whose sub-trees
	// the traversal never descends into
	Ignore []string
	// Definition describes what marks a package and how to read it
	Definition scanner.Definition
}

// Repository owns one directory tree and its package index.
type Repository struct {
	name   string
	root   string
	ignore []string
	walker *scanner.Walker
	log    *slog.Logger

	mu       sync.RWMutex
	packages map[string]*types.PackageInfo
	invalid  []*types.PackageInfo
	lastScan time.Time
	ready    bool

	// scanMu serializes scan passes; concurrent Scan calls queue up
	// rather than interleave their drains
	scanMu sync.Mutex

	watchMu  sync.Mutex
	watchers []chan types.RepositoryEvent
}

// New creates a repository from settings. The settings' package definition
// is normalized (default metadata filename and rules filled in).
func New(settings Settings, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log = log.With("repository", settings.Name)
	return &Repository{
		name:     settings.Name,
		root:     settings.Directory,
		ignore:   settings.Ignore,
		walker:   scanner.New(settings.Directory, settings.Definition, log),
		log:      log,
		packages: make(map[string]*types.PackageInfo),
	}
}

// Name returns the repository's registered name.
func (r *Repository) Name() string { return r.name }

// Root returns the repository's root directory.
func (r *Repository) Root() string { return r.root }

// Definition returns the normalized package definition in effect.
func (r *Repository) Definition() scanner.Definition { return r.walker.Definition() }

// Scan performs one full scan pass: populate the pending-work queue from a
// recursive traversal, then drain it sequentially. Traversal and walk
// failures surface as error events, never as a returned error; Scan only
// fails when ctx is cancelled mid-drain.
func (r *Repository) Scan(ctx context.Context) error {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	scanID := uuid.NewString()
	r.emit(types.RepositoryEvent{
		Type:       types.RepositoryScanning,
		Repository: r.name,
		ScanID:     scanID,
		Timestamp:  time.Now(),
	})

	q := queue.New[string]()
	r.populate(q, scanID)
	r.log.Debug("scan populated", "scan_id", scanID, "candidates", q.Len())

	seen := make(map[string]struct{}, q.Len())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, ok := q.Next()
		if !ok {
			break
		}
		pkg := &types.PackageInfo{Path: path}
		r.consume(scanID, seen, r.walker.Walk(pkg))
	}

	r.mu.Lock()
	r.lastScan = time.Now()
	first := !r.ready
	r.ready = true
	r.mu.Unlock()

	if first {
		r.emit(types.RepositoryEvent{
			Type:       types.RepositoryReady,
			Repository: r.name,
			ScanID:     scanID,
			Timestamp:  time.Now(),
		})
	}
	r.log.Info("scan complete", "scan_id", scanID,
		"packages", r.Count(), "invalid", len(r.InvalidPackages()))
	return nil
}

// populate pushes every candidate package directory (one containing the
// metadata filename) onto q, relative to the root. Traversal errors abort
// only the affected branch and surface as repository-scope error events.
func (r *Repository) populate(q *queue.Queue[string], scanID string) {
	metadataFilename := r.walker.Definition().MetadataFilename

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.emitError(scanID, nil, pherrors.TreeWalk(path, err))
			return nil
		}
		rel, relErr := filepath.Rel(r.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && scanner.Ignored(rel, true, r.ignore) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == metadataFilename && !scanner.Ignored(rel, false, r.ignore) {
			q.Push(filepath.ToSlash(filepath.Dir(rel)))
		}
		return nil
	})
	if err != nil {
		r.emitError(scanID, nil, pherrors.TreeWalk(r.root, err))
	}
}

// consume applies one walked package's outcome to the index.
func (r *Repository) consume(scanID string, seen map[string]struct{}, ev types.PackageEvent) {
	pkg := ev.Package
	switch ev.Type {
	case types.PackageCreated, types.PackageUpdated:
		if _, dup := seen[pkg.Identifier]; dup {
			r.mu.Lock()
			r.invalid = append(r.invalid, pkg)
			r.mu.Unlock()
			r.log.Warn("duplicate identifier",
				"identifier", pkg.Identifier, "package", pkg.Path)
			r.emit(types.RepositoryEvent{
				Type:       types.RepositoryDuplicateIdentifier,
				Repository: r.name,
				ScanID:     scanID,
				Package:    pkg,
				Err:        pherrors.WithRepository(pherrors.DuplicateIdentifier(pkg.Path, pkg.Identifier), r.name),
				Timestamp:  time.Now(),
			})
			return
		}
		seen[pkg.Identifier] = struct{}{}
		r.mu.Lock()
		r.packages[pkg.Identifier] = pkg
		r.mu.Unlock()
		r.emit(types.RepositoryEvent{
			Type:       types.RepositoryPackageAdded,
			Repository: r.name,
			ScanID:     scanID,
			Package:    pkg,
			Timestamp:  time.Now(),
		})
	case types.PackageMissingRequirement:
		r.mu.Lock()
		r.invalid = append(r.invalid, pkg)
		r.mu.Unlock()
		r.emitError(scanID, pkg, ev.Err)
	}
}

// emitError re-signals err with repository context attached.
func (r *Repository) emitError(scanID string, pkg *types.PackageInfo, err error) {
	r.log.Warn("scan error", "scan_id", scanID, "error", err)
	r.emit(types.RepositoryEvent{
		Type:       types.RepositoryError,
		Repository: r.name,
		ScanID:     scanID,
		Package:    pkg,
		Err:        pherrors.WithRepository(err, r.name),
		Timestamp:  time.Now(),
	})
}

// Package retrieves an indexed package by identifier.
func (r *Repository) Package(identifier string) (*types.PackageInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[identifier]
	return pkg, ok
}

// Packages returns a copy of the index.
func (r *Repository) Packages() map[string]*types.PackageInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]*types.PackageInfo, len(r.packages))
	for id, pkg := range r.packages {
		result[id] = pkg
	}
	return result
}

// InvalidPackages returns the packages that failed validation or collided
// on identifier, in discovery order.
func (r *Repository) InvalidPackages() []*types.PackageInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*types.PackageInfo, len(r.invalid))
	copy(result, r.invalid)
	return result
}

// Count returns the number of indexed packages.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packages)
}

// LastScan returns when the most recent scan pass drained; zero before the
// first completes.
func (r *Repository) LastScan() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastScan
}

// PackageDir resolves the absolute directory of an indexed package.
func (r *Repository) PackageDir(identifier string) (string, bool) {
	pkg, ok := r.Package(identifier)
	if !ok {
		return "", false
	}
	return filepath.Join(r.root, filepath.FromSlash(pkg.Path)), true
}

// HandleChange reacts to a filesystem change at absPath (as reported by a
// watcher). A change inside an indexed package re-walks that instance in
// place; any other change triggers a full re-scan, since it may introduce
// or remove packages.
func (r *Repository) HandleChange(ctx context.Context, absPath string) error {
	rel, err := filepath.Rel(r.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil // outside this repository
	}
	rel = filepath.ToSlash(rel)

	if pkg := r.containing(rel); pkg != nil {
		r.rewalk(pkg)
		return nil
	}
	return r.Scan(ctx)
}

// containing returns the indexed package whose directory contains rel.
func (r *Repository) containing(rel string) *types.PackageInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, pkg := range r.packages {
		if rel == pkg.Path || strings.HasPrefix(rel, pkg.Path+"/") {
			return pkg
		}
	}
	return nil
}

// rewalk re-walks an indexed package. Indexed instances are never mutated
// after publication, so concurrent readers holding a pointer from Package
// or Packages stay safe: the walk runs on a fresh instance (carrying the
// walk time so the outcome is an update, not a creation) which is swapped
// into the index under the lock. A package that stays valid replaces the
// old entry (re-keyed if its identifier changed); one that lost a required
// field is dropped from the index and recorded as invalid.
func (r *Repository) rewalk(pkg *types.PackageInfo) {
	previous := pkg.Identifier
	fresh := &types.PackageInfo{Path: pkg.Path, LastWalk: pkg.LastWalk}
	ev := r.walker.Walk(fresh)

	switch ev.Type {
	case types.PackageUpdated, types.PackageCreated:
		r.mu.Lock()
		if fresh.Identifier != previous {
			delete(r.packages, previous)
		}
		r.packages[fresh.Identifier] = fresh
		r.mu.Unlock()
		r.emit(types.RepositoryEvent{
			Type:       types.RepositoryPackageAdded,
			Repository: r.name,
			Package:    fresh,
			Timestamp:  time.Now(),
		})
	case types.PackageMissingRequirement:
		r.mu.Lock()
		delete(r.packages, previous)
		r.invalid = append(r.invalid, fresh)
		r.mu.Unlock()
		r.emitError("", fresh, ev.Err)
	}
}

// Watch returns a channel receiving this repository's events. Events are
// dropped, not queued unboundedly, when the subscriber falls behind.
func (r *Repository) Watch() <-chan types.RepositoryEvent {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	ch := make(chan types.RepositoryEvent, watchBuffer)
	r.watchers = append(r.watchers, ch)
	return ch
}

// Unwatch removes a subscription returned by Watch and closes its channel.
func (r *Repository) Unwatch(ch <-chan types.RepositoryEvent) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

func (r *Repository) emit(ev types.RepositoryEvent) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	for _, watcher := range r.watchers {
		select {
		case watcher <- ev:
		default:
			// skip if channel is full
		}
	}
}
