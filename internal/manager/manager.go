// Package manager composes named repositories behind one surface: scan
// fan-out, cross-repository lookups, package export, and a merged event
// stream.
//
// The manager holds no state of its own beyond the repository set; every
// lookup delegates to the owning repository and every repository event is
// re-emitted on the manager's stream, already carrying the repository name.
// Managers are constructed explicitly and passed by the caller; there is no
// process-wide default instance.
package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/packhouse/packhouse/internal/archive"
	"github.com/packhouse/packhouse/internal/repository"
	"github.com/packhouse/packhouse/internal/types"
)

const watchBuffer = 100

// ErrRepositoryExists is returned when Add is called with a name already
// registered.
type ErrRepositoryExists struct{ Name string }

func (e *ErrRepositoryExists) Error() string {
	return fmt.Sprintf("repository %q already registered", e.Name)
}

// ErrRepositoryNotFound is returned by operations naming an unregistered
// repository.
type ErrRepositoryNotFound struct{ Name string }

func (e *ErrRepositoryNotFound) Error() string {
	return fmt.Sprintf("repository %q not registered", e.Name)
}

// ErrPackageNotFound is returned when a repository has no package under the
// requested identifier.
type ErrPackageNotFound struct {
	Repository string
	Identifier string
}

func (e *ErrPackageNotFound) Error() string {
	return fmt.Sprintf("package %q not found in repository %q", e.Identifier, e.Repository)
}

// Manager owns a named set of repositories.
type Manager struct {
	log      *slog.Logger
	archiver *archive.Archiver

	mu    sync.RWMutex
	repos map[string]*repository.Repository
	// forwards tracks the per-repository event channel being relayed so
	// Close can tear the goroutines down
	forwards map[string]<-chan types.RepositoryEvent

	watchMu  sync.Mutex
	watchers []chan types.RepositoryEvent
	closed   bool

	wg sync.WaitGroup
}

// New creates an empty manager.
func New(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		log:      log,
		archiver: archive.New(log),
		repos:    make(map[string]*repository.Repository),
		forwards: make(map[string]<-chan types.RepositoryEvent),
	}
}

// Add constructs a repository from settings and registers it under its
// name. The repository's events are relayed onto the manager's stream.
func (m *Manager) Add(settings repository.Settings) (*repository.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.repos[settings.Name]; exists {
		return nil, &ErrRepositoryExists{Name: settings.Name}
	}

	repo := repository.New(settings, m.log)
	m.repos[settings.Name] = repo

	ch := repo.Watch()
	m.forwards[settings.Name] = ch
	m.wg.Add(1)
	go m.forward(ch)

	m.log.Info("repository registered",
		"repository", settings.Name, "directory", settings.Directory)
	return repo, nil
}

// forward relays one repository's events until its channel closes.
func (m *Manager) forward(ch <-chan types.RepositoryEvent) {
	defer m.wg.Done()
	for ev := range ch {
		m.emit(ev)
	}
}

// Repository retrieves a registered repository by name.
func (m *Manager) Repository(name string) (*repository.Repository, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.repos[name]
	return repo, ok
}

// Repositories returns the registered repositories sorted by name.
func (m *Manager) Repositories() []*repository.Repository {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repos := make([]*repository.Repository, 0, len(m.repos))
	for _, repo := range m.repos {
		repos = append(repos, repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name() < repos[j].Name() })
	return repos
}

// InvalidPackages returns the named repository's invalid-package list.
func (m *Manager) InvalidPackages(name string) ([]*types.PackageInfo, error) {
	repo, ok := m.Repository(name)
	if !ok {
		return nil, &ErrRepositoryNotFound{Name: name}
	}
	return repo.InvalidPackages(), nil
}

// ScanRepository scans one registered repository.
func (m *Manager) ScanRepository(ctx context.Context, name string) error {
	repo, ok := m.Repository(name)
	if !ok {
		return &ErrRepositoryNotFound{Name: name}
	}
	return repo.Scan(ctx)
}

// ScanAll scans every registered repository concurrently. Repositories
// interleave freely; each one's own drain stays sequential. The first scan
// failure (context cancellation) is returned after all scans settle.
func (m *Manager) ScanAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, repo := range m.Repositories() {
		repo := repo
		g.Go(func() error { return repo.Scan(ctx) })
	}
	return g.Wait()
}

// Package resolves the named repository and looks up the identifier.
func (m *Manager) Package(repoName, identifier string) (*types.PackageInfo, error) {
	repo, ok := m.Repository(repoName)
	if !ok {
		return nil, &ErrRepositoryNotFound{Name: repoName}
	}
	pkg, ok := repo.Package(identifier)
	if !ok {
		return nil, &ErrPackageNotFound{Repository: repoName, Identifier: identifier}
	}
	return pkg, nil
}

// ExportPackage streams a zip of the package's directory contents to w,
// delegating to the archive collaborator. The repository definition's
// ignore globs are applied when set; otherwise the archiver's default
// excludes (the _resources sub-tree) take effect.
func (m *Manager) ExportPackage(ctx context.Context, repoName, identifier string, w io.Writer) error {
	repo, ok := m.Repository(repoName)
	if !ok {
		return &ErrRepositoryNotFound{Name: repoName}
	}
	dir, ok := repo.PackageDir(identifier)
	if !ok {
		return &ErrPackageNotFound{Repository: repoName, Identifier: identifier}
	}

	var excludes []string // nil selects archive.DefaultExcludes
	if ignore := repo.Definition().Ignore; len(ignore) > 0 {
		excludes = ignore
	}
	return m.archiver.Stream(ctx, dir, excludes, w)
}

// Watch returns a channel receiving every registered repository's events.
func (m *Manager) Watch() <-chan types.RepositoryEvent {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	ch := make(chan types.RepositoryEvent, watchBuffer)
	m.watchers = append(m.watchers, ch)
	return ch
}

// Unwatch removes a subscription returned by Watch and closes its channel.
func (m *Manager) Unwatch(ch <-chan types.RepositoryEvent) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for i, watcher := range m.watchers {
		if watcher == ch {
			close(watcher)
			m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
			break
		}
	}
}

func (m *Manager) emit(ev types.RepositoryEvent) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.closed {
		return
	}
	for _, watcher := range m.watchers {
		select {
		case watcher <- ev:
		default:
			// skip if channel is full
		}
	}
}

// Close detaches the manager from its repositories' event streams and
// closes every subscriber channel. The repositories themselves remain
// usable.
func (m *Manager) Close() {
	m.mu.Lock()
	for name, ch := range m.forwards {
		m.repos[name].Unwatch(ch)
	}
	m.forwards = make(map[string]<-chan types.RepositoryEvent)
	m.mu.Unlock()

	m.wg.Wait()

	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	m.closed = true
	for _, watcher := range m.watchers {
		close(watcher)
	}
	m.watchers = nil
}
