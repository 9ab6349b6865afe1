package manager

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhouse/packhouse/internal/repository"
	"github.com/packhouse/packhouse/internal/types"
)

func writePackage(t *testing.T, root, dir, name, identifier string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	content := `{"name": "` + name + `", "identifier": "` + identifier + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(path, "package.json"), []byte(content), 0o644))
}

func newTestManager(t *testing.T, roots map[string]string) *Manager {
	t.Helper()
	m := New(nil)
	t.Cleanup(m.Close)
	for name, root := range roots {
		_, err := m.Add(repository.Settings{Name: name, Directory: root})
		require.NoError(t, err)
	}
	return m
}

func TestAdd_RejectsDuplicateNames(t *testing.T) {
	m := newTestManager(t, map[string]string{"main": t.TempDir()})

	_, err := m.Add(repository.Settings{Name: "main", Directory: t.TempDir()})
	var exists *ErrRepositoryExists
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "main", exists.Name)
}

func TestRepositories_SortedByName(t *testing.T) {
	m := newTestManager(t, map[string]string{
		"zeta": t.TempDir(), "alpha": t.TempDir(), "mid": t.TempDir(),
	})

	var names []string
	for _, repo := range m.Repositories() {
		names = append(names, repo.Name())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestScanRepository(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "alpha", "Alpha", "A1")
	m := newTestManager(t, map[string]string{"main": root})

	require.NoError(t, m.ScanRepository(context.Background(), "main"))

	pkg, err := m.Package("main", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", pkg.Name)
}

func TestScanRepository_Unregistered(t *testing.T) {
	m := newTestManager(t, nil)
	err := m.ScanRepository(context.Background(), "ghost")
	var notFound *ErrRepositoryNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestScanAll(t *testing.T) {
	rootA := t.TempDir()
	writePackage(t, rootA, "alpha", "Alpha", "A1")
	rootB := t.TempDir()
	writePackage(t, rootB, "beta", "Beta", "B2")

	m := newTestManager(t, map[string]string{"a": rootA, "b": rootB})
	require.NoError(t, m.ScanAll(context.Background()))

	_, err := m.Package("a", "A1")
	assert.NoError(t, err)
	_, err = m.Package("b", "B2")
	assert.NoError(t, err)

	// identifiers are scoped per repository
	_, err = m.Package("a", "B2")
	var notFound *ErrPackageNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestInvalidPackages(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "broken", "", "X1")
	m := newTestManager(t, map[string]string{"main": root})
	require.NoError(t, m.ScanAll(context.Background()))

	invalid, err := m.InvalidPackages("main")
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, "broken", invalid[0].Path)

	_, err = m.InvalidPackages("ghost")
	var notFound *ErrRepositoryNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestExportPackage(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "alpha", "Alpha", "A1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alpha", "_resources"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "alpha", "_resources", "raw.bin"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "alpha", "readme.md"), []byte("# alpha"), 0o644))

	m := newTestManager(t, map[string]string{"main": root})
	require.NoError(t, m.ScanAll(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, m.ExportPackage(context.Background(), "main", "A1", &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"package.json", "readme.md"}, names,
		"the _resources sub-tree is excluded by default")
}

func TestExportPackage_Errors(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "alpha", "Alpha", "A1")
	m := newTestManager(t, map[string]string{"main": root})
	require.NoError(t, m.ScanAll(context.Background()))

	var buf bytes.Buffer
	var repoNotFound *ErrRepositoryNotFound
	assert.ErrorAs(t, m.ExportPackage(context.Background(), "ghost", "A1", &buf), &repoNotFound)

	var pkgNotFound *ErrPackageNotFound
	assert.ErrorAs(t, m.ExportPackage(context.Background(), "main", "nope", &buf), &pkgNotFound)
}

func TestWatch_RelaysRepositoryEvents(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "alpha", "Alpha", "A1")

	m := newTestManager(t, map[string]string{"main": root})
	ch := m.Watch()

	require.NoError(t, m.ScanAll(context.Background()))

	seen := make(map[types.RepositoryEventType]bool)
	deadline := time.After(2 * time.Second)
	for !seen[types.RepositoryReady] {
		select {
		case ev := <-ch:
			assert.Equal(t, "main", ev.Repository)
			seen[ev.Type] = true
		case <-deadline:
			t.Fatal("timed out waiting for relayed events")
		}
	}
	assert.True(t, seen[types.RepositoryScanning])
	assert.True(t, seen[types.RepositoryPackageAdded])
}

func TestClose_ClosesSubscribers(t *testing.T) {
	m := New(nil)
	_, err := m.Add(repository.Settings{Name: "main", Directory: t.TempDir()})
	require.NoError(t, err)

	ch := m.Watch()
	m.Close()

	_, open := <-ch
	assert.False(t, open)
}
