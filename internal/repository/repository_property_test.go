package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestScanProperties validates invariants of the scan pipeline over
// generated directory trees.
func TestScanProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("re-scan yields an identical identifier set", prop.ForAll(
		func(packageCount int) bool {
			root := t.TempDir()
			for i := 0; i < packageCount; i++ {
				dir := filepath.Join(root, fmt.Sprintf("pkg%03d", i))
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return false
				}
				content := fmt.Sprintf(`{"name": "Package %d", "identifier": "id-%03d"}`, i, i)
				if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644); err != nil {
					return false
				}
			}

			repo := New(Settings{Name: "prop", Directory: root}, nil)
			if err := repo.Scan(context.Background()); err != nil {
				return false
			}
			first := identifierSet(repo)
			if len(first) != packageCount {
				return false
			}

			if err := repo.Scan(context.Background()); err != nil {
				return false
			}
			second := identifierSet(repo)

			if len(first) != len(second) {
				return false
			}
			for id := range first {
				if !second[id] {
					return false
				}
			}
			// no conflicts on an unchanged tree
			return len(repo.InvalidPackages()) == 0
		},
		gen.IntRange(0, 12),
	))

	properties.Property("every indexed package is valid", prop.ForAll(
		func(validCount, invalidCount int) bool {
			root := t.TempDir()
			for i := 0; i < validCount; i++ {
				dir := filepath.Join(root, fmt.Sprintf("ok%02d", i))
				_ = os.MkdirAll(dir, 0o755)
				content := fmt.Sprintf(`{"name": "N%d", "identifier": "v-%02d"}`, i, i)
				_ = os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644)
			}
			for i := 0; i < invalidCount; i++ {
				dir := filepath.Join(root, fmt.Sprintf("bad%02d", i))
				_ = os.MkdirAll(dir, 0o755)
				_ = os.WriteFile(filepath.Join(dir, "package.json"),
					[]byte(fmt.Sprintf(`{"identifier": "i-%02d"}`, i)), 0o644)
			}

			repo := New(Settings{Name: "prop", Directory: root}, nil)
			if err := repo.Scan(context.Background()); err != nil {
				return false
			}

			for _, pkg := range repo.Packages() {
				if !pkg.Valid() {
					return false
				}
			}
			return repo.Count() == validCount && len(repo.InvalidPackages()) == invalidCount
		},
		gen.IntRange(0, 8),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
