// Package types provides common type definitions used throughout packhouse.
// This package contains shared types to avoid circular dependencies between
// the scanner, repository, and manager packages.
package types

import "time"

// PackageInfo contains the metadata of a discovered package: a directory
// identified by a metadata file, with a display name, a unique identifier,
// and a listing of its contained files.
type PackageInfo struct {
	// Path is the package directory relative to its repository root
	Path string
	// Name is the display name extracted from the metadata file
	Name string
	// Identifier is the unique key extracted from the metadata file
	Identifier string
	// Items lists the files under the package directory, relative to it,
	// in lexical walk order, excluding ignored paths
	Items []string
	// Fields holds every extracted metadata field, including Name and
	// Identifier, keyed by rule name
	Fields map[string]string
	// LastWalk is the time of the most recent successful walk; zero until
	// the package has been walked once
	LastWalk time.Time
}

// Valid reports whether the package carries both required metadata fields.
// Invalid packages are never admitted to a repository index.
func (p *PackageInfo) Valid() bool {
	return p != nil && p.Name != "" && p.Identifier != ""
}

// MissingFields returns the names of required metadata fields that are
// empty, in a fixed order.
func (p *PackageInfo) MissingFields() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Identifier == "" {
		missing = append(missing, "identifier")
	}
	return missing
}

// PackageEventType represents the kind of package lifecycle event.
type PackageEventType string

const (
	// PackageCreated is emitted on the first successful walk of a package.
	PackageCreated PackageEventType = "created"
	// PackageUpdated is emitted on every subsequent successful walk of the
	// same package instance.
	PackageUpdated PackageEventType = "updated"
	// PackageMissingRequirement is emitted when a walked package lacks a
	// required metadata field and cannot be indexed.
	PackageMissingRequirement PackageEventType = "missing_requirement"
)

// PackageEvent is the outcome of walking one package candidate.
type PackageEvent struct {
	Type      PackageEventType
	Package   *PackageInfo
	Err       error
	Timestamp time.Time
}

// RepositoryEventType represents the kind of repository lifecycle event.
type RepositoryEventType string

const (
	// RepositoryScanning is emitted when a scan pass starts.
	RepositoryScanning RepositoryEventType = "scanning"
	// RepositoryReady is emitted at most once per repository, when its
	// first scan pass has fully drained.
	RepositoryReady RepositoryEventType = "ready"
	// RepositoryPackageAdded is emitted when a package is indexed.
	RepositoryPackageAdded RepositoryEventType = "package_added"
	// RepositoryDuplicateIdentifier is emitted when a scan pass discovers
	// a second package claiming an already-indexed identifier.
	RepositoryDuplicateIdentifier RepositoryEventType = "duplicate_identifier"
	// RepositoryError is emitted for traversal and validation failures.
	RepositoryError RepositoryEventType = "error"
)

// RepositoryEvent represents a change in a repository, used for real-time
// notifications to subscribers like the manager and the serve command.
type RepositoryEvent struct {
	Type RepositoryEventType
	// Repository is the name of the repository the event belongs to
	Repository string
	// ScanID identifies the scan pass that produced the event, empty for
	// events raised outside a scan (watcher re-walks)
	ScanID string
	// Package is set for package-scoped events, nil otherwise
	Package *PackageInfo
	// Err carries the triggering error for error-kind events
	Err       error
	Timestamp time.Time
}
