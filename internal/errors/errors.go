// Package errors defines the typed error taxonomy for the scan pipeline.
//
// Nothing in the pipeline is fatal to the process: filesystem failures are
// partial-success, validation failures route packages to a repository's
// invalid list, and identifier conflicts keep the first-discovered package.
// Every error carries enough context (repository, package, path, operation)
// for callers observing the event stream to act on it without parsing
// message strings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a scan error per the pipeline taxonomy.
type Kind int

const (
	// KindFilesystem covers unreadable files and directories; the scan
	// continues with whatever was successfully read.
	KindFilesystem Kind = iota
	// KindValidation covers packages missing required metadata fields.
	KindValidation
	// KindDuplicate covers identifier conflicts within one scan pass.
	KindDuplicate
	// KindTreeWalk covers directory traversal failures; only the affected
	// sub-tree is abandoned.
	KindTreeWalk
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindFilesystem:
		return "filesystem"
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindTreeWalk:
		return "tree_walk"
	default:
		return "unknown"
	}
}

// ScanError is an error raised during a scan, annotated with the context
// needed to locate its origin.
type ScanError struct {
	// Kind classifies the failure
	Kind Kind
	// Repository is the name of the repository being scanned
	Repository string
	// Package is the package path relative to the repository root, empty
	// for repository-scope errors
	Package string
	// Path is the file or directory that triggered the error, when known
	Path string
	// Op names the failing operation ("read", "list", "walk", ...)
	Op string
	// Err is the underlying cause, nil for purely semantic failures such
	// as validation and duplicates
	Err error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Repository != "" {
		msg = fmt.Sprintf("%s (repository %q)", msg, e.Repository)
	}
	if e.Package != "" {
		msg = fmt.Sprintf("%s (package %q)", msg, e.Package)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Filesystem builds a filesystem-kind scan error.
func Filesystem(op, path string, err error) *ScanError {
	return &ScanError{Kind: KindFilesystem, Op: op, Path: path, Err: err}
}

// TreeWalk builds a tree-walk-kind scan error.
func TreeWalk(path string, err error) *ScanError {
	return &ScanError{Kind: KindTreeWalk, Op: "walk", Path: path, Err: err}
}

// MissingRequirement builds a validation-kind scan error for a package
// lacking the named required fields.
func MissingRequirement(pkgPath string, missing []string) *ScanError {
	return &ScanError{
		Kind:    KindValidation,
		Package: pkgPath,
		Op:      "extract",
		Err:     fmt.Errorf("missing required fields %v", missing),
	}
}

// DuplicateIdentifier builds a duplicate-kind scan error for a package
// claiming an identifier already indexed this pass.
func DuplicateIdentifier(pkgPath, identifier string) *ScanError {
	return &ScanError{
		Kind:    KindDuplicate,
		Package: pkgPath,
		Op:      "index",
		Err:     fmt.Errorf("identifier %q already indexed", identifier),
	}
}

// WithRepository returns a copy of err annotated with the repository name.
// Non-ScanError values are wrapped into a filesystem-kind error so that
// repository context is never lost on the event surface.
func WithRepository(err error, repository string) *ScanError {
	var se *ScanError
	if errors.As(err, &se) {
		clone := *se
		clone.Repository = repository
		return &clone
	}
	return &ScanError{Kind: KindFilesystem, Repository: repository, Err: err}
}

// IsKind reports whether err is (or wraps) a ScanError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *ScanError
	return errors.As(err, &se) && se.Kind == kind
}
