package errors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ScanError
		want string
	}{
		{
			name: "filesystem with cause",
			err:  Filesystem("read", "pkg/metadata.json", fs.ErrPermission),
			want: `filesystem error: read pkg/metadata.json: permission denied`,
		},
		{
			name: "validation",
			err:  MissingRequirement("pkg", []string{"name"}),
			want: `validation error: extract (package "pkg"): missing required fields [name]`,
		},
		{
			name: "duplicate",
			err:  DuplicateIdentifier("other/pkg", "A1"),
			want: `duplicate error: index (package "other/pkg"): identifier "A1" already indexed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestScanError_Unwrap(t *testing.T) {
	err := Filesystem("read", "some/file", fs.ErrNotExist)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var se *ScanError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindFilesystem, se.Kind)
}

func TestWithRepository(t *testing.T) {
	t.Run("annotates scan errors without mutating the original", func(t *testing.T) {
		orig := TreeWalk("broken/dir", fs.ErrPermission)
		annotated := WithRepository(orig, "main")

		assert.Equal(t, "main", annotated.Repository)
		assert.Empty(t, orig.Repository)
		assert.Equal(t, KindTreeWalk, annotated.Kind)
	})

	t.Run("wraps plain errors", func(t *testing.T) {
		annotated := WithRepository(errors.New("boom"), "main")
		assert.Equal(t, "main", annotated.Repository)
		assert.Equal(t, KindFilesystem, annotated.Kind)
	})
}

func TestIsKind(t *testing.T) {
	err := DuplicateIdentifier("pkg", "DUP")
	assert.True(t, IsKind(err, KindDuplicate))
	assert.False(t, IsKind(err, KindValidation))
	assert.False(t, IsKind(errors.New("plain"), KindDuplicate))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "filesystem", KindFilesystem.String())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "duplicate", KindDuplicate.String())
	assert.Equal(t, "tree_walk", KindTreeWalk.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
