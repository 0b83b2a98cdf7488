// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the reading suppliers

package readings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DirSupplier Tests
// =============================================================================

func writeReading(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirSupplier_ResolvesReferencedFiles(t *testing.T) {
	root := t.TempDir()
	writeReading(t, root, "week1/reading1.txt", "Federalist 10 text.")
	writeReading(t, root, "week1/reading2.txt", "Brutus 1 text.")

	supplier := NewDirSupplier(root)
	docs, err := supplier.Resolve(context.Background(),
		[]string{"week1/reading1.txt", "week1/reading2.txt"})
	require.NoError(t, err)

	assert.Len(t, docs, 2)
	assert.Equal(t, "Federalist 10 text.", docs["reading1.txt"])
	assert.Equal(t, "Brutus 1 text.", docs["reading2.txt"])
}

func TestDirSupplier_OmitsMissingAndEmpty(t *testing.T) {
	root := t.TempDir()
	writeReading(t, root, "good.txt", "content")
	writeReading(t, root, "blank.txt", "   \n\t  ")

	supplier := NewDirSupplier(root)
	docs, err := supplier.Resolve(context.Background(),
		[]string{"good.txt", "blank.txt", "missing.txt"})
	require.NoError(t, err, "per-document failures never error")

	assert.Len(t, docs, 1)
	assert.Contains(t, docs, "good.txt")
}

func TestDirSupplier_ConfinesPathsToRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	supplier := NewDirSupplier(root)
	docs, err := supplier.Resolve(context.Background(),
		[]string{"../secret.txt", "/etc/passwd"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDirSupplier_TrimsWhitespace(t *testing.T) {
	root := t.TempDir()
	writeReading(t, root, "padded.txt", "\n\n  actual text  \n")

	supplier := NewDirSupplier(root)
	docs, err := supplier.Resolve(context.Background(), []string{"padded.txt"})
	require.NoError(t, err)
	assert.Equal(t, "actual text", docs["padded.txt"])
}

func TestDirSupplier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	supplier := NewDirSupplier(t.TempDir())
	_, err := supplier.Resolve(ctx, []string{"anything.txt"})
	assert.Error(t, err)
}

// =============================================================================
// StaticSupplier Tests
// =============================================================================

func TestStaticSupplier_ResolvesKnownRefs(t *testing.T) {
	supplier := &StaticSupplier{Docs: map[string]string{
		"a.txt": "A",
		"b.txt": "B",
	}}

	docs, err := supplier.Resolve(context.Background(), []string{"a.txt", "unknown.txt"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "A"}, docs)
}
