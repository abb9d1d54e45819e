package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPepperIsPersistedAndChangesHashes(t *testing.T) {
	original := pepperFile
	t.Cleanup(func() { SetPepperPath(original) })

	dir := t.TempDir()
	first := filepath.Join(dir, "a", "pepper")
	SetPepperPath(first)

	p1, err := GetPepper()
	require.NoError(t, err)
	require.NotEmpty(t, p1)

	onDisk, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, p1, string(onDisk))

	hash, err := HashPassword("Abc123!")
	require.NoError(t, err)

	// Reloading from the same file gives the same pepper.
	SetPepperPath(first)
	p2, err := GetPepper()
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	require.NoError(t, VerifyPassword("Abc123!", hash))

	// A different pepper must not verify the old hash.
	SetPepperPath(filepath.Join(dir, "b", "pepper"))
	require.ErrorIs(t, VerifyPassword("Abc123!", hash), ErrPasswordMismatch)
}

func TestEmptyPepperFileIsRejected(t *testing.T) {
	original := pepperFile
	t.Cleanup(func() { SetPepperPath(original) })

	file := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(file, []byte("  \n"), 0600))
	SetPepperPath(file)

	_, err := GetPepper()
	require.Error(t, err)
}
