package contextstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		FileName: "polizza auto.pdf",
		FileType: "application/pdf",
		FileSize: 1024,
		Chunked:  []string{"prima parte", "seconda parte"},
		Vectors: []Vector{
			{Chunk: "prima parte", Embedding: []float32{0.1, 0.2}, Index: 0},
			{Chunk: "seconda parte", Embedding: []float32{0.3, 0.4}, Index: 1},
		},
		EmbeddingsGenerated: true,
	}
}

func TestStore(t *testing.T) {
	t.Run("should round-trip a record through save and load", func(t *testing.T) {
		store := NewStore(t.TempDir())

		path, err := store.Save("mario", sampleRecord())
		require.NoError(t, err)

		loaded, err := store.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "polizza auto.pdf", loaded.FileName)
		assert.Equal(t, []string{"prima parte", "seconda parte"}, loaded.Chunked)
		require.Len(t, loaded.Vectors, 2)
		assert.Equal(t, []float32{0.1, 0.2}, loaded.Vectors[0].Embedding)
		assert.True(t, loaded.EmbeddingsGenerated)
		assert.NotEmpty(t, loaded.UploadedAt)
	})

	t.Run("should sanitize file and user names in paths", func(t *testing.T) {
		store := NewStore(t.TempDir())

		path, err := store.Save("mario@example.com", sampleRecord())
		require.NoError(t, err)

		assert.Contains(t, path, "mario_example.com")
		assert.NotContains(t, filepath.Base(path), " ")
	})

	t.Run("should list own records together with base context", func(t *testing.T) {
		root := t.TempDir()
		store := NewStore(root)

		base := sampleRecord()
		base.FileName = "condizioni-generali.pdf"
		_, err := store.Save("base-context", base)
		require.NoError(t, err)
		_, err = store.Save("mario", sampleRecord())
		require.NoError(t, err)

		entries, err := store.List("mario")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "condizioni-generali.pdf", entries[0].FileName)
		assert.True(t, entries[0].IsBaseContext)
		assert.Equal(t, "polizza auto.pdf", entries[1].FileName)
		assert.False(t, entries[1].IsBaseContext)
		assert.Equal(t, len("prima parte")+len("seconda parte"), entries[1].CharacterCount)
	})

	t.Run("should not see another user's records", func(t *testing.T) {
		store := NewStore(t.TempDir())

		_, err := store.Save("mario", sampleRecord())
		require.NoError(t, err)

		entries, err := store.List("luigi")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("should reject loading paths outside the store root", func(t *testing.T) {
		store := NewStore(t.TempDir())

		outside := filepath.Join(t.TempDir(), "sneaky.json")
		require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o644))

		_, err := store.Load(outside)
		assert.Error(t, err)
	})

	t.Run("should delete a record by name and upload time", func(t *testing.T) {
		store := NewStore(t.TempDir())

		path, err := store.Save("mario", sampleRecord())
		require.NoError(t, err)
		loaded, err := store.Load(path)
		require.NoError(t, err)

		require.NoError(t, store.Delete("mario", loaded.FileName, loaded.UploadedAt))

		entries, err := store.List("mario")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("should report missing record on delete", func(t *testing.T) {
		store := NewStore(t.TempDir())
		err := store.Delete("mario", "nope.pdf", time.Now().UTC().Format(time.RFC3339))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
