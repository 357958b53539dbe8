package pagestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadPage(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save("doc1", "0", "page zero text"))

	text, found, err := store.Load("doc1", "0")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "page zero text", text)
}

func TestLoadMissingPageIsNotAnError(t *testing.T) {
	store := NewStore(t.TempDir())

	text, found, err := store.Load("doc1", "9")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, text)
}

func TestSaveOverwritesOnReingest(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save("doc1", "0", "first version"))
	require.NoError(t, store.Save("doc1", "0", "second version"))

	text, found, err := store.Load("doc1", "0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second version", text)
}

func TestDeleteDocumentRemovesAllPages(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save("doc1", "0", "page zero"))
	require.NoError(t, store.Save("doc1", "1", "page one"))
	require.NoError(t, store.Save("doc2", "0", "other doc"))

	require.NoError(t, store.DeleteDocument("doc1"))

	_, found, err := store.Load("doc1", "0")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = store.Load("doc1", "1")
	require.NoError(t, err)
	assert.False(t, found)

	// Other documents are untouched.
	text, found, err := store.Load("doc2", "0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "other doc", text)
}

func TestDeleteDocumentWithoutPagesIsNoop(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.DeleteDocument("ghost"))
}

func TestPagesIsolatedPerDocument(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save("doc1", "0", "doc one"))
	require.NoError(t, store.Save("doc2", "0", "doc two"))

	text, found, err := store.Load("doc2", "0")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "doc two", text)
}
