package device

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DeviceIDPersists(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)

	first, err := store.DeviceID()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	_, err = uuid.Parse(first)
	require.NoError(t, err, "device id should be a UUID")

	// Same store returns the same identity.
	again, err := store.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A fresh store over the same directory reads it back.
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	got, err := reopened.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestStore_DistinctDirsDistinctIDs(t *testing.T) {
	a, err := NewStore(t.TempDir())
	require.NoError(t, err)
	b, err := NewStore(t.TempDir())
	require.NoError(t, err)

	idA, err := a.DeviceID()
	require.NoError(t, err)
	idB, err := b.DeviceID()
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
}

func TestHostMetadata_NeverNil(t *testing.T) {
	meta := HostMetadata()

	assert.NotNil(t, meta)
}
