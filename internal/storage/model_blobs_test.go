package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStores(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	fileStore, err := NewFileBlobStore(t.TempDir())
	require.NoError(t, err)

	stores := map[string]service.ModelBlobStore{
		"sqlite": store,
		"file":   fileStore,
	}

	for name, blobs := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := blobs.LoadBlob(ctx, "category_model")
			assert.ErrorIs(t, err, common.ErrNotFound)

			require.NoError(t, blobs.SaveBlob(ctx, "category_model", []byte(`{"v":1}`)))
			require.NoError(t, blobs.SaveBlob(ctx, "category_model", []byte(`{"v":2}`)))

			data, err := blobs.LoadBlob(ctx, "category_model")
			require.NoError(t, err)
			assert.Equal(t, `{"v":2}`, string(data))

			assert.Error(t, blobs.SaveBlob(ctx, "category_model", nil))
		})
	}
}
