package storage

import (
	"testing"

	"github.com/casfs/depot/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *minio.Client {
	t.Helper()
	client, err := minio.New("s3.example.com", &minio.Options{
		Creds:  credentials.NewStaticV4("AK", "SK", ""),
		Secure: true,
	})
	require.NoError(t, err)
	return client
}

func TestNewS3Store(t *testing.T) {
	client := newTestClient(t)

	t.Run("valid", func(t *testing.T) {
		store, err := NewS3Store(client, "blobs", nil)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewS3Store(nil, "blobs", nil)
		assert.ErrorContains(t, err, "client is required")
	})

	t.Run("empty bucket", func(t *testing.T) {
		_, err := NewS3Store(client, "", nil)
		assert.ErrorContains(t, err, "bucket is required")
	})
}

func TestNewS3StoreFromConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		store, err := NewS3StoreFromConfig(config.S3Config{
			Endpoint:  "s3.example.com",
			AccessKey: "AK",
			SecretKey: "SK",
			Bucket:    "blobs",
		})
		require.NoError(t, err)
		assert.Equal(t, "blobs/a.txt", store.Location("a.txt"))
	})

	t.Run("malformed endpoint", func(t *testing.T) {
		_, err := NewS3StoreFromConfig(config.S3Config{
			Endpoint:  "http://not a host",
			AccessKey: "AK",
			SecretKey: "SK",
			Bucket:    "blobs",
		})
		assert.Error(t, err)
	})
}

func TestS3Location(t *testing.T) {
	store, err := NewS3Store(newTestClient(t), "blobs", nil)
	require.NoError(t, err)

	// Pure string composition, keys passed through verbatim.
	assert.Equal(t, "blobs/a.txt", store.Location("a.txt"))
	assert.Equal(t, "blobs/ab/cd/ef", store.Location("ab/cd/ef"))
}

func TestS3StoreImplementsBlobstore(t *testing.T) {
	store, err := NewS3Store(newTestClient(t), "blobs", nil)
	require.NoError(t, err)
	var _ Blobstore = store

	local, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	var _ Blobstore = local
}
