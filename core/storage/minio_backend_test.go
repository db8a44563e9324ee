package storage_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"photo-sync/core/storage"
	"photo-sync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func infoChan(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, info := range infos {
		ch <- info
	}
	close(ch)
	return ch
}

func TestMinioBackend_List(t *testing.T) {
	client := &mocks.Client{}
	backend := storage.NewMinioBackend(client, storage.Config{Bucket: "photos"})

	lm := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	client.On("ListObjects", mock.Anything, "photos", minio.ListObjectsOptions{Prefix: "2024/", Recursive: true}).
		Return(infoChan(
			minio.ObjectInfo{Key: "2024/a.jpg", Size: 10, ETag: `"abc"`, LastModified: lm},
			minio.ObjectInfo{Key: "2024/b.jpg", Size: 20, ETag: "def", LastModified: lm},
		))

	objects, err := backend.List(context.Background(), "2024/").Drain()
	require.NoError(t, err)
	require.Len(t, objects, 2)
	// ETag quoting is stripped so signatures compare cleanly.
	assert.Equal(t, "abc", objects[0].ETag)
	assert.Equal(t, "def", objects[1].ETag)
	assert.Equal(t, int64(10), objects[0].Size)

	client.AssertExpectations(t)
}

func TestMinioBackend_ListErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantAuth bool
	}{
		{"access denied is fatal", "AccessDenied", true},
		{"throttling is retryable", "SlowDown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mocks.Client{}
			backend := storage.NewMinioBackend(client, storage.Config{Bucket: "photos"})

			client.On("ListObjects", mock.Anything, "photos", mock.Anything).
				Return(infoChan(
					minio.ObjectInfo{Key: "a.jpg", Size: 10},
					minio.ObjectInfo{Err: minio.ErrorResponse{Code: tt.code}},
				))

			objects, err := backend.List(context.Background(), "").Drain()
			require.Error(t, err)
			// Objects listed before the failing page still come through; the
			// error tells the caller to discard them.
			assert.Len(t, objects, 1)

			var authErr *storage.AuthError
			var listErr *storage.ListingError
			if tt.wantAuth {
				assert.ErrorAs(t, err, &authErr)
			} else {
				assert.ErrorAs(t, err, &listErr)
			}
		})
	}
}

func TestMinioBackend_StatMapsNoSuchKey(t *testing.T) {
	client := &mocks.Client{}
	backend := storage.NewMinioBackend(client, storage.Config{Bucket: "photos"})

	client.On("StatObject", mock.Anything, "photos", "gone.jpg", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	_, err := backend.Stat(context.Background(), "gone.jpg")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestMinioBackend_FetchReadsWholeObject(t *testing.T) {
	client := &mocks.Client{}
	backend := storage.NewMinioBackend(client, storage.Config{Bucket: "photos"})

	body := io.NopCloser(bytes.NewReader([]byte("jpeg-bytes")))
	client.On("GetObject", mock.Anything, "photos", "a.jpg", mock.Anything).
		Return(body, nil)

	data, err := backend.Fetch(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestMinioBackend_PublicURL(t *testing.T) {
	client := &mocks.Client{}

	withBase := storage.NewMinioBackend(client, storage.Config{Bucket: "photos", PublicBaseURL: "https://cdn.example.com/"})
	assert.Equal(t, "https://cdn.example.com/2024/a.jpg", withBase.PublicURL("2024/a.jpg"))

	bare := storage.NewMinioBackend(client, storage.Config{Bucket: "photos", Endpoint: "minio:9000", UseSSL: true})
	assert.Equal(t, "https://minio:9000/photos/2024/a.jpg", bare.PublicURL("2024/a.jpg"))
}
