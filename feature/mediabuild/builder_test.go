package mediabuild_test

import (
	"bytes"
	"context"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"photo-sync/core/storage"
	"photo-sync/feature/mediabuild"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend keeps objects in a map. Enough surface for builder tests.
type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}}
}

func (b *memBackend) List(ctx context.Context, prefix string) *storage.Listing {
	b.mu.Lock()
	defer b.mu.Unlock()
	var objs []storage.Object
	for key, data := range b.objects {
		if strings.HasPrefix(key, prefix) {
			objs = append(objs, storage.Object{Key: key, Size: int64(len(data))})
		}
	}
	return storage.ListingOf(nil, objs...)
}

func (b *memBackend) Stat(ctx context.Context, key string) (storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{Key: key, Size: int64(len(data))}, nil
}

func (b *memBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (b *memBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.puts++
	return nil
}

func (b *memBackend) PublicURL(key string) string {
	return "mem://" + key
}

func (b *memBackend) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

// testJPEG renders a uniform frame and encodes it as JPEG.
func testJPEG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := imaging.New(w, h, c)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestBuilder_Build(t *testing.T) {
	backend := newMemBackend()
	cfg := mediabuild.Config{CacheDir: t.TempDir(), ThumbPrefix: ".thumbnails", ThumbSize: 64}
	builder := mediabuild.NewBuilder(backend, cfg, nil)

	taken := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	req := &mediabuild.BuildRequest{
		Object: storage.Object{Key: "2024/img_0001.jpg", Size: 1234, LastModified: taken},
		Buffer: testJPEG(t, 100, 80, color.NRGBA{90, 120, 150, 255}),
	}

	result, err := builder.Build(context.Background(), req)
	require.NoError(t, err)

	item := result.Item
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 100, item.Width)
	assert.Equal(t, 80, item.Height)
	assert.Equal(t, "2024/img_0001.jpg", item.S3Key)
	assert.Equal(t, "mem://2024/img_0001.jpg", item.OriginalURL)
	assert.NotEmpty(t, result.ContentHash)

	// The thumbnail was uploaded next to the originals and perceptually hashed.
	assert.Equal(t, "mem://.thumbnails/"+result.ContentHash+".jpg", item.ThumbnailURL)
	assert.Len(t, item.ThumbHash, 16)
	assert.Equal(t, 1, backend.putCount())

	require.NotNil(t, item.ToneAnalysis)
	assert.Len(t, item.ToneAnalysis.Histogram, 64)

	// A synthetic JPEG carries no EXIF; that degrades to a warning, not an error.
	assert.Nil(t, item.EXIF)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "exif")

	// No EXIF capture time, so the storage timestamp wins.
	assert.Equal(t, "2024-06-01T12:00:00Z", item.DateTaken)
}

func TestBuilder_ReusesArtifactsWhenUnchanged(t *testing.T) {
	backend := newMemBackend()
	cfg := mediabuild.Config{CacheDir: t.TempDir(), ThumbPrefix: ".thumbnails", ThumbSize: 64}
	builder := mediabuild.NewBuilder(backend, cfg, nil)

	buf := testJPEG(t, 120, 90, color.NRGBA{200, 180, 40, 255})
	obj := storage.Object{Key: "a.jpg", LastModified: time.Now().UTC()}

	first, err := builder.Build(context.Background(), &mediabuild.BuildRequest{Object: obj, Buffer: buf})
	require.NoError(t, err)
	require.Equal(t, 1, backend.putCount())

	second, err := builder.Build(context.Background(), &mediabuild.BuildRequest{
		Object:       obj,
		Buffer:       buf,
		Existing:     first.Item,
		ExistingHash: first.ContentHash,
	})
	require.NoError(t, err)

	// Same content: identity and derived artifacts carry over, and the
	// thumbnail is not rebuilt or re-uploaded.
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.Item.ID, second.Item.ID)
	assert.Equal(t, first.Item.ThumbHash, second.Item.ThumbHash)
	assert.Equal(t, first.Item.ThumbnailURL, second.Item.ThumbnailURL)
	assert.Same(t, first.Item.ToneAnalysis, second.Item.ToneAnalysis)
	assert.Equal(t, 1, backend.putCount())
}

func TestBuilder_ForceBypassesReuse(t *testing.T) {
	backend := newMemBackend()
	cfg := mediabuild.Config{CacheDir: t.TempDir(), ThumbPrefix: ".thumbnails", ThumbSize: 64}
	builder := mediabuild.NewBuilder(backend, cfg, nil)

	buf := testJPEG(t, 60, 60, color.NRGBA{10, 10, 10, 255})
	obj := storage.Object{Key: "b.jpg"}

	first, err := builder.Build(context.Background(), &mediabuild.BuildRequest{Object: obj, Buffer: buf})
	require.NoError(t, err)

	_, err = builder.Build(context.Background(), &mediabuild.BuildRequest{
		Object:       obj,
		Buffer:       buf,
		Existing:     first.Item,
		ExistingHash: first.ContentHash,
		Force:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.putCount())
}

func TestBuilder_FetchesWhenNoBuffer(t *testing.T) {
	backend := newMemBackend()
	backend.objects["c.jpg"] = testJPEG(t, 40, 30, color.NRGBA{50, 60, 70, 255})

	cfg := mediabuild.Config{CacheDir: t.TempDir(), ThumbPrefix: ".thumbnails", ThumbSize: 32}
	builder := mediabuild.NewBuilder(backend, cfg, nil)

	result, err := builder.Build(context.Background(), &mediabuild.BuildRequest{
		Object: storage.Object{Key: "c.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 40, result.Item.Width)
}

func TestBuilder_UndecodableInputFails(t *testing.T) {
	backend := newMemBackend()
	builder := mediabuild.NewBuilder(backend, mediabuild.Config{CacheDir: t.TempDir()}, nil)

	_, err := builder.Build(context.Background(), &mediabuild.BuildRequest{
		Object: storage.Object{Key: "not-an-image.jpg"},
		Buffer: []byte("definitely not a jpeg"),
	})
	assert.Error(t, err)
}

func TestHashBytes_StableAcrossMetadataChanges(t *testing.T) {
	buf := testJPEG(t, 50, 50, color.NRGBA{1, 2, 3, 255})

	h1, err := mediabuild.HashBytes(buf)
	require.NoError(t, err)
	h2, err := mediabuild.HashBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := testJPEG(t, 50, 50, color.NRGBA{250, 240, 230, 255})
	h3, err := mediabuild.HashBytes(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
