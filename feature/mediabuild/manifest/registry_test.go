package manifest_test

import (
	"encoding/json"
	"testing"

	"photo-sync/feature/mediabuild/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_V1ToCurrent(t *testing.T) {
	raw := []byte(`{
		"id": "photo-1",
		"width": 4032,
		"height": 3024,
		"thumbnail": "https://cdn.example.com/.thumbnails/abc.jpg",
		"dateTaken": "2021:05:06 07:08:09",
		"s3Key": "2021/img_0042.jpg"
	}`)

	out, version, err := manifest.Migrate(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, manifest.CurrentVersion, version)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(out, &payload))

	// v1 -> v2: thumbnail renamed, toneAnalysis slot introduced.
	assert.NotContains(t, payload, "thumbnail")
	assert.Equal(t, "https://cdn.example.com/.thumbnails/abc.jpg", payload["thumbnailUrl"])
	assert.Contains(t, payload, "toneAnalysis")

	// v2 -> v3: dateTaken normalized to RFC 3339 UTC.
	assert.Equal(t, "2021-05-06T07:08:09Z", payload["dateTaken"])
}

func TestMigrate_CurrentVersionIsPassthrough(t *testing.T) {
	raw := []byte(`{"id":"photo-1","width":10,"height":10,"s3Key":"a.jpg"}`)

	out, version, err := manifest.Migrate(raw, manifest.CurrentVersion)
	require.NoError(t, err)
	assert.Equal(t, manifest.CurrentVersion, version)
	assert.Equal(t, raw, out)
}

func TestMigrate_V2DropsUnparseableDateTaken(t *testing.T) {
	raw := []byte(`{"id":"photo-1","thumbnailUrl":"u","dateTaken":"yesterday-ish"}`)

	out, _, err := manifest.Migrate(raw, 2)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.NotContains(t, payload, "dateTaken")
}

func TestMigrate_CorruptRecords(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		version int
	}{
		{"UnknownVersion", `{"id":"x"}`, 99},
		{"ZeroVersion", `{"id":"x"}`, 0},
		{"NegativeVersion", `{"id":"x"}`, -1},
		{"EmptyPayload", ``, 1},
		{"NotJSON", `{{{`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := manifest.Migrate([]byte(tt.raw), tt.version)
			assert.ErrorIs(t, err, manifest.ErrCorrupt)
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	raw := []byte(`{"id":"p","thumbnail":"u","dateTaken":"2021-05-06 07:08:09"}`)

	once, _, err := manifest.Migrate(raw, 1)
	require.NoError(t, err)

	// Re-running the v1 step on already-migrated data must not change it.
	twice, _, err := manifest.Migrate(once, 1)
	require.NoError(t, err)
	assert.JSONEq(t, string(once), string(twice))
}

func TestDecode(t *testing.T) {
	raw := []byte(`{"id":"photo-1","width":100,"height":50,"thumbnail":"u","s3Key":"a.jpg"}`)

	item, err := manifest.Decode(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, "photo-1", item.ID)
	assert.Equal(t, 100, item.Width)
	assert.Equal(t, 50, item.Height)
	assert.Equal(t, "u", item.ThumbnailURL)
}

func TestNormalizeDateTaken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"RFC3339", "2021-05-06T07:08:09Z", "2021-05-06T07:08:09Z", true},
		{"RFC3339WithOffset", "2021-05-06T09:08:09+02:00", "2021-05-06T07:08:09Z", true},
		{"EXIFLayout", "2021:05:06 07:08:09", "2021-05-06T07:08:09Z", true},
		{"LooseLayout", "2021-05-06 07:08:09", "2021-05-06T07:08:09Z", true},
		{"Garbage", "last tuesday", "", false},
		{"Empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := manifest.NormalizeDateTaken(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
