package manifest

import "time"

// CurrentVersion is the manifest schema version produced by the build
// pipeline. Older versions are migrated lazily on read; see registry.go.
const CurrentVersion = 3

// EXIF is the subset of camera metadata carried in the manifest.
type EXIF struct {
	Make             string   `json:"make,omitempty"`
	Model            string   `json:"model,omitempty"`
	LensModel        string   `json:"lensModel,omitempty"`
	ISO              int      `json:"iso,omitempty"`
	FNumber          float64  `json:"fNumber,omitempty"`
	ExposureTime     string   `json:"exposureTime,omitempty"`
	FocalLength      float64  `json:"focalLength,omitempty"`
	DateTimeOriginal string   `json:"dateTimeOriginal,omitempty"`
	Orientation      int      `json:"orientation,omitempty"`
	GPSLatitude      *float64 `json:"gpsLatitude,omitempty"`
	GPSLongitude     *float64 `json:"gpsLongitude,omitempty"`
}

// ToneAnalysis describes the luminance distribution of the decoded image.
type ToneAnalysis struct {
	// Histogram is a 64-bin luminance histogram of the decoded pixels.
	Histogram []int `json:"histogram"`
	// Brightness is the mean luminance, normalized to [0,1].
	Brightness float64 `json:"brightness"`
	// Contrast is the luminance standard deviation, normalized to [0,1].
	Contrast float64 `json:"contrast"`
	// UnderexposedRatio is the fraction of pixels in the darkest bins.
	UnderexposedRatio float64 `json:"underexposedRatio"`
	// OverexposedRatio is the fraction of pixels in the brightest bins.
	OverexposedRatio float64 `json:"overexposedRatio"`
	// ToneType classifies the overall exposure: low-key, high-key or normal.
	ToneType string `json:"toneType"`
}

// Video kinds for paired assets.
const (
	VideoKindLive   = "live"   // Apple Live Photo: still + .mov partner
	VideoKindMotion = "motion" // Android Motion Photo: still + .mp4 partner
)

// LivePhotoInfo describes the video half of a paired live/motion photo.
type LivePhotoInfo struct {
	Kind     string `json:"kind"`
	VideoKey string `json:"videoKey"`
	VideoURL string `json:"videoUrl,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Item is the versioned, derived description of one photo. It is produced
// wholesale by the media build pipeline and never partially mutated: a
// re-extraction replaces the entire value.
type Item struct {
	ID           string         `json:"id"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	DateTaken    string         `json:"dateTaken,omitempty"` // RFC 3339 UTC
	EXIF         *EXIF          `json:"exif,omitempty"`
	ThumbHash    string         `json:"thumbHash,omitempty"`
	ToneAnalysis *ToneAnalysis  `json:"toneAnalysis,omitempty"`
	S3Key        string         `json:"s3Key"`
	OriginalURL  string         `json:"originalUrl,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Video        *LivePhotoInfo `json:"video,omitempty"`
}

// dateTaken layouts seen in the wild: RFC 3339 from our own pipeline, the
// EXIF timestamp format, and a loose middle ground from early records.
var dateLayouts = []string{
	time.RFC3339,
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDateTaken parses a timestamp in any accepted layout and
// re-renders it as RFC 3339 UTC. ok is false when the value cannot be
// parsed.
func NormalizeDateTaken(s string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}
