package mediabuild

// Config holds configuration for the media build pipeline. It travels
// inside worker job payloads, so every field carries a json tag.
type Config struct {
	// CacheDir is the local directory for derived thumbnail files, keyed by
	// content hash.
	CacheDir string `mapstructure:"cache_dir" default:".cache/thumbs" json:"cacheDir"`
	// ThumbPrefix is the bucket prefix under which generated thumbnails are
	// uploaded. Keys under this prefix are invisible to the lister.
	ThumbPrefix string `mapstructure:"thumb_prefix" default:".thumbnails" json:"thumbPrefix"`
	// ThumbSize is the bounding box (px) for generated thumbnails.
	ThumbSize int `mapstructure:"thumb_size" default:"512" json:"thumbSize"`
	// JPEGQuality is the encoder quality for generated thumbnails.
	JPEGQuality int `mapstructure:"jpeg_quality" default:"85" json:"jpegQuality"`
}

func (c Config) thumbSize() int {
	if c.ThumbSize <= 0 {
		return 512
	}
	return c.ThumbSize
}

func (c Config) jpegQuality() int {
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		return 85
	}
	return c.JPEGQuality
}
