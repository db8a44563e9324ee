package mediabuild

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"photo-sync/core/storage"
	"photo-sync/feature/mediabuild/manifest"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Logger is the minimal logging surface the builder needs. Inside a worker
// process it is the pool's JobLogger, which forwards lines to the host.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards all output. Used by tests.
type NopLogger struct{}

func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// BuildRequest is one extraction job: produce a complete manifest item for
// a storage object.
type BuildRequest struct {
	// PhotoID is the stable asset identity. Empty for brand new assets; the
	// builder assigns one.
	PhotoID string `json:"photoId,omitempty"`
	// Object is the storage object to process.
	Object storage.Object `json:"object"`
	// Buffer is the pre-fetched object body, when the coordinator already
	// downloaded it (e.g. for the hash probe). Avoids a second fetch.
	Buffer []byte `json:"buffer,omitempty"`
	// Existing is the current manifest item, used for per-artifact reuse.
	Existing *manifest.Item `json:"existing,omitempty"`
	// ExistingHash is the content hash stored with the existing record.
	ExistingHash string `json:"existingHash,omitempty"`
	// Video is the paired live/motion video half, when pairing detected one.
	Video *manifest.LivePhotoInfo `json:"video,omitempty"`
	// Force bypasses every reuse check.
	Force bool `json:"force,omitempty"`
}

// BuildResult is the outcome of one extraction job.
type BuildResult struct {
	Item        *manifest.Item `json:"item"`
	ContentHash string         `json:"contentHash"`
	// Warnings lists sub-steps that failed without aborting the item
	// (e.g. missing EXIF). The corresponding fields are null.
	Warnings []string `json:"warnings,omitempty"`
}

// Builder runs the per-object extraction pipeline: decode, content hash,
// EXIF, tone histogram, thumbnail + perceptual hash.
type Builder struct {
	backend storage.Backend
	cfg     Config
	log     Logger
}

// NewBuilder creates a builder over the given backend.
func NewBuilder(backend storage.Backend, cfg Config, log Logger) *Builder {
	if log == nil {
		log = NopLogger{}
	}
	return &Builder{backend: backend, cfg: cfg, log: log}
}

// Build produces a complete manifest item for the request's object.
// Partial sub-step failures degrade to warnings; only fetch and decode
// failures abort the item.
func (b *Builder) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	raw := req.Buffer
	if len(raw) == 0 {
		var err error
		raw, err = b.backend.Fetch(ctx, req.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.Object.Key, err)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.Object.Key, err)
	}

	contentHash := HashImage(img)
	b.log.Infof("decoded %s (%dx%d, hash %s)", req.Object.Key, img.Bounds().Dx(), img.Bounds().Dy(), contentHash[:12])

	// Reuse is only sound when the decoded content is unchanged.
	unchanged := !req.Force && req.Existing != nil && req.ExistingHash == contentHash

	result := &BuildResult{ContentHash: contentHash}

	item := &manifest.Item{
		ID:          req.PhotoID,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		S3Key:       req.Object.Key,
		OriginalURL: b.backend.PublicURL(req.Object.Key),
		Video:       req.Video,
	}
	if item.ID == "" {
		if req.Existing != nil && req.Existing.ID != "" {
			item.ID = req.Existing.ID
		} else {
			item.ID = uuid.NewString()
		}
	}

	// EXIF block: independent reuse check.
	if unchanged && req.Existing.EXIF != nil {
		item.EXIF = req.Existing.EXIF
	} else if ex, err := ExtractEXIF(raw); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("exif: %v", err))
		b.log.Warnf("exif extraction failed for %s: %v", req.Object.Key, err)
	} else {
		item.EXIF = ex
	}

	// Tone block: independent reuse check.
	if unchanged && req.Existing.ToneAnalysis != nil {
		item.ToneAnalysis = req.Existing.ToneAnalysis
	} else {
		item.ToneAnalysis = AnalyzeTone(img)
	}

	// Thumbnail + perceptual hash: independent reuse check against the
	// on-disk artifact.
	thumbURL, thumbHash, warns := b.buildThumbnail(ctx, img, contentHash, req, unchanged)
	item.ThumbnailURL = thumbURL
	item.ThumbHash = thumbHash
	result.Warnings = append(result.Warnings, warns...)

	item.DateTaken = b.resolveDateTaken(item.EXIF, req.Object)

	result.Item = item
	return result, nil
}

// buildThumbnail returns the thumbnail URL and perceptual hash, reusing the
// cached artifact when the source is unchanged and the file still exists.
func (b *Builder) buildThumbnail(ctx context.Context, img image.Image, contentHash string, req *BuildRequest, unchanged bool) (thumbURL, thumbHash string, warnings []string) {
	thumbKey := b.cfg.ThumbPrefix + "/" + contentHash + ".jpg"
	cachePath := filepath.Join(b.cfg.CacheDir, contentHash+".jpg")

	if unchanged && req.Existing.ThumbHash != "" {
		if _, err := os.Stat(cachePath); err == nil {
			b.log.Infof("reusing thumbnail for %s", req.Object.Key)
			return b.backend.PublicURL(thumbKey), req.Existing.ThumbHash, nil
		}
	}

	thumb := imaging.Fit(img, b.cfg.thumbSize(), b.cfg.thumbSize(), imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(b.cfg.jpegQuality())); err != nil {
		return "", "", []string{fmt.Sprintf("thumbnail: %v", err)}
	}

	if b.cfg.CacheDir != "" {
		if err := os.MkdirAll(b.cfg.CacheDir, 0o755); err == nil {
			if err := os.WriteFile(cachePath, buf.Bytes(), 0o644); err != nil {
				warnings = append(warnings, fmt.Sprintf("thumbnail cache: %v", err))
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("thumbnail cache: %v", err))
		}
	}

	if err := b.backend.Put(ctx, thumbKey, buf.Bytes(), "image/jpeg"); err != nil {
		warnings = append(warnings, fmt.Sprintf("thumbnail upload: %v", err))
	} else {
		thumbURL = b.backend.PublicURL(thumbKey)
	}

	if ph, err := goimagehash.PerceptionHash(thumb); err != nil {
		warnings = append(warnings, fmt.Sprintf("phash: %v", err))
	} else {
		thumbHash = fmt.Sprintf("%016x", ph.GetHash())
	}

	return thumbURL, thumbHash, warnings
}

// resolveDateTaken prefers the EXIF capture time, falling back to the
// storage modification time.
func (b *Builder) resolveDateTaken(ex *manifest.EXIF, obj storage.Object) string {
	if ex != nil && ex.DateTimeOriginal != "" {
		if normalized, ok := manifest.NormalizeDateTaken(ex.DateTimeOriginal); ok {
			return normalized
		}
	}
	if !obj.LastModified.IsZero() {
		return obj.LastModified.UTC().Format(time.RFC3339)
	}
	return ""
}

// HashImage computes the content hash over the decoded pixel data, making
// change detection independent of storage metadata and of byte-identical
// re-encodes of the same upload.
func HashImage(img image.Image) string {
	nrgba := imaging.Clone(img)

	h := sha256.New()
	var dims [16]byte
	binary.BigEndian.PutUint64(dims[0:8], uint64(nrgba.Rect.Dx()))
	binary.BigEndian.PutUint64(dims[8:16], uint64(nrgba.Rect.Dy()))
	h.Write(dims[:])
	h.Write(nrgba.Pix)

	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes decodes raw image bytes and returns the content hash. Used by
// the reconciler's hash probe on metadata drift.
func HashBytes(raw []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", err
	}
	return HashImage(img), nil
}
