package datasync

import (
	"path"
	"sort"
	"strings"
	"time"

	"photo-sync/core/storage"
	"photo-sync/feature/mediabuild/manifest"
)

var stillExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".tif": {}, ".tiff": {}, ".bmp": {}, ".heic": {}, ".heif": {},
}

var videoExtensions = map[string]string{
	".mov": manifest.VideoKindLive,
	".mp4": manifest.VideoKindMotion,
}

// pairedObject is one logical asset: a still image plus, for live/motion
// photos, its video partner. The still's key is the asset's storage key; a
// paired video key never produces its own action.
type pairedObject struct {
	Still storage.Object
	Video *storage.Object
	// VideoKind is "live" (.mov partner) or "motion" (.mp4 partner).
	VideoKind string
}

// baseKey strips the extension: "2024/img_0042.jpg" -> "2024/img_0042".
func baseKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext)
}

func isStill(key string) bool {
	_, ok := stillExtensions[strings.ToLower(path.Ext(key))]
	return ok
}

func videoKind(key string) (string, bool) {
	kind, ok := videoExtensions[strings.ToLower(path.Ext(key))]
	return kind, ok
}

// pairObjects groups the listing into logical assets before any
// classification happens. A still and a video sharing a base name whose
// lastModified times fall within window collapse into one pairedObject.
// Videos without a still partner are returned separately: they are not
// photos and are reported as skipped, never extracted.
func pairObjects(objects []storage.Object, window time.Duration) (pairs []pairedObject, unpairedVideos []storage.Object) {
	stills := make(map[string]storage.Object)
	videos := make(map[string]storage.Object)

	for _, obj := range objects {
		switch {
		case isStill(obj.Key):
			stills[obj.Key] = obj
		default:
			if _, ok := videoKind(obj.Key); ok {
				videos[obj.Key] = obj
			}
			// Unknown extensions never reach here; the caller filters them.
		}
	}

	// Index candidate videos by base name.
	videosByBase := make(map[string][]storage.Object)
	for _, v := range videos {
		base := baseKey(v.Key)
		videosByBase[base] = append(videosByBase[base], v)
	}

	claimed := make(map[string]struct{})
	for _, still := range stills {
		pair := pairedObject{Still: still}

		base := baseKey(still.Key)
		for _, v := range videosByBase[base] {
			if _, taken := claimed[v.Key]; taken {
				continue
			}
			if !withinWindow(still.LastModified, v.LastModified, window) {
				continue
			}
			kind, _ := videoKind(v.Key)
			video := v
			pair.Video = &video
			pair.VideoKind = kind
			claimed[v.Key] = struct{}{}
			break
		}

		pairs = append(pairs, pair)
	}

	for _, v := range videos {
		if _, taken := claimed[v.Key]; !taken {
			unpairedVideos = append(unpairedVideos, v)
		}
	}

	// Map iteration order is random; keep output deterministic.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Still.Key < pairs[j].Still.Key })
	sort.Slice(unpairedVideos, func(i, j int) bool { return unpairedVideos[i].Key < unpairedVideos[j].Key })

	return pairs, unpairedVideos
}

// withinWindow reports whether two timestamps are close enough to belong to
// the same capture. Zero timestamps (providers without lastModified) pair
// on base name alone.
func withinWindow(a, b time.Time, window time.Duration) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// videoInfo builds the manifest's video block for a pair.
func (p *pairedObject) videoInfo(publicURL func(string) string) *manifest.LivePhotoInfo {
	if p.Video == nil {
		return nil
	}
	return &manifest.LivePhotoInfo{
		Kind:     p.VideoKind,
		VideoKey: p.Video.Key,
		VideoURL: publicURL(p.Video.Key),
		Size:     p.Video.Size,
	}
}
