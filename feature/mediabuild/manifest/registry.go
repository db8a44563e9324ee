package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt marks a stored manifest that cannot be migrated or decoded.
// Callers exclude such records from output instead of failing the request.
var ErrCorrupt = errors.New("manifest: corrupt record")

// Migration transforms a manifest payload from one version to the next.
// Migrations are pure: they operate only on the payload, never touch the
// network, and are idempotent when re-applied to already-migrated data.
type Migration func(item map[string]any) (map[string]any, error)

// registry maps a source version to the single-step migration that lifts it
// one version up. Migrate composes the chain automatically.
var registry = map[int]Migration{
	1: migrateV1ToV2,
	2: migrateV2ToV3,
}

// Migrate lifts a stored payload from fromVersion to CurrentVersion.
// Payloads already at CurrentVersion are returned unchanged.
func Migrate(raw []byte, fromVersion int) ([]byte, int, error) {
	if fromVersion == CurrentVersion {
		return raw, CurrentVersion, nil
	}
	if fromVersion <= 0 || fromVersion > CurrentVersion {
		return nil, 0, fmt.Errorf("%w: unknown version %d", ErrCorrupt, fromVersion)
	}
	if len(raw) == 0 {
		return nil, 0, fmt.Errorf("%w: empty payload at version %d", ErrCorrupt, fromVersion)
	}

	var item map[string]any
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	for v := fromVersion; v < CurrentVersion; v++ {
		step, ok := registry[v]
		if !ok {
			return nil, 0, fmt.Errorf("%w: no migration from version %d", ErrCorrupt, v)
		}
		next, err := step(item)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: migrating v%d: %v", ErrCorrupt, v, err)
		}
		if len(next) == 0 {
			// Data absent after migration means the record is unusable.
			return nil, 0, fmt.Errorf("%w: empty data after migrating v%d", ErrCorrupt, v)
		}
		item = next
	}

	out, err := json.Marshal(item)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, CurrentVersion, nil
}

// Decode migrates a stored payload to CurrentVersion and unmarshals it.
func Decode(raw []byte, fromVersion int) (*Item, error) {
	migrated, _, err := Migrate(raw, fromVersion)
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(migrated, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &item, nil
}

// migrateV1ToV2 renames the legacy "thumbnail" field to "thumbnailUrl" and
// introduces the toneAnalysis slot.
func migrateV1ToV2(item map[string]any) (map[string]any, error) {
	if thumb, ok := item["thumbnail"]; ok {
		if _, exists := item["thumbnailUrl"]; !exists {
			item["thumbnailUrl"] = thumb
		}
		delete(item, "thumbnail")
	}
	if _, ok := item["toneAnalysis"]; !ok {
		item["toneAnalysis"] = nil
	}
	return item, nil
}

// migrateV2ToV3 normalizes dateTaken to RFC 3339 UTC. Unparseable
// timestamps are dropped rather than carried forward corrupt. The video
// field introduced in v3 stays absent for migrated records: pairing is only
// detected at extraction time.
func migrateV2ToV3(item map[string]any) (map[string]any, error) {
	raw, ok := item["dateTaken"].(string)
	if !ok || raw == "" {
		delete(item, "dateTaken")
		return item, nil
	}
	normalized, ok := NormalizeDateTaken(raw)
	if !ok {
		delete(item, "dateTaken")
		return item, nil
	}
	item["dateTaken"] = normalized
	return item, nil
}
