package statestore

import (
	"fmt"

	"github.com/chatretro/issueflow/internal/types"
)

// migrate transforms a raw state structure from an older schema version to
// the current one, in place.
//
// v1 → v2: issues carried separate sanitized_title/sanitized_description
// shadow fields alongside the raw title/description. v2 folds the
// sanitized text into the canonical fields and preserves the displaced raw
// values under context, matching the post-triage in-place overwrite the
// pipeline performs today.
func migrate(raw map[string]any, from int) error {
	if from < 1 {
		// v0 files predate the schema_version stamp; structurally they are
		// v1, so fall through to the v1 migration.
		from = 1
	}
	for v := from; v < types.CurrentSchemaVersion; v++ {
		switch v {
		case 1:
			migrateV1SanitizedFields(raw)
		default:
			return fmt.Errorf("no migration path from schema v%d", v)
		}
	}
	raw["schema_version"] = float64(types.CurrentSchemaVersion)
	return nil
}

func migrateV1SanitizedFields(raw map[string]any) {
	issues, ok := raw["issues"].(map[string]any)
	if !ok {
		return
	}
	for _, v := range issues {
		issue, ok := v.(map[string]any)
		if !ok {
			continue
		}
		ctx, _ := issue["context"].(map[string]any)
		if ctx == nil {
			ctx = map[string]any{}
		}

		if st, ok := issue["sanitized_title"].(string); ok && st != "" {
			if title, _ := issue["title"].(string); title != st {
				ctx["raw_title"] = title
			}
			issue["title"] = st
		}
		delete(issue, "sanitized_title")

		if sd, ok := issue["sanitized_description"].(string); ok && sd != "" {
			if desc, _ := issue["description"].(string); desc != sd {
				ctx["raw_description"] = desc
			}
			issue["description"] = sd
		}
		delete(issue, "sanitized_description")

		if len(ctx) > 0 {
			issue["context"] = ctx
		}
	}
}
