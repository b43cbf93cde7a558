package domain

import (
	"fmt"
	"strings"
)

// ValidateSettingsPatch rejects keys that cannot be stored as document paths.
func ValidateSettingsPatch(patch map[string]any) error {
	return validateSettingsKeys(patch, "")
}

func validateSettingsKeys(m map[string]any, prefix string) error {
	for k, v := range m {
		if k == "" || strings.Contains(k, ".") || strings.HasPrefix(k, "$") {
			return NewValidationError("settings", fmt.Sprintf("invalid settings key %q", prefix+k))
		}
		if nested, ok := v.(map[string]any); ok {
			if err := validateSettingsKeys(nested, prefix+k+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// MergeSettings deep-merges patch into base and returns a new map. Nested maps
// are merged key by key; any other value in patch replaces the one in base.
// A nested map with no leaf values changes nothing. Neither argument is
// modified.
func MergeSettings(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = cloneSetting(v)
	}
	for k, v := range patch {
		pm, pIsMap := v.(map[string]any)
		if !pIsMap {
			out[k] = cloneSetting(v)
			continue
		}
		if !hasLeaves(pm) {
			continue
		}
		bm, _ := out[k].(map[string]any)
		out[k] = MergeSettings(bm, pm)
	}
	return out
}

// FlattenSettings turns a nested patch into dot-separated paths rooted at
// prefix, e.g. {"ui": {"theme": "dark"}} -> {"settings.ui.theme": "dark"}.
// Nested maps with no leaf values produce no paths.
func FlattenSettings(prefix string, patch map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, prefix, patch)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, path, nested)
			continue
		}
		out[path] = v
	}
}

func hasLeaves(m map[string]any) bool {
	for _, v := range m {
		nested, ok := v.(map[string]any)
		if !ok || hasLeaves(nested) {
			return true
		}
	}
	return false
}

// CloneSettings returns a deep copy of m. A nil map yields an empty one.
func CloneSettings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneSetting(v)
	}
	return out
}

func cloneSetting(v any) any {
	if m, ok := v.(map[string]any); ok {
		return CloneSettings(m)
	}
	return v
}
