package featprobe

import "strings"

// normalizeRequirements trims and deduplicates feature names,
// keeping first-seen order. Empty names are skipped.
func normalizeRequirements(required []string) []string {
	seen := make(map[string]struct{}, len(required))
	out := make([]string, 0, len(required))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
