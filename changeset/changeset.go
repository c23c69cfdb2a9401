package changeset

import "strings"

// DefaultIgnorePrefix holds repository tooling that is never published.
const DefaultIgnorePrefix = ".github/"

// FilePath is a changed resource relative to the content root.
type FilePath = string

// Filter drops blank paths and paths under ignorePrefix, keeping order and
// duplicates. A leading slash on the path is ignored for the prefix check.
func Filter(paths []FilePath, ignorePrefix string) (kept []FilePath, skipped int) {
	kept = make([]FilePath, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			skipped++
			continue
		}
		if ignorePrefix != "" && strings.HasPrefix(strings.TrimLeft(p, "/"), ignorePrefix) {
			skipped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, skipped
}
