package pipeline

import (
	"regexp"
	"strings"
)

var semverPrefix = regexp.MustCompile(`^\d+\.\d+\.\d+`)

// ParseVersion normalizes a source-control tag into a canonical version
// string: strip a leading "v", strip a "release-"/"release/" prefix, and keep
// only the semver prefix when one is present. Non-semver tags pass through
// cleaned but unrejected.
func ParseVersion(tag string) string {
	cleaned := strings.TrimSpace(tag)

	if len(cleaned) > 0 && (cleaned[0] == 'v' || cleaned[0] == 'V') {
		cleaned = cleaned[1:]
	}

	lower := strings.ToLower(cleaned)
	switch {
	case strings.HasPrefix(lower, "release-"):
		cleaned = cleaned[len("release-"):]
	case strings.HasPrefix(lower, "release/"):
		cleaned = cleaned[len("release/"):]
	}

	if match := semverPrefix.FindString(cleaned); match != "" {
		return match
	}

	return cleaned
}
