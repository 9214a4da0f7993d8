package discovery

import (
	"path/filepath"
	"strings"

	"ptw/internal/domain"
)

// ByGroups returns the tests of c whose group is in groups, keeping their order
func ByGroups(c domain.Collection, groups domain.GroupSet) domain.Collection {
	return c.Filter(func(t domain.Test) bool {
		return groups.Has(t.Group)
	})
}

// FilterByName keeps the tests whose file name matches pattern.
// Supports patterns like "*UserTest.php" or "*Payment*"; a pattern without
// wildcards matches as a substring.
func FilterByName(c domain.Collection, pattern string) domain.Collection {
	if pattern == "" {
		return c
	}
	return c.Filter(func(t domain.Test) bool {
		return matchName(filepath.Base(t.File), pattern)
	})
}

func matchName(name, pattern string) bool {
	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(name, pattern)
	}

	// filepath.Match is anchored; fall back to matching the literal parts in order
	rest := name
	matchedAny := false
	for _, part := range strings.Split(pattern, "*") {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
		matchedAny = true
	}
	return matchedAny
}
