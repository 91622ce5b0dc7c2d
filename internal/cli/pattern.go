// Package cli provides shared helpers for the command-line surface.
package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// MatchTitles filters credential titles by a glob pattern, case-insensitively.
// A pattern without glob characters (*?[) matches exactly one title.
func MatchTitles(pattern string, titles []string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	lowered := strings.ToLower(pattern)
	if !strings.ContainsAny(pattern, "*?[") {
		for _, title := range titles {
			if strings.ToLower(title) == lowered {
				return []string{title}, nil
			}
		}
		return nil, fmt.Errorf("credential %q not found", pattern)
	}

	var matches []string
	for _, title := range titles {
		matched, err := filepath.Match(lowered, strings.ToLower(title))
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, title)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no credentials match pattern %q", pattern)
	}
	return matches, nil
}

// MatchTitlesAll applies several patterns and returns the union, keeping the
// order of first match.
func MatchTitlesAll(patterns []string, titles []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	for _, pattern := range patterns {
		matches, err := MatchTitles(pattern, titles)
		if err != nil {
			return nil, err
		}
		for _, title := range matches {
			if !seen[title] {
				seen[title] = true
				result = append(result, title)
			}
		}
	}
	return result, nil
}

// SortTitles returns a sorted copy.
func SortTitles(titles []string) []string {
	sorted := make([]string, len(titles))
	copy(sorted, titles)
	sort.Strings(sorted)
	return sorted
}
