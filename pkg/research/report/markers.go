// Package report checks the citation markers embedded in report text.
package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"slingshot-be/pkg/research/domain"
)

var markerPattern = regexp.MustCompile(`\[(cite-\d+)\]`)

// Marker formats the inline marker for a citation key.
func Marker(key string) string {
	return "[" + key + "]"
}

// Markers joins the markers for keys, e.g. "[cite-1][cite-3]".
func Markers(keys ...string) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(Marker(k))
	}
	return b.String()
}

// Keys returns the distinct citation keys referenced in text, in order of
// first reference.
func Keys(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// DanglingError lists markers that do not resolve to a session citation.
type DanglingError struct {
	Keys []string
}

func (e *DanglingError) Error() string {
	return fmt.Sprintf("dangling citation markers: %s", strings.Join(e.Keys, ", "))
}

// Verify checks that every marker in texts resolves to one of citations.
func Verify(citations []domain.Citation, texts ...string) error {
	known := make(map[string]bool, len(citations))
	for _, c := range citations {
		known[c.Key] = true
	}

	missing := make(map[string]bool)
	for _, t := range texts {
		for _, k := range Keys(t) {
			if !known[k] {
				missing[k] = true
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &DanglingError{Keys: keys}
}

// ExtensionTexts collects the free-text fields of mode extensions that may
// carry markers.
func ExtensionTexts(ext domain.Extensions) []string {
	var out []string
	for _, l := range ext.CausalChain {
		out = append(out, l.Relationship, l.Evidence)
	}
	for _, c := range ext.AffectedCompanies {
		out = append(out, c.ProjectedImpact, c.HistoricalPrecedent)
	}
	for _, t := range ext.TradeIdeas {
		out = append(out, t.Rationale)
	}
	for _, s := range ext.StressTests {
		out = append(out, s.Description)
	}
	out = append(out, ext.Recommendations...)
	return out
}
