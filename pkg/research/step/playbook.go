package step

import (
	"fmt"
	"sort"
	"strings"

	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"
)

func found[T any](st *State, toolName string) (T, bool) {
	return catalog.Payload[T](st.Findings[toolName].Result)
}

// retryCalls are the calls of a follow-up research pass: a web search plus one
// call per source type reflection reported missing.
func retryCalls(st *State, search tool.Params, byType map[string]Call) []Call {
	calls := []Call{{Tool: catalog.WebSearch, Params: search}}
	seen := map[string]bool{catalog.WebSearch: true}
	for _, gap := range st.Gaps {
		c, ok := byType[gap]
		if !ok || seen[c.Tool] {
			continue
		}
		seen[c.Tool] = true
		calls = append(calls, c)
	}
	return calls
}

func reflectDraft(st *State, v *Verdict) Draft {
	if v == nil {
		return Draft{Title: "Reviewing evidence", Confidence: 0.5}
	}
	var types []string
	for t := range st.Citations.SourceTypes() {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "Pass %d gathered %d citations across %s sources.", st.Pass, v.Citations, joinOr(types, "no"))
	if v.Complete {
		b.WriteString(" Coverage meets the evidence policy; proceeding to the report.")
		return Draft{Title: "Evidence is sufficient", Content: b.String(), Confidence: 0.9}
	}
	if len(v.Missing) > 0 {
		fmt.Fprintf(&b, " Missing source types: %s.", strings.Join(v.Missing, ", "))
	}
	if v.Citations < v.Required {
		fmt.Fprintf(&b, " At least %d citations are required.", v.Required)
	}
	b.WriteString(" Requesting another research pass.")
	return Draft{Title: "Gaps found in gathered evidence", Content: b.String(), Confidence: 0.6}
}

func joinOr(s []string, empty string) string {
	if len(s) == 0 {
		return empty
	}
	return strings.Join(s, ", ")
}

// section appends a markdown section, skipping it when there is no body.
func section(b *strings.Builder, heading string, lines ...string) {
	var body []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			body = append(body, l)
		}
	}
	if len(body) == 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("## " + heading + "\n\n")
	b.WriteString(strings.Join(body, "\n"))
}

// sourcesSection lists every citation of the session by key.
func sourcesSection(b *strings.Builder, st *State) {
	var lines []string
	for _, c := range st.Citations.List() {
		lines = append(lines, fmt.Sprintf("- [%s] %s", c.Key, c.SourceName))
	}
	section(b, "Sources", lines...)
}

func sentence(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
