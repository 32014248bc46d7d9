package report

import (
	"errors"
	"testing"

	"slingshot-be/pkg/research/domain"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "Plain text without markers", nil},
		{"single", "NIM held at 3.4% [cite-1].", []string{"cite-1"}},
		{"repeated", "[cite-2] then [cite-1] then [cite-2]", []string{"cite-2", "cite-1"}},
		{"malformed", "[cite-] [cite-x] cite-3 [Cite-4]", nil},
		{"adjacent", "Strong deposits [cite-1][cite-3]", []string{"cite-1", "cite-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Keys(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Keys(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Keys(%q)[%d] = %s, want %s", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestVerify(t *testing.T) {
	citations := []domain.Citation{{Key: "cite-1"}, {Key: "cite-2"}}

	if err := Verify(citations, "ok [cite-1]", "also [cite-2][cite-1]"); err != nil {
		t.Fatalf("Verify returned %v for resolvable markers", err)
	}

	err := Verify(citations, "bad [cite-7]", "worse [cite-3] [cite-7]")
	var dangling *DanglingError
	if !errors.As(err, &dangling) {
		t.Fatalf("Verify error = %v, want *DanglingError", err)
	}
	if len(dangling.Keys) != 2 || dangling.Keys[0] != "cite-3" || dangling.Keys[1] != "cite-7" {
		t.Errorf("dangling keys = %v, want [cite-3 cite-7]", dangling.Keys)
	}
}

func TestMarkers(t *testing.T) {
	if got := Markers("cite-1", "cite-4"); got != "[cite-1][cite-4]" {
		t.Errorf("Markers = %q", got)
	}
	if got := Markers(); got != "" {
		t.Errorf("Markers() = %q, want empty", got)
	}
}
