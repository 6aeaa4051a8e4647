package kg

import "testing"

func TestSanitizeRelationType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already valid", "DEFINES", "DEFINES"},
		{"lowercase", "defines", "DEFINES"},
		{"spaces and dashes", "part - of", "PART_OF"},
		{"free text", "is an example of", "IS_AN_EXAMPLE_OF"},
		{"injection attempt", "X]->() DELETE (n", "X_DELETE_N"},
		{"digit lead", "3D_MODEL", "REL_3D_MODEL"},
		{"empty", "", "RELATED"},
		{"only symbols", "!!!", "RELATED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeRelationType(tt.input); got != tt.expected {
				t.Errorf("SanitizeRelationType(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveRelationType(t *testing.T) {
	relType, label := ResolveRelationType("defines")
	if relType != "DEFINES" || label != "" {
		t.Errorf("expected (DEFINES, \"\"), got (%q, %q)", relType, label)
	}

	relType, label = ResolveRelationType("is connected to")
	if relType != RelationTypeFallback {
		t.Errorf("expected fallback type, got %q", relType)
	}
	if label != "is connected to" {
		t.Errorf("expected raw label preserved, got %q", label)
	}
}

func TestRelationTypesClosed(t *testing.T) {
	for _, rt := range RelationTypes() {
		if !IsRelationType(rt) {
			t.Errorf("RelationTypes returned non-member %q", rt)
		}
		if SanitizeRelationType(rt) != rt {
			t.Errorf("set member %q is not a valid type token", rt)
		}
	}
	if IsRelationType("NOT_A_TYPE") {
		t.Error("expected NOT_A_TYPE to be outside the set")
	}
}
