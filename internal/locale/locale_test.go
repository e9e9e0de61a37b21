package locale

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		tag      string
		language string
		country  string
	}{
		{"en-US", "en", "US"},
		{"he_IL", "he", "IL"},
		{"iw-IL", "he", "IL"},
		{"fr", "fr", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			p, err := Parse(tt.tag)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.tag, err)
			}
			if p.Language() != tt.language || p.Country() != tt.country {
				t.Fatalf("got (%q, %q), want (%q, %q)", p.Language(), p.Country(), tt.language, tt.country)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not a tag!"); err == nil {
		t.Fatal("expected an error for a malformed tag")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("EN-gb"); got != "en" {
		t.Fatalf("Normalize = %q, want en", got)
	}
	if got := Normalize("???"); got != "" {
		t.Fatalf("Normalize(garbage) = %q, want empty", got)
	}
}

func TestCollatorOrdersLabels(t *testing.T) {
	c := Collator("en")
	if c.CompareString("apple", "Banana") >= 0 {
		t.Fatal("expected case-insensitive ordering apple < Banana")
	}
	if Collator("") == nil {
		t.Fatal("expected a root collator for an empty language")
	}
}
