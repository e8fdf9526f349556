package domain

import "testing"

func TestLocalizedTextIn(t *testing.T) {
	text := LocalizedText{"en": "hello", "hi": "namaste"}
	if got := text.In("hi"); got != "namaste" {
		t.Fatalf("expected hindi text, got %q", got)
	}
	if got := text.In("fr"); got != "hello" {
		t.Fatalf("expected english fallback, got %q", got)
	}

	noDefault := LocalizedText{"hi": "namaste"}
	if got := noDefault.In("fr"); got != "namaste" {
		t.Fatalf("expected any populated translation, got %q", got)
	}
}

func TestLocalizedTextValidate(t *testing.T) {
	text := LocalizedText{"en": "hello", "hi": "namaste", "fr": ""}
	if err := text.Validate(2); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := text.Validate(3); err == nil {
		t.Fatalf("expected validation failure: empty translation must not count")
	}
}
