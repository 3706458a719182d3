package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
)

func TestText_Empty(t *testing.T) {
	if got := htmlsanitize.Text(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestText_PlainText(t *testing.T) {
	if got := htmlsanitize.Text("Pickup address incomplete"); got != "Pickup address incomplete" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestText_StripsTags(t *testing.T) {
	if got := htmlsanitize.Text("<b>late</b> pickup"); got != "late pickup" {
		t.Errorf("expected tags stripped, got %q", got)
	}
}

func TestText_RemovesScript(t *testing.T) {
	if got := htmlsanitize.Text("<script>alert('xss')</script>Driver no-show"); got != "Driver no-show" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestText_DecodesEntities(t *testing.T) {
	if got := htmlsanitize.Text("Fragile &amp; heavy"); got != "Fragile & heavy" {
		t.Errorf("expected entities decoded, got %q", got)
	}
}

func TestIsPlainText(t *testing.T) {
	if !htmlsanitize.IsPlainText("Hello, World!") {
		t.Error("expected string without tags to be plain text")
	}
	if htmlsanitize.IsPlainText("<p>Hello</p>") {
		t.Error("expected string with tags to NOT be plain text")
	}
}
