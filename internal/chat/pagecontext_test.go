package chat

import "testing"

func TestLookupPageContext(t *testing.T) {
	tests := []struct {
		path string
		page string
	}{
		{"/en", "home"},
		{"/ar/", "home"},
		{"/en/about", "about"},
		{"/ar/production", "production"},
		{"/en/products", "products"},
		{"/en/products/", "products"},
		{"/en/products/polo-shirt", "product"},
		{"/ar/blog/how-we-dye", "article"},
		{"/en/contact?sent=1", "contact"},
		{"/en/careers", "other"},
		{"/fr/about", "other"},
		{"", "home"},
	}
	for _, tt := range tests {
		got := LookupPageContext(tt.path)
		if got.Page != tt.page {
			t.Errorf("LookupPageContext(%q).Page = %q, want %q", tt.path, got.Page, tt.page)
		}
		if got.Path != tt.path {
			t.Errorf("LookupPageContext(%q).Path = %q, want original path", tt.path, got.Path)
		}
		if got.Context == "" {
			t.Errorf("LookupPageContext(%q) has empty context", tt.path)
		}
	}
}

func TestLookupFallbackIsBrowsing(t *testing.T) {
	got := LookupPageContext("/en/some/unknown/page")
	if got.Page != "other" || got.Context != "browsing" {
		t.Fatalf("unexpected fallback %+v", got)
	}
}

func TestParsePageContextsRequiresFallback(t *testing.T) {
	if _, err := ParsePageContexts([]byte("exact: []\n")); err == nil {
		t.Fatal("expected error when fallback is missing")
	}
}
