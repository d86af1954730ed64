package sigv4

import (
	"net/url"
	"testing"
)

// TestURIEncode проверяет кодирование по RFC 3986.
func TestURIEncode(t *testing.T) {
	tests := map[string]string{
		"abc-._~XYZ019": "abc-._~XYZ019",
		"a b":           "a%20b",
		"a+b=c&d":       "a%2Bb%3Dc%26d",
		"файл":          "%D1%84%D0%B0%D0%B9%D0%BB",
		"*":             "%2A",
	}
	for in, want := range tests {
		if got := uriEncode(in); got != want {
			t.Errorf("uriEncode(%q): ожидалось %q, получено %q", in, want, got)
		}
	}
}

// TestCanonicalURI проверяет кодирование сегментов пути.
func TestCanonicalURI(t *testing.T) {
	tests := map[string]string{
		"https://h":                 "/",
		"https://h/":                "/",
		"https://h/bucket/my%20key": "/bucket/my%20key",
		"https://h/b/a:b(1).txt":    "/b/a%3Ab%281%29.txt",
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("ошибка разбора %q: %v", raw, err)
		}
		if got := canonicalURI(u); got != want {
			t.Errorf("canonicalURI(%q): ожидалось %q, получено %q", raw, want, got)
		}
	}
}

// TestCanonicalQuery проверяет сортировку параметров по ключу и значению.
func TestCanonicalQuery(t *testing.T) {
	u, _ := url.Parse("https://h/?b=2&a-b=x&a=2&a=1&empty=")
	want := "a=1&a=2&a-b=x&b=2&empty="
	if got := canonicalQuery(u); got != want {
		t.Errorf("ожидалось %q, получено %q", want, got)
	}
}

// TestCanonicalHeaders проверяет сортировку и схлопывание пробелов.
func TestCanonicalHeaders(t *testing.T) {
	canonical, signed := canonicalHeaders(lowerHeaders(map[string]string{
		"X-Amz-Meta-Note": "  a   b  ",
		"Content-Type":    "text/plain",
	}))
	wantCanonical := "content-type:text/plain\nx-amz-meta-note:a b\n"
	if canonical != wantCanonical {
		t.Errorf("ожидалось %q, получено %q", wantCanonical, canonical)
	}
	if signed != "content-type;x-amz-meta-note" {
		t.Errorf("подписанные заголовки: получено %q", signed)
	}
}
