package validation

import (
	"strings"
	"testing"
)

// TestSanitize проверяет нормализацию имён файлов.
func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes.txt", "notes.txt"},
		{"my photo (1).jpg", "my_photo__1_.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\report.pdf`, "report.pdf"},
		{"отчёт.pdf", "_____.pdf"},
		{"", "file"},
		{"dir/", "file"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q): ожидалось %q, получено %q", tt.in, tt.want, got)
		}
	}
}

// TestSanitize_TruncatesKeepingExtension проверяет обрезку длинного имени.
func TestSanitize_TruncatesKeepingExtension(t *testing.T) {
	got := Sanitize(strings.Repeat("a", 400) + ".mp4")
	if len(got) != MaxNameLength {
		t.Errorf("длина: ожидалось %d, получено %d", MaxNameLength, len(got))
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Errorf("расширение потеряно: %q", got)
	}
}

// TestSanitize_Idempotent проверяет, что повторная нормализация ничего не меняет.
func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"notes.txt",
		"  spaced  name .txt",
		"../../etc/passwd",
		"файл с пробелами.png",
		strings.Repeat("x", 300) + ".jpeg",
		strings.Repeat("ё", 200),
		"a/b\\c..d",
		"",
		"...",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize не идемпотентна для %q: %q → %q", in, once, twice)
		}
	}
}
