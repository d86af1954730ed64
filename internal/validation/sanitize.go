package validation

import "strings"

// Sanitize нормализует имя файла: отбрасывает путь, заменяет символы вне
// [A-Za-z0-9._-] на '_' и ограничивает длину MaxNameLength, сохраняя
// расширение. Пустой результат заменяется на "file". Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()

	if len(s) > MaxNameLength {
		ext := ""
		if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i < MaxNameLength {
			ext = s[i:]
		}
		s = s[:MaxNameLength-len(ext)] + ext
	}

	if s == "" {
		return "file"
	}
	return s
}
