// Пакет validation — проверка загружаемых файлов и нормализация имён.
// Все функции чистые: результат проверки возвращается значением, без паники.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Коды отказа.
const (
	CodeEmptyFile           = "EMPTY_FILE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeUnsafeName          = "UNSAFE_NAME"
	CodeNameTooLong         = "NAME_TOO_LONG"
	CodeBlockedExtension    = "BLOCKED_EXTENSION"
	CodeExtensionNotAllowed = "EXTENSION_NOT_ALLOWED"
	CodeMIMENotAllowed      = "MIME_NOT_ALLOWED"
)

// MaxNameLength — максимальная длина имени файла в символах. Sanitize
// оставляет только ASCII, поэтому там это же число ограничивает байты.
const MaxNameLength = 255

// DefaultMaxSize — максимальный размер файла по умолчанию (1 GiB).
const DefaultMaxSize int64 = 1 << 30

// allowedTypes — разрешённые расширения и соответствующие MIME-типы.
var allowedTypes = map[string][]string{
	".jpg":  {"image/jpeg", "image/jpg"},
	".jpeg": {"image/jpeg", "image/jpg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".webp": {"image/webp"},
	".svg":  {"image/svg+xml"},
	".mp4":  {"video/mp4"},
	".webm": {"video/webm", "audio/webm"},
	".mov":  {"video/quicktime"},
	".pdf":  {"application/pdf"},
	".txt":  {"text/plain"},
	".mp3":  {"audio/mpeg"},
	".wav":  {"audio/wav"},
}

// blockedExtensions — исполняемые и скриптовые расширения.
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {}, ".pif": {},
	".vbs": {}, ".js": {}, ".jar": {}, ".app": {}, ".deb": {}, ".rpm": {},
	".sh": {}, ".bash": {}, ".ps1": {}, ".msi": {}, ".dmg": {},
}

// allowedMIME — объединение MIME-типов всех разрешённых расширений.
var allowedMIME = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, types := range allowedTypes {
		for _, t := range types {
			m[t] = struct{}{}
		}
	}
	return m
}()

// FileInfo — сведения о загружаемом файле, заявленные клиентом.
type FileInfo struct {
	Name     string
	Size     int64
	MimeType string
}

// Result — результат проверки. При OK=false Code и Reason описывают причину.
type Result struct {
	OK     bool
	Code   string
	Reason string
}

func reject(code, format string, args ...any) Result {
	return Result{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Validate проверяет файл перед загрузкой.
func Validate(f FileInfo, maxSize int64) Result {
	if f.Size <= 0 {
		return reject(CodeEmptyFile, "файл пустой")
	}
	if f.Size > maxSize {
		return reject(CodeFileTooLarge, "размер файла %d байт превышает максимум %d байт", f.Size, maxSize)
	}

	if strings.Contains(f.Name, "..") || strings.ContainsAny(f.Name, `/\`) {
		return reject(CodeUnsafeName, "имя файла содержит недопустимые последовательности")
	}
	if utf8.RuneCountInString(f.Name) > MaxNameLength {
		return reject(CodeNameTooLong, "имя файла длиннее %d символов", MaxNameLength)
	}

	ext := Extension(f.Name)
	if _, blocked := blockedExtensions[ext]; blocked {
		return reject(CodeBlockedExtension, "расширение %s запрещено", ext)
	}
	if _, ok := allowedTypes[ext]; !ok {
		return reject(CodeExtensionNotAllowed, "расширение %q не поддерживается", ext)
	}

	mime := NormalizeMIME(f.MimeType)
	if _, ok := allowedMIME[mime]; !ok {
		return reject(CodeMIMENotAllowed, "MIME-тип %q не поддерживается", mime)
	}

	return Result{OK: true}
}

// Extension возвращает расширение имени в нижнем регистре вместе с точкой
// (подстрока после последней точки) или пустую строку.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}

// NormalizeMIME убирает параметры (`; charset=...`) и приводит тип к нижнему регистру.
func NormalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// AllowedExtensions возвращает отсортированный список разрешённых расширений.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedTypes))
	for ext := range allowedTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// AcceptedExtensions — список разрешённых расширений через запятую
// (значение для атрибута accept у формы загрузки).
func AcceptedExtensions() string {
	return strings.Join(AllowedExtensions(), ",")
}
