package storage

import (
	"strings"
	"time"
)

// CacheControlNoStore — Cache-Control для объектов и ответов скачивания.
const CacheControlNoStore = "no-cache, no-store, must-revalidate"

// Ключи пользовательских метаданных объекта (x-amz-meta-*).
const (
	MetaOriginalName = "originalname"
	MetaUploadedAt   = "uploadedat"
)

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

// AttachmentDisposition формирует `attachment; filename="..."`.
func AttachmentDisposition(name string) string {
	return `attachment; filename="` + dispositionEscaper.Replace(name) + `"`
}

// InlineDisposition формирует `inline; filename="..."`.
func InlineDisposition(name string) string {
	return `inline; filename="` + dispositionEscaper.Replace(name) + `"`
}

// UploadedAtValue — значение метаданных uploadedat (RFC 3339, UTC).
func UploadedAtValue(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
