package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// EmptyPayloadHash — SHA-256 пустой строки.
const EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// canonicalHeaders возвращает блок канонических заголовков и список
// подписываемых заголовков. Ключи приводятся к нижнему регистру,
// значения очищаются от крайних пробелов, внутренние последовательности
// пробелов схлопываются в один.
func canonicalHeaders(headers map[string]string) (canonical, signed string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(trimAll(headers[k]))
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(keys, ";")
}

// lowerHeaders приводит ключи к нижнему регистру. Значения ключей,
// совпадающих без учёта регистра, объединяются через запятую в порядке
// сортировки исходных ключей.
func lowerHeaders(headers map[string]string) map[string]string {
	orig := make([]string, 0, len(headers))
	for k := range headers {
		orig = append(orig, k)
	}
	sort.Strings(orig)

	out := make(map[string]string, len(headers))
	for _, k := range orig {
		lk := strings.ToLower(strings.TrimSpace(k))
		if prev, ok := out[lk]; ok {
			out[lk] = prev + "," + headers[k]
			continue
		}
		out[lk] = headers[k]
	}
	return out
}

func trimAll(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// canonicalURI кодирует каждый сегмент пути. Пустой путь — "/".
func canonicalURI(u *url.URL) string {
	path := u.Path
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = uriEncode(s)
	}
	return strings.Join(segments, "/")
}

// canonicalQuery сортирует параметры по закодированному ключу, затем значению.
func canonicalQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		values = u.Query()
	}

	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(values))
	for k, vs := range values {
		ek := uriEncode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, uriEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// uriEncode — процентное кодирование всех байт, кроме A-Z a-z 0-9 - . _ ~.
func uriEncode(s string) string {
	const hexUpper = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexUpper[c>>4])
		b.WriteByte(hexUpper[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~'
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(data))
	return m.Sum(nil)
}
