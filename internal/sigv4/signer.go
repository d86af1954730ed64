// Пакет sigv4 — подпись запросов к S3-совместимому REST API по схеме
// AWS Signature Version 4 без использования SDK.
//
// Цепочка: канонический запрос → строка для подписи → ключ подписи
// (HMAC от секрета по дате, региону, сервису) → заголовок Authorization.
// Секретный ключ не попадает ни в ошибки, ни в логи.
package sigv4

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Algorithm — идентификатор алгоритма в строке для подписи.
	Algorithm = "AWS4-HMAC-SHA256"
	// DefaultRegion — регион подписи для Cloudflare R2.
	DefaultRegion = "auto"
	// DefaultService — имя сервиса в области действия подписи.
	DefaultService = "s3"

	dateFormat      = "20060102"
	amzDateFormat   = "20060102T150405Z"
	scopeTerminator = "aws4_request"

	// Ключ подписи зависит только от даты, поэтому кэш небольшой.
	keyCacheSize = 8
	keyCacheTTL  = 24 * time.Hour
)

// Заголовки, которые выставляет сам подписант.
const (
	HeaderHost          = "host"
	HeaderAmzDate       = "x-amz-date"
	HeaderAuthorization = "authorization"
	HeaderContentSHA256 = "x-amz-content-sha256"
)

var (
	signingKeyHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_signer_key_cache_hits_total",
		Help: "Количество попаданий в кэш ключей подписи",
	})
	signingKeyMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_signer_key_cache_misses_total",
		Help: "Количество вычислений ключа подписи",
	})
)

// ErrMissingCredentials — не задан идентификатор ключа или секрет.
var ErrMissingCredentials = errors.New("sigv4: учётные данные не заданы")

// Credentials — долговременная пара ключей доступа.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// String маскирует секрет, чтобы учётные данные можно было безопасно
// передавать в fmt и slog.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKeyID: %s, SecretAccessKey: ***}", c.AccessKeyID)
}

// LogValue реализует slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Option — функциональная опция Signer.
type Option func(*Signer)

// WithClock задаёт источник текущего времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithRegion задаёт регион подписи.
func WithRegion(region string) Option {
	return func(s *Signer) {
		if region != "" {
			s.region = region
		}
	}
}

// WithService задаёт имя сервиса подписи.
func WithService(service string) Option {
	return func(s *Signer) {
		if service != "" {
			s.service = service
		}
	}
}

// Signer подписывает запросы. Безопасен для конкурентного использования.
type Signer struct {
	creds   Credentials
	region  string
	service string
	now     func() time.Time
	keys    *expirable.LRU[string, []byte]
}

// New создаёт подписанта. Регион по умолчанию "auto", сервис "s3".
func New(creds Credentials, opts ...Option) (*Signer, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, ErrMissingCredentials
	}

	s := &Signer{
		creds:   creds,
		region:  DefaultRegion,
		service: DefaultService,
		now:     time.Now,
		keys:    expirable.NewLRU[string, []byte](keyCacheSize, nil, keyCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// signature — промежуточные значения одной подписи.
type signature struct {
	amzDate          string
	canonicalRequest string
	stringToSign     string
	signedHeaders    string
	authorization    string
}

// Sign подписывает запрос и возвращает новую карту заголовков: все входные
// заголовки плюс host, x-amz-date и authorization. Входная карта не изменяется.
// body == nil эквивалентен пустому телу.
func (s *Signer) Sign(method, rawURL string, headers map[string]string, body []byte) (map[string]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		// url.Error содержит исходную строку целиком, в ошибку идёт только причина
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("sigv4: некорректный URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("sigv4: в URL %q нет хоста", u.Redacted())
	}

	sig := s.sign(method, u, headers, body, s.now().UTC())

	out := make(map[string]string, len(headers)+3)
	for k, v := range headers {
		switch strings.ToLower(k) {
		case HeaderHost, HeaderAmzDate, HeaderAuthorization:
			continue
		}
		out[k] = v
	}
	out[HeaderHost] = u.Host
	out[HeaderAmzDate] = sig.amzDate
	out[HeaderAuthorization] = sig.authorization
	return out, nil
}

func (s *Signer) sign(method string, u *url.URL, headers map[string]string, body []byte, now time.Time) signature {
	amzDate := now.Format(amzDateFormat)
	dateStamp := now.Format(dateFormat)

	lower := lowerHeaders(headers)
	delete(lower, HeaderAuthorization)
	lower[HeaderHost] = u.Host
	lower[HeaderAmzDate] = amzDate

	canonHeaders, signedHeaders := canonicalHeaders(lower)
	canonicalRequest := strings.Join([]string{
		strings.ToUpper(method),
		canonicalURI(u),
		canonicalQuery(u),
		canonHeaders,
		signedHeaders,
		hashHex(body),
	}, "\n")

	scope := strings.Join([]string{dateStamp, s.region, s.service, scopeTerminator}, "/")
	stringToSign := strings.Join([]string{
		Algorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	sigHex := hex.EncodeToString(hmacSHA256(s.signingKey(dateStamp), stringToSign))

	return signature{
		amzDate:          amzDate,
		canonicalRequest: canonicalRequest,
		stringToSign:     stringToSign,
		signedHeaders:    signedHeaders,
		authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			Algorithm, s.creds.AccessKeyID, scope, signedHeaders, sigHex),
	}
}

// signingKey возвращает ключ подписи для даты, вычисляя его при промахе кэша.
func (s *Signer) signingKey(dateStamp string) []byte {
	if key, ok := s.keys.Get(dateStamp); ok {
		signingKeyHitsTotal.Inc()
		return key
	}
	signingKeyMissesTotal.Inc()

	kDate := hmacSHA256([]byte("AWS4"+s.creds.SecretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.region)
	kService := hmacSHA256(kRegion, s.service)
	key := hmacSHA256(kService, scopeTerminator)

	s.keys.Add(dateStamp, key)
	return key
}
