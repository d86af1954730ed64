// Пакет signedrest — бэкенд хранилища поверх S3-совместимого REST API
// с подписью каждого запроса (SigV4) без SDK.
package signedrest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/flashshare/internal/storage"
)

// Name — имя варианта бэкенда.
const Name = "rest"

// maxErrorBody — сколько байт тела ответа с ошибкой попадает в BackendError.
const maxErrorBody = 1024

// RequestSigner подписывает запрос и возвращает полный набор заголовков.
// Реализуется *sigv4.Signer.
type RequestSigner interface {
	Sign(method, rawURL string, headers map[string]string, body []byte) (map[string]string, error)
}

// Config — параметры бэкенда.
type Config struct {
	// Endpoint — базовый URL API (https://<account>.r2.cloudflarestorage.com)
	Endpoint string
	Bucket   string
	// MaxSize — максимальный размер тела PUT
	MaxSize int64
	// Timeout — таймаут HTTP-клиента (0 — 60 секунд)
	Timeout time.Duration
}

// Backend — storage.Backend поверх подписанных HTTP-запросов.
type Backend struct {
	endpoint string
	bucket   string
	maxSize  int64
	signer   RequestSigner
	client   *http.Client
	now      func() time.Time
}

// Option — функциональная опция Backend.
type Option func(*Backend)

// WithHTTPClient задаёт HTTP-клиент.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// WithClock задаёт источник времени для метаданных uploadedat.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New создаёт бэкенд. Незаполненный endpoint, bucket или signer
// не является ошибкой: IsConfigured вернёт false.
func New(cfg Config, signer RequestSigner, opts ...Option) *Backend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	b := &Backend{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		bucket:   cfg.Bucket,
		maxSize:  cfg.MaxSize,
		signer:   signer,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name возвращает "rest".
func (b *Backend) Name() string { return Name }

// IsConfigured — true, если заданы endpoint, bucket и signer.
func (b *Backend) IsConfigured() bool {
	return b != nil && b.endpoint != "" && b.bucket != "" && b.signer != nil
}

func (b *Backend) objectURL(key string) string {
	return b.endpoint + "/" + b.bucket + "/" + key
}

// Put буферизует тело (хэш полезной нагрузки нужен до подписи),
// подписывает и отправляет PUT.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, contentType, dispositionName string) (int64, error) {
	if !b.IsConfigured() {
		return 0, &storage.ConfigurationError{Message: "REST API хранилища не настроен"}
	}
	if err := storage.ValidateKey(key); err != nil {
		return 0, err
	}

	var src io.Reader = r
	var limited *storage.LimitedReader
	if b.maxSize > 0 {
		limited = &storage.LimitedReader{R: r, N: b.maxSize}
		src = limited
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return int64(len(body)), fmt.Errorf("signedrest: ошибка чтения тела: %w", err)
	}

	sum := sha256.Sum256(body)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"content-type":                           contentType,
		"content-disposition":                    storage.AttachmentDisposition(dispositionName),
		"cache-control":                          storage.CacheControlNoStore,
		"x-amz-meta-" + storage.MetaOriginalName: dispositionName,
		"x-amz-meta-" + storage.MetaUploadedAt:   storage.UploadedAtValue(b.now()),
		"x-amz-content-sha256":                   hex.EncodeToString(sum[:]),
	}

	resp, err := b.do(ctx, http.MethodPut, key, headers, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return 0, responseError("put", key, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return int64(len(body)), nil
}

// Get выполняет подписанный GET. 404 — storage.ErrObjectNotFound.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if !b.IsConfigured() {
		return nil, &storage.ConfigurationError{Message: "REST API хранилища не настроен"}
	}
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	resp, err := b.do(ctx, http.MethodGet, key, emptyPayloadHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, storage.ErrObjectNotFound
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, responseError("get", key, resp)
	}
	return resp.Body, nil
}

// Delete выполняет подписанный DELETE. 404 считается успехом.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if !b.IsConfigured() {
		return &storage.ConfigurationError{Message: "REST API хранилища не настроен"}
	}
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	resp, err := b.do(ctx, http.MethodDelete, key, emptyPayloadHeaders(), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return responseError("delete", key, resp)
}

// do подписывает и отправляет запрос. Ошибки транспорта оборачиваются
// в BackendError без URL запроса.
func (b *Backend) do(ctx context.Context, method, key string, headers map[string]string, body []byte) (*http.Response, error) {
	op := strings.ToLower(method)
	target := b.objectURL(key)

	signed, err := b.signer.Sign(method, target, headers, body)
	if err != nil {
		return nil, &storage.BackendError{Op: op, Key: key, Message: "ошибка подписи запроса", Err: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &storage.BackendError{Op: op, Key: key, Message: "ошибка формирования запроса", Err: err}
	}
	for k, v := range signed {
		if strings.EqualFold(k, "host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &storage.BackendError{Op: op, Key: key, Message: "ошибка запроса к хранилищу", Err: transportCause(err)}
	}
	return resp, nil
}

func emptyPayloadHeaders() map[string]string {
	return map[string]string{"x-amz-content-sha256": hex.EncodeToString(emptySHA256[:])}
}

var emptySHA256 = sha256.Sum256(nil)

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// responseError читает не более maxErrorBody байт тела ответа.
func responseError(op, key string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &storage.BackendError{
		Op:      op,
		Key:     key,
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(data)),
	}
}

// transportCause убирает из *url.Error адрес запроса.
func transportCause(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

var _ storage.Backend = (*Backend)(nil)
