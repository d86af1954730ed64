// Пакет binding — бэкенд хранилища поверх объектного хранилища,
// переданного вызывающим кодом (Bucket). Собственного ввода-вывода
// не выполняет.
package binding

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bigkaa/flashshare/internal/storage"
)

// Name — имя варианта бэкенда.
const Name = "binding"

// ObjectMetadata — HTTP-метаданные и пользовательские атрибуты объекта.
type ObjectMetadata struct {
	ContentType        string
	ContentDisposition string
	CacheControl       string
	// Custom — пользовательские метаданные (x-amz-meta-<ключ>)
	Custom map[string]string
}

// Bucket — объектное хранилище, предоставленное окружением.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, meta ObjectMetadata) error
	// Get возвращает (nil, false, nil), если объекта нет.
	Get(ctx context.Context, key string) (io.ReadCloser, bool, error)
	Delete(ctx context.Context, key string) error
}

// Backend — storage.Backend поверх Bucket.
type Backend struct {
	bucket Bucket
	now    func() time.Time
}

// New создаёт бэкенд. bucket == nil — бэкенд не настроен.
func New(bucket Bucket) *Backend {
	return &Backend{bucket: bucket, now: time.Now}
}

// Name возвращает "binding".
func (b *Backend) Name() string { return Name }

// IsConfigured — true, если Bucket передан.
func (b *Backend) IsConfigured() bool {
	return b != nil && b.bucket != nil
}

// Put передаёт поток в Bucket и возвращает число переданных байт.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, contentType, dispositionName string) (int64, error) {
	if !b.IsConfigured() {
		return 0, &storage.ConfigurationError{Message: "bucket не передан"}
	}

	cr := &countingReader{r: r}
	meta := ObjectMetadata{
		ContentType:        contentType,
		ContentDisposition: storage.AttachmentDisposition(dispositionName),
		CacheControl:       storage.CacheControlNoStore,
		Custom: map[string]string{
			storage.MetaOriginalName: dispositionName,
			storage.MetaUploadedAt:   storage.UploadedAtValue(b.now()),
		},
	}
	if err := b.bucket.Put(ctx, key, cr, meta); err != nil {
		return cr.n, &storage.BackendError{Op: "put", Key: key, Err: err}
	}
	return cr.n, nil
}

// Get открывает объект.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if !b.IsConfigured() {
		return nil, &storage.ConfigurationError{Message: "bucket не передан"}
	}

	rc, ok, err := b.bucket.Get(ctx, key)
	if err != nil {
		return nil, &storage.BackendError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return rc, nil
}

// Delete удаляет объект.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if !b.IsConfigured() {
		return &storage.ConfigurationError{Message: "bucket не передан"}
	}
	if err := b.bucket.Delete(ctx, key); err != nil {
		return &storage.BackendError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// String — для логов.
func (b *Backend) String() string {
	return fmt.Sprintf("binding(configured=%v)", b.IsConfigured())
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ storage.Backend = (*Backend)(nil)
