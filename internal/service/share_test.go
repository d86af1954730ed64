package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/flashshare/internal/domain/model"
	"github.com/bigkaa/flashshare/internal/metadata"
	"github.com/bigkaa/flashshare/internal/shareid"
	"github.com/bigkaa/flashshare/internal/sigv4"
	"github.com/bigkaa/flashshare/internal/storage"
	"github.com/bigkaa/flashshare/internal/storage/binding"
	"github.com/bigkaa/flashshare/internal/storage/filestore"
	"github.com/bigkaa/flashshare/internal/storage/s3mock"
	"github.com/bigkaa/flashshare/internal/storage/signedrest"
	"github.com/bigkaa/flashshare/internal/validation"
)

// fakeClock — управляемый источник времени.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newService(t *testing.T, store metadata.Store, backend storage.Backend, clock *fakeClock, opts ...Option) *ShareService {
	t.Helper()
	base := []Option{WithClock(clock.Now), WithLogger(silentLogger())}
	return NewShareService(store, backend, append(base, opts...)...)
}

func textUpload(data string) UploadParams {
	return UploadParams{
		Reader:       strings.NewReader(data),
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
		Size:         int64(len(data)),
		TTLHours:     1,
	}
}

func readShare(t *testing.T, sh *Share) string {
	t.Helper()
	defer sh.Body.Close()
	data, err := io.ReadAll(sh.Body)
	if err != nil {
		t.Fatalf("ошибка чтения данных: %v", err)
	}
	return string(data)
}

// backendVariants — все варианты бэкенда, работающие внутри процесса.
func backendVariants(t *testing.T) map[string]func(t *testing.T) storage.Backend {
	return map[string]func(t *testing.T) storage.Backend{
		"local": func(t *testing.T) storage.Backend {
			fs, err := filestore.New(t.TempDir())
			if err != nil {
				t.Fatalf("ошибка создания filestore: %v", err)
			}
			return fs
		},
		"binding": func(t *testing.T) storage.Backend {
			return binding.New(binding.NewMemoryBucket())
		},
		"rest": func(t *testing.T) storage.Backend {
			creds := sigv4.Credentials{AccessKeyID: "AKIDTEST", SecretAccessKey: "secret"}
			srv := httptest.NewServer(s3mock.New(creds, ""))
			t.Cleanup(srv.Close)
			signer, err := sigv4.New(creds)
			if err != nil {
				t.Fatalf("ошибка создания подписанта: %v", err)
			}
			return signedrest.New(signedrest.Config{Endpoint: srv.URL, Bucket: "b", MaxSize: 1 << 20}, signer,
				signedrest.WithHTTPClient(srv.Client()))
		},
	}
}

// TestShareService_RoundTrip проверяет загрузку и получение для каждого бэкенда.
func TestShareService_RoundTrip(t *testing.T) {
	for name, mk := range backendVariants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(t, metadata.NewMemoryStore(), mk(t), newFakeClock())

			rec, err := svc.Upload(ctx, UploadParams{
				Reader:       strings.NewReader("hello flashshare"),
				OriginalName: "my report (final).pdf",
				MimeType:     "Application/PDF; charset=binary",
				Size:         16,
				TTLHours:     24,
			})
			if err != nil {
				t.Fatalf("ошибка Upload: %v", err)
			}

			sh, err := svc.Retrieve(ctx, rec.ID)
			if err != nil {
				t.Fatalf("ошибка Retrieve: %v", err)
			}
			if got := readShare(t, sh); got != "hello flashshare" {
				t.Errorf("содержимое: %q", got)
			}
			if sh.Record.MimeType != "application/pdf" {
				t.Errorf("ожидался application/pdf, получено %q", sh.Record.MimeType)
			}
			if sh.Record.OriginalName != validation.Sanitize("my report (final).pdf") {
				t.Errorf("имя: %q", sh.Record.OriginalName)
			}
			if sh.Record.StorageKey != rec.ID+".pdf" {
				t.Errorf("ключ объекта: %q", sh.Record.StorageKey)
			}
			if sh.Record.Size != 16 {
				t.Errorf("ожидалось 16 байт, получено %d", sh.Record.Size)
			}
		})
	}
}

// TestShareService_ExpiryScenario — 10 байт, TTL 1 час, проверка до и после истечения.
func TestShareService_ExpiryScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := metadata.NewMemoryStore()
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания filestore: %v", err)
	}
	svc := newService(t, store, fs, clock)

	start := clock.Now()
	rec, err := svc.Upload(ctx, textUpload("0123456789"))
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}
	if len(rec.ID) != 10 {
		t.Errorf("ожидалась длина id 10, получено %d", len(rec.ID))
	}
	if got := rec.ExpiresAt.UnixMilli() - start.UnixMilli(); got != 3600000 {
		t.Errorf("ожидалось expiresAt = now + 3600000 мс, получено +%d", got)
	}

	sh, err := svc.Retrieve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ошибка Retrieve: %v", err)
	}
	if got := readShare(t, sh); got != "0123456789" {
		t.Errorf("содержимое: %q", got)
	}

	clock.Advance(3601 * time.Second)

	if _, err := svc.Retrieve(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}
	// Получение истёкшей ссылки удаляет и метаданные, и байты
	if store.Count() != 0 {
		t.Errorf("ожидалось 0 записей, получено %d", store.Count())
	}
	if _, err := fs.Get(ctx, rec.StorageKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("объект не удалён: %v", err)
	}
}

// TestShareService_ExpiresExactlyAtBoundary — в момент expiresAt ссылка ещё доступна.
func TestShareService_ExpiresExactlyAtBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newService(t, metadata.NewMemoryStore(), binding.New(binding.NewMemoryBucket()), clock)

	rec, err := svc.Upload(ctx, textUpload("boundary"))
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}

	clock.Advance(time.Hour)
	sh, err := svc.Retrieve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("в момент expiresAt ссылка должна быть доступна: %v", err)
	}
	sh.Body.Close()

	clock.Advance(time.Millisecond)
	if _, err := svc.Retrieve(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestShareService_UnknownID проверяет неизвестные и пустые идентификаторы.
func TestShareService_UnknownID(t *testing.T) {
	svc := newService(t, metadata.NewMemoryStore(), binding.New(binding.NewMemoryBucket()), newFakeClock())

	for _, id := range []string{"", "doesNotExist", "../../etc"} {
		if _, err := svc.Retrieve(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("id %q: ожидалась ErrNotFound, получено %v", id, err)
		}
	}
}

// TestShareService_ValidationRejects проверяет отказы проверки файла.
func TestShareService_ValidationRejects(t *testing.T) {
	const maxSize = 64
	bucket := binding.NewMemoryBucket()
	svc := newService(t, metadata.NewMemoryStore(), binding.New(bucket), newFakeClock(), WithMaxSize(maxSize))

	tests := []struct {
		name     string
		params   UploadParams
		wantCode string
	}{
		{"пустой файл", UploadParams{OriginalName: "a.txt", MimeType: "text/plain", Size: 0}, validation.CodeEmptyFile},
		{"больше максимума", UploadParams{OriginalName: "a.txt", MimeType: "text/plain", Size: maxSize + 1}, validation.CodeFileTooLarge},
		{"обход пути", UploadParams{OriginalName: "../../etc/passwd", MimeType: "text/plain", Size: 5}, validation.CodeUnsafeName},
		{"исполняемый файл", UploadParams{OriginalName: "setup.exe", MimeType: "application/octet-stream", Size: 5}, validation.CodeBlockedExtension},
		{"запрещённый MIME", UploadParams{OriginalName: "a.pdf", MimeType: "application/x-msdownload", Size: 5}, validation.CodeMIMENotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Reader = strings.NewReader("hello")
			_, err := svc.Upload(context.Background(), tt.params)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ожидалась ValidationError, получено %v", err)
			}
			if ve.Code != tt.wantCode {
				t.Errorf("ожидался код %s, получено %s", tt.wantCode, ve.Code)
			}
		})
	}
	if bucket.Len() != 0 {
		t.Errorf("отклонённые файлы не должны попадать в хранилище, объектов: %d", bucket.Len())
	}
}

// TestShareService_StreamLongerThanDeclared — фактический поток длиннее максимума.
func TestShareService_StreamLongerThanDeclared(t *testing.T) {
	for name, mk := range backendVariants(t) {
		t.Run(name, func(t *testing.T) {
			store := metadata.NewMemoryStore()
			svc := newService(t, store, mk(t), newFakeClock(), WithMaxSize(8))

			_, err := svc.Upload(context.Background(), UploadParams{
				Reader:       bytes.NewReader(bytes.Repeat([]byte("x"), 32)),
				OriginalName: "a.txt",
				MimeType:     "text/plain",
				Size:         4,
				TTLHours:     1,
			})
			var ve *ValidationError
			if !errors.As(err, &ve) || !ve.TooLarge() {
				t.Fatalf("ожидался FILE_TOO_LARGE, получено %v", err)
			}
			if store.Count() != 0 {
				t.Error("метаданные не должны сохраняться")
			}
		})
	}
}

// TestShareService_StreamShorterThanDeclared — заявлен ненулевой размер,
// но поток пустой.
func TestShareService_StreamShorterThanDeclared(t *testing.T) {
	for name, mk := range backendVariants(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := metadata.NewMemoryStore()
			backend := mk(t)
			gen := &shareid.Generator{Length: 6, Reader: bytes.NewReader(bytes.Repeat([]byte{0}, 64))}
			svc := newService(t, store, backend, newFakeClock(), WithIDGenerator(gen))

			rec, err := svc.Upload(ctx, UploadParams{
				Reader:       strings.NewReader(""),
				OriginalName: "a.txt",
				MimeType:     "text/plain",
				Size:         10,
				TTLHours:     1,
			})
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Code != validation.CodeEmptyFile {
				t.Fatalf("ожидался EMPTY_FILE, получено rec=%v err=%v", rec, err)
			}
			if store.Count() != 0 {
				t.Error("метаданные не должны сохраняться")
			}
			if _, err := backend.Get(ctx, "AAAAAA.txt"); !errors.Is(err, storage.ErrObjectNotFound) {
				t.Errorf("объект должен быть удалён, получено %v", err)
			}
		})
	}
}

// TestShareService_TTLClamp проверяет приведение TTL к диапазону.
func TestShareService_TTLClamp(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 1}, {0, 1}, {1, 1}, {24, 24}, {168, 168}, {1000, 168},
	}
	for _, tt := range tests {
		if got := ClampTTL(tt.in); got != tt.want {
			t.Errorf("ClampTTL(%d): ожидалось %d, получено %d", tt.in, tt.want, got)
		}
	}

	clock := newFakeClock()
	svc := newService(t, metadata.NewMemoryStore(), binding.New(binding.NewMemoryBucket()), clock)
	p := textUpload("week")
	p.TTLHours = 10000
	rec, err := svc.Upload(context.Background(), p)
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}
	if got := rec.ExpiresAt.Sub(clock.Now()); got != 168*time.Hour {
		t.Errorf("ожидалось 168h, получено %v", got)
	}
}

// TestShareService_NotConfigured проверяет ошибку конфигурации.
func TestShareService_NotConfigured(t *testing.T) {
	ctx := context.Background()
	for name, backend := range map[string]storage.Backend{
		"nil":                nil,
		"binding без bucket": binding.New(nil),
	} {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, metadata.NewMemoryStore(), backend, newFakeClock())

			var cfgErr *storage.ConfigurationError
			if _, err := svc.Upload(ctx, textUpload("data")); !errors.As(err, &cfgErr) {
				t.Errorf("Upload: ожидалась ConfigurationError, получено %v", err)
			}
			if _, err := svc.Retrieve(ctx, "abc"); !errors.As(err, &cfgErr) {
				t.Errorf("Retrieve: ожидалась ConfigurationError, получено %v", err)
			}
			if err := svc.Ready(ctx); !errors.As(err, &cfgErr) {
				t.Errorf("Ready: ожидалась ConfigurationError, получено %v", err)
			}
		})
	}
}

// failingStore — хранилище метаданных с управляемыми ошибками.
type failingStore struct {
	*metadata.MemoryStore
	putErr error
	getErr error
}

func (f *failingStore) Put(ctx context.Context, rec *model.ShareRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, rec)
}

func (f *failingStore) Get(ctx context.Context, id string) (*model.ShareRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, id)
}

// TestShareService_MetadataPutFailure — ошибка метаданных возвращается,
// объект остаётся в хранилище.
func TestShareService_MetadataPutFailure(t *testing.T) {
	bucket := binding.NewMemoryBucket()
	store := &failingStore{MemoryStore: metadata.NewMemoryStore(), putErr: errors.New("kv недоступен")}
	svc := newService(t, store, binding.New(bucket), newFakeClock())

	_, err := svc.Upload(context.Background(), textUpload("orphan"))
	if err == nil || !strings.Contains(err.Error(), "kv недоступен") {
		t.Fatalf("ожидалась ошибка метаданных, получено %v", err)
	}
	if bucket.Len() != 1 {
		t.Errorf("ожидался 1 оставленный объект, получено %d", bucket.Len())
	}
}

// TestShareService_MetadataGetFailure — ошибка чтения метаданных даёт NotFound.
func TestShareService_MetadataGetFailure(t *testing.T) {
	store := &failingStore{MemoryStore: metadata.NewMemoryStore(), getErr: errors.New("таймаут")}
	svc := newService(t, store, binding.New(binding.NewMemoryBucket()), newFakeClock())

	if _, err := svc.Retrieve(context.Background(), "abcdefghij"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestShareService_MissingObject — метаданные есть, объекта нет.
func TestShareService_MissingObject(t *testing.T) {
	ctx := context.Background()
	bucket := binding.NewMemoryBucket()
	svc := newService(t, metadata.NewMemoryStore(), binding.New(bucket), newFakeClock())

	rec, err := svc.Upload(ctx, textUpload("gone"))
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}
	_ = bucket.Delete(ctx, rec.StorageKey)

	if _, err := svc.Retrieve(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// flakyBucket — bucket с ошибками чтения и удаления.
type flakyBucket struct {
	*binding.MemoryBucket
	getErr    error
	deleteErr error
}

func (f *flakyBucket) Get(ctx context.Context, key string) (io.ReadCloser, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.MemoryBucket.Get(ctx, key)
}

func (f *flakyBucket) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryBucket.Delete(ctx, key)
}

// TestShareService_BackendFailure — ошибка чтения объекта возвращается как BackendError.
func TestShareService_BackendFailure(t *testing.T) {
	ctx := context.Background()
	bucket := &flakyBucket{MemoryBucket: binding.NewMemoryBucket()}
	svc := newService(t, metadata.NewMemoryStore(), binding.New(bucket), newFakeClock())

	rec, err := svc.Upload(ctx, textUpload("data"))
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}
	bucket.getErr = errors.New("connection reset")

	_, err = svc.Retrieve(ctx, rec.ID)
	var be *storage.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("ожидалась BackendError, получено %v", err)
	}
}

// TestShareService_ReapKeepsMetadataOnDeleteFailure — при ошибке удаления
// байтов метаданные сохраняются для повторной попытки.
func TestShareService_ReapKeepsMetadataOnDeleteFailure(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := metadata.NewMemoryStore()
	bucket := &flakyBucket{MemoryBucket: binding.NewMemoryBucket()}
	svc := newService(t, store, binding.New(bucket), clock)

	rec, err := svc.Upload(ctx, textUpload("data"))
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}
	clock.Advance(2 * time.Hour)
	bucket.deleteErr = errors.New("503")

	if _, err := svc.Retrieve(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("метаданные должны сохраниться, записей: %d", store.Count())
	}

	bucket.deleteErr = nil
	res := svc.Sweep(ctx)
	if res.Reaped != 1 || store.Count() != 0 || bucket.Len() != 0 {
		t.Errorf("повторная очистка: reaped=%d, записей=%d, объектов=%d", res.Reaped, store.Count(), bucket.Len())
	}
}

// TestShareService_DeterministicIDs проверяет внедрение генератора.
func TestShareService_DeterministicIDs(t *testing.T) {
	gen := &shareid.Generator{Length: 6, Reader: bytes.NewReader(bytes.Repeat([]byte{0}, 64))}
	svc := newService(t, metadata.NewMemoryStore(), binding.New(binding.NewMemoryBucket()), newFakeClock(),
		WithIDGenerator(gen))

	rec, err := svc.Upload(context.Background(), textUpload("x"))
	if err != nil {
		t.Fatalf("ошибка Upload: %v", err)
	}
	if rec.ID != "AAAAAA" {
		t.Errorf("ожидалось AAAAAA, получено %q", rec.ID)
	}
}
