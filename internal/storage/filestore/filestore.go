// Пакет filestore — бэкенд хранилища на локальной файловой системе.
// Запись потоковая с подсчётом SHA-256 на лету, чтение — потоком из файла.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/flashshare/internal/storage"
	"github.com/bigkaa/flashshare/internal/storage/attr"
)

// Name — имя варианта бэкенда.
const Name = "local"

// FileStore — объекты как файлы в одной директории.
type FileStore struct {
	// dataDir — корневая директория хранения (FS_UPLOAD_DIR)
	dataDir string
}

// New создаёт FileStore. Создаёт директорию, если её нет.
func New(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("не задана директория данных")
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Name возвращает "local".
func (fs *FileStore) Name() string { return Name }

// IsConfigured — true, если директория задана.
func (fs *FileStore) IsConfigured() bool {
	return fs != nil && fs.dataDir != ""
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// FullPath возвращает абсолютный путь к объекту.
func (fs *FileStore) FullPath(key string) string {
	return filepath.Join(fs.dataDir, key)
}

// Put записывает поток в файл key и атрибуты рядом.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename → attr.json.
// При ошибке temp файл удаляется.
func (fs *FileStore) Put(ctx context.Context, key string, r io.Reader, contentType, dispositionName string) (int64, error) {
	if err := storage.ValidateKey(key); err != nil {
		return 0, err
	}

	fullPath := fs.FullPath(key)
	// Уникальный суффикс: параллельные записи одного ключа не делят temp файл
	tmpPath := fmt.Sprintf("%s.%s.tmp", fullPath, uuid.NewString()[:8])

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(&ctxReader{ctx: ctx, r: r}, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	a := &attr.ObjectAttr{
		Key:             key,
		ContentType:     contentType,
		DispositionName: dispositionName,
		Size:            size,
		Checksum:        hex.EncodeToString(hasher.Sum(nil)),
		StoredAt:        time.Now().UTC(),
	}
	if err := attr.Write(attr.FilePath(fullPath), a); err != nil {
		os.Remove(fullPath)
		return 0, err
	}

	return size, nil
}

// Get открывает объект на чтение. Объект без атрибутов ещё не дописан
// и считается отсутствующим; размер файла сверяется с атрибутами.
func (fs *FileStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	a, err := fs.Stat(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fs.FullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка чтения размера файла %s: %w", key, err)
	}
	if info.Size() != a.Size {
		f.Close()
		return nil, fmt.Errorf("файл %s повреждён: размер %d, в атрибутах %d", key, info.Size(), a.Size)
	}
	return f, nil
}

// Stat возвращает атрибуты объекта.
func (fs *FileStore) Stat(key string) (*attr.ObjectAttr, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	a, err := attr.Read(attr.FilePath(fs.FullPath(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrObjectNotFound
	}
	return a, err
}

// Delete удаляет файл и его атрибуты. Возвращает nil, если файла уже нет.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	fullPath := fs.FullPath(key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return attr.Delete(attr.FilePath(fullPath))
}

// ctxReader прерывает копирование при отмене контекста.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ storage.Backend = (*FileStore)(nil)
