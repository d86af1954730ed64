// Пакет attr — сопутствующие файлы атрибутов объектов локального хранилища.
// Для каждого объекта рядом лежит <key>.attr.json с типом содержимого,
// именем для скачивания, размером и SHA-256.
// Запись атомарна: temp → fsync → rename.
package attr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Suffix — суффикс файла атрибутов.
const Suffix = ".attr.json"

// maxAttrFileSize — максимальный размер attr.json (4 КБ).
const maxAttrFileSize = 4096

// ObjectAttr — атрибуты хранимого объекта.
type ObjectAttr struct {
	Key             string    `json:"key"`
	ContentType     string    `json:"content_type"`
	DispositionName string    `json:"disposition_name"`
	Size            int64     `json:"size"`
	Checksum        string    `json:"checksum"`
	StoredAt        time.Time `json:"stored_at"`
}

// FilePath возвращает путь к attr.json для файла данных.
// Пример: "/data/abc.txt" → "/data/abc.txt.attr.json"
func FilePath(dataFilePath string) string {
	return dataFilePath + Suffix
}

// IsAttrFile проверяет, является ли путь файлом атрибутов.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, Suffix)
}

// Write атомарно записывает атрибуты.
func Write(path string, a *ObjectAttr) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации атрибутов: %w", err)
	}
	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// Read читает атрибуты. Ошибка оборачивает os.ErrNotExist, если файла нет.
func Read(path string) (*ObjectAttr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения attr.json %s: %w", path, err)
	}

	var a ObjectAttr
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", path, err)
	}
	return &a, nil
}

// Delete удаляет attr.json. Возвращает nil, если файла уже нет.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления attr.json %s: %w", path, err)
	}
	return nil
}
