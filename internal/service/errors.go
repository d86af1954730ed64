package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/flashshare/internal/validation"
)

// ErrNotFound — ссылки нет: запись отсутствует, истекла или данные
// не согласованы. Клиент не различает эти случаи.
var ErrNotFound = errors.New("service: файл не найден")

// ValidationError — загрузка отклонена проверкой файла.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// TooLarge сообщает, что отказ вызван превышением размера.
func (e *ValidationError) TooLarge() bool {
	return e.Code == validation.CodeFileTooLarge
}
