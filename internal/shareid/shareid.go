// Пакет shareid — генерация коротких непредсказуемых идентификаторов
// для ссылок на загруженные файлы.
package shareid

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Alphabet — 62 символа, из которых составляется идентификатор.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength — длина идентификатора по умолчанию (~59.5 бит энтропии).
const DefaultLength = 10

// maxUnbiased — байты >= 248 (4*62) отбрасываются, чтобы каждый
// символ алфавита выпадал с одинаковой вероятностью.
const maxUnbiased = 256 - (256 % len(Alphabet))

// Generator — источник идентификаторов. Reader по умолчанию crypto/rand.
type Generator struct {
	Length int
	Reader io.Reader
}

// New создаёт генератор идентификаторов заданной длины.
func New(length int) *Generator {
	return &Generator{Length: length, Reader: rand.Reader}
}

// Next возвращает новый идентификатор.
func (g *Generator) Next() (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}
	return generate(r, g.Length)
}

// Generate возвращает идентификатор длины length из криптографического
// источника случайности.
func Generate(length int) (string, error) {
	return generate(rand.Reader, length)
}

func generate(r io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("длина идентификатора должна быть положительной, получено %d", length)
	}

	out := make([]byte, 0, length)
	// С запасом: в среднем отбрасывается ~3% байт
	buf := make([]byte, length+length/4+4)

	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("ошибка чтения источника случайности: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
