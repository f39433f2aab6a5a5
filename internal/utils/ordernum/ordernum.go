// Package ordernum генерирует и проверяет номера заказов.
// Формат: yyyymmddhhmmss + ID покупателя + 6 случайных цифр.
package ordernum

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const randomDigits = 6

// Generate создает новый номер заказа для покупателя.
// Случайный хвост берется из криптографически стойкого uuid,
// поэтому коллизии при одновременных заказах одного покупателя исключены на практике.
func Generate(buyerID int64, now time.Time) string {
	u := uuid.New()
	tail := binary.BigEndian.Uint32(u[:4]) % 1000000
	return fmt.Sprintf("%s%d%06d", now.Format("20060102150405"), buyerID, tail)
}

// Validate проверяет, что строка выглядит как номер заказа:
// только цифры, и длина достаточна для формата с префиксом даты.
func Validate(number string) bool {
	// 14 цифр даты + минимум 1 цифра ID + 6 случайных
	if len(number) < 14+1+randomDigits {
		return false
	}

	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}

	if _, err := time.Parse("20060102150405", number[:14]); err != nil {
		return false
	}

	return true
}
