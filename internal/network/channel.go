// Package network предоставляет транспортные каналы для пакетов
// репликации. Ядро синхронизации транспорта не знает: каналы передают
// непрозрачные байтовые пакеты на границах тиков.
package network

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Channel унифицированный интерфейс транспортного канала.
type Channel interface {
	// ID идентификатор соединения.
	ID() string

	// Send ставит пакет в очередь отправки.
	Send(payload []byte) error

	// Receive канал входящих пакетов; закрывается вместе с соединением.
	Receive() <-chan []byte

	// Close закрывает соединение.
	Close() error

	// Stats статистика соединения.
	Stats() ConnectionStats
}

// ConnectionStats содержит статистику соединения
type ConnectionStats struct {
	PacketsSent     uint64    // Отправлено пакетов
	PacketsReceived uint64    // Получено пакетов
	BytesSent       uint64    // Отправлено байт
	BytesReceived   uint64    // Получено байт
	LastActivity    time.Time // Последняя активность
	Connected       bool      // Статус соединения
	RemoteAddr      string    // Адрес удалённого узла
}

// Кадрирование потока: [длина uint32 BE] [флаги 1 байт] [полезная
// нагрузка]. Бит 0 флагов — полезная нагрузка сжата zstd.
const (
	frameHeaderSize = 5
	flagCompressed  = 0x01

	// maxFrameSize предохранитель от повреждённых длин.
	maxFrameSize = 1 << 20
)

// writeFrameHeader собирает заголовок кадра.
func writeFrameHeader(dst []byte, payloadLen int, flags byte) {
	binary.BigEndian.PutUint32(dst[:4], uint32(payloadLen))
	dst[4] = flags
}

// parseFrameHeader разбирает заголовок кадра.
func parseFrameHeader(hdr []byte) (payloadLen int, flags byte, err error) {
	n := binary.BigEndian.Uint32(hdr[:4])
	if n > maxFrameSize {
		return 0, 0, fmt.Errorf("network: длина кадра %d превышает предел", n)
	}
	return int(n), hdr[4], nil
}
