package network

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/netsync/internal/logging"
)

// compressThreshold пакеты меньше порога не сжимаются: заголовок zstd
// съедает выигрыш.
const compressThreshold = 256

// KCPChannel реализует Channel поверх KCP (быстрый UDP).
type KCPChannel struct {
	id     string
	conn   *kcp.UDPSession
	logger *logging.Logger

	// Сжатие
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder

	// Буферы
	sendBuffer chan []byte
	recvBuffer chan []byte

	// Статистика
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	lastActivity    atomic.Int64

	// Контроль выполнения
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewKCPChannelFromConn создаёт канал из установленной KCP-сессии.
func NewKCPChannelFromConn(conn *kcp.UDPSession, logger *logging.Logger) (*KCPChannel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	channel := &KCPChannel{
		id:         uuid.NewString(),
		conn:       conn,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		sendBuffer: make(chan []byte, 64),
		recvBuffer: make(chan []byte, 64),
	}

	var err error
	channel.compressor, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("network: создание компрессора: %w", err)
	}
	channel.decompressor, err = zstd.NewReader(nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("network: создание декомпрессора: %w", err)
	}

	// Настраиваем KCP параметры для игрового трафика
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	conn.SetWindowSize(512, 512)
	conn.SetMtu(1400)

	channel.wg.Add(2)
	go channel.sendLoop()
	go channel.recvLoop()

	ActiveConnections.Inc()
	return channel, nil
}

// DialKCP подключается к удалённому хосту и возвращает канал.
func DialKCP(addr string, logger *logging.Logger) (*KCPChannel, error) {
	conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("network: подключение к %s: %w", addr, err)
	}
	return NewKCPChannelFromConn(conn, logger)
}

// ID идентификатор соединения.
func (c *KCPChannel) ID() string { return c.id }

// Send ставит пакет в очередь отправки.
func (c *KCPChannel) Send(payload []byte) error {
	select {
	case c.sendBuffer <- payload:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("network: канал %s закрыт", c.id)
	default:
		// Очередь переполнена — датаграммный слой с потерями,
		// дропаем и считаем
		PacketsDropped.Inc()
		return nil
	}
}

// Receive канал входящих пакетов.
func (c *KCPChannel) Receive() <-chan []byte { return c.recvBuffer }

// Close закрывает соединение и фоновые горутины.
func (c *KCPChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
		c.wg.Wait()
		close(c.recvBuffer)
		c.compressor.Close()
		c.decompressor.Close()
		ActiveConnections.Dec()
	})
	return err
}

// Stats статистика соединения.
func (c *KCPChannel) Stats() ConnectionStats {
	return ConnectionStats{
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		LastActivity:    time.Unix(0, c.lastActivity.Load()),
		Connected:       c.ctx.Err() == nil,
		RemoteAddr:      c.conn.RemoteAddr().String(),
	}
}

// sendLoop пишет кадры в KCP-сессию.
func (c *KCPChannel) sendLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case payload := <-c.sendBuffer:
			if err := c.writeFrame(payload); err != nil {
				c.logger.Error("Ошибка отправки кадра %s: %v", c.id, err)
				return
			}
		}
	}
}

// writeFrame кадрирует и отправляет пакет, при выгоде сжимая его.
func (c *KCPChannel) writeFrame(payload []byte) error {
	var flags byte
	if len(payload) >= compressThreshold {
		compressed := c.compressor.EncodeAll(payload, nil)
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= flagCompressed
			PacketsCompressed.Inc()
		}
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	writeFrameHeader(frame, len(payload), flags)
	copy(frame[frameHeaderSize:], payload)

	if _, err := c.conn.Write(frame); err != nil {
		return err
	}

	c.packetsSent.Add(1)
	c.bytesSent.Add(uint64(len(frame)))
	c.lastActivity.Store(time.Now().UnixNano())
	PacketsTotal.WithLabelValues("out").Inc()
	BytesTotal.WithLabelValues("out").Add(float64(len(frame)))
	return nil
}

// recvLoop читает кадры из KCP-сессии.
func (c *KCPChannel) recvLoop() {
	defer c.wg.Done()

	header := make([]byte, frameHeaderSize)
	for {
		if c.ctx.Err() != nil {
			return
		}
		if _, err := io.ReadFull(c.conn, header); err != nil {
			if c.ctx.Err() == nil {
				c.logger.Debug("Соединение %s закрыто: %v", c.id, err)
				c.cancel()
			}
			return
		}

		payloadLen, flags, err := parseFrameHeader(header)
		if err != nil {
			c.logger.Error("Повреждённый заголовок кадра %s: %v", c.id, err)
			c.cancel()
			return
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			c.cancel()
			return
		}

		c.packetsReceived.Add(1)
		c.bytesReceived.Add(uint64(frameHeaderSize + payloadLen))
		c.lastActivity.Store(time.Now().UnixNano())
		PacketsTotal.WithLabelValues("in").Inc()
		BytesTotal.WithLabelValues("in").Add(float64(frameHeaderSize + payloadLen))

		if flags&flagCompressed != 0 {
			payload, err = c.decompressor.DecodeAll(payload, nil)
			if err != nil {
				// Повреждённый пакет фатален только для самого пакета
				c.logger.Warn("Распаковка пакета %s: %v", c.id, err)
				PacketsDropped.Inc()
				continue
			}
		}

		select {
		case c.recvBuffer <- payload:
		case <-c.ctx.Done():
			return
		default:
			PacketsDropped.Inc()
		}
	}
}
