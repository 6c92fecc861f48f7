package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/netsync/internal/logging"
)

// KCPServer принимает входящие KCP-соединения и отдаёт их наверх
// готовыми каналами.
type KCPServer struct {
	listener *kcp.Listener
	logger   *logging.Logger

	onConnect func(Channel)

	mu       sync.Mutex
	channels map[string]*KCPChannel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKCPServer создаёт сервер на указанном адресе.
func NewKCPServer(addr string, logger *logging.Logger) (*KCPServer, error) {
	listener, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("network: прослушивание %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KCPServer{
		listener: listener,
		logger:   logger,
		channels: make(map[string]*KCPChannel),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// OnConnect устанавливает обработчик новых соединений.
func (s *KCPServer) OnConnect(fn func(Channel)) { s.onConnect = fn }

// Start запускает цикл приёма соединений.
func (s *KCPServer) Start() {
	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Info("KCP сервер слушает %s", s.listener.Addr())
}

// Close останавливает сервер и закрывает все каналы.
func (s *KCPServer) Close() error {
	s.cancel()
	err := s.listener.Close()

	s.mu.Lock()
	channels := make([]*KCPChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	s.wg.Wait()
	return err
}

// acceptLoop принимает соединения до остановки сервера.
func (s *KCPServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.AcceptKCP()
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Error("Ошибка приёма соединения: %v", err)
			}
			return
		}

		channel, err := NewKCPChannelFromConn(conn, s.logger)
		if err != nil {
			s.logger.Error("Ошибка создания канала: %v", err)
			_ = conn.Close()
			continue
		}

		s.mu.Lock()
		s.channels[channel.ID()] = channel
		s.mu.Unlock()

		s.logger.Info("Новое соединение %s от %s", channel.ID(), conn.RemoteAddr())
		if s.onConnect != nil {
			s.onConnect(channel)
		}
	}
}
