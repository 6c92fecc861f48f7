package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/netsync/internal/config"
	"github.com/annel0/netsync/internal/entity"
	"github.com/annel0/netsync/internal/eventbus"
	"github.com/annel0/netsync/internal/game"
	"github.com/annel0/netsync/internal/logging"
	"github.com/annel0/netsync/internal/network"
	"github.com/annel0/netsync/internal/world"
)

// ownerMark значение приватного поля UserData: поле реплицируется
// только контроллирующему пиру, поэтому клиент узнаёт свою пешку по
// ненулевому значению.
const ownerMark = 7

// join событие подключения для тикового цикла.
type join struct {
	channel network.Channel
}

// inbound входящий пакет для тикового цикла.
type inbound struct {
	connID string
	data   []byte
}

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		os.Exit(1)
	}

	logging.Info("🎮 Запуск сервера репликации: kcp=%s, tick=%d Гц, send=1/%d",
		cfg.Server.GetKCPAddr(), cfg.Replication.TickRate, cfg.Replication.NetworkSendRate)

	// === ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ ===

	bus := eventbus.NewMemoryBus(cfg.EventBus.BufferSize)
	_, _ = bus.Subscribe(context.Background(), eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		logging.Debug("Событие %s: сущность %d, тик %d", ev.EventType, ev.EntityID, ev.Tick)
	})

	registry := world.NewRegistry()
	game.Register(registry)

	opts := entity.Options{
		DejitterBufferLength: cfg.Replication.DejitterBufferLength,
		NetworkSendRate:      cfg.Replication.NetworkSendRate,
		TicksBeforeFreeze:    cfg.Replication.TicksBeforeFreeze,
		ForceUpdates:         cfg.Replication.ForceUpdates,
	}
	w := world.NewServerWorld(registry, opts, bus)

	// Фоновая пешка-бот, чтобы клиентам было за кем наблюдать
	bot, err := w.Spawn(game.KindPawn)
	if err != nil {
		logging.Error("❌ Ошибка создания бота: %v", err)
		os.Exit(1)
	}
	bot.State().(*game.PawnState).Archetype = 1

	server, err := network.NewKCPServer(cfg.Server.GetKCPAddr(), logging.GetNetworkLogger())
	if err != nil {
		logging.Error("❌ Ошибка запуска KCP сервера: %v", err)
		os.Exit(1)
	}

	joins := make(chan join, 16)
	packets := make(chan inbound, 256)
	leaves := make(chan string, 16)

	server.OnConnect(func(ch network.Channel) {
		joins <- join{channel: ch}
	})
	server.Start()

	go func() {
		if err := network.ServeMetrics(cfg.Server.GetMetricsPort()); err != nil {
			logging.Warn("Метрики недоступны: %v", err)
		}
	}()

	// === ТИКОВЫЙ ЦИКЛ ===
	// Весь доступ к миру идёт из этой горутины: ввод-вывод только на
	// границах тиков.

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Replication.TickRate))
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	channels := make(map[string]network.Channel)
	peers := make(map[string]*world.Peer)

	for {
		select {
		case <-sigCh:
			logging.Info("⏹ Остановка сервера")
			_ = server.Close()
			return

		case j := <-joins:
			connID := j.channel.ID()
			channels[connID] = j.channel
			peer := w.AddPeer(connID)
			pawn, err := w.Spawn(game.KindPawn)
			if err != nil {
				logging.Error("Ошибка создания пешки для %s: %v", connID, err)
				continue
			}
			pawn.State().(*game.PawnState).UserData = ownerMark
			if err := w.GrantControl(peer, pawn.ID()); err != nil {
				logging.Error("Ошибка передачи управления %s: %v", connID, err)
			}
			peers[connID] = peer

			// Читатель пересылает пакеты в тиковый цикл
			go func(id string, ch network.Channel) {
				for data := range ch.Receive() {
					packets <- inbound{connID: id, data: data}
				}
				leaves <- id
			}(connID, j.channel)

		case id := <-leaves:
			if peer, ok := peers[id]; ok {
				_ = w.Destroy(peer.Controls())
				w.RemovePeer(id)
				delete(peers, id)
			}
			delete(channels, id)

		case p := <-packets:
			if peer, ok := peers[p.connID]; ok {
				_ = w.ConsumePacket(peer, p.data)
			}

		case <-ticker.C:
			// Бот ходит по кругу
			s := bot.State().(*game.PawnState)
			angle := float64(w.Tick()) * 0.05
			s.X = 10 * math.Cos(angle)
			s.Y = 10 * math.Sin(angle)

			w.Update()

			if !w.ShouldSend() {
				continue
			}
			for id, peer := range peers {
				data, err := w.ProducePacket(peer)
				if err != nil {
					logging.Error("Ошибка сборки пакета для %s: %v", id, err)
					continue
				}
				if err := channels[id].Send(data); err != nil {
					logging.Warn("Отправка пиру %s: %v", id, err)
				}
			}
		}
	}
}
