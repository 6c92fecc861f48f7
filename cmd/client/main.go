package main

import (
	"flag"
	"log"
	"math/rand"
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
	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/world"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7778", "адрес сервера")
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	flag.Parse()

	if err := logging.InitDefaultLogger("client"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		os.Exit(1)
	}

	registry := world.NewRegistry()
	game.Register(registry)

	opts := entity.Options{
		DejitterBufferLength: cfg.Replication.DejitterBufferLength,
		NetworkSendRate:      cfg.Replication.NetworkSendRate,
		TicksBeforeFreeze:    cfg.Replication.TicksBeforeFreeze,
		ForceUpdates:         cfg.Replication.ForceUpdates,
	}
	w := world.NewClientWorld(registry, opts, eventbus.NewMemoryBus(cfg.EventBus.BufferSize))

	channel, err := network.DialKCP(*addr, logging.GetNetworkLogger())
	if err != nil {
		logging.Error("❌ Ошибка подключения: %v", err)
		os.Exit(1)
	}
	defer channel.Close()

	logging.Info("🔌 Подключено к %s", *addr)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Replication.TickRate))
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	controller := world.NewLocalController(64)
	var ownedID protocol.EntityID

	for {
		select {
		case <-sigCh:
			logging.Info("⏹ Остановка клиента")
			return

		case data, ok := <-channel.Receive():
			if !ok {
				logging.Info("Соединение закрыто сервером")
				return
			}
			_ = w.ConsumePacket(data)

		case <-ticker.C:
			// Свою пешку выдаёт приватное поле: остальным пирам оно
			// не реплицируется
			if !ownedID.IsValid() {
				for id := protocol.EntityID(1); id <= protocol.EntityID(w.EntityCount())+8; id++ {
					e, ok := w.Entity(id)
					if !ok {
						continue
					}
					if s, isPawn := e.State().(*game.PawnState); isPawn && s.UserData != 0 {
						ownedID = id
						w.Control(id, controller)
						logging.Info("🕹 Получено управление пешкой %d", id)
						break
					}
				}
			}

			if ownedID.IsValid() {
				cmd := game.NewMoveCommand(w.Tick()+1, rand.Float64()-0.5, rand.Float64()-0.5)
				controller.AddCommand(cmd)
			}

			w.Update()

			if e, ok := w.Entity(ownedID); ok {
				if smoothed, err := e.GetSmoothed(0.5, w.Tick()); err == nil {
					s := smoothed.(*game.PawnState)
					logging.Debug("Пешка %d: (%.2f, %.2f) угол %.1f", ownedID, s.X, s.Y, s.Angle)
				}
			}

			data, err := w.ProducePacket()
			if err != nil {
				logging.Error("Ошибка сборки пакета: %v", err)
				continue
			}
			if err := channel.Send(data); err != nil {
				logging.Warn("Отправка: %v", err)
			}
		}
	}
}
