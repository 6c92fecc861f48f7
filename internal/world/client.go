package world

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/netsync/internal/entity"
	"github.com/annel0/netsync/internal/eventbus"
	"github.com/annel0/netsync/internal/logging"
	"github.com/annel0/netsync/internal/protocol"
)

// ClientWorld клиентский мир: принимает пакеты сервера, восстанавливает
// сущности по дежиттер-буферам и ведёт предсказание локальных.
type ClientWorld struct {
	reg   *Registry
	codec *protocol.FrameCodec
	opts  entity.Options
	bus   eventbus.Bus
	log   *logging.Logger

	// actualServerTick последний фактический тик сервера из пакетов;
	// он же локальная оценка времени мира.
	actualServerTick protocol.Tick

	entities map[protocol.EntityID]*entity.Entity
	order    []protocol.EntityID

	// controllers назначенные локальные контроллеры; могут быть
	// зарегистрированы до появления сущности.
	controllers map[protocol.EntityID]*LocalController
}

// NewClientWorld создаёт клиентский мир.
func NewClientWorld(reg *Registry, opts entity.Options, bus eventbus.Bus) *ClientWorld {
	return &ClientWorld{
		reg:         reg,
		codec:       protocol.NewFrameCodec(reg.Proto()),
		opts:        opts,
		bus:         bus,
		entities:    make(map[protocol.EntityID]*entity.Entity),
		controllers: make(map[protocol.EntityID]*LocalController),
		log:         logging.GetWorldLogger(),
	}
}

// Tick локальная оценка тика мира.
func (w *ClientWorld) Tick() protocol.Tick { return w.actualServerTick }

// Entity возвращает сущность по идентификатору.
func (w *ClientWorld) Entity(id protocol.EntityID) (*entity.Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// EntityCount число известных сущностей.
func (w *ClientWorld) EntityCount() int { return len(w.entities) }

// Control назначает локальный контроллер сущности. Допустимо до её
// появления: контроллер подцепится при создании.
func (w *ClientWorld) Control(id protocol.EntityID, ctrl *LocalController) {
	w.controllers[id] = ctrl
	if e, ok := w.entities[id]; ok {
		e.SetController(ctrl)
	}
}

// ConsumePacket разбирает серверный пакет и раздаёт дельты сущностям.
// Ошибка фатальна для пакета целиком; сессия продолжается.
func (w *ClientWorld) ConsumePacket(data []byte) error {
	pkt, err := w.codec.DecodeServerPacket(data, func(id protocol.EntityID) (protocol.Kind, bool) {
		e, ok := w.entities[id]
		if !ok {
			return 0, false
		}
		return e.Kind(), true
	})
	if err != nil {
		w.log.Warn("Пакет сервера отброшен: %v", err)
		return err
	}

	if pkt.ServerTick > w.actualServerTick {
		w.actualServerTick = pkt.ServerTick
	}

	for _, delta := range pkt.Deltas {
		e, known := w.entities[delta.EntityID]
		if !known {
			if delta.IsDestroyed {
				// Сущность уже забыта — повторный кадр уничтожения
				continue
			}
			e, err = w.spawn(delta)
			if err != nil {
				w.log.Warn("Кадр сущности %d отброшен: %v", delta.EntityID, err)
				continue
			}
		}
		if err := e.ReceiveDelta(delta); err != nil {
			if !errors.Is(err, protocol.ErrFirstDeltaNotImmutable) {
				return err
			}
			w.log.Warn("%v", err)
		}
	}
	return nil
}

// spawn создаёт сущность по первому инициализирующему кадру.
func (w *ClientWorld) spawn(delta *protocol.StateDelta) (*entity.Entity, error) {
	if !delta.HasImmutableData {
		return nil, protocol.ErrFirstDeltaNotImmutable
	}
	e, err := w.reg.create(delta.EntityID, delta.Kind, entity.RoleClient, w.opts)
	if err != nil {
		return nil, err
	}
	e.SetObserver(w.observe)
	if ctrl, ok := w.controllers[delta.EntityID]; ok {
		e.SetController(ctrl)
	}
	w.entities[delta.EntityID] = e
	w.order = append(w.order, delta.EntityID)
	w.publish(eventbus.EventEntityCreated, delta.EntityID)
	w.log.Debug("Появилась сущность %d типа %d", delta.EntityID, delta.Kind)
	return e, nil
}

// Update один клиентский тик: сглаживание и предсказание каждой
// сущности, затем обновление заморозки и уборка удалённых.
func (w *ClientWorld) Update() {
	now := w.actualServerTick
	for _, id := range w.order {
		e := w.entities[id]
		if err := e.UpdateClient(now); err != nil {
			// Данных ещё нет — сущность подождёт следующего пакета
			if !errors.Is(err, protocol.ErrNoData) {
				w.log.Warn("Обновление сущности %d: %v", id, err)
			}
			continue
		}
		e.UpdateFreeze(now)

		// Подтверждённые команды больше не нужны для повтора
		if ctrl, ok := w.controllers[id]; ok {
			ctrl.Trim(e.LastDelta())
		}
	}
	w.reap()
}

// ProducePacket строит пакет подтверждения с накопленными командами
// локальных контроллеров.
func (w *ClientWorld) ProducePacket() ([]byte, error) {
	pkt := &protocol.ClientPacket{AckedTick: w.actualServerTick}
	for _, id := range w.order {
		ctrl, ok := w.controllers[id]
		if !ok {
			continue
		}
		pkt.Commands = append(pkt.Commands, ctrl.PendingCommands()...)
	}
	return w.codec.EncodeClientPacket(pkt)
}

// reap убирает сущности, чей тик удаления прошёл.
func (w *ClientWorld) reap() {
	for i := 0; i < len(w.order); {
		id := w.order[i]
		e := w.entities[id]
		if !e.RemovedTick().IsValid() || e.RemovedTick() > w.actualServerTick {
			i++
			continue
		}
		e.Shutdown()
		w.publish(eventbus.EventEntityDestroyed, id)
		delete(w.entities, id)
		w.order = append(w.order[:i], w.order[i+1:]...)
		w.log.Debug("Удалена сущность %d", id)
	}
}

func (w *ClientWorld) observe(e *entity.Entity, ev entity.LifecycleEvent) {
	switch ev {
	case entity.EventFrozen:
		w.publish(eventbus.EventEntityFrozen, e.ID())
	case entity.EventUnfrozen:
		w.publish(eventbus.EventEntityUnfrozen, e.ID())
	}
}

func (w *ClientWorld) publish(eventType string, id protocol.EntityID) {
	if w.bus == nil {
		return
	}
	_ = w.bus.Publish(context.Background(), &eventbus.Envelope{
		Timestamp: time.Now().UTC(),
		Source:    "client",
		EventType: eventType,
		EntityID:  uint32(id),
		Tick:      uint32(w.actualServerTick),
	})
}
