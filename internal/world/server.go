package world

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/netsync/internal/entity"
	"github.com/annel0/netsync/internal/eventbus"
	"github.com/annel0/netsync/internal/logging"
	"github.com/annel0/netsync/internal/protocol"
)

// ServerWorld авторитетный мир: симулирует сущности, ведёт исходящую
// историю и производит пакеты дельт для каждого пира.
type ServerWorld struct {
	reg   *Registry
	codec *protocol.FrameCodec
	opts  entity.Options
	bus   eventbus.Bus
	log   *logging.Logger

	tick     protocol.Tick
	entities map[protocol.EntityID]*entity.Entity

	// order стабильный порядок обновления для детерминизма.
	order  []protocol.EntityID
	nextID protocol.EntityID

	peers map[string]*Peer
}

// NewServerWorld создаёт серверный мир.
func NewServerWorld(reg *Registry, opts entity.Options, bus eventbus.Bus) *ServerWorld {
	return &ServerWorld{
		reg:      reg,
		codec:    protocol.NewFrameCodec(reg.Proto()),
		opts:     opts,
		bus:      bus,
		entities: make(map[protocol.EntityID]*entity.Entity),
		peers:    make(map[string]*Peer),
		log:      logging.GetWorldLogger(),
	}
}

// Tick текущий тик мира.
func (w *ServerWorld) Tick() protocol.Tick { return w.tick }

// Entity возвращает сущность по идентификатору.
func (w *ServerWorld) Entity(id protocol.EntityID) (*entity.Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// EntityCount число живых сущностей.
func (w *ServerWorld) EntityCount() int { return len(w.entities) }

// Spawn создаёт сущность указанного типа и регистрирует её в мире.
func (w *ServerWorld) Spawn(kind protocol.Kind) (*entity.Entity, error) {
	w.nextID++
	e, err := w.reg.create(w.nextID, kind, entity.RoleServer, w.opts)
	if err != nil {
		return nil, err
	}
	e.SetObserver(w.observe)
	w.entities[e.ID()] = e
	w.order = append(w.order, e.ID())
	w.publish(eventbus.EventEntityCreated, e.ID())
	w.log.Debug("Создана сущность %d типа %d", e.ID(), kind)
	return e, nil
}

// Destroy планирует удаление сущности на следующий тик.
func (w *ServerWorld) Destroy(id protocol.EntityID) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("world: сущность %d не найдена", id)
	}
	e.MarkForRemove(w.tick)
	return nil
}

// AddPeer регистрирует подключённого клиента.
func (w *ServerWorld) AddPeer(connID string) *Peer {
	p := NewPeer(connID)
	w.peers[connID] = p
	w.log.Info("Подключён пир %s", connID)
	return p
}

// RemovePeer убирает клиента; контролируемая им сущность остаётся
// без контроллера.
func (w *ServerWorld) RemovePeer(connID string) {
	p, ok := w.peers[connID]
	if !ok {
		return
	}
	if e, exists := w.entities[p.controls]; exists {
		e.SetController(nil)
	}
	delete(w.peers, connID)
	w.log.Info("Отключён пир %s", connID)
}

// GrantControl отдаёт сущность под управление пира.
func (w *ServerWorld) GrantControl(p *Peer, id protocol.EntityID) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("world: сущность %d не найдена", id)
	}
	p.controls = id
	e.SetController(p)
	return nil
}

// Update один тик авторитетной симуляции: каждая сущность доводится
// до конца, затем её снимок уходит в исходящую историю.
func (w *ServerWorld) Update() {
	w.tick++
	for _, id := range w.order {
		e := w.entities[id]
		e.UpdateServer()
		e.StoreRecord(w.tick)
	}
	w.reap()
}

// ShouldSend сообщает, является ли текущий тик тиком отправки.
// Дельты уходят только на тиках, кратных сетевой частоте: дежиттер-
// буфер клиента индексируется этим делителем.
func (w *ServerWorld) ShouldSend() bool {
	return int(w.tick)%w.opts.NetworkSendRate == 0
}

// ProducePacket строит пакет обновлений для пира.
// Базис каждой дельты — последний подтверждённый пиром тик; если
// история его уже не помнит, кадр повышается до полного снимка.
func (w *ServerWorld) ProducePacket(p *Peer) ([]byte, error) {
	pkt := &protocol.ServerPacket{ServerTick: w.tick}
	for _, id := range w.order {
		e := w.entities[id]
		delta, ok := e.ProduceDelta(w.tick, p.ackedTick, e.Controller() == entity.Controller(p))
		if !ok {
			continue
		}
		pkt.Deltas = append(pkt.Deltas, delta)
	}
	return w.codec.EncodeServerPacket(pkt)
}

// ConsumePacket принимает клиентский пакет: подтверждение и команды.
// Ошибка декодирования фатальна только для пакета.
func (w *ServerWorld) ConsumePacket(p *Peer, data []byte) error {
	pkt, err := w.codec.DecodeClientPacket(data)
	if err != nil {
		w.log.Warn("Пакет от пира %s отброшен: %v", p.id, err)
		return err
	}
	p.receiveAck(pkt.AckedTick)
	for _, cmd := range pkt.Commands {
		p.receiveCommand(cmd)
	}
	return nil
}

// reap окончательно удаляет сущности, чьё уничтожение подтвердили все
// пиры: до этого каждый пакет повторяет кадр уничтожения.
func (w *ServerWorld) reap() {
	for i := 0; i < len(w.order); {
		id := w.order[i]
		e := w.entities[id]
		if !e.RemovedTick().IsValid() || e.RemovedTick() > w.tick || !w.allAcked(e.RemovedTick()) {
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

// allAcked подтвердили ли все пиры тик не меньше указанного.
func (w *ServerWorld) allAcked(tick protocol.Tick) bool {
	for _, p := range w.peers {
		if p.ackedTick < tick {
			return false
		}
	}
	return true
}

func (w *ServerWorld) observe(e *entity.Entity, ev entity.LifecycleEvent) {
	switch ev {
	case entity.EventFrozen:
		w.publish(eventbus.EventEntityFrozen, e.ID())
	case entity.EventUnfrozen:
		w.publish(eventbus.EventEntityUnfrozen, e.ID())
	}
}

func (w *ServerWorld) publish(eventType string, id protocol.EntityID) {
	if w.bus == nil {
		return
	}
	_ = w.bus.Publish(context.Background(), &eventbus.Envelope{
		Timestamp: time.Now().UTC(),
		Source:    "server",
		EventType: eventType,
		EntityID:  uint32(id),
		Tick:      uint32(w.tick),
	})
}
