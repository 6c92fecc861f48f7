package world

import "github.com/annel0/netsync/internal/protocol"

// Peer серверное представление подключённого клиента: что он
// контролирует, что подтвердил и какую команду прислал последней.
// Peer реализует entity.Controller для контролируемой им сущности.
type Peer struct {
	id       string
	controls protocol.EntityID

	// ackedTick последний тик сервера, подтверждённый клиентом;
	// базис дельта-кодирования для этого пира.
	ackedTick protocol.Tick

	latest protocol.Command
}

// NewPeer создаёт пира с идентификатором соединения.
func NewPeer(id string) *Peer {
	return &Peer{id: id}
}

// ID идентификатор соединения.
func (p *Peer) ID() string { return p.id }

// Controls сущность под управлением пира.
func (p *Peer) Controls() protocol.EntityID { return p.controls }

// AckedTick последний подтверждённый тик.
func (p *Peer) AckedTick() protocol.Tick { return p.ackedTick }

// LatestCommand последняя принятая команда.
func (p *Peer) LatestCommand() protocol.Command { return p.latest }

// PendingCommands на сервере повтор команд не проигрывается.
func (p *Peer) PendingCommands() []protocol.Command { return nil }

// receiveAck принимает подтверждение; тик не откатывается назад.
func (p *Peer) receiveAck(tick protocol.Tick) {
	if tick > p.ackedTick {
		p.ackedTick = tick
	}
}

// receiveCommand принимает команду; хранится только самая свежая.
func (p *Peer) receiveCommand(cmd protocol.Command) {
	if p.latest == nil || cmd.Tick() >= p.latest.Tick() {
		p.latest = cmd
	}
}
