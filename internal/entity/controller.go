// Package entity связывает состояние, тиковые буферы, контроллер и
// жизненный цикл реплицируемой сущности и ведёт её потиковое обновление
// на сервере и клиенте.
package entity

import "github.com/annel0/netsync/internal/protocol"

// Controller источник команд управляемой сущности. Нулевой контроллер
// означает удалённую (никем не управляемую) сущность.
type Controller interface {
	// LatestCommand последняя команда или nil, если команд не было.
	LatestCommand() protocol.Command

	// PendingCommands неподтверждённые команды по возрастанию тиков;
	// клиент проигрывает их заново после каждого перебазирования.
	PendingCommands() []protocol.Command
}

// Behavior игровые колбэки жизненного цикла и симуляции.
// Слой репликации вызывает их, но не знает их содержимого.
type Behavior interface {
	// OnStart вызывается один раз на первом симулируемом тике.
	OnStart(e *Entity)

	// OnShutdown вызывается при удалении сущности из мира.
	OnShutdown(e *Entity)

	// OnControllerChanged вызывается на тике после смены контроллера.
	OnControllerChanged(e *Entity)

	// OnFrozen вызывается при заморозке удалённой сущности.
	OnFrozen(e *Entity)

	// OnUnfrozen вызывается при разморозке.
	OnUnfrozen(e *Entity)

	// OnSimulate один шаг симуляции.
	OnSimulate(e *Entity)

	// OnSimulateCommand применяет команду перед шагом симуляции.
	OnSimulateCommand(e *Entity, cmd protocol.Command)
}

// NopBehavior поведение-заглушка; встраивается в игровые поведения,
// которым нужны не все колбэки.
type NopBehavior struct{}

func (NopBehavior) OnStart(*Entity)                             {}
func (NopBehavior) OnShutdown(*Entity)                          {}
func (NopBehavior) OnControllerChanged(*Entity)                 {}
func (NopBehavior) OnFrozen(*Entity)                            {}
func (NopBehavior) OnUnfrozen(*Entity)                          {}
func (NopBehavior) OnSimulate(*Entity)                          {}
func (NopBehavior) OnSimulateCommand(*Entity, protocol.Command) {}
