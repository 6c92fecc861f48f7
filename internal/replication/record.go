// Package replication содержит тиковые буферы слоя синхронизации:
// исходящую историю сервера, клиентский дежиттер-буфер и буферы
// сглаживания и предсказания.
//
// Все буферы однопоточные: мир обрабатывается одним тиком за раз,
// ввод-вывод происходит на границах тиков.
package replication

import "github.com/annel0/netsync/internal/protocol"

// HasTick элемент, индексируемый тиком.
type HasTick interface {
	Tick() protocol.Tick
}

// Record неизменяемый снимок (tick, state) в истории.
// Состояние принадлежит записи: NewRecord всегда сохраняет независимый
// клон и никогда не алиасит живое состояние.
type Record struct {
	tick  protocol.Tick
	state protocol.State
}

// NewRecord создаёт запись с клоном состояния.
func NewRecord(tick protocol.Tick, state protocol.State) *Record {
	return &Record{
		tick:  tick,
		state: state.Clone(),
	}
}

// newRecordOwned создаёт запись, забирая состояние во владение без
// клонирования. Вызывающий обязан не использовать state после передачи.
func newRecordOwned(tick protocol.Tick, state protocol.State) *Record {
	return &Record{tick: tick, state: state}
}

// Tick тик записи.
func (r *Record) Tick() protocol.Tick { return r.tick }

// State состояние записи. Изменять его нельзя.
func (r *Record) State() protocol.State { return r.state }
