package replication

import "github.com/annel0/netsync/internal/protocol"

// PredictionBuffer прогоняет локально управляемую сущность вперёд:
// каждое подтверждение от сервера перебазирует состояние, после чего
// локальные команды проигрываются заново поверх него.
type PredictionBuffer struct {
	prev *Record
	cur  *Record

	// output кэш сглаженного состояния для отрисовки.
	output protocol.State
}

// NewPredictionBuffer создаёт пустой буфер предсказания.
func NewPredictionBuffer() *PredictionBuffer {
	return &PredictionBuffer{}
}

// Cur текущая запись предсказания (после последнего Update).
func (p *PredictionBuffer) Cur() *Record { return p.cur }

// Start перебазирует предсказание перед проигрыванием команд:
// к клону подтверждённого состояния по возрастанию тиков применяются
// все дельты новее now, текущей записью становится тик последней
// буферизованной дельты. Возвращает состояние для симуляции.
func (p *PredictionBuffer) Start(incoming *DejitterBuffer[*protocol.StateDelta], now protocol.Tick, confirmed protocol.State) protocol.State {
	latest := confirmed.Clone()
	for _, d := range incoming.GetLatestFrom(now) {
		latest.ApplyFlagged(d.State, d.Flags)
	}

	baseTick := now
	if newest, ok := incoming.Latest(); ok {
		baseTick = newest.TickValue
	}

	p.prev = nil
	p.cur = newRecordOwned(baseTick, latest)

	if p.output == nil {
		p.output = latest.Clone()
	} else {
		p.output.CopyFrom(latest)
	}
	return p.cur.State()
}

// Update фиксирует результат симуляции очередной команды: текущая
// запись уходит в prev, новой становится (cur.tick + 1, клон состояния).
func (p *PredictionBuffer) Update(simulated protocol.State) {
	p.prev = p.cur
	p.cur = NewRecord(p.cur.Tick()+1, simulated)
}

// GetSmoothed интерполирует между prev и cur для отрисовки;
// без prev возвращается текущее состояние как есть.
func (p *PredictionBuffer) GetSmoothed(frameDelta float64) (protocol.State, error) {
	if p.cur == nil {
		return nil, protocol.ErrNoData
	}
	if p.prev == nil {
		return p.cur.State(), nil
	}
	p.output.ApplySmoothed(p.prev.State(), p.cur.State(), frameDelta)
	return p.output, nil
}
