package replication

import (
	"fmt"

	"github.com/annel0/netsync/internal/protocol"
)

// SmoothingBuffer восстанавливает плавное состояние удалённой сущности
// из подтверждённых дельт: интерполяция между текущей и следующей
// записью, экстраполяция по предыдущей, когда следующей ещё нет.
type SmoothingBuffer struct {
	prev *Record
	cur  *Record
	next *Record

	// output кэш выходного состояния, чтобы не аллоцировать на кадр.
	output protocol.State
}

// NewSmoothingBuffer создаёт пустой буфер сглаживания.
func NewSmoothingBuffer() *SmoothingBuffer {
	return &SmoothingBuffer{}
}

// HasState сообщает, получено ли хотя бы одно подтверждённое состояние.
func (s *SmoothingBuffer) HasState() bool { return s.cur != nil }

// Update продвигает буфер к тику now по данным дежиттер-буфера и
// возвращает последнее подтверждённое состояние (cur).
//
// Свежесть next: перед поиском нового lookahead прежний next всегда
// сбрасывается — он отражает только текущий кадр.
func (s *SmoothingBuffer) Update(incoming *DejitterBuffer[*protocol.StateDelta], now protocol.Tick) (protocol.State, error) {
	curDelta, nextDelta, curOK, nextOK := incoming.GetRangeAt(now)
	if !curOK {
		if s.cur == nil {
			return nil, protocol.ErrNoData
		}
		s.next = nil
		return s.cur.State(), nil
	}

	if s.cur == nil {
		// Первое успешное чтение обязано нести инициализирующие данные:
		// дельту без базиса применить не к чему.
		if !curDelta.HasImmutableData {
			return nil, fmt.Errorf("replication: сглаживание сущности %d: %w",
				curDelta.EntityID, protocol.ErrFirstDeltaNotImmutable)
		}
		s.output = curDelta.State.Clone()
		s.cur = NewRecord(curDelta.TickValue, curDelta.State)
	}

	s.next = nil

	if s.cur.Tick() < curDelta.TickValue {
		// Накатываем дельту вперёд: клон текущего состояния плюс
		// помеченные поля дельты.
		advanced := s.cur.State().Clone()
		advanced.ApplyFlagged(curDelta.State, curDelta.Flags)
		s.prev = s.cur
		s.cur = newRecordOwned(curDelta.TickValue, advanced)
	}

	if nextOK && nextDelta.TickValue > s.cur.Tick() {
		lookahead := s.cur.State().Clone()
		lookahead.ApplyFlagged(nextDelta.State, nextDelta.Flags)
		s.next = newRecordOwned(nextDelta.TickValue, lookahead)
	}

	return s.cur.State(), nil
}

// GetSmoothed возвращает сглаженное состояние для отрисовки.
// frameDelta — доля тика, прошедшая с начала now (в тиках).
//
// Параметр t намеренно не ограничен [0, 1]: поведение вне отрезка
// определяет ApplySmoothed состояния (экстраполяция).
func (s *SmoothingBuffer) GetSmoothed(frameDelta float64, now protocol.Tick) (protocol.State, error) {
	if s.cur == nil {
		return nil, protocol.ErrNoData
	}

	switch {
	case s.next != nil:
		t := (float64(now.Delta(s.cur.Tick())) + frameDelta) /
			float64(s.next.Tick().Delta(s.cur.Tick()))
		s.output.ApplySmoothed(s.cur.State(), s.next.State(), t)
		return s.output, nil

	case s.prev != nil:
		// Следующей записи нет — экстраполируем по отрезку prev → cur.
		t := (float64(now.Delta(s.prev.Tick())) + frameDelta) /
			float64(s.cur.Tick().Delta(s.prev.Tick()))
		s.output.ApplySmoothed(s.prev.State(), s.cur.State(), t)
		return s.output, nil

	default:
		return s.cur.State(), nil
	}
}
