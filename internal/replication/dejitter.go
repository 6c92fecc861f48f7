package replication

import (
	"sort"

	"github.com/annel0/netsync/internal/protocol"
)

// DejitterBuffer кольцо фиксированной ёмкости, индексированное тиком.
// Слот элемента — (tick / divisor) mod C, где divisor — сетевая частота
// отправки (тиков на пакет). Тик, не кратный divisor, ложится в тот же
// слот, что и ближайший меньший кратный, и вытесняет или отбрасывается
// по сравнению тиков; вытеснение старых элементов происходит неявно,
// коллизией слотов, поэтому память ограничена ёмкостью.
type DejitterBuffer[T HasTick] struct {
	slots    []T
	present  []bool
	divisor  int
	capacity int

	// released вызывается для элемента, вытесненного более новым.
	released func(T)
}

// NewDejitterBuffer создаёт кольцо на capacity слотов с шагом divisor.
func NewDejitterBuffer[T HasTick](capacity, divisor int) *DejitterBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	if divisor <= 0 {
		divisor = 1
	}
	return &DejitterBuffer[T]{
		slots:    make([]T, capacity),
		present:  make([]bool, capacity),
		divisor:  divisor,
		capacity: capacity,
	}
}

// OnRelease устанавливает обработчик возврата вытесненных элементов
// (обычно — в пул хоста).
func (d *DejitterBuffer[T]) OnRelease(fn func(T)) { d.released = fn }

// slotOf слот для тика.
func (d *DejitterBuffer[T]) slotOf(tick protocol.Tick) int {
	return (int(tick) / d.divisor) % d.capacity
}

// Store помещает элемент в его слот. Если слот занят более старым
// тиком, старый элемент вытесняется; если более новым или тем же —
// входящий отбрасывается молча (устаревшая дельта).
// Возвращает true, если элемент сохранён.
func (d *DejitterBuffer[T]) Store(item T) bool {
	slot := d.slotOf(item.Tick())
	if d.present[slot] {
		held := d.slots[slot].Tick()
		if held >= item.Tick() {
			return false
		}
		if d.released != nil {
			d.released(d.slots[slot])
		}
	}
	d.slots[slot] = item
	d.present[slot] = true
	return true
}

// GetLatestAt элемент с наибольшим тиком, не превосходящим tick.
func (d *DejitterBuffer[T]) GetLatestAt(tick protocol.Tick) (T, bool) {
	var (
		best  T
		found bool
	)
	for i, ok := range d.present {
		if !ok || d.slots[i].Tick() > tick {
			continue
		}
		if !found || d.slots[i].Tick() > best.Tick() {
			best = d.slots[i]
			found = true
		}
	}
	return best, found
}

// GetRangeAt возвращает пару (cur, next): cur — GetLatestAt(tick),
// next — элемент с наименьшим тиком строго больше cur.Tick().
func (d *DejitterBuffer[T]) GetRangeAt(tick protocol.Tick) (cur, next T, curOK, nextOK bool) {
	cur, curOK = d.GetLatestAt(tick)
	if !curOK {
		return
	}
	for i, ok := range d.present {
		if !ok || d.slots[i].Tick() <= cur.Tick() {
			continue
		}
		if !nextOK || d.slots[i].Tick() < next.Tick() {
			next = d.slots[i]
			nextOK = true
		}
	}
	return
}

// GetLatestFrom элементы с тиком строго больше tick по возрастанию.
// Последовательность конечна и строится один раз на вызов.
func (d *DejitterBuffer[T]) GetLatestFrom(tick protocol.Tick) []T {
	var out []T
	for i, ok := range d.present {
		if ok && d.slots[i].Tick() > tick {
			out = append(out, d.slots[i])
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Tick() < out[b].Tick() })
	return out
}

// Latest элемент с наибольшим тиком в буфере.
func (d *DejitterBuffer[T]) Latest() (T, bool) {
	var (
		best  T
		found bool
	)
	for i, ok := range d.present {
		if !ok {
			continue
		}
		if !found || d.slots[i].Tick() > best.Tick() {
			best = d.slots[i]
			found = true
		}
	}
	return best, found
}

// Len число занятых слотов.
func (d *DejitterBuffer[T]) Len() int {
	n := 0
	for _, ok := range d.present {
		if ok {
			n++
		}
	}
	return n
}
