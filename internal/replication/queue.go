package replication

import "github.com/annel0/netsync/internal/protocol"

// QueueBuffer ограниченный FIFO недавних записей, запрашиваемый по тику.
// Сервер держит в нём исходящую историю сущности и выбирает базис для
// дельта-кодирования.
type QueueBuffer[T HasTick] struct {
	items    []T
	capacity int
}

// NewQueueBuffer создаёт буфер на capacity элементов.
func NewQueueBuffer[T HasTick](capacity int) *QueueBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &QueueBuffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Store добавляет элемент; при переполнении вытесняется старейший.
func (q *QueueBuffer[T]) Store(item T) {
	if len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, item)
}

// Latest последний сохранённый элемент.
func (q *QueueBuffer[T]) Latest() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[len(q.items)-1], true
}

// LatestAt самый поздний элемент с тиком не больше tick.
// Второе значение false, если такого нет (базис вытеснен из истории).
func (q *QueueBuffer[T]) LatestAt(tick protocol.Tick) (T, bool) {
	var zero T
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].Tick() <= tick {
			return q.items[i], true
		}
	}
	return zero, false
}

// Len текущее число элементов.
func (q *QueueBuffer[T]) Len() int { return len(q.items) }
