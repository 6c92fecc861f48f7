package replication_test

import (
	"testing"

	"github.com/annel0/netsync/internal/game"
	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/replication"
)

func record(tick protocol.Tick, x float64) *replication.Record {
	return replication.NewRecord(tick, &game.PawnState{X: x})
}

// TestQueueBuffer тестирует FIFO историю с запросом по тику
func TestQueueBuffer(t *testing.T) {
	q := replication.NewQueueBuffer[*replication.Record](3)

	t.Run("Empty", func(t *testing.T) {
		if _, ok := q.Latest(); ok {
			t.Error("Пустая очередь вернула элемент")
		}
		if _, ok := q.LatestAt(100); ok {
			t.Error("Пустая очередь вернула элемент по тику")
		}
	})

	q.Store(record(100, 1))
	q.Store(record(110, 2))
	q.Store(record(120, 3))

	t.Run("Latest", func(t *testing.T) {
		got, ok := q.Latest()
		if !ok || got.Tick() != 120 {
			t.Errorf("Ожидался тик 120, получено %v", got)
		}
	})

	t.Run("LatestAt", func(t *testing.T) {
		got, ok := q.LatestAt(115)
		if !ok || got.Tick() != 110 {
			t.Errorf("Ожидался тик 110, получено %v", got)
		}

		got, ok = q.LatestAt(120)
		if !ok || got.Tick() != 120 {
			t.Errorf("Ожидался тик 120, получено %v", got)
		}

		// Базис старше всей истории — отсутствует
		if _, ok := q.LatestAt(80); ok {
			t.Error("Вытесненный базис не должен находиться")
		}
	})

	t.Run("Eviction", func(t *testing.T) {
		q.Store(record(130, 4))
		if q.Len() != 3 {
			t.Fatalf("Ожидалось 3 элемента, получено %d", q.Len())
		}
		// Старейший (100) вытеснен
		if _, ok := q.LatestAt(105); ok {
			t.Error("Вытесненный элемент всё ещё доступен")
		}
	})
}

// TestRecordOwnership тестирует независимость записи от живого состояния
func TestRecordOwnership(t *testing.T) {
	live := &game.PawnState{X: 5}
	rec := replication.NewRecord(10, live)

	live.X = 99
	if rec.State().(*game.PawnState).X != 5 {
		t.Error("Запись алиасит живое состояние")
	}
}
