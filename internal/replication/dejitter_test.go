package replication_test

import (
	"testing"

	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/replication"
)

func delta(tick protocol.Tick) *protocol.StateDelta {
	return &protocol.StateDelta{TickValue: tick}
}

// TestDejitterScenario тестирует сценарий из порядка прибытия
// [6, 3, 9, 12] при ёмкости 4 и делителе 3
func TestDejitterScenario(t *testing.T) {
	buf := replication.NewDejitterBuffer[*protocol.StateDelta](4, 3)

	for _, tick := range []protocol.Tick{6, 3, 9, 12} {
		if !buf.Store(delta(tick)) {
			t.Fatalf("Дельта тика %d не сохранилась", tick)
		}
	}

	t.Run("GetLatestAt", func(t *testing.T) {
		got, ok := buf.GetLatestAt(10)
		if !ok || got.TickValue != 9 {
			t.Errorf("Ожидался тик 9, получено %+v (ok=%v)", got, ok)
		}
	})

	t.Run("GetRangeAt", func(t *testing.T) {
		cur, next, curOK, nextOK := buf.GetRangeAt(10)
		if !curOK || cur.TickValue != 9 {
			t.Errorf("Ожидался cur=9, получено %+v", cur)
		}
		if !nextOK || next.TickValue != 12 {
			t.Errorf("Ожидался next=12, получено %+v", next)
		}
	})

	t.Run("GetLatestFrom", func(t *testing.T) {
		items := buf.GetLatestFrom(6)
		if len(items) != 2 || items[0].TickValue != 9 || items[1].TickValue != 12 {
			t.Errorf("Ожидалось [9, 12], получено %v", ticksOf(items))
		}
	})

	t.Run("Latest", func(t *testing.T) {
		got, ok := buf.Latest()
		if !ok || got.TickValue != 12 {
			t.Errorf("Ожидался тик 12, получено %+v", got)
		}
	})
}

func ticksOf(items []*protocol.StateDelta) []protocol.Tick {
	out := make([]protocol.Tick, len(items))
	for i, it := range items {
		out[i] = it.TickValue
	}
	return out
}

// TestDejitterStaleDrop тестирует молчаливый дроп устаревших дельт
func TestDejitterStaleDrop(t *testing.T) {
	buf := replication.NewDejitterBuffer[*protocol.StateDelta](4, 3)

	// Тики 3 и 15 делят слот: 3/3=1, 1%4=1; 15/3=5, 5%4=1
	if !buf.Store(delta(15)) {
		t.Fatal("Дельта тика 15 не сохранилась")
	}
	if buf.Store(delta(3)) {
		t.Error("Более старая дельта не должна вытеснять более новую")
	}
	if buf.Store(delta(15)) {
		t.Error("Дубликат не должен сохраняться")
	}

	got, ok := buf.GetLatestAt(100)
	if !ok || got.TickValue != 15 {
		t.Errorf("Ожидался тик 15, получено %+v", got)
	}
}

// TestDejitterEviction тестирует вытеснение старого тика новым из
// того же слота с возвратом в пул
func TestDejitterEviction(t *testing.T) {
	buf := replication.NewDejitterBuffer[*protocol.StateDelta](4, 3)

	var released []protocol.Tick
	buf.OnRelease(func(d *protocol.StateDelta) {
		released = append(released, d.TickValue)
	})

	buf.Store(delta(3))
	buf.Store(delta(15)) // тот же слот, новее — вытесняет

	if len(released) != 1 || released[0] != 3 {
		t.Errorf("Ожидался возврат тика 3, получено %v", released)
	}
	got, _ := buf.GetLatestAt(100)
	if got.TickValue != 15 {
		t.Errorf("Ожидался тик 15, получено %d", got.TickValue)
	}
}

// TestDejitterMonotonicity тестирует возрастание тиков GetLatestFrom
// и эксклюзивность слотов при произвольном порядке вставки
func TestDejitterMonotonicity(t *testing.T) {
	buf := replication.NewDejitterBuffer[*protocol.StateDelta](8, 3)

	for _, tick := range []protocol.Tick{21, 3, 45, 9, 33, 6, 27, 12} {
		buf.Store(delta(tick))
	}

	items := buf.GetLatestFrom(5)
	for i := 1; i < len(items); i++ {
		if items[i].TickValue <= items[i-1].TickValue {
			t.Fatalf("Нарушено возрастание тиков: %v", ticksOf(items))
		}
	}
	for _, it := range items {
		if it.TickValue <= 5 {
			t.Fatalf("Тик %d не больше запрошенного", it.TickValue)
		}
	}

	// Эксклюзивность слотов: не более одного элемента на слот
	slots := make(map[int]protocol.Tick)
	for _, it := range buf.GetLatestFrom(0) {
		slot := (int(it.TickValue) / 3) % 8
		if prev, busy := slots[slot]; busy {
			t.Fatalf("Слот %d занят тиками %d и %d", slot, prev, it.TickValue)
		}
		slots[slot] = it.TickValue
	}
}
