package replication_test

import (
	"errors"
	"testing"

	"github.com/annel0/netsync/internal/game"
	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/replication"
)

// fullDelta полный инициализирующий кадр.
func fullDelta(tick protocol.Tick, x, y float64) *protocol.StateDelta {
	s := &game.PawnState{X: x, Y: y}
	return &protocol.StateDelta{
		TickValue:        tick,
		Flags:            protocol.AllFlags(s),
		State:            s,
		HasImmutableData: true,
	}
}

// partialDelta дельта только по X.
func partialDelta(tick protocol.Tick, x float64) *protocol.StateDelta {
	return &protocol.StateDelta{
		TickValue: tick,
		Flags:     game.FieldX,
		State:     &game.PawnState{X: x},
	}
}

// TestSmoothingFirstAcquisition тестирует инициализацию буфера
func TestSmoothingFirstAcquisition(t *testing.T) {
	incoming := replication.NewDejitterBuffer[*protocol.StateDelta](8, 3)
	sb := replication.NewSmoothingBuffer()

	t.Run("No Data", func(t *testing.T) {
		if _, err := sb.Update(incoming, 3); !errors.Is(err, protocol.ErrNoData) {
			t.Errorf("Ожидалась ErrNoData, получено: %v", err)
		}
	})

	t.Run("First Delta Must Be Immutable", func(t *testing.T) {
		incoming.Store(partialDelta(3, 1.0))
		if _, err := sb.Update(incoming, 3); !errors.Is(err, protocol.ErrFirstDeltaNotImmutable) {
			t.Errorf("Ожидалась ErrFirstDeltaNotImmutable, получено: %v", err)
		}
	})

	t.Run("Immutable Initializes", func(t *testing.T) {
		incoming2 := replication.NewDejitterBuffer[*protocol.StateDelta](8, 3)
		incoming2.Store(fullDelta(3, 10, 20))

		got, err := sb.Update(incoming2, 3)
		if err != nil {
			t.Fatalf("Ошибка Update: %v", err)
		}
		s := got.(*game.PawnState)
		if s.X != 10 || s.Y != 20 {
			t.Errorf("Ожидалось (10, 20), получено (%f, %f)", s.X, s.Y)
		}
	})
}

// TestSmoothingAdvance тестирует продвижение дельтой вперёд и
// интерполяцию между cur и next
func TestSmoothingAdvance(t *testing.T) {
	incoming := replication.NewDejitterBuffer[*protocol.StateDelta](8, 3)
	sb := replication.NewSmoothingBuffer()

	incoming.Store(fullDelta(3, 0, 0))
	if _, err := sb.Update(incoming, 3); err != nil {
		t.Fatalf("Ошибка Update: %v", err)
	}

	incoming.Store(partialDelta(6, 6.0))
	incoming.Store(partialDelta(9, 12.0))

	got, err := sb.Update(incoming, 6)
	if err != nil {
		t.Fatalf("Ошибка Update: %v", err)
	}
	if got.(*game.PawnState).X != 6.0 {
		t.Errorf("Дельта не применилась: X=%f", got.(*game.PawnState).X)
	}

	t.Run("Interpolation Bounds", func(t *testing.T) {
		// Между cur (6, X=6) и next (9, X=12): при t ∈ [0, 1]
		// числовые поля в пределах [min, max]
		for _, frameDelta := range []float64{0, 0.5, 1.5, 3.0} {
			smoothed, err := sb.GetSmoothed(frameDelta, 6)
			if err != nil {
				t.Fatalf("Ошибка GetSmoothed: %v", err)
			}
			x := smoothed.(*game.PawnState).X
			if x < 6.0 || x > 12.0 {
				t.Errorf("frameDelta=%f: X=%f вне [6, 12]", frameDelta, x)
			}
		}
	})

	t.Run("Midpoint", func(t *testing.T) {
		// now=6, frameDelta=1.5 тика → t = 1.5/3 = 0.5 → X = 9
		smoothed, err := sb.GetSmoothed(1.5, 6)
		if err != nil {
			t.Fatalf("Ошибка GetSmoothed: %v", err)
		}
		x := smoothed.(*game.PawnState).X
		if x < 8.99 || x > 9.01 {
			t.Errorf("Ожидалось X≈9, получено %f", x)
		}
	})
}

// TestSmoothingExtrapolation тестирует экстраполяцию по prev → cur,
// когда следующей записи нет: t не ограничен единицей
func TestSmoothingExtrapolation(t *testing.T) {
	incoming := replication.NewDejitterBuffer[*protocol.StateDelta](8, 3)
	sb := replication.NewSmoothingBuffer()

	incoming.Store(fullDelta(3, 0, 0))
	if _, err := sb.Update(incoming, 3); err != nil {
		t.Fatalf("Ошибка Update: %v", err)
	}
	incoming.Store(partialDelta(6, 3.0))
	if _, err := sb.Update(incoming, 6); err != nil {
		t.Fatalf("Ошибка Update: %v", err)
	}

	// prev=(3, X=0), cur=(6, X=3), next отсутствует.
	// now=7, frameDelta=0.5 → t = (4 + 0.5) / 3 = 1.5 → X = 4.5
	smoothed, err := sb.GetSmoothed(0.5, 7)
	if err != nil {
		t.Fatalf("Ошибка GetSmoothed: %v", err)
	}
	x := smoothed.(*game.PawnState).X
	if x < 4.49 || x > 4.51 {
		t.Errorf("Ожидалось X≈4.5, получено %f", x)
	}
}

// TestSmoothingNextFreshness тестирует сброс next на каждом вызове:
// lookahead отражает только текущий кадр
func TestSmoothingNextFreshness(t *testing.T) {
	incoming := replication.NewDejitterBuffer[*protocol.StateDelta](8, 3)
	sb := replication.NewSmoothingBuffer()

	incoming.Store(fullDelta(3, 0, 0))
	incoming.Store(partialDelta(6, 6.0))
	if _, err := sb.Update(incoming, 3); err != nil {
		t.Fatalf("Ошибка Update: %v", err)
	}

	// next установлен на (6). Продвигаемся к 6: next должен сброситься,
	// нового lookahead нет
	if _, err := sb.Update(incoming, 6); err != nil {
		t.Fatalf("Ошибка Update: %v", err)
	}

	// Без next интерполяции нет — экстраполяция по prev → cur.
	// now=6, frameDelta=0 → t = 3/3 = 1.0 → X = cur.X = 6
	smoothed, err := sb.GetSmoothed(0, 6)
	if err != nil {
		t.Fatalf("Ошибка GetSmoothed: %v", err)
	}
	x := smoothed.(*game.PawnState).X
	if x < 5.99 || x > 6.01 {
		t.Errorf("Ожидалось X=6, получено %f", x)
	}
}
