package entity_test

import (
	"testing"

	"github.com/annel0/netsync/internal/entity"
	"github.com/annel0/netsync/internal/game"
	"github.com/annel0/netsync/internal/protocol"
	"github.com/annel0/netsync/internal/world"
)

// recordingBehavior считает переходы жизненного цикла.
type recordingBehavior struct {
	entity.NopBehavior
	started  int
	frozen   int
	unfrozen int
	shutdown int
}

func (b *recordingBehavior) OnStart(*entity.Entity)    { b.started++ }
func (b *recordingBehavior) OnFrozen(*entity.Entity)   { b.frozen++ }
func (b *recordingBehavior) OnUnfrozen(*entity.Entity) { b.unfrozen++ }
func (b *recordingBehavior) OnShutdown(*entity.Entity) { b.shutdown++ }

func testOptions() entity.Options {
	return entity.Options{
		DejitterBufferLength: 30,
		NetworkSendRate:      3,
		TicksBeforeFreeze:    10,
		ForceUpdates:         true,
	}
}

func serverEntity(opts entity.Options) (*entity.Entity, *game.PawnState) {
	state := &game.PawnState{Archetype: 1, UserData: 7, X: 10, Y: 20}
	e := entity.New(1, entity.RoleServer, state, nil, opts)
	return e, state
}

// fullDelta полный инициализирующий кадр для клиентских тестов.
func fullDelta(tick protocol.Tick, x float64) *protocol.StateDelta {
	s := &game.PawnState{X: x}
	return &protocol.StateDelta{
		EntityID:         1,
		Kind:             game.KindPawn,
		TickValue:        tick,
		Flags:            protocol.AllFlags(s),
		State:            s,
		HasImmutableData: true,
	}
}

// TestMissingBasisPromotion тестирует повышение дельты до полного
// снимка при вытесненном базисе
func TestMissingBasisPromotion(t *testing.T) {
	e, state := serverEntity(testOptions())

	// История с записями на тиках 100, 110, 120
	for i, tick := range []protocol.Tick{100, 110, 120} {
		state.X = float64(10 + i)
		e.StoreRecord(tick)
	}

	t.Run("Evicted Basis", func(t *testing.T) {
		delta, ok := e.ProduceDelta(120, 80, false)
		if !ok {
			t.Fatal("Кадр не произведён")
		}
		if !delta.HasImmutableData {
			t.Error("Ожидалось повышение до полного снимка")
		}
		if delta.Flags != protocol.AllFlags(state)&^state.PrivateMask() {
			t.Errorf("Ожидались все публичные поля, получено %#x", delta.Flags)
		}
	})

	t.Run("Known Basis", func(t *testing.T) {
		delta, ok := e.ProduceDelta(121, 110, false)
		if !ok {
			t.Fatal("Кадр не произведён")
		}
		if delta.HasImmutableData {
			t.Error("При живом базисе полный снимок не нужен")
		}
		if delta.Flags != game.FieldX {
			t.Errorf("Ожидался только бит X, получено %#x", delta.Flags)
		}
	})

	t.Run("Invalid Basis", func(t *testing.T) {
		delta, ok := e.ProduceDelta(121, protocol.TickInvalid, false)
		if !ok || !delta.HasImmutableData {
			t.Error("Невалидный базис должен давать полный снимок")
		}
	})
}

// TestPrivateFieldScoping тестирует приватные поля: только кадры
// контроллирующему пиру несут их
func TestPrivateFieldScoping(t *testing.T) {
	e, state := serverEntity(testOptions())
	e.StoreRecord(100)

	toOther, _ := e.ProduceDelta(101, protocol.TickInvalid, false)
	if toOther.Flags&state.PrivateMask() != 0 {
		t.Errorf("Приватные поля утекли чужому пиру: %#x", toOther.Flags)
	}

	toOwner, _ := e.ProduceDelta(101, protocol.TickInvalid, true)
	if toOwner.Flags&state.PrivateMask() == 0 {
		t.Error("Контроллер не получил приватные поля")
	}
}

// TestRecordSuppression тестирует подавление записей при неизменном
// состоянии по отношению эквивалентности кодировщиков
func TestRecordSuppression(t *testing.T) {
	e, state := serverEntity(testOptions())

	e.StoreRecord(100)
	e.StoreRecord(101) // состояние не менялось — подавляется
	if e.Outgoing().Len() != 1 {
		t.Errorf("Ожидалась 1 запись, получено %d", e.Outgoing().Len())
	}

	// Сдвиг меньше кванта координаты — всё ещё равен по кодировщику
	state.X += 0.001
	e.StoreRecord(102)
	if e.Outgoing().Len() != 1 {
		t.Errorf("Субквантовый сдвиг не должен порождать запись, получено %d", e.Outgoing().Len())
	}

	state.X += 1
	e.StoreRecord(103)
	if e.Outgoing().Len() != 2 {
		t.Errorf("Ожидалось 2 записи, получено %d", e.Outgoing().Len())
	}
}

// TestForceUpdatesSkip тестирует пропуск кадра с пустой маской при
// выключенном ForceUpdates
func TestForceUpdatesSkip(t *testing.T) {
	opts := testOptions()
	opts.ForceUpdates = false
	e, _ := serverEntity(opts)
	e.StoreRecord(100)

	// Базис совпадает с текущим состоянием: маска пустая — кадр не идёт
	if _, ok := e.ProduceDelta(101, 100, false); ok {
		t.Error("Кадр с пустой маской должен пропускаться без ForceUpdates")
	}

	// Полный снимок идёт всегда
	if _, ok := e.ProduceDelta(101, protocol.TickInvalid, false); !ok {
		t.Error("Полный снимок не должен пропускаться")
	}

	// Кадр уничтожения идёт всегда
	e.MarkForRemove(101)
	if delta, ok := e.ProduceDelta(102, 100, false); !ok || !delta.IsDestroyed {
		t.Error("Кадр уничтожения не должен пропускаться")
	}
}

// TestFreezeScenario тестирует заморозку: порог 10, последняя дельта
// на тике 50
func TestFreezeScenario(t *testing.T) {
	behavior := &recordingBehavior{}
	e := entity.New(1, entity.RoleClient, &game.PawnState{}, behavior, testOptions())

	if err := e.ReceiveDelta(fullDelta(50, 1.0)); err != nil {
		t.Fatalf("Ошибка приёма дельты: %v", err)
	}

	e.UpdateFreeze(55)
	if e.IsFrozen() {
		t.Error("Разрыв 5 не должен замораживать")
	}

	e.UpdateFreeze(61)
	if !e.IsFrozen() || behavior.frozen != 1 {
		t.Errorf("Ожидалась заморозка с одним событием, frozen=%d", behavior.frozen)
	}

	// Повтор не даёт нового события
	e.UpdateFreeze(62)
	if behavior.frozen != 1 {
		t.Errorf("Повторная заморозка дала событие, frozen=%d", behavior.frozen)
	}

	// Свежая дельта размораживает
	if err := e.ReceiveDelta(fullDelta(62, 2.0)); err != nil {
		t.Fatalf("Ошибка приёма дельты: %v", err)
	}
	e.UpdateFreeze(62)
	if e.IsFrozen() || behavior.unfrozen != 1 {
		t.Errorf("Ожидалась разморозка с одним событием, unfrozen=%d", behavior.unfrozen)
	}
}

// TestFreezeDisabled тестирует отключение заморозки нулевым порогом
func TestFreezeDisabled(t *testing.T) {
	opts := testOptions()
	opts.TicksBeforeFreeze = 0
	behavior := &recordingBehavior{}
	e := entity.New(1, entity.RoleClient, &game.PawnState{}, behavior, opts)

	_ = e.ReceiveDelta(fullDelta(50, 1.0))
	e.UpdateFreeze(1000)
	if e.IsFrozen() || behavior.frozen != 0 {
		t.Error("Нулевой порог должен отключать заморозку")
	}
}

// TestOwnedNeverFrozen тестирует немедленную разморозку при получении
// управления
func TestOwnedNeverFrozen(t *testing.T) {
	behavior := &recordingBehavior{}
	e := entity.New(1, entity.RoleClient, &game.PawnState{}, behavior, testOptions())

	_ = e.ReceiveDelta(fullDelta(50, 1.0))
	e.UpdateFreeze(100)
	if !e.IsFrozen() {
		t.Fatal("Сущность должна быть заморожена")
	}

	e.SetController(world.NewLocalController(8))
	if e.IsFrozen() || behavior.unfrozen != 1 {
		t.Error("Получение управления должно немедленно размораживать")
	}

	// Управляемая сущность не замерзает даже при разрыве
	e.UpdateFreeze(1000)
	if e.IsFrozen() {
		t.Error("Управляемая сущность не должна замерзать")
	}
}

// TestFirstDeltaNotImmutable тестирует дроп первой дельты без
// инициализирующих данных
func TestFirstDeltaNotImmutable(t *testing.T) {
	e := entity.New(1, entity.RoleClient, &game.PawnState{}, nil, testOptions())

	s := &game.PawnState{X: 5}
	err := e.ReceiveDelta(&protocol.StateDelta{
		EntityID:  1,
		TickValue: 50,
		Flags:     game.FieldX,
		State:     s,
	})
	if err == nil {
		t.Fatal("Ожидалась ошибка для первой дельты без инициализации")
	}
	if e.Incoming().Len() != 0 {
		t.Error("Дельта не должна была сохраниться")
	}

	// Полный кадр принимается
	if err := e.ReceiveDelta(fullDelta(53, 1.0)); err != nil {
		t.Fatalf("Ошибка приёма полного кадра: %v", err)
	}
	if e.Incoming().Len() != 1 {
		t.Error("Полный кадр должен был сохраниться")
	}
}

// TestClientPredictionReplay тестирует повтор команд поверх
// подтверждённого состояния
func TestClientPredictionReplay(t *testing.T) {
	e := entity.New(1, entity.RoleClient, &game.PawnState{}, game.NewPawnBehavior(), testOptions())

	if err := e.ReceiveDelta(fullDelta(99, 0)); err != nil {
		t.Fatalf("Ошибка приёма дельты: %v", err)
	}

	ctrl := world.NewLocalController(8)
	ctrl.AddCommand(game.NewMoveCommand(100, 1, 0))
	ctrl.AddCommand(game.NewMoveCommand(101, 2, 0))
	ctrl.AddCommand(game.NewMoveCommand(102, 1, 0))
	e.SetController(ctrl)

	if err := e.UpdateClient(99); err != nil {
		t.Fatalf("Ошибка UpdateClient: %v", err)
	}

	s := e.State().(*game.PawnState)
	if s.X != 4 {
		t.Errorf("Ожидалось X=4 после повтора команд, получено %f", s.X)
	}
	if e.Prediction().Cur().Tick() != 102 {
		t.Errorf("Ожидался тик предсказания 102, получено %d", e.Prediction().Cur().Tick())
	}

	// Повторный тик без новых дельт сходится к тому же состоянию
	if err := e.UpdateClient(99); err != nil {
		t.Fatalf("Ошибка повторного UpdateClient: %v", err)
	}
	if got := e.State().(*game.PawnState).X; got != 4 {
		t.Errorf("Предсказание разошлось: X=%f", got)
	}
}
