package vec

import (
	"math"
	"testing"
)

// TestLerp тестирует линейную интерполяцию и экстраполяцию
func TestLerp(t *testing.T) {
	if got := Lerp(0, 10, 0.5); got != 5 {
		t.Errorf("Ожидалось 5, получено %f", got)
	}
	if got := Lerp(0, 10, 0); got != 0 {
		t.Errorf("Ожидалось 0, получено %f", got)
	}
	if got := Lerp(0, 10, 1); got != 10 {
		t.Errorf("Ожидалось 10, получено %f", got)
	}
	// Экстраполяция за пределами [0, 1]
	if got := Lerp(0, 10, 1.5); got != 15 {
		t.Errorf("Ожидалось 15, получено %f", got)
	}
}

// TestLerpAngle тестирует интерполяцию угла по кратчайшей дуге
func TestLerpAngle(t *testing.T) {
	if got := LerpAngle(0, 90, 0.5); math.Abs(got-45) > 1e-9 {
		t.Errorf("Ожидалось 45, получено %f", got)
	}

	// Через ноль: 350 -> 10 по кратчайшей дуге
	if got := LerpAngle(350, 10, 0.5); math.Abs(got-0) > 1e-9 && math.Abs(got-360) > 1e-9 {
		t.Errorf("Ожидалось 0, получено %f", got)
	}

	// Результат нормализован
	got := LerpAngle(350, 10, 0.75)
	if got < 0 || got >= 360 {
		t.Errorf("Угол вне диапазона: %f", got)
	}
}

// TestVec2Ops тестирует базовые операции с векторами
func TestVec2Ops(t *testing.T) {
	a := Vec2{X: 1, Y: 2}
	b := Vec2{X: 3, Y: 4}

	if got := a.Add(b); got != (Vec2{X: 4, Y: 6}) {
		t.Errorf("Неверная сумма: %+v", got)
	}
	if got := b.Sub(a); got != (Vec2{X: 2, Y: 2}) {
		t.Errorf("Неверная разность: %+v", got)
	}
	if got := a.Mul(2); got != (Vec2{X: 2, Y: 4}) {
		t.Errorf("Неверное произведение: %+v", got)
	}
	if got := (Vec2{X: 3, Y: 4}).Length(); got != 5 {
		t.Errorf("Неверная длина: %f", got)
	}
	if got := LerpVec(a, b, 0.5); got != (Vec2{X: 2, Y: 3}) {
		t.Errorf("Неверная интерполяция: %+v", got)
	}
}
