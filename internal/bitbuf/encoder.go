package bitbuf

// Encoder описывает контракт упаковки типизированного значения в
// битовый шаблон фиксированной ширины.
//
// Pack детерминирован и возвращает только младшие RequiredBits бит.
// Unpack обратен Pack с точностью до заявленной эквивалентности
// кодировщика. Equal задаёт семантическое равенство, по которому
// считаются dirty-флаги: для целочисленных кодировщиков — точное,
// для квантованных float — «упаковались бы в одни и те же биты».
type Encoder[T any] interface {
	RequiredBits() int
	Pack(v T) uint32
	Unpack(bits uint32) T
	Equal(a, b T) bool
}

// PushValue записывает значение через кодировщик.
func PushValue[T any](b *Buffer, e Encoder[T], v T) {
	b.Push(e.Pack(v), e.RequiredBits())
}

// PopValue читает и потребляет значение через кодировщик.
func PopValue[T any](b *Buffer, e Encoder[T]) (T, error) {
	raw, err := b.Pop(e.RequiredBits())
	if err != nil {
		var zero T
		return zero, err
	}
	return e.Unpack(raw), nil
}

// PeekValue читает значение через кодировщик, не потребляя его.
func PeekValue[T any](b *Buffer, e Encoder[T]) (T, error) {
	raw, err := b.Peek(e.RequiredBits())
	if err != nil {
		var zero T
		return zero, err
	}
	return e.Unpack(raw), nil
}

// PushIf записывает значение только когда флаг установлен в маске.
func PushIf[T any](b *Buffer, flags, flag uint32, e Encoder[T], v T) {
	if flags&flag == flag {
		PushValue(b, e, v)
	}
}

// PopIf читает значение, если флаг установлен, иначе возвращает basis.
func PopIf[T any](b *Buffer, flags, flag uint32, e Encoder[T], basis T) (T, error) {
	if flags&flag != flag {
		return basis, nil
	}
	return PopValue(b, e)
}
