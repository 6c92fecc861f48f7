// Package bitbuf реализует упакованный битовый буфер со стековой (LIFO)
// семантикой и кодировщики значений фиксированной ширины.
//
// Буфер используется протоколом репликации: заголовки и флаги пишутся
// последними, поэтому читатель снимает их первыми и может досрочно
// пропустить отсутствующие поля без отслеживания позиций.
package bitbuf

import (
	"errors"
	"math/bits"
)

// ErrUnderrun возвращается при попытке прочитать больше бит, чем записано.
// Ошибка фатальна для текущего пакета: кадр отбрасывается, сессия продолжается.
var ErrUnderrun = errors.New("bitbuf: чтение за пределами записанных бит")

const (
	wordBits = 32

	// defaultWords начальная ёмкость буфера в словах
	defaultWords = 8
)

// Buffer хранит битовый поток в растущем массиве 32-битных слов.
// Ёмкость растёт геометрически и никогда не уменьшается.
type Buffer struct {
	words []uint32
	used  int // суммарное число записанных бит
}

// NewBuffer создаёт пустой буфер со стандартной ёмкостью.
func NewBuffer() *Buffer {
	return &Buffer{
		words: make([]uint32, defaultWords),
	}
}

// BitsUsed возвращает число бит в буфере.
func (b *Buffer) BitsUsed() int {
	return b.used
}

// IsEmpty сообщает, пуст ли буфер.
func (b *Buffer) IsEmpty() bool {
	return b.used == 0
}

// Reset очищает буфер, сохраняя выделенную память.
func (b *Buffer) Reset() {
	for i := range b.words {
		b.words[i] = 0
	}
	b.used = 0
}

// clampWidth приводит ширину к допустимому диапазону [0, 32].
func clampWidth(numBits int) int {
	if numBits < 0 {
		return 0
	}
	if numBits > wordBits {
		return wordBits
	}
	return numBits
}

// widthMask возвращает маску младших n бит.
func widthMask(n int) uint32 {
	if n >= wordBits {
		return ^uint32(0)
	}
	return (uint32(1) << n) - 1
}

// grow гарантирует место минимум под ещё numBits бит.
func (b *Buffer) grow(numBits int) {
	need := (b.used + numBits + wordBits - 1) / wordBits
	if need <= len(b.words) {
		return
	}
	newCap := len(b.words) * 2
	if newCap < need {
		newCap = need
	}
	words := make([]uint32, newCap)
	copy(words, b.words)
	b.words = words
}

// Push записывает младшие numBits значения value на вершину буфера.
// Ширина вне [0, 32] приводится к границе диапазона. Значение при
// необходимости разбивается между соседними словами.
func (b *Buffer) Push(value uint32, numBits int) {
	numBits = clampWidth(numBits)
	if numBits == 0 {
		return
	}
	value &= widthMask(numBits)

	b.grow(numBits)

	idx := b.used / wordBits
	off := b.used % wordBits

	b.words[idx] |= value << off
	if off+numBits > wordBits {
		// Хвост уходит в следующее слово
		b.words[idx+1] |= value >> (wordBits - off)
	}
	b.used += numBits
}

// Peek читает numBits с вершины буфера, не потребляя их.
// Результат — чистая функция содержимого буфера.
func (b *Buffer) Peek(numBits int) (uint32, error) {
	numBits = clampWidth(numBits)
	if numBits == 0 {
		return 0, nil
	}
	if numBits > b.used {
		return 0, ErrUnderrun
	}

	start := b.used - numBits
	idx := start / wordBits
	off := start % wordBits

	value := b.words[idx] >> off
	if off+numBits > wordBits {
		value |= b.words[idx+1] << (wordBits - off)
	}
	return value & widthMask(numBits), nil
}

// Pop читает и потребляет numBits с вершины буфера.
// Эквивалентен Peek с последующим усечением и очисткой снятых бит.
func (b *Buffer) Pop(numBits int) (uint32, error) {
	numBits = clampWidth(numBits)
	value, err := b.Peek(numBits)
	if err != nil {
		return 0, err
	}

	oldTop := (b.used + wordBits - 1) / wordBits
	b.used -= numBits

	// Очищаем снятые биты, чтобы Push не оставлял мусор
	idx := b.used / wordBits
	if idx < len(b.words) {
		b.words[idx] &= widthMask(b.used % wordBits)
	}
	for i := idx + 1; i < oldTop && i < len(b.words); i++ {
		b.words[i] = 0
	}
	return value, nil
}

// Store сериализует содержимое буфера в байты.
// Перед выгрузкой наверх дописывается сторожевой бит 1: он помечает
// границу потока, и Load восстанавливает точное число бит без
// отдельного заголовка длины. Сам буфер не изменяется.
func (b *Buffer) Store() []byte {
	b.Push(1, 1)
	defer func() {
		_, _ = b.Pop(1)
	}()

	n := (b.used + 7) / 8
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		word := b.words[i/4]
		data[i] = byte(word >> ((i % 4) * 8))
	}
	return data
}

// Load восстанавливает буфер из байтов, записанных Store.
// Позиция старшего установленного бита задаёт границу потока.
func Load(data []byte) (*Buffer, error) {
	top := -1
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] != 0 {
			top = i*8 + bits.Len8(data[i]) - 1
			break
		}
	}
	if top < 0 {
		return nil, errors.New("bitbuf: поток без сторожевого бита")
	}

	buf := &Buffer{
		words: make([]uint32, len(data)/4+1),
	}
	for i, by := range data {
		buf.words[i/4] |= uint32(by) << ((i % 4) * 8)
	}
	// Сторожевой бит не входит в полезные данные
	buf.used = top
	buf.words[top/wordBits] &= widthMask(top % wordBits)
	for i := top/wordBits + 1; i < len(buf.words); i++ {
		buf.words[i] = 0
	}
	return buf, nil
}
