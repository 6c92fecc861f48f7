package protocol

import "errors"

// Ошибки декодирования. Восстановимые ошибки не распространяются за
// границу кадра: пакет отбрасывается, сессия продолжается.
var (
	// ErrProtocolMismatch флаги ссылаются на поле или тип, которых
	// раскладка состояния получателя не знает. Кадр фатален, состояние
	// не изменяется.
	ErrProtocolMismatch = errors.New("protocol: несовпадение раскладки состояния")

	// ErrStaleDelta входящая дельта не новее уже сохранённой в слоте.
	// Отбрасывается молча.
	ErrStaleDelta = errors.New("protocol: устаревшая дельта")

	// ErrFirstDeltaNotImmutable первая дельта сущности пришла без
	// инициализирующих данных. Отбрасывается, ждём полный кадр.
	ErrFirstDeltaNotImmutable = errors.New("protocol: первая дельта без инициализирующих данных")

	// ErrNoData у буфера сглаживания ещё нет подтверждённых состояний.
	ErrNoData = errors.New("protocol: нет подтверждённых данных")
)
