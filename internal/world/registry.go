// Package world реализует хостовые циклы репликации: авторитетный
// серверный мир и клиентский мир с предсказанием и сглаживанием.
// Один тик мира — единица планирования: каждая сущность доводится до
// конца тика, ввод-вывод происходит на границах тиков.
package world

import (
	"fmt"

	"github.com/annel0/netsync/internal/entity"
	"github.com/annel0/netsync/internal/protocol"
)

// Registry фабрики сущностей по типу: состояние + поведение.
// Передаётся мирам явно, глобального реестра нет.
type Registry struct {
	proto     *protocol.Registry
	behaviors map[protocol.Kind]func() entity.Behavior
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		proto:     protocol.NewRegistry(),
		behaviors: make(map[protocol.Kind]func() entity.Behavior),
	}
}

// Proto реестр состояний для кодека.
func (r *Registry) Proto() *protocol.Registry { return r.proto }

// Register регистрирует тип сущности: фабрику состояния и поведения.
func (r *Registry) Register(kind protocol.Kind, stateFn func() protocol.State, behaviorFn func() entity.Behavior) {
	r.proto.RegisterState(kind, stateFn)
	r.behaviors[kind] = behaviorFn
}

// RegisterCommand регистрирует фабрику команд.
func (r *Registry) RegisterCommand(factory func() protocol.Command) {
	r.proto.RegisterCommand(factory)
}

// create собирает сущность зарегистрированного типа.
func (r *Registry) create(id protocol.EntityID, kind protocol.Kind, role entity.Role, opts entity.Options) (*entity.Entity, error) {
	state, err := r.proto.NewState(kind)
	if err != nil {
		return nil, fmt.Errorf("world: создание сущности %d: %w", id, err)
	}
	behaviorFn, ok := r.behaviors[kind]
	if !ok {
		return nil, fmt.Errorf("world: нет поведения для типа %d: %w", kind, protocol.ErrProtocolMismatch)
	}
	return entity.New(id, role, state, behaviorFn(), opts), nil
}
