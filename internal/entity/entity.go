// Package entity содержит динамические объекты мира и их коллекцию.
package entity

import (
	"errors"

	"github.com/google/uuid"

	"github.com/annelo/go-voxel-engine/internal/network"
)

// Kind — разновидность сущности.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindMob
)

// Vec3 — позиция или скорость в мировых координатах.
type Vec3 struct {
	X, Y, Z float32
}

// Add возвращает покомпонентную сумму.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale возвращает вектор, умноженный на скаляр.
func (v Vec3) Scale(k float32) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Entity — динамический объект мира (игрок, моб).
// Идентификатор глобально уникален, пока сущность жива.
type Entity struct {
	ID       string
	Kind     Kind
	Name     string
	Skin     string
	Position Vec3
	Velocity Vec3

	// Owner — конечная точка управляющей сессии; nil для мобов
	// и сущностей без владельца.
	Owner *network.Endpoint

	// LastSeq — последний принятый номер ненадёжного обновления позиции.
	// Обновления с номером не больше LastSeq отбрасываются как устаревшие.
	LastSeq uint32
}

// NewID возвращает новый уникальный идентификатор сущности.
func NewID() string {
	return uuid.New().String()
}

// ErrEntityExists возвращается при попытке добавить сущность с занятым ID.
var ErrEntityExists = errors.New("сущность с таким ID уже существует")

// ErrEntityNotFound возвращается, когда сущность не найдена.
var ErrEntityNotFound = errors.New("сущность не найдена")

// Array — коллекция живых сущностей со стабильной идентичностью.
// Не синхронизирована: владелец — тик-поток одного движка.
type Array struct {
	entities map[string]*Entity
	order    []string
}

// NewArray создаёт пустую коллекцию.
func NewArray() *Array {
	return &Array{entities: make(map[string]*Entity)}
}

// Add добавляет сущность. ID должен быть уникален среди живых.
func (a *Array) Add(e *Entity) error {
	if _, exists := a.entities[e.ID]; exists {
		return ErrEntityExists
	}
	a.entities[e.ID] = e
	a.order = append(a.order, e.ID)
	return nil
}

// Get возвращает сущность по ID.
func (a *Array) Get(id string) (*Entity, bool) {
	e, ok := a.entities[id]
	return e, ok
}

// Remove удаляет сущность. Возвращает true, если она существовала.
func (a *Array) Remove(id string) bool {
	if _, ok := a.entities[id]; !ok {
		return false
	}
	delete(a.entities, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveOwned удаляет все сущности, принадлежащие конечной точке ep.
// Возвращает удалённые ID.
func (a *Array) RemoveOwned(ep network.Endpoint) []string {
	var removed []string
	for _, id := range a.IDs() {
		e := a.entities[id]
		if e.Owner != nil && *e.Owner == ep {
			a.Remove(id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Len возвращает количество живых сущностей.
func (a *Array) Len() int {
	return len(a.entities)
}

// IDs возвращает идентификаторы в порядке добавления.
func (a *Array) IDs() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// ForEach вызывает fn для каждой сущности в порядке добавления.
func (a *Array) ForEach(fn func(e *Entity)) {
	for _, id := range a.order {
		fn(a.entities[id])
	}
}

// Step продвигает все сущности на dt секунд по их скоростям.
func (a *Array) Step(dt float32) {
	for _, id := range a.order {
		e := a.entities[id]
		e.Position = e.Position.Add(e.Velocity.Scale(dt))
	}
}
