package session

import (
	"errors"
	"time"

	"github.com/annelo/go-voxel-engine/internal/network"
)

// ErrEndpointBusy возвращается, когда для конечной точки уже есть сессия.
var ErrEndpointBusy = errors.New("для этой конечной точки уже существует сессия")

// Table — серверная таблица сессий, ключ — Endpoint.
// Инвариант: не более одной сессии на конечную точку.
type Table struct {
	sessions map[network.Endpoint]*Session
}

// NewTable создаёт пустую таблицу.
func NewTable() *Table {
	return &Table{sessions: make(map[network.Endpoint]*Session)}
}

// Add регистрирует новую сессию.
func (t *Table) Add(s *Session) error {
	if _, exists := t.sessions[s.Endpoint()]; exists {
		return ErrEndpointBusy
	}
	t.sessions[s.Endpoint()] = s
	return nil
}

// Get возвращает сессию по конечной точке.
func (t *Table) Get(ep network.Endpoint) (*Session, bool) {
	s, ok := t.sessions[ep]
	return s, ok
}

// Remove удаляет сессию из таблицы.
func (t *Table) Remove(ep network.Endpoint) bool {
	if _, ok := t.sessions[ep]; !ok {
		return false
	}
	delete(t.sessions, ep)
	return true
}

// Len возвращает число сессий в таблице.
func (t *Table) Len() int {
	return len(t.sessions)
}

// ForEach вызывает fn для каждой сессии.
func (t *Table) ForEach(fn func(s *Session)) {
	for _, s := range t.sessions {
		fn(s)
	}
}

// Expired возвращает сессии, чья тишина превысила окно timeout.
// Сессии в терминальном состоянии не возвращаются.
func (t *Table) Expired(now time.Time, timeout time.Duration) []*Session {
	var out []*Session
	for _, s := range t.sessions {
		if s.State() != StateDisconnected && s.TimedOut(now, timeout) {
			out = append(out, s)
		}
	}
	return out
}
