// Package session отслеживает жизненный цикл подключений на сервере.
package session

import (
	"errors"
	"time"

	"github.com/annelo/go-voxel-engine/internal/network"
)

// DefaultTimeout — окно тишины, после которого сессия считается мёртвой.
const DefaultTimeout = 8 * time.Second

// State — состояние сессии.
type State uint8

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected // терминальное
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session — состояние одного подключения: конечная точка, фаза
// жизненного цикла, отметка последнего сигнала и связанная сущность.
// Сессиями владеет таблица сервера; мутации выполняет только тик-поток.
type Session struct {
	endpoint network.Endpoint
	conn     network.Link
	state    State
	lastSeen time.Time

	// EntityID — сущность игрока этой сессии; пустая строка, если
	// рукопожатие ещё не завершено.
	EntityID string
	Name     string
	Skin     string

	// Seq нумерует исходящие ненадёжные кадры этой сессии.
	Seq uint32
}

// New создаёт сессию в состоянии Connecting.
func New(ep network.Endpoint, conn network.Link, now time.Time) *Session {
	return &Session{endpoint: ep, conn: conn, state: StateConnecting, lastSeen: now}
}

// Endpoint возвращает сетевую идентичность сессии.
func (s *Session) Endpoint() network.Endpoint {
	return s.endpoint
}

// Conn возвращает транспортное соединение сессии.
func (s *Session) Conn() network.Link {
	return s.conn
}

// State возвращает текущее состояние.
func (s *Session) State() State {
	return s.state
}

// Touch отмечает получение любого кадра от пира.
func (s *Session) Touch(now time.Time) {
	s.lastSeen = now
}

// LastSeen возвращает отметку последнего принятого кадра.
func (s *Session) LastSeen() time.Time {
	return s.lastSeen
}

// TimedOut сообщает, превысила ли тишина окно timeout.
func (s *Session) TimedOut(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.lastSeen) > timeout
}

// NextSeq выдаёт следующий номер ненадёжного кадра.
func (s *Session) NextSeq() uint32 {
	s.Seq++
	return s.Seq
}

// ErrBadTransition возвращается при недопустимом переходе состояния.
var ErrBadTransition = errors.New("недопустимый переход состояния сессии")

// Connect переводит Connecting -> Connected (получено подтверждение
// рукопожатия).
func (s *Session) Connect() error {
	if s.state != StateConnecting {
		return ErrBadTransition
	}
	s.state = StateConnected
	return nil
}

// BeginDisconnect переводит Connected -> Disconnecting (явный запрос
// любой стороны или фатальная ошибка транспорта).
func (s *Session) BeginDisconnect() error {
	if s.state != StateConnected {
		return ErrBadTransition
	}
	s.state = StateDisconnecting
	return nil
}

// Terminate переводит сессию в терминальное Disconnected из любого
// нетерминального состояния. Возвращает true только при первом входе:
// вызывающий выполняет снос (удаление сущности) ровно один раз,
// сколько бы раз ни срабатывала проверка таймаута.
func (s *Session) Terminate() bool {
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	return true
}
