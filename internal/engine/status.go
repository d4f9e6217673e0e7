// Package engine содержит общие типы серверного и клиентского движков.
package engine

// Status — итог работы движка. По нему процесс выбирает код выхода.
type Status int

const (
	// StatusOK — движок ещё работает либо завершился без причины для выхода.
	StatusOK Status = iota
	// StatusExit — штатное завершение по запросу пользователя.
	StatusExit
	// StatusServerDisconnect — сервер разорвал соединение.
	StatusServerDisconnect
	// StatusServerTimeout — сервер перестал отвечать.
	StatusServerTimeout
	// StatusGraphicsInitError — не удалось инициализировать графику.
	StatusGraphicsInitError
	// StatusCouldNotConnect — не удалось подключиться к серверу.
	StatusCouldNotConnect
	// StatusNetworkInitError — не удалось инициализировать сетевую подсистему.
	StatusNetworkInitError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusExit:
		return "exit"
	case StatusServerDisconnect:
		return "server disconnect"
	case StatusServerTimeout:
		return "server timeout"
	case StatusGraphicsInitError:
		return "graphics init error"
	case StatusCouldNotConnect:
		return "could not connect"
	case StatusNetworkInitError:
		return "network init error"
	default:
		return "unknown"
	}
}

// Terminal сообщает, требует ли статус остановки движка.
func (s Status) Terminal() bool {
	return s != StatusOK
}

// ExitCode возвращает код выхода процесса для статуса. Разрыв связи и
// таймаут сервера считаются штатным завершением.
func (s Status) ExitCode() int {
	switch s {
	case StatusOK, StatusExit, StatusServerDisconnect, StatusServerTimeout:
		return 0
	default:
		return 1
	}
}
