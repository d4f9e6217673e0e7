package network

// Link — абстракция соединения для движков сервера и клиента.
// Боевая реализация — *Conn; тесты подставляют заглушки.
type Link interface {
	// Endpoint возвращает сетевую идентичность пира.
	Endpoint() Endpoint
	// Incoming возвращает канал принятых кадров.
	Incoming() <-chan Frame
	// SendReliable ставит кадр в надёжную очередь.
	SendReliable(data []byte, high bool) error
	// SendUnreliable отправляет кадр датаграммой.
	SendUnreliable(data []byte) error
	// Close закрывает соединение с кодом приложения и причиной.
	Close(code uint64, reason string) error
	// Err возвращает причину закрытия, если соединение закрыто.
	Err() error
}

var _ Link = (*Conn)(nil)
