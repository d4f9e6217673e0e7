package client

import (
	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/network"
	"github.com/annelo/go-voxel-engine/internal/protocol"
)

// remoteLoader запрашивает секции у сервера. Загрузка асинхронна:
// RequestSection всегда возвращает (nil, nil), секция попадает в мир
// позже, когда придёт ChunkData. Повторные запросы одной секции
// подавляются, пока она не выгружена из зоны видимости.
type remoteLoader struct {
	conn      network.Link
	requested map[chunk.Position]bool
}

func newRemoteLoader(conn network.Link) *remoteLoader {
	return &remoteLoader{conn: conn, requested: make(map[chunk.Position]bool)}
}

func (l *remoteLoader) RequestSection(pos chunk.Position) (*chunk.Section, error) {
	if l.requested[pos] {
		return nil, nil
	}
	l.requested[pos] = true
	if err := l.conn.SendReliable(protocol.Encode(&protocol.ChunkRequest{Pos: pos}), false); err != nil {
		// Не удалось отправить — разрешаем повторить на следующем тике
		delete(l.requested, pos)
	}
	return nil, nil
}

// forget снимает отметку запроса: после выгрузки секция при повторном
// входе в зону видимости будет запрошена заново.
func (l *remoteLoader) forget(pos chunk.Position) {
	delete(l.requested, pos)
}
