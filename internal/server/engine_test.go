package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/network"
	"github.com/annelo/go-voxel-engine/internal/protocol"
	"github.com/annelo/go-voxel-engine/internal/session"
)

// fakeLink записывает отправленные кадры вместо настоящей сети.
type fakeLink struct {
	ep network.Endpoint
	in chan network.Frame

	mu         sync.Mutex
	reliable   []protocol.Message
	unreliable []protocol.Message
	closed     bool
}

func newFakeLink(port uint16) *fakeLink {
	return &fakeLink{
		ep: network.Endpoint{Addr: 0x7f000001, Port: port},
		in: make(chan network.Frame, 16),
	}
}

func (f *fakeLink) Endpoint() network.Endpoint     { return f.ep }
func (f *fakeLink) Incoming() <-chan network.Frame { return f.in }
func (f *fakeLink) Err() error                     { return nil }

func (f *fakeLink) Close(code uint64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeLink) SendReliable(data []byte, high bool) error {
	m, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reliable = append(f.reliable, m)
	return nil
}

func (f *fakeLink) SendUnreliable(data []byte) error {
	m, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreliable = append(f.unreliable, m)
	return nil
}

func (f *fakeLink) sentReliable() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.reliable...)
}

func (f *fakeLink) sentUnreliable() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.unreliable...)
}

func (f *fakeLink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testEngine() *Engine {
	cfg := config.ServerOptions{MaxConnections: 4, WorldHeight: 2, WorldSize: 8}
	return New(cfg, nil, nil, zap.NewNop().Sugar(), "", DefaultJoinWait)
}

// join подключает фальшивого клиента и проводит рукопожатие.
func join(t *testing.T, e *Engine, link *fakeLink, name string) *session.Session {
	t.Helper()
	now := time.Now()
	e.addLink(link, now)
	s, ok := e.sessions.Get(link.ep)
	require.True(t, ok)
	e.handleMessage(s, &protocol.Handshake{Version: protocol.Version, Name: name, Skin: "default"})
	require.Equal(t, session.StateConnected, s.State())
	require.NotEmpty(t, s.EntityID)
	return s
}

func TestEngine_HandshakeSpawnsPlayer(t *testing.T) {
	e := testEngine()
	link := newFakeLink(4000)
	s := join(t, e, link, "alice")

	ent, ok := e.world.Entities.Get(s.EntityID)
	require.True(t, ok)
	assert.Equal(t, "alice", ent.Name)
	require.NotNil(t, ent.Owner)
	assert.Equal(t, link.ep, *ent.Owner)

	sent := link.sentReliable()
	require.NotEmpty(t, sent)
	ack, ok := sent[0].(*protocol.HandshakeAck)
	require.True(t, ok, "первым должно прийти подтверждение рукопожатия")
	assert.Equal(t, s.EntityID, ack.EntityID)
	assert.Equal(t, int32(2), ack.WorldHeight)
	assert.Equal(t, int32(8), ack.WorldSize)
}

func TestEngine_HandshakeTellsPeersAboutEachOther(t *testing.T) {
	e := testEngine()
	a := newFakeLink(4000)
	b := newFakeLink(4001)

	sa := join(t, e, a, "alice")
	sb := join(t, e, b, "bob")

	// Алиса узнаёт о Бобе рассылкой
	var aliceSawBob bool
	for _, m := range a.sentReliable() {
		if sp, ok := m.(*protocol.EntitySpawn); ok && sp.EntityID == sb.EntityID {
			aliceSawBob = true
		}
	}
	assert.True(t, aliceSawBob)

	// Боб узнаёт об Алисе при входе
	var bobSawAlice bool
	for _, m := range b.sentReliable() {
		if sp, ok := m.(*protocol.EntitySpawn); ok && sp.EntityID == sa.EntityID {
			bobSawAlice = true
		}
	}
	assert.True(t, bobSawAlice)
}

func TestEngine_VersionMismatchRejected(t *testing.T) {
	e := testEngine()
	link := newFakeLink(4000)
	e.addLink(link, time.Now())
	s, _ := e.sessions.Get(link.ep)

	e.handleMessage(s, &protocol.Handshake{Version: protocol.Version + 1, Name: "x"})

	assert.True(t, link.isClosed())
	_, still := e.sessions.Get(link.ep)
	assert.False(t, still, "сессия должна быть снесена")
	assert.Equal(t, 0, e.world.Entities.Len())
}

func TestEngine_ServerFull(t *testing.T) {
	cfg := config.ServerOptions{MaxConnections: 2, WorldHeight: 1, WorldSize: 4}
	e := New(cfg, nil, nil, zap.NewNop().Sugar(), "", DefaultJoinWait)

	join(t, e, newFakeLink(4000), "a")
	join(t, e, newFakeLink(4001), "b")

	extra := newFakeLink(4002)
	e.addLink(extra, time.Now())

	assert.True(t, extra.isClosed())
	_, ok := e.sessions.Get(extra.ep)
	assert.False(t, ok)
}

func TestEngine_ChunkRequestRoundTrip(t *testing.T) {
	e := testEngine()
	link := newFakeLink(4000)
	s := join(t, e, link, "alice")

	pos := chunk.Position{X: 1, Y: 0, Z: 1}
	e.handleMessage(s, &protocol.ChunkRequest{Pos: pos})

	sent := link.sentReliable()
	data, ok := sent[len(sent)-1].(*protocol.ChunkData)
	require.True(t, ok)

	sec, err := chunk.DeserializeSection(data.Payload)
	require.NoError(t, err)
	assert.Equal(t, pos, sec.Pos())
	// Авторитетная секция совпадает с генератором
	want := e.gen.GenerateSection(pos)
	for y := int32(0); y < chunk.Size; y += 5 {
		for x := int32(0); x < chunk.Size; x += 5 {
			assert.Equal(t, want.GetBlock(x, y, 3), sec.GetBlock(x, y, 3))
		}
	}
}

func TestEngine_ChunkRequestOutOfBoundsIsEmpty(t *testing.T) {
	e := testEngine()
	link := newFakeLink(4000)
	s := join(t, e, link, "alice")

	e.handleMessage(s, &protocol.ChunkRequest{Pos: chunk.Position{X: -1, Y: 0, Z: 0}})

	sent := link.sentReliable()
	data, ok := sent[len(sent)-1].(*protocol.ChunkData)
	require.True(t, ok)
	sec, err := chunk.DeserializeSection(data.Payload)
	require.NoError(t, err)
	assert.True(t, sec.IsEmpty())
}

func TestEngine_BlockEditAppliedAndBroadcast(t *testing.T) {
	e := testEngine()
	a := newFakeLink(4000)
	b := newFakeLink(4001)
	sa := join(t, e, a, "alice")
	join(t, e, b, "bob")

	edit := &protocol.BlockEdit{X: 20, Y: 10, Z: 20, Block: chunk.BlockWood}
	e.handleMessage(sa, edit)

	assert.Equal(t, chunk.BlockWood, e.world.GetBlock(20, 10, 20))

	// Правка уходит всем, включая автора
	for _, link := range []*fakeLink{a, b} {
		var saw bool
		for _, m := range link.sentReliable() {
			if be, ok := m.(*protocol.BlockEdit); ok && be.Block == chunk.BlockWood {
				saw = true
			}
		}
		assert.True(t, saw, "правка должна дойти до %v", link.ep)
	}
}

func TestEngine_PlayerInputStaleSeqDropped(t *testing.T) {
	e := testEngine()
	link := newFakeLink(4000)
	s := join(t, e, link, "alice")

	e.handleMessage(s, &protocol.PlayerInput{Seq: 5, Pos: protocol.Vec3{X: 1}})
	ent, _ := e.world.Entities.Get(s.EntityID)
	assert.Equal(t, float32(1), ent.Position.X)

	// Повтор и более старый номер игнорируются
	e.handleMessage(s, &protocol.PlayerInput{Seq: 5, Pos: protocol.Vec3{X: 99}})
	e.handleMessage(s, &protocol.PlayerInput{Seq: 3, Pos: protocol.Vec3{X: 99}})
	assert.Equal(t, float32(1), ent.Position.X)

	e.handleMessage(s, &protocol.PlayerInput{Seq: 6, Pos: protocol.Vec3{X: 2}})
	assert.Equal(t, float32(2), ent.Position.X)
}

func TestEngine_TimeoutTearsDownExactlyOnce(t *testing.T) {
	e := testEngine()
	a := newFakeLink(4000)
	b := newFakeLink(4001)
	sa := join(t, e, a, "alice")
	join(t, e, b, "bob")

	victim := sa.EntityID
	deadline := time.Now().Add(e.timeout + time.Second)

	// Боб продолжает подавать признаки жизни
	sb, _ := e.sessions.Get(b.ep)
	sb.Touch(deadline)

	// Несколько проверок подряд — снос ровно один раз
	e.reapTimeouts(deadline)
	e.reapTimeouts(deadline.Add(time.Second))
	e.reapTimeouts(deadline.Add(2 * time.Second))

	_, stillThere := e.sessions.Get(a.ep)
	assert.False(t, stillThere)
	_, entAlive := e.world.Entities.Get(victim)
	assert.False(t, entAlive)

	despawns := 0
	for _, m := range b.sentReliable() {
		if d, ok := m.(*protocol.EntityDespawn); ok && d.EntityID == victim {
			despawns++
		}
	}
	assert.Equal(t, 1, despawns, "удаление сущности рассылается ровно один раз")
}

func TestEngine_ClientDisconnectTearsDown(t *testing.T) {
	e := testEngine()
	a := newFakeLink(4000)
	b := newFakeLink(4001)
	sa := join(t, e, a, "alice")
	sb := join(t, e, b, "bob")

	e.handleMessage(sa, &protocol.Disconnect{Reason: "выход игрока"})

	assert.Equal(t, session.StateDisconnected, sa.State())
	_, stillThere := e.sessions.Get(a.ep)
	assert.False(t, stillThere)
	_, entAlive := e.world.Entities.Get(sa.EntityID)
	assert.False(t, entAlive)
	assert.True(t, a.isClosed())

	// Оставшийся клиент узнаёт об уходе
	despawned := false
	for _, m := range b.sentReliable() {
		if d, ok := m.(*protocol.EntityDespawn); ok && d.EntityID == sa.EntityID {
			despawned = true
		}
	}
	assert.True(t, despawned)
	_, sbAlive := e.sessions.Get(sb.Endpoint())
	assert.True(t, sbAlive)
}

func TestEngine_PositionBroadcastSkipsSelf(t *testing.T) {
	e := testEngine()
	a := newFakeLink(4000)
	b := newFakeLink(4001)
	sa := join(t, e, a, "alice")
	sb := join(t, e, b, "bob")

	e.tick = 0 // кратен positionBroadcastEvery
	e.broadcastPositions()

	for _, m := range a.sentUnreliable() {
		ep, ok := m.(*protocol.EntityPosition)
		require.True(t, ok)
		assert.NotEqual(t, sa.EntityID, ep.EntityID, "своя позиция не рассылается")
		assert.Equal(t, sb.EntityID, ep.EntityID)
	}
	assert.NotEmpty(t, a.sentUnreliable())
	assert.NotEmpty(t, b.sentUnreliable())
}

func TestEngine_PositionBroadcastRadiusFiltered(t *testing.T) {
	e := testEngine()
	a := newFakeLink(4000)
	b := newFakeLink(4001)
	sa := join(t, e, a, "alice")
	sb := join(t, e, b, "bob")

	// Уносим Боба далеко за радиус видимости
	far, ok := e.world.Entities.Get(sb.EntityID)
	require.True(t, ok)
	far.Position.X += float32((positionBroadcastRadius + 2) * chunk.Size)

	e.tick = 0
	e.broadcastPositions()

	for _, m := range a.sentUnreliable() {
		if ep, ok := m.(*protocol.EntityPosition); ok {
			assert.NotEqual(t, sb.EntityID, ep.EntityID, "дальняя сущность не рассылается")
		}
	}
	// Расстояние симметрично: Боб тоже не получает позицию Алисы
	for _, m := range b.sentUnreliable() {
		if ep, ok := m.(*protocol.EntityPosition); ok {
			assert.NotEqual(t, sa.EntityID, ep.EntityID)
		}
	}
}
