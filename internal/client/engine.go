// Package client реализует игровой клиент: соединение с сервером,
// локальную реплику мира, применение серверных диффов и отправку
// ввода игрока.
package client

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/engine"
	"github.com/annelo/go-voxel-engine/internal/entity"
	"github.com/annelo/go-voxel-engine/internal/network"
	"github.com/annelo/go-voxel-engine/internal/protocol"
	"github.com/annelo/go-voxel-engine/internal/session"
	"github.com/annelo/go-voxel-engine/internal/world"
)

const (
	// TickInterval — период клиентского тика.
	TickInterval = 50 * time.Millisecond

	// DefaultViewRadius — радиус обзора реплики в чанках.
	DefaultViewRadius int32 = 2

	connectTimeout = 5 * time.Second

	// Кадры состояния отправляются каждый второй тик, пульс — раз в
	// секунду.
	inputSendEvery = 2
	heartbeatEvery = 20

	maxFramesPerTick = 256
	maxMessages      = 4
)

// Engine — клиентский движок. Вся сетевая и мировая логика работает в
// одной тик-горутине; отдельные горутины есть только у транспорта и у
// опроса клавиатуры в рендерере.
type Engine struct {
	cfg      config.ClientOptions
	name     string
	log      *zap.SugaredLogger
	netctx   *network.Context
	renderer Renderer

	conn   network.Link
	loader *remoteLoader
	world  *world.World
	self   *entity.Entity

	seq      uint32
	tick     uint64
	lastSeen time.Time
	messages []string

	stop     chan struct{}
	stopOnce sync.Once
}

// New создаёт клиентский движок. nil-рендерер заменяется безэкранным.
func New(cfg config.ClientOptions, name string, netctx *network.Context, renderer Renderer, log *zap.SugaredLogger) *Engine {
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &Engine{
		cfg:      cfg,
		name:     name,
		log:      log,
		netctx:   netctx,
		renderer: renderer,
		stop:     make(chan struct{}),
	}
}

// Stop просит движок завершиться. Безопасно вызывать из любой горутины.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Run подключается к серверу и крутит игровой цикл до завершения.
func (e *Engine) Run(ctx context.Context, serverAddr string) engine.Status {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	conn, err := e.netctx.Dial(dialCtx, serverAddr)
	cancel()
	if err != nil {
		e.log.Errorw("failed to connect to server", "addr", serverAddr, "error", err)
		return engine.StatusCouldNotConnect
	}
	e.conn = conn
	defer conn.Close(0, "клиент завершил работу")

	hello := &protocol.Handshake{Version: protocol.Version, Name: e.name, Skin: e.cfg.Skin}
	if err := conn.SendReliable(protocol.Encode(hello), true); err != nil {
		e.log.Errorw("failed to send handshake", "error", err)
		return engine.StatusCouldNotConnect
	}

	ack, st := e.awaitAck(ctx)
	if st != engine.StatusOK {
		return st
	}
	e.bind(ack)
	e.log.Infow("connected to server",
		"addr", serverAddr, "entityID", ack.EntityID, "seed", ack.Seed)

	if err := e.renderer.Init(e.cfg); err != nil {
		e.log.Errorw("graphics init failed", "error", err)
		return engine.StatusGraphicsInitError
	}
	defer e.renderer.Close()

	return e.runLoop(ctx)
}

// awaitAck ждёт подтверждение рукопожатия на надёжном канале.
func (e *Engine) awaitAck(ctx context.Context) (*protocol.HandshakeAck, engine.Status) {
	deadline := time.NewTimer(connectTimeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, engine.StatusExit
		case <-e.stop:
			return nil, engine.StatusExit
		case <-deadline.C:
			e.log.Errorw("handshake timed out")
			return nil, engine.StatusCouldNotConnect
		case f, ok := <-e.conn.Incoming():
			if !ok {
				e.log.Errorw("connection closed during handshake", "error", e.conn.Err())
				return nil, engine.StatusCouldNotConnect
			}
			msg, err := protocol.Decode(f.Data)
			if err != nil {
				e.log.Warnw("malformed frame during handshake", "error", err)
				continue
			}
			switch m := msg.(type) {
			case *protocol.HandshakeAck:
				return m, engine.StatusOK
			case *protocol.Disconnect:
				e.log.Errorw("server refused connection", "reason", m.Reason)
				return nil, engine.StatusCouldNotConnect
			}
		}
	}
}

// bind разворачивает реплику мира по параметрам из подтверждения.
func (e *Engine) bind(ack *protocol.HandshakeAck) {
	e.loader = newRemoteLoader(e.conn)
	e.world = world.New(e.loader, DefaultViewRadius, ack.WorldHeight, world.DefaultMeshBudget)
	e.world.SetEvictHook(func(s *chunk.Section) { e.loader.forget(s.Pos()) })

	e.self = &entity.Entity{
		ID:       ack.EntityID,
		Kind:     entity.KindPlayer,
		Name:     e.name,
		Skin:     e.cfg.Skin,
		Position: entity.Vec3{X: ack.Spawn.X, Y: ack.Spawn.Y, Z: ack.Spawn.Z},
	}
	e.world.Entities.Add(e.self)
	e.lastSeen = time.Now()
}

func (e *Engine) runLoop(ctx context.Context) engine.Status {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.sendBye("выход")
			return engine.StatusExit
		case <-e.stop:
			e.sendBye("выход")
			return engine.StatusExit
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now

			if st := e.drainIncoming(now); st != engine.StatusOK {
				return st
			}
			if now.Sub(e.lastSeen) > session.DefaultTimeout {
				e.log.Errorw("server silent for too long",
					"timeout", session.DefaultTimeout)
				return engine.StatusServerTimeout
			}

			e.world.Update(e.self, dt)

			in := e.renderer.Frame(e.world, e.self, e.messages)
			if in.Quit {
				e.sendBye("выход игрока")
				return engine.StatusExit
			}
			e.applyInput(in)
			e.tickSends()
			e.tick++
		}
	}
}

// drainIncoming применяет накопившиеся кадры сервера.
func (e *Engine) drainIncoming(now time.Time) engine.Status {
	for i := 0; i < maxFramesPerTick; i++ {
		select {
		case f, ok := <-e.conn.Incoming():
			if !ok {
				e.log.Warnw("connection closed by server", "error", e.conn.Err())
				return engine.StatusServerDisconnect
			}
			e.lastSeen = now
			msg, err := protocol.Decode(f.Data)
			if err != nil {
				e.log.Warnw("malformed frame", "error", err)
				continue
			}
			if st := e.apply(msg); st != engine.StatusOK {
				return st
			}
		default:
			return engine.StatusOK
		}
	}
	return engine.StatusOK
}

// apply применяет одно серверное сообщение к реплике.
func (e *Engine) apply(msg protocol.Message) engine.Status {
	switch m := msg.(type) {
	case *protocol.ChunkData:
		s, err := chunk.DeserializeSection(m.Payload)
		if err != nil {
			e.log.Warnw("failed to deserialize chunk", "error", err)
			return engine.StatusOK
		}
		e.world.InsertSection(s)

	case *protocol.BlockEdit:
		// Секция могла уже выгрузиться; правка придёт вместе с ней
		if !e.world.SetBlock(m.X, m.Y, m.Z, m.Block) {
			e.log.Debugw("block edit outside loaded sections",
				"x", m.X, "y", m.Y, "z", m.Z)
		}

	case *protocol.EntitySpawn:
		if m.EntityID == e.self.ID {
			return engine.StatusOK
		}
		ent := &entity.Entity{
			ID:       m.EntityID,
			Kind:     entity.Kind(m.Kind),
			Name:     m.Name,
			Skin:     m.Skin,
			Position: entity.Vec3{X: m.Pos.X, Y: m.Pos.Y, Z: m.Pos.Z},
		}
		if err := e.world.Entities.Add(ent); err != nil {
			e.log.Warnw("duplicate entity spawn", "entityID", m.EntityID)
			return engine.StatusOK
		}
		if m.Kind == uint8(entity.KindPlayer) {
			e.pushMessage("Игрок " + m.Name + " вошёл в игру")
		}

	case *protocol.EntityDespawn:
		if ent, ok := e.world.Entities.Get(m.EntityID); ok {
			e.world.Entities.Remove(m.EntityID)
			if ent.Kind == entity.KindPlayer {
				e.pushMessage("Игрок " + ent.Name + " вышел из игры")
			}
		}

	case *protocol.EntityPosition:
		if m.EntityID == e.self.ID {
			return engine.StatusOK
		}
		ent, ok := e.world.Entities.Get(m.EntityID)
		if !ok {
			return engine.StatusOK
		}
		if protocol.StaleSeq(m.Seq, ent.LastSeq) {
			return engine.StatusOK
		}
		ent.LastSeq = m.Seq
		ent.Position = entity.Vec3{X: m.Pos.X, Y: m.Pos.Y, Z: m.Pos.Z}
		ent.Velocity = entity.Vec3{X: m.Vel.X, Y: m.Vel.Y, Z: m.Vel.Z}

	case *protocol.Disconnect:
		e.log.Infow("server disconnected us", "reason", m.Reason)
		return engine.StatusServerDisconnect

	case *protocol.Heartbeat:
		// Сам факт кадра уже обновил lastSeen
	}
	return engine.StatusOK
}

// applyInput применяет ввод игрока к собственной сущности и отправляет
// правки блоков.
func (e *Engine) applyInput(in Input) {
	if in.Move != (entity.Vec3{}) {
		e.self.Position = e.self.Position.Add(in.Move)
	}
	if in.Place {
		e.requestEdit(chunk.BlockStone)
	}
	if in.Break {
		e.requestEdit(chunk.BlockAir)
	}
}

// requestEdit отправляет серверу запрос на правку блока в клетке
// игрока. Реплика не меняется: авторитетная правка вернётся эхом.
func (e *Engine) requestEdit(id chunk.BlockID) {
	x := int32(math.Floor(float64(e.self.Position.X)))
	y := int32(math.Floor(float64(e.self.Position.Y)))
	z := int32(math.Floor(float64(e.self.Position.Z)))
	edit := &protocol.BlockEdit{X: x, Y: y, Z: z, Block: id}
	if err := e.conn.SendReliable(protocol.Encode(edit), false); err != nil {
		e.log.Warnw("failed to send block edit", "error", err)
	}
}

// tickSends отправляет периодические кадры: позицию игрока и пульс.
func (e *Engine) tickSends() {
	if e.tick%inputSendEvery == 0 {
		e.seq++
		input := &protocol.PlayerInput{
			Seq: e.seq,
			Pos: protocol.Vec3{X: e.self.Position.X, Y: e.self.Position.Y, Z: e.self.Position.Z},
			Vel: protocol.Vec3{X: e.self.Velocity.X, Y: e.self.Velocity.Y, Z: e.self.Velocity.Z},
		}
		if err := e.conn.SendUnreliable(protocol.Encode(input)); err != nil {
			e.log.Debugw("failed to send player input", "error", err)
		}
	}
	if e.tick%heartbeatEvery == 0 {
		if err := e.conn.SendUnreliable(protocol.Encode(&protocol.Heartbeat{})); err != nil {
			e.log.Debugw("failed to send heartbeat", "error", err)
		}
	}
}

func (e *Engine) sendBye(reason string) {
	_ = e.conn.SendReliable(protocol.Encode(&protocol.Disconnect{Reason: reason}), true)
}

func (e *Engine) pushMessage(msg string) {
	e.messages = append(e.messages, msg)
	if len(e.messages) > maxMessages {
		e.messages = e.messages[len(e.messages)-maxMessages:]
	}
}
