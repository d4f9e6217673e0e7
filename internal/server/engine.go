// Package server реализует авторитетный серверный движок: приём
// подключений, таблицу сессий, применение ввода игроков и рассылку
// изменений мира.
package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/engine"
	"github.com/annelo/go-voxel-engine/internal/entity"
	"github.com/annelo/go-voxel-engine/internal/gameloop"
	"github.com/annelo/go-voxel-engine/internal/network"
	"github.com/annelo/go-voxel-engine/internal/protocol"
	"github.com/annelo/go-voxel-engine/internal/session"
	"github.com/annelo/go-voxel-engine/internal/storage"
	"github.com/annelo/go-voxel-engine/internal/world"
	"github.com/annelo/go-voxel-engine/internal/worldgen"
)

const (
	// TickInterval — длительность одного серверного тика (20 TPS).
	TickInterval = 50 * time.Millisecond

	// DefaultJoinWait — сколько сервер ждёт подключений, прежде чем
	// завершиться за ненадобностью.
	DefaultJoinWait = 8 * time.Second

	inboxSize       = 4096
	inboxDrainLimit = 1024

	// Позиции рассылаются каждый второй тик (10 раз в секунду).
	positionBroadcastEvery = 2

	// Пульс раз в секунду, чтобы тихий сервер не выглядел умершим.
	heartbeatEvery = 20

	// Дальше этого расстояния (в чанках, по X и Z) позиции сущностей
	// клиенту не рассылаются.
	positionBroadcastRadius int32 = 8
)

// Принятое от клиента сообщение. msg == nil означает разрыв соединения.
type inbound struct {
	ep  network.Endpoint
	msg protocol.Message
}

// Engine — серверный движок. Всё состояние мира и сессий мутирует
// только тик-горутина; горутины чтения соединений лишь декодируют
// кадры и складывают их в общий входной канал.
type Engine struct {
	cfg      config.ServerOptions
	log      *zap.SugaredLogger
	netctx   *network.Context
	store    storage.WorldStorage // nil — без сохранения на диск
	gen      *worldgen.Generator
	src      *sectionSource
	world    *world.World
	sessions *session.Table
	loop     *gameloop.Loop

	addr     string
	joinWait time.Duration
	timeout  time.Duration

	inbox    chan inbound
	links    chan network.Link
	stop     chan struct{}
	stopOnce sync.Once

	tick uint64
}

// Персистентный загрузчик: сначала хранилище, затем генератор.
type sectionSource struct {
	gen   *worldgen.Generator
	store storage.WorldStorage
}

func (l *sectionSource) RequestSection(pos chunk.Position) (*chunk.Section, error) {
	if l.store != nil {
		if s, err := l.store.LoadSection(context.Background(), pos); err == nil {
			return s, nil
		}
	}
	return l.gen.GenerateSection(pos), nil
}

// New создаёт серверный движок. store может быть nil.
func New(cfg config.ServerOptions, netctx *network.Context, store storage.WorldStorage,
	log *zap.SugaredLogger, addr string, joinWait time.Duration) *Engine {

	seed := int64(1)
	if store != nil {
		if info, err := store.LoadWorld(context.Background()); err == nil {
			seed = info.Seed
		}
	}

	gen := worldgen.NewGenerator(seed, cfg.WorldHeight)
	src := &sectionSource{gen: gen, store: store}
	w := world.New(src, cfg.WorldSize, cfg.WorldHeight, 0)

	e := &Engine{
		cfg:      cfg,
		log:      log,
		netctx:   netctx,
		store:    store,
		gen:      gen,
		src:      src,
		world:    w,
		sessions: session.NewTable(),
		addr:     addr,
		joinWait: joinWait,
		timeout:  session.DefaultTimeout,
		inbox:    make(chan inbound, inboxSize),
		links:    make(chan network.Link, config.MaxConnections),
		stop:     make(chan struct{}),
	}

	e.loop = gameloop.NewLoop(TickInterval, gameloop.Dependencies{
		World: w,
		Log:   log,
		Broadcast: func(m protocol.Message, reliable bool) {
			if reliable {
				e.broadcastReliable(m, false)
			} else {
				e.broadcastUnreliable(m)
			}
		},
	}, gameloop.NewTimeSystem(), gameloop.NewGrowthSystem(seed))

	return e
}

// Stop запрашивает остановку движка.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Run запускает сервер и блокируется до завершения. Возвращаемый
// статус определяет код выхода процесса.
func (e *Engine) Run(ctx context.Context) engine.Status {
	listener, err := e.netctx.Listen(e.addr)
	if err != nil {
		e.log.Errorw("listen failed", "addr", e.addr, "error", err)
		return engine.StatusNetworkInitError
	}
	defer listener.Close()
	e.log.Infow("server listening", "endpoint", listener.Endpoint(),
		"maxConnections", e.cfg.MaxConnections)

	acceptCtx, cancelAccept := context.WithCancel(ctx)
	defer cancelAccept()
	go e.acceptLoop(acceptCtx, listener)

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	emptySince := time.Now()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.shutdown("server stopping")
			return engine.StatusExit
		case <-e.stop:
			e.shutdown("server stopping")
			return engine.StatusExit
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			e.acceptPending(now)
			e.drainInbox(now)
			e.loop.Step(ctx, dt)
			e.world.Entities.Step(float32(dt.Seconds()))
			e.reapTimeouts(now)
			e.broadcastPositions()
			if e.tick%heartbeatEvery == 0 {
				e.broadcastUnreliable(&protocol.Heartbeat{})
			}
			e.tick++

			// Сервер без клиентов завершается после окна ожидания
			if e.sessions.Len() > 0 {
				emptySince = now
			} else if now.Sub(emptySince) > e.joinWait {
				e.log.Infow("no clients within join window, shutting down",
					"joinWait", e.joinWait)
				e.shutdown("no clients")
				return engine.StatusExit
			}
		}
	}
}

// acceptLoop принимает соединения и передаёт их тик-горутине.
func (e *Engine) acceptLoop(ctx context.Context, listener *network.Listener) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		select {
		case e.links <- conn:
		case <-ctx.Done():
			_ = conn.Close(0, "server stopping")
			return
		}
	}
}

// acceptPending регистрирует новые соединения как сессии.
func (e *Engine) acceptPending(now time.Time) {
	for {
		select {
		case link := <-e.links:
			e.addLink(link, now)
		default:
			return
		}
	}
}

func (e *Engine) addLink(link network.Link, now time.Time) {
	if e.sessions.Len() >= e.cfg.MaxConnections {
		e.log.Warnw("connection refused: server full", "endpoint", link.Endpoint())
		_ = link.SendReliable(protocol.Encode(&protocol.Disconnect{Reason: "server full"}), true)
		_ = link.Close(1, "server full")
		return
	}

	s := session.New(link.Endpoint(), link, now)
	if err := e.sessions.Add(s); err != nil {
		e.log.Warnw("duplicate endpoint", "endpoint", link.Endpoint(), "error", err)
		_ = link.Close(1, "endpoint busy")
		return
	}
	e.log.Infow("client connected", "endpoint", link.Endpoint())
	go e.readLink(link)
}

// readLink декодирует кадры соединения и передаёт их тик-горутине.
// Надёжные сообщения не теряются: при заполненном входном канале
// горутина блокируется. Завершение канала кадров означает разрыв.
func (e *Engine) readLink(link network.Link) {
	for frame := range link.Incoming() {
		m, err := protocol.Decode(frame.Data)
		if err != nil {
			e.log.Debugw("bad frame", "endpoint", link.Endpoint(), "error", err)
			continue
		}
		in := inbound{ep: link.Endpoint(), msg: m}
		if frame.Reliable {
			select {
			case e.inbox <- in:
			case <-e.stop:
				return
			}
			continue
		}
		select {
		case e.inbox <- in:
		default:
			// Ненадёжные кадры можно терять под нагрузкой
		}
	}
	select {
	case e.inbox <- inbound{ep: link.Endpoint()}:
	case <-e.stop:
	}
}

// drainInbox обрабатывает ограниченную порцию входящих сообщений.
func (e *Engine) drainInbox(now time.Time) {
	for i := 0; i < inboxDrainLimit; i++ {
		select {
		case in := <-e.inbox:
			s, ok := e.sessions.Get(in.ep)
			if !ok {
				continue
			}
			if in.msg == nil {
				e.terminateSession(s, "link closed", false)
				continue
			}
			s.Touch(now)
			e.handleMessage(s, in.msg)
		default:
			return
		}
	}
}

func (e *Engine) handleMessage(s *session.Session, m protocol.Message) {
	switch msg := m.(type) {
	case *protocol.Handshake:
		e.handleHandshake(s, msg)
	case *protocol.ChunkRequest:
		e.handleChunkRequest(s, msg)
	case *protocol.BlockEdit:
		e.handleBlockEdit(s, msg)
	case *protocol.PlayerInput:
		e.handlePlayerInput(s, msg)
	case *protocol.Heartbeat:
		// Touch уже выполнен
	case *protocol.Disconnect:
		e.log.Infow("client requested disconnect",
			"endpoint", s.Endpoint(), "reason", msg.Reason)
		// Явный разрыв проходит через Disconnecting, в отличие от
		// таймаута или обрыва линка
		if err := s.BeginDisconnect(); err != nil {
			e.log.Debugw("disconnect before connect completed",
				"endpoint", s.Endpoint(), "state", s.State())
		}
		e.terminateSession(s, "client disconnect", false)
	default:
		e.log.Debugw("unexpected message from client",
			"endpoint", s.Endpoint(), "type", m.MsgType())
	}
}

func (e *Engine) handleHandshake(s *session.Session, msg *protocol.Handshake) {
	if msg.Version != protocol.Version {
		e.log.Warnw("protocol version mismatch",
			"endpoint", s.Endpoint(), "client", msg.Version, "server", protocol.Version)
		_ = s.Conn().SendReliable(protocol.Encode(
			&protocol.Disconnect{Reason: "protocol version mismatch"}), true)
		e.terminateSession(s, "version mismatch", false)
		return
	}
	if err := s.Connect(); err != nil {
		// Повторное рукопожатие игнорируем
		return
	}

	spawn := e.spawnPoint()
	ep := s.Endpoint()
	ent := &entity.Entity{
		ID:       entity.NewID(),
		Kind:     entity.KindPlayer,
		Name:     msg.Name,
		Skin:     msg.Skin,
		Position: spawn,
		Owner:    &ep,
	}

	// Восстанавливаем сохранённую позицию, если игрок уже бывал на сервере
	if e.store != nil && msg.Name != "" {
		if ps, err := e.store.LoadPlayerState(context.Background(), msg.Name); err == nil {
			ent.Position = ps.Position
		}
	}

	if err := e.world.Entities.Add(ent); err != nil {
		e.log.Errorw("entity add failed", "error", err)
		e.terminateSession(s, "internal error", true)
		return
	}
	s.EntityID = ent.ID
	s.Name = msg.Name
	s.Skin = msg.Skin

	ack := &protocol.HandshakeAck{
		EntityID:    ent.ID,
		Spawn:       protocol.Vec3{X: ent.Position.X, Y: ent.Position.Y, Z: ent.Position.Z},
		Seed:        e.gen.Seed(),
		WorldHeight: e.cfg.WorldHeight,
		WorldSize:   e.cfg.WorldSize,
	}
	_ = s.Conn().SendReliable(protocol.Encode(ack), true)

	// Новому клиенту — все существующие сущности
	e.world.Entities.ForEach(func(other *entity.Entity) {
		if other.ID == ent.ID {
			return
		}
		_ = s.Conn().SendReliable(protocol.Encode(spawnMessage(other)), false)
	})

	// Остальным — нового игрока
	e.broadcastReliableExcept(spawnMessage(ent), s.Endpoint())
	e.log.Infow("player joined", "endpoint", s.Endpoint(),
		"entity", ent.ID, "name", msg.Name)
}

func spawnMessage(ent *entity.Entity) *protocol.EntitySpawn {
	return &protocol.EntitySpawn{
		EntityID: ent.ID,
		Kind:     uint8(ent.Kind),
		Name:     ent.Name,
		Skin:     ent.Skin,
		Pos:      protocol.Vec3{X: ent.Position.X, Y: ent.Position.Y, Z: ent.Position.Z},
	}
}

// spawnPoint выбирает точку появления в центре мира над поверхностью.
func (e *Engine) spawnPoint() entity.Vec3 {
	wx := e.cfg.WorldSize * chunk.Size / 2
	wz := wx
	wy := e.gen.SurfaceHeight(wx, wz) + 2
	return entity.Vec3{X: float32(wx), Y: float32(wy), Z: float32(wz)}
}

// inBounds проверяет, принадлежит ли секция миру.
func (e *Engine) inBounds(pos chunk.Position) bool {
	return pos.X >= 0 && pos.X < e.cfg.WorldSize &&
		pos.Z >= 0 && pos.Z < e.cfg.WorldSize &&
		pos.Y >= 0 && pos.Y < e.cfg.WorldHeight
}

// section возвращает секцию, лениво загружая или генерируя её.
func (e *Engine) section(pos chunk.Position) *chunk.Section {
	if s, ok := e.world.Section(pos); ok {
		return s
	}
	s, err := e.src.RequestSection(pos)
	if err != nil || s == nil {
		return chunk.NewSection(pos)
	}
	e.world.InsertSection(s)
	s.ClearDirty()
	return s
}

func (e *Engine) handleChunkRequest(s *session.Session, msg *protocol.ChunkRequest) {
	var sec *chunk.Section
	if e.inBounds(msg.Pos) {
		sec = e.section(msg.Pos)
	} else {
		// За границами мира всегда пусто
		sec = chunk.NewSection(msg.Pos)
	}

	payload := sec.Serialize()
	if err := s.Conn().SendReliable(protocol.Encode(&protocol.ChunkData{Payload: payload}), false); err != nil {
		e.log.Debugw("chunk send failed", "endpoint", s.Endpoint(), "error", err)
	}
}

func (e *Engine) handleBlockEdit(s *session.Session, msg *protocol.BlockEdit) {
	pos := chunk.WorldToChunk(msg.X, msg.Y, msg.Z)
	if !e.inBounds(pos) {
		return
	}
	// Лениво поднимаем секцию, чтобы правка легла в авторитетный мир
	sec := e.section(pos)
	if !e.world.SetBlock(msg.X, msg.Y, msg.Z, msg.Block) {
		return
	}

	if e.store != nil {
		if err := e.store.SaveSection(context.Background(), sec); err != nil {
			e.log.Errorw("section save failed", "pos", pos, "error", err)
		}
	}

	// Рассылаем всем, включая автора: подтверждение авторитетно
	e.broadcastReliable(msg, false)
}

func (e *Engine) handlePlayerInput(s *session.Session, msg *protocol.PlayerInput) {
	ent, ok := e.world.Entities.Get(s.EntityID)
	if !ok {
		return
	}
	// Устаревший или повторный ввод отбрасывается
	if protocol.StaleSeq(msg.Seq, ent.LastSeq) {
		return
	}
	ent.LastSeq = msg.Seq
	ent.Position = entity.Vec3{X: msg.Pos.X, Y: msg.Pos.Y, Z: msg.Pos.Z}
	ent.Velocity = entity.Vec3{X: msg.Vel.X, Y: msg.Vel.Y, Z: msg.Vel.Z}
}

// reapTimeouts завершает просроченные сессии. Снос каждой выполняется
// ровно один раз, сколько бы тиков подряд она ни числилась мёртвой.
func (e *Engine) reapTimeouts(now time.Time) {
	for _, s := range e.sessions.Expired(now, e.timeout) {
		e.log.Infow("session timed out", "endpoint", s.Endpoint())
		e.terminateSession(s, "timeout", true)
	}
}

// terminateSession переводит сессию в терминальное состояние и сносит
// её ресурсы. notify определяет, посылать ли клиенту Disconnect.
func (e *Engine) terminateSession(s *session.Session, reason string, notify bool) {
	if !s.Terminate() {
		return
	}

	if notify {
		_ = s.Conn().SendReliable(protocol.Encode(&protocol.Disconnect{Reason: reason}), true)
	}

	// Сохраняем позицию игрока до удаления сущности
	if e.store != nil && s.Name != "" {
		if ent, ok := e.world.Entities.Get(s.EntityID); ok {
			_ = e.store.SavePlayerState(context.Background(), &storage.PlayerState{
				ID:       s.Name,
				Name:     s.Name,
				Skin:     s.Skin,
				Position: ent.Position,
				LastSeen: time.Now().Unix(),
			})
		}
	}

	removed := e.world.Entities.RemoveOwned(s.Endpoint())
	_ = s.Conn().Close(0, reason)
	e.sessions.Remove(s.Endpoint())

	for _, id := range removed {
		e.broadcastReliable(&protocol.EntityDespawn{EntityID: id}, false)
	}
	e.log.Infow("session terminated", "endpoint", s.Endpoint(),
		"reason", reason, "entities", len(removed))
}

// broadcastReliable шлёт сообщение всем подключённым сессиям.
func (e *Engine) broadcastReliable(m protocol.Message, high bool) {
	data := protocol.Encode(m)
	e.sessions.ForEach(func(s *session.Session) {
		if s.State() != session.StateConnected {
			return
		}
		if err := s.Conn().SendReliable(data, high); err != nil {
			e.log.Debugw("broadcast failed", "endpoint", s.Endpoint(), "error", err)
		}
	})
}

func (e *Engine) broadcastReliableExcept(m protocol.Message, except network.Endpoint) {
	data := protocol.Encode(m)
	e.sessions.ForEach(func(s *session.Session) {
		if s.State() != session.StateConnected || s.Endpoint() == except {
			return
		}
		_ = s.Conn().SendReliable(data, false)
	})
}

func (e *Engine) broadcastUnreliable(m protocol.Message) {
	data := protocol.Encode(m)
	e.sessions.ForEach(func(s *session.Session) {
		if s.State() != session.StateConnected {
			return
		}
		_ = s.Conn().SendUnreliable(data)
	})
}

// broadcastPositions рассылает позиции сущностей ненадёжным каналом.
// Каждый кадр получает следующий номер последовательности сессии, по
// которому приёмник отбрасывает устаревшие обновления.
func (e *Engine) broadcastPositions() {
	if e.tick%positionBroadcastEvery != 0 {
		return
	}
	e.sessions.ForEach(func(s *session.Session) {
		if s.State() != session.StateConnected {
			return
		}
		var center chunk.Position
		if own, ok := e.world.Entities.Get(s.EntityID); ok {
			center = chunk.WorldToChunk(
				int32(own.Position.X), int32(own.Position.Y), int32(own.Position.Z))
		}
		e.world.Entities.ForEach(func(ent *entity.Entity) {
			if ent.ID == s.EntityID {
				return // собственную позицию клиент знает сам
			}
			at := chunk.WorldToChunk(
				int32(ent.Position.X), int32(ent.Position.Y), int32(ent.Position.Z))
			flat := chunk.Position{X: at.X, Z: at.Z}
			if flat.ChebyshevDistance(chunk.Position{X: center.X, Z: center.Z}) > positionBroadcastRadius {
				return // слишком далеко, чтобы быть видимым
			}
			m := &protocol.EntityPosition{
				EntityID: ent.ID,
				Seq:      s.NextSeq(),
				Pos:      protocol.Vec3{X: ent.Position.X, Y: ent.Position.Y, Z: ent.Position.Z},
				Vel:      protocol.Vec3{X: ent.Velocity.X, Y: ent.Velocity.Y, Z: ent.Velocity.Z},
			}
			_ = s.Conn().SendUnreliable(protocol.Encode(m))
		})
	})
}

// shutdown уведомляет клиентов, сохраняет мир и сносит все сессии.
func (e *Engine) shutdown(reason string) {
	e.sessions.ForEach(func(s *session.Session) {
		e.terminateSession(s, reason, true)
	})

	if e.store != nil {
		// Немешаемые секции сервера остаются помеченными после правок:
		// сохраняем их и снимаем флаг
		e.world.ForEachSection(func(sec *chunk.Section) {
			if !sec.IsDirty() {
				return
			}
			if err := e.store.SaveSection(context.Background(), sec); err != nil {
				e.log.Errorw("section save failed on shutdown",
					"pos", sec.Pos(), "error", err)
				return
			}
			sec.ClearDirty()
		})
	}
	e.log.Infow("server stopped", "reason", reason)
}
