package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/quic-go/quic-go"
)

// sendQueueSize — максимальное число кадров в исходящих очередях соединения.
const sendQueueSize = 1024

// maxFrameSize ограничивает размер одного надёжного кадра.
const maxFrameSize = 1 << 20

// Ошибки транспорта
var (
	ErrConnClosed    = errors.New("соединение закрыто")
	ErrFrameTooLarge = errors.New("кадр превышает допустимый размер")
)

// Frame — один принятый кадр. Reliable показывает, по какому каналу
// он пришёл: надёжный упорядоченный поток или ненадёжная датаграмма.
type Frame struct {
	Data     []byte
	Reliable bool
}

// Conn — одно соединение с пиром, предоставляющее два канала:
// надёжный упорядоченный (QUIC-поток) для управляющих сообщений и
// авторитетных изменений состояния, и ненадёжный неупорядоченный
// (QUIC-датаграммы) для частых обновлений, устойчивых к потере.
type Conn struct {
	conn     quic.Connection
	stream   quic.Stream
	endpoint Endpoint

	// Очереди исходящих надёжных кадров: управляющие сообщения
	// обгоняют объёмные данные чанков.
	highQueue   chan []byte
	normalQueue chan []byte

	incoming chan Frame
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newConn(qc quic.Connection, stream quic.Stream) (*Conn, error) {
	ep, err := EndpointFromNetAddr(qc.RemoteAddr())
	if err != nil {
		return nil, fmt.Errorf("не удалось определить endpoint пира: %w", err)
	}
	c := &Conn{
		conn:        qc,
		stream:      stream,
		endpoint:    ep,
		highQueue:   make(chan []byte, sendQueueSize),
		normalQueue: make(chan []byte, sendQueueSize),
		incoming:    make(chan Frame, sendQueueSize),
		done:        make(chan struct{}),
	}
	go c.writePump()
	go c.streamReadPump()
	go c.datagramReadPump()
	return c, nil
}

// Endpoint возвращает сетевую идентичность пира.
func (c *Conn) Endpoint() Endpoint {
	return c.endpoint
}

// Incoming возвращает канал принятых кадров. Канал закрывается при
// разрыве соединения; после закрытия причина доступна через Err.
func (c *Conn) Incoming() <-chan Frame {
	return c.incoming
}

// Err возвращает причину закрытия соединения, если оно закрыто.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

// SendReliable ставит кадр в надёжную очередь. Кадры с high=true
// обгоняют обычные. При переполнении обычной очереди кадр
// отбрасывается и возвращается ошибка; высокоприоритетные блокируют.
func (c *Conn) SendReliable(data []byte, high bool) error {
	if len(data) > maxFrameSize {
		return ErrFrameTooLarge
	}
	if high {
		select {
		case c.highQueue <- data:
			return nil
		case <-c.done:
			return ErrConnClosed
		}
	}
	select {
	case c.normalQueue <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return fmt.Errorf("очередь отправки переполнена: %w", ErrConnClosed)
	}
}

// SendUnreliable отправляет кадр датаграммой. Доставка и порядок
// не гарантируются; слишком большие кадры молча отбрасывать нельзя,
// поэтому ошибка возвращается вызывающему.
func (c *Conn) SendUnreliable(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	return c.conn.SendDatagram(data)
}

// Close закрывает соединение с кодом приложения и причиной.
// Повторные вызовы безопасны.
func (c *Conn) Close(code uint64, reason string) error {
	c.shutdown(fmt.Errorf("%w: %s", ErrConnClosed, reason))
	return c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		close(c.done)
	})
}

// writePump последовательно пишет кадры в надёжный поток,
// предпочитая высокоприоритетную очередь (манера очередей clientConn).
func (c *Conn) writePump() {
	var lenBuf [4]byte
	for {
		var data []byte
		select {
		case <-c.done:
			return
		case data = <-c.highQueue:
		default:
			select {
			case <-c.done:
				return
			case data = <-c.highQueue:
			case data = <-c.normalQueue:
			}
		}

		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
		if _, err := c.stream.Write(lenBuf[:]); err != nil {
			c.shutdown(err)
			return
		}
		if _, err := c.stream.Write(data); err != nil {
			c.shutdown(err)
			return
		}
	}
}

// streamReadPump читает кадры надёжного потока: префикс длины
// little-endian, затем полезная нагрузка.
func (c *Conn) streamReadPump() {
	defer close(c.incoming)

	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(c.stream, lenBuf[:]); err != nil {
			c.shutdown(err)
			return
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n > maxFrameSize {
			c.shutdown(ErrFrameTooLarge)
			return
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(c.stream, data); err != nil {
			c.shutdown(err)
			return
		}
		select {
		case c.incoming <- Frame{Data: data, Reliable: true}:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) datagramReadPump() {
	ctx := c.conn.Context()
	for {
		data, err := c.conn.ReceiveDatagram(ctx)
		if err != nil {
			c.shutdown(err)
			return
		}
		select {
		case c.incoming <- Frame{Data: data, Reliable: false}:
		case <-c.done:
			return
		default:
			// Приёмник не успевает: ненадёжные кадры можно терять
		}
	}
}

// Listener принимает входящие соединения на стороне сервера.
type Listener struct {
	listener *quic.Listener
	endpoint Endpoint
}

// Listen открывает слушателя на addr (например, ":5555").
func (c *Context) Listen(addr string) (*Listener, error) {
	tr, err := c.newTransport(addr)
	if err != nil {
		return nil, err
	}
	ln, err := tr.Listen(c.tlsServer, c.quicConf)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть слушателя %s: %w", addr, err)
	}
	ep, err := EndpointFromNetAddr(ln.Addr())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return &Listener{listener: ln, endpoint: ep}, nil
}

// Endpoint возвращает локальный адрес слушателя.
func (l *Listener) Endpoint() Endpoint {
	return l.endpoint
}

// Accept ждёт следующее соединение. Сервер принимает надёжный поток,
// который клиент открывает при рукопожатии.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	qc, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := qc.AcceptStream(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "no control stream")
		return nil, err
	}
	return newConn(qc, stream)
}

// Close останавливает приём новых соединений.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Dial устанавливает соединение с сервером и открывает надёжный поток.
func (c *Context) Dial(ctx context.Context, serverAddr string) (*Conn, error) {
	tr, err := c.newTransport(":0")
	if err != nil {
		return nil, err
	}
	ep, err := ParseEndpoint(serverAddr)
	if err != nil {
		return nil, err
	}
	qc, err := tr.Dial(ctx, ep.UDPAddr(), c.tlsClient, c.quicConf)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к %s: %w", serverAddr, err)
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "cannot open control stream")
		return nil, err
	}
	return newConn(qc, stream)
}
