package network

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// alpnProtocol — идентификатор протокола движка при QUIC-рукопожатии.
const alpnProtocol = "voxel-engine/1"

// Ошибки жизненного цикла сетевого контекста
var (
	ErrAlreadyInitialized = errors.New("сетевой контекст уже инициализирован")
	ErrContextReleased    = errors.New("сетевой контекст освобождён")
)

var (
	activeMu sync.Mutex
	active   bool
)

// Context — глобальный сетевой контекст процесса. Должен быть
// инициализирован ровно один раз до создания любых Transport и
// освобождён ровно один раз при завершении — на каждом пути выхода,
// включая ранние ошибки.
type Context struct {
	tlsServer *tls.Config
	tlsClient *tls.Config
	quicConf  *quic.Config

	mu         sync.Mutex
	transports []*quic.Transport
	sockets    []net.PacketConn
	released   bool
}

// Init инициализирует глобальный сетевой контекст. Повторный вызов до
// Release возвращает ErrAlreadyInitialized.
func Init() (*Context, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active {
		return nil, ErrAlreadyInitialized
	}

	serverTLS, err := selfSignedTLS()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать TLS-конфигурацию: %w", err)
	}

	ctx := &Context{
		tlsServer: serverTLS,
		tlsClient: &tls.Config{
			// Локальная игра использует самоподписанный сертификат
			InsecureSkipVerify: true,
			NextProtos:         []string{alpnProtocol},
		},
		quicConf: &quic.Config{
			EnableDatagrams: true,
			MaxIdleTimeout:  15 * time.Second,
		},
	}
	active = true
	return ctx, nil
}

// Release освобождает контекст и закрывает все созданные им сокеты.
// Повторные вызовы безопасны и ничего не делают.
func (c *Context) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	transports := c.transports
	sockets := c.sockets
	c.transports = nil
	c.sockets = nil
	c.mu.Unlock()

	for _, t := range transports {
		_ = t.Close()
	}
	for _, s := range sockets {
		_ = s.Close()
	}

	activeMu.Lock()
	active = false
	activeMu.Unlock()
}

// newTransport создаёт UDP-сокет и QUIC-транспорт поверх него,
// регистрируя оба для освобождения в Release.
func (c *Context) newTransport(addr string) (*quic.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, ErrContextReleased
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("неверный адрес %q: %w", addr, err)
	}
	sock, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть UDP-сокет %s: %w", addr, err)
	}

	tr := &quic.Transport{Conn: sock}
	c.transports = append(c.transports, tr)
	c.sockets = append(c.sockets, sock)
	return tr, nil
}

// selfSignedTLS генерирует одноразовый самоподписанный сертификат
// для локальных и тестовых запусков.
func selfSignedTLS() (*tls.Config, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProtocol},
	}, nil
}
