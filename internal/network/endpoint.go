// Package network реализует сетевой слой движка: идентификацию пиров,
// глобальный QUIC-контекст и каналы с разной надёжностью доставки.
package network

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// Endpoint — сетевая идентичность пира: числовой IPv4-адрес и порт.
// Равенство и хеш определяются только числовыми полями, никогда
// текстовым представлением, поэтому Endpoint стабилен как ключ карты.
type Endpoint struct {
	Addr uint32
	Port uint16
}

// EndpointFromUDPAddr строит Endpoint из адреса UDP-пакета.
func EndpointFromUDPAddr(addr *net.UDPAddr) (Endpoint, error) {
	return endpointFromIP(addr.IP, addr.Port)
}

// EndpointFromNetAddr строит Endpoint из произвольного net.Addr
// (например, RemoteAddr QUIC-соединения).
func EndpointFromNetAddr(addr net.Addr) (Endpoint, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return endpointFromIP(a.IP, a.Port)
	case *net.TCPAddr:
		return endpointFromIP(a.IP, a.Port)
	default:
		return ParseEndpoint(addr.String())
	}
}

// ParseEndpoint разбирает строку вида "host:port". Имя хоста
// разрешается в IPv4; результат зависит только от числовых значений.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("неверный адрес %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("неверный порт %q: %w", portStr, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		addrs, err := net.LookupIP(host)
		if err != nil || len(addrs) == 0 {
			return Endpoint{}, fmt.Errorf("не удалось разрешить хост %q: %w", host, err)
		}
		// Предпочитаем IPv4-адрес
		ip = addrs[0]
		for _, a := range addrs {
			if a.To4() != nil {
				ip = a
				break
			}
		}
	}
	return endpointFromIP(ip, int(port))
}

func endpointFromIP(ip net.IP, port int) (Endpoint, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Endpoint{}, fmt.Errorf("адрес %s не является IPv4", ip)
	}
	return Endpoint{
		Addr: binary.BigEndian.Uint32(v4),
		Port: uint16(port),
	}, nil
}

// UDPAddr возвращает адрес в форме, пригодной для установления соединения.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	var ip [4]byte
	binary.BigEndian.PutUint32(ip[:], e.Addr)
	return &net.UDPAddr{IP: net.IPv4(ip[0], ip[1], ip[2], ip[3]), Port: int(e.Port)}
}

// String возвращает каноническое текстовое представление для логов.
func (e Endpoint) String() string {
	var ip [4]byte
	binary.BigEndian.PutUint32(ip[:], e.Addr)
	return fmt.Sprintf("%d.%d.%d.%d:%d", ip[0], ip[1], ip[2], ip[3], e.Port)
}
