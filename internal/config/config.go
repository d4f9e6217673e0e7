// Package config читает файл настроек и аргументы запуска.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Пределы числа подключений для режима сервера
const (
	MinConnections     = 2
	MaxConnections     = 16
	DefaultConnections = 4
)

// Mode — режим запуска движка.
type Mode int

const (
	// ModeLocalTest — локальный тест: один сервер и два клиента.
	ModeLocalTest Mode = iota
	// ModeServer — только сервер.
	ModeServer
	// ModeClient — только клиент.
	ModeClient
)

// ClientOptions — настройки клиента и окна.
type ClientOptions struct {
	Fullscreen bool
	WinWidth   int
	WinHeight  int
	FpsCapped  bool
	Fps        int
	Fov        int
	Skin       string
}

// ServerOptions — настройки сервера.
type ServerOptions struct {
	MaxConnections int
	WorldHeight    int32 // высота мира в секциях
	WorldSize      int32 // размер мира в чанках
}

// DefaultAddr — адрес сервера по умолчанию.
const DefaultAddr = "127.0.0.1:25560"

// Config объединяет настройки клиента и сервера.
type Config struct {
	Mode   Mode
	Addr   string // адрес сервера (слушателя либо подключения)
	Server ServerOptions
	Client ClientOptions
}

// Default возвращает конфигурацию со встроенными значениями.
func Default() Config {
	return Config{
		Mode: ModeLocalTest,
		Addr: DefaultAddr,
		Server: ServerOptions{
			MaxConnections: DefaultConnections,
			WorldHeight:    4,
			WorldSize:      8,
		},
		Client: ClientOptions{
			Fullscreen: false,
			WinWidth:   1280,
			WinHeight:  720,
			FpsCapped:  true,
			Fps:        60,
			Fov:        65,
			Skin:       "default",
		},
	}
}

// LoadFile читает файл настроек поверх значений по умолчанию.
// Отсутствие файла не является ошибкой.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("открытие файла настроек: %w", err)
	}
	defer f.Close()

	if err := parse(f, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parse разбирает поток пар KEY VALUE, разделённых пробельными символами.
// Нераспознанные ключи пропускаются, некорректные значения оставляют
// значение по умолчанию.
func parse(r io.Reader, cfg *Config) error {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	for {
		key, ok := next()
		if !ok {
			break
		}

		switch key {
		case "FULLSCREEN":
			if v, ok := next(); ok {
				cfg.Client.Fullscreen = v == "1" || v == "true"
			}
		case "WIN_WIDTH":
			readInt(next, &cfg.Client.WinWidth)
		case "WIN_HEIGHT":
			readInt(next, &cfg.Client.WinHeight)
		case "FPS_CAPPED":
			if v, ok := next(); ok {
				cfg.Client.FpsCapped = v == "1" || v == "true"
			}
		case "FPS":
			readInt(next, &cfg.Client.Fps)
		case "FOV":
			readInt(next, &cfg.Client.Fov)
		case "SKIN":
			if v, ok := next(); ok {
				cfg.Client.Skin = v
			}
		case "WORLD_HEIGHT":
			readInt32(next, &cfg.Server.WorldHeight)
		case "WORLD_SIZE":
			readInt32(next, &cfg.Server.WorldSize)
		default:
			// Незнакомый токен игнорируем
		}
	}
	return sc.Err()
}

func readInt(next func() (string, bool), dst *int) {
	v, ok := next()
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func readInt32(next func() (string, bool), dst *int32) {
	v, ok := next()
	if !ok {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 32); err == nil {
		*dst = int32(n)
	}
}

// ParseError описывает некорректное значение аргумента запуска.
type ParseError struct {
	Flag   string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("флаг %s: значение %q: %s", e.Flag, e.Value, e.Reason)
}

// ParseConnectionCount разбирает значение флага -server. Значение вне
// диапазона [2,16] или нечисловое возвращает ошибку; решение о значении
// по умолчанию принимает вызывающая сторона.
func ParseConnectionCount(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ParseError{Flag: "-server", Value: value, Reason: "не число"}
	}
	if n < MinConnections {
		return 0, &ParseError{Flag: "-server", Value: value,
			Reason: fmt.Sprintf("минимум подключений %d", MinConnections)}
	}
	if n > MaxConnections {
		return 0, &ParseError{Flag: "-server", Value: value,
			Reason: fmt.Sprintf("максимум подключений %d", MaxConnections)}
	}
	return n, nil
}

// ParseArgs применяет аргументы запуска к конфигурации. Ошибочные
// значения не прерывают запуск: применяется значение по умолчанию,
// причина пишется в лог.
func ParseArgs(cfg *Config, args []string, log *zap.SugaredLogger) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-server":
			cfg.Mode = ModeServer
			value := ""
			if i+1 < len(args) {
				i++
				value = args[i]
			}
			n, err := ParseConnectionCount(value)
			if err != nil {
				cfg.Server.MaxConnections = DefaultConnections
				log.Warnw("unable to set max connections, using default",
					"default", DefaultConnections, "reason", err)
				continue
			}
			cfg.Server.MaxConnections = n
		case "-client":
			cfg.Mode = ModeClient
		case "-addr":
			if i+1 < len(args) {
				i++
				cfg.Addr = args[i]
			}
		case "-skin":
			if i+1 < len(args) {
				i++
				cfg.Client.Skin = args[i]
			}
		}
	}
}
