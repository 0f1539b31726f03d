package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"

	"github.com/25x8/vsock-ip-reporter/internal/logger"
	"github.com/25x8/vsock-ip-reporter/internal/resolver"
)

// Значения по умолчанию для Config.
const (
	DefaultPort         = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// Config - настройки vsock-сервера
type Config struct {
	// Port - AF_VSOCK порт, на котором слушает сервер.
	// Привязка всегда идет к VMADDR_CID_ANY.
	Port uint32

	// ProbeAddr - внешний адрес, по которому определяется исходящий интерфейс
	ProbeAddr string

	// WriteTimeout ограничивает отправку ответа одному клиенту,
	// чтобы зависший клиент не остановил обслуживание остальных.
	// Ноль отключает таймаут.
	WriteTimeout time.Duration
}

// Stats - счетчики сервера для статусного эндпоинта
type Stats struct {
	ConnectionsServed int64
	LastIP            string
	LastSource        string
	StartedAt         time.Time
}

// Server принимает vsock-соединения строго по одному и отправляет каждому
// клиенту IPv4-адрес гостя. Ответ не содержит разделителей и префикса длины:
// конец сообщения обозначается закрытием соединения.
type Server struct {
	cfg      Config
	resolver *resolver.Resolver

	mu      sync.Mutex
	served  int64
	last    resolver.Result
	started time.Time
}

// New - конструктор для Server
func New(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return &Server{
		cfg:      cfg,
		resolver: resolver.NewResolver(cfg.ProbeAddr),
	}
}

// ListenAndServe открывает vsock-листенер и обслуживает соединения до отмены
// контекста. Ошибка привязки фатальна и возвращается сразу, без повторов.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := vsock.Listen(s.cfg.Port, nil)
	if err != nil {
		return fmt.Errorf("vsock listen on port %d: %w", s.cfg.Port, err)
	}

	logger.Log.Info("VSOCK server listening", zap.Uint32("port", s.cfg.Port))
	return s.Serve(ctx, l)
}

// Serve обслуживает соединения из переданного листенера по одному.
// Листенер может быть любым: тесты передают сюда обычный TCP-листенер
// на эфемерном порту. После отмены контекста возвращает nil.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	// Закрытие листенера снимает блокировку с Accept при отмене контекста
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-done:
		}
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		logger.Log.Info("Connection accepted",
			zap.String("peer", conn.RemoteAddr().String()),
		)

		// Ошибка одного клиента не должна останавливать сервер
		if err := s.serveConn(ctx, conn); err != nil {
			logger.Log.Warn("Failed to serve connection",
				zap.String("peer", conn.RemoteAddr().String()),
				zap.Error(err),
			)
		}
	}
}

// serveConn отправляет клиенту адрес. Соединение закрывается на любом исходе.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	res := s.resolver.Resolve(ctx)

	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := conn.Write([]byte(res.IP)); err != nil {
		return fmt.Errorf("send address: %w", err)
	}

	s.mu.Lock()
	s.served++
	s.last = res
	s.mu.Unlock()

	return nil
}

// Stats возвращает снимок счетчиков сервера
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		ConnectionsServed: s.served,
		LastIP:            s.last.IP,
		LastSource:        s.last.Source,
		StartedAt:         s.started,
	}
}
