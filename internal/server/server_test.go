package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer запускает Serve на TCP-листенере с эфемерным портом
func startTestServer(t *testing.T, cfg Config) (*Server, net.Addr, context.CancelFunc, chan error) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, l)
	}()

	return srv, l.Addr(), cancel, done
}

// readResponse подключается к серверу и читает ответ до закрытия соединения
func readResponse(t *testing.T, addr net.Addr) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)

	return string(data)
}

func TestServeSendsSingleIPAndCloses(t *testing.T) {
	_, addr, cancel, done := startTestServer(t, Config{WriteTimeout: time.Second})
	defer cancel()

	// Ответ читается до EOF: конец сообщения - закрытие соединения
	body := readResponse(t, addr)

	ip := net.ParseIP(body)
	require.NotNil(t, ip, "Response should be exactly one valid IP, got %q", body)
	assert.NotNil(t, ip.To4(), "Response should be IPv4")

	cancel()
	waitServe(t, done)
}

func TestServeSequentialClients(t *testing.T) {
	_, addr, cancel, done := startTestServer(t, Config{WriteTimeout: time.Second})
	defer cancel()

	// Второй клиент ждет в очереди ОС, пока первый не будет обслужен.
	// Оба должны получить целый ответ без перемешивания.
	first := readResponse(t, addr)
	second := readResponse(t, addr)

	require.NotNil(t, net.ParseIP(first))
	require.NotNil(t, net.ParseIP(second))
	assert.Equal(t, first, second)

	cancel()
	waitServe(t, done)
}

func TestServeStopsOnCancel(t *testing.T) {
	_, _, cancel, done := startTestServer(t, Config{})

	cancel()
	waitServe(t, done)
}

func TestServeSurvivesDisconnectedClient(t *testing.T) {
	_, addr, cancel, done := startTestServer(t, Config{WriteTimeout: time.Second})
	defer cancel()

	// Клиент обрывает соединение, не читая ответ
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// Сервер должен продолжить обслуживать следующих клиентов
	body := readResponse(t, addr)
	assert.NotNil(t, net.ParseIP(body))

	cancel()
	waitServe(t, done)
}

func TestStats(t *testing.T) {
	srv, addr, cancel, done := startTestServer(t, Config{WriteTimeout: time.Second})
	defer cancel()

	body := readResponse(t, addr)
	require.NotNil(t, net.ParseIP(body))

	// Счетчики обновляются после успешной отправки
	assert.Eventually(t, func() bool {
		return srv.Stats().ConnectionsServed == 1
	}, 2*time.Second, 10*time.Millisecond)

	stats := srv.Stats()
	assert.Equal(t, body, stats.LastIP)
	assert.NotEmpty(t, stats.LastSource)
	assert.False(t, stats.StartedAt.IsZero())

	cancel()
	waitServe(t, done)
}

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(Config{})
	assert.Equal(t, uint32(DefaultPort), srv.cfg.Port)
}

// waitServe ждет завершения Serve и проверяет, что после отмены контекста
// ошибки нет
func waitServe(t *testing.T, done chan error) {
	t.Helper()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after context cancellation")
	}
}
