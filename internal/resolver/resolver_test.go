package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReturnsValidIPv4(t *testing.T) {
	r := NewResolver("")
	res := r.Resolve(context.Background())

	// Проверяем, что вернулся синтаксически корректный IPv4
	ip := net.ParseIP(res.IP)
	require.NotNil(t, ip, "Returned IP should be valid")
	assert.NotNil(t, ip.To4(), "Returned IP should be IPv4")
	assert.NotEmpty(t, res.Source)

	t.Logf("Resolved IP: %s (source: %s)", res.IP, res.Source)
}

func TestResolveProbeFailureFallsBack(t *testing.T) {
	// Заведомо некорректный адрес пробы: ошибка должна поглощаться,
	// а не возвращаться наружу
	r := NewResolver("256.0.0.1:80")
	r.Timeout = time.Second

	res := r.Resolve(context.Background())

	assert.True(t, res.Fallback())
	ip := net.ParseIP(res.IP)
	require.NotNil(t, ip)
	assert.NotNil(t, ip.To4())
}

func TestResolveWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Даже с отмененным контекстом результат должен быть
	res := NewResolver("").Resolve(ctx)
	assert.NotEmpty(t, res.IP)
}

func TestResolveNeverLeaksSockets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket leak test in short mode")
	}

	// Если сокет пробы не закрывается, 1000 вызовов исчерпают дескрипторы
	r := NewResolver("")
	for i := 0; i < 1000; i++ {
		res := r.Resolve(context.Background())
		require.NotEmpty(t, res.IP)
	}
}

func TestResultFallback(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		fallback bool
	}{
		{"Probe source", SourceProbe, false},
		{"Interfaces source", SourceInterfaces, true},
		{"Loopback source", SourceLoopback, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Result{IP: LoopbackIP, Source: tt.source}
			assert.Equal(t, tt.fallback, res.Fallback())
		})
	}
}

func TestParseInterfaceAddr(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{"CIDR notation", "192.168.1.42/24", "192.168.1.42"},
		{"Bare address", "10.0.0.5", "10.0.0.5"},
		{"Loopback rejected", "127.0.0.1/8", ""},
		{"IPv6 rejected", "fe80::1/64", ""},
		{"Unspecified rejected", "0.0.0.0/0", ""},
		{"Garbage rejected", "not-an-address", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := parseInterfaceAddr(tt.addr)
			if tt.want == "" {
				assert.Nil(t, ip)
			} else {
				require.NotNil(t, ip)
				assert.Equal(t, tt.want, ip.String())
			}
		})
	}
}
