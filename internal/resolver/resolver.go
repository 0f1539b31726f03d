package resolver

import (
	"context"
	"errors"
	"net"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// Источники, из которых мог быть получен адрес.
const (
	SourceProbe      = "probe"
	SourceInterfaces = "interfaces"
	SourceLoopback   = "loopback"
)

// LoopbackIP возвращается, когда определить адрес не удалось ни одним способом.
const LoopbackIP = "127.0.0.1"

// Значения по умолчанию для Resolver.
const (
	DefaultProbeAddr = "8.8.8.8:80"
	DefaultTimeout   = 3 * time.Second
)

var (
	errNoLocalAddr = errors.New("probe socket has no usable local address")
	errNoIPv4      = errors.New("no IPv4 address found on any interface")
)

// Result - результат определения адреса: сам адрес и способ, которым он получен
type Result struct {
	IP     string
	Source string
}

// Fallback сообщает, что основной способ определения адреса не сработал
// и клиент получил запасное значение.
func (r Result) Fallback() bool {
	return r.Source != SourceProbe
}

// Resolver определяет основной IPv4-адрес хоста
type Resolver struct {
	ProbeAddr string
	Timeout   time.Duration
}

// NewResolver - конструктор для Resolver
func NewResolver(probeAddr string) *Resolver {
	if probeAddr == "" {
		probeAddr = DefaultProbeAddr
	}
	return &Resolver{
		ProbeAddr: probeAddr,
		Timeout:   DefaultTimeout,
	}
}

// Resolve возвращает основной IPv4-адрес хоста. Ошибки наружу не отдаются:
// если UDP-проба не сработала, берется первый адрес с поднятого интерфейса,
// а в самом крайнем случае - loopback.
func (r *Resolver) Resolve(ctx context.Context) Result {
	if ip, err := r.probe(ctx); err == nil {
		return Result{IP: ip, Source: SourceProbe}
	}

	if ip, err := firstInterfaceIPv4(); err == nil {
		return Result{IP: ip, Source: SourceInterfaces}
	}

	return Result{IP: LoopbackIP, Source: SourceLoopback}
}

// probe создает UDP-соединение к внешнему адресу, чтобы ОС выбрала исходящий
// интерфейс, и читает локальный адрес получившегося сокета. Никакие пакеты
// при этом не отправляются.
func (r *Resolver) probe(ctx context.Context) (string, error) {
	d := net.Dialer{Timeout: r.Timeout}
	conn, err := d.DialContext(ctx, "udp4", r.ProbeAddr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || localAddr.IP == nil || localAddr.IP.IsUnspecified() {
		return "", errNoLocalAddr
	}

	return localAddr.IP.String(), nil
}

// firstInterfaceIPv4 возвращает первый IPv4-адрес среди поднятых интерфейсов,
// кроме loopback
func firstInterfaceIPv4() (string, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "", err
	}

	for _, iface := range ifaces {
		if !usableInterface(iface) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseInterfaceAddr(addr.Addr)
			if ip == nil {
				continue
			}
			return ip.String(), nil
		}
	}

	return "", errNoIPv4
}

// usableInterface проверяет, что интерфейс поднят и не является loopback
func usableInterface(iface psnet.InterfaceStat) bool {
	var up bool
	for _, flag := range iface.Flags {
		switch flag {
		case "up":
			up = true
		case "loopback":
			return false
		}
	}
	return up
}

// parseInterfaceAddr извлекает IPv4-адрес из строки вида "192.168.1.42/24".
// Адреса без маски тоже принимаются.
func parseInterfaceAddr(s string) net.IP {
	ip, _, err := net.ParseCIDR(s)
	if err != nil {
		ip = net.ParseIP(s)
	}
	if ip == nil {
		return nil
	}

	ip4 := ip.To4()
	if ip4 == nil || ip4.IsLoopback() || ip4.IsUnspecified() {
		return nil
	}
	return ip4
}
