package middleware

import (
	"net"
	"net/http"
	"strings"
)

// TrustedSubnetMiddleware проверяет IP-адрес клиента против доверенной подсети.
// Используется для ограничения доступа к статусному эндпоинту: пустая подсеть
// пропускает всех.
func TrustedSubnetMiddleware(trustedSubnet string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if trustedSubnet == "" {
			return next
		}

		_, trustedNet, parseErr := net.ParseCIDR(trustedSubnet)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parseErr != nil {
				http.Error(w, "Invalid trusted subnet configuration", http.StatusInternalServerError)
				return
			}

			ip := net.ParseIP(clientIP(r))
			if ip == nil {
				http.Error(w, "Invalid client IP address", http.StatusBadRequest)
				return
			}

			if !trustedNet.Contains(ip) {
				http.Error(w, "Access denied from untrusted subnet", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP извлекает IP-адрес клиента из заголовков или RemoteAddr
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For может содержать список IP, берем первый
		if parts := strings.Split(ip, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}

	return r.RemoteAddr
}
