package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/25x8/vsock-ip-reporter/internal/buildinfo"
	"github.com/25x8/vsock-ip-reporter/internal/logger"
	"github.com/25x8/vsock-ip-reporter/internal/middleware"
	"github.com/25x8/vsock-ip-reporter/internal/server"
)

// StatsSource отдает счетчики vsock-сервера
type StatsSource interface {
	Stats() server.Stats
}

// Handler обслуживает статусный HTTP-эндпоинт репортера
type Handler struct {
	Source StatsSource
}

// statusResponse - тело ответа /status
type statusResponse struct {
	LastIP            string `json:"last_ip,omitempty"`
	LastSource        string `json:"last_source,omitempty"`
	ConnectionsServed int64  `json:"connections_served"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	BuildVersion      string `json:"build_version"`
}

// HandleHealthz - проверка живости
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Log.Error("Failed to write healthz response")
	}
}

// HandleStatus отдает последний разрешенный адрес и счетчики обслуживания
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.Source.Stats()

	resp := statusResponse{
		LastIP:            stats.LastIP,
		LastSource:        stats.LastSource,
		ConnectionsServed: stats.ConnectionsServed,
		BuildVersion:      buildinfo.BuildVersion,
	}
	if !stats.StartedAt.IsZero() {
		resp.UptimeSeconds = int64(time.Since(stats.StartedAt).Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
	}
}

// NewRouter собирает маршруты статусного эндпоинта с middleware
func NewRouter(h *Handler, trustedSubnet string) *mux.Router {
	r := mux.NewRouter()

	wrapHandler := func(handler http.Handler) http.Handler {
		return logger.RequestLogger(
			middleware.TrustedSubnetMiddleware(trustedSubnet)(handler),
		)
	}

	r.Handle("/healthz", wrapHandler(http.HandlerFunc(h.HandleHealthz))).Methods(http.MethodGet)
	r.Handle("/status", wrapHandler(http.HandlerFunc(h.HandleStatus))).Methods(http.MethodGet)

	return r
}
