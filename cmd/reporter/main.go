package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/25x8/vsock-ip-reporter/internal/buildinfo"
	"github.com/25x8/vsock-ip-reporter/internal/config"
	"github.com/25x8/vsock-ip-reporter/internal/handler"
	"github.com/25x8/vsock-ip-reporter/internal/logger"
	"github.com/25x8/vsock-ip-reporter/internal/server"
)

func main() {
	// Определение флагов. Нулевые значения означают "не задано":
	// в этом случае действует конфиг-файл или значения по умолчанию
	portFlag := flag.Uint("p", 0, "AF_VSOCK port to listen on")
	probeFlag := flag.String("probe", "", "External address used to detect the outbound interface")
	writeTimeoutFlag := flag.Int("w", -1, "Write timeout in seconds (0 disables the timeout)")
	statusFlag := flag.String("status", "", "Address of the HTTP status endpoint (empty to disable)")
	trustedSubnetFlag := flag.String("t", "", "Trusted subnet in CIDR notation for the status endpoint")
	logLevelFlag := flag.String("l", "", "Log level")
	configFlag := flag.String("c", "", "Path to JSON config file")

	// Парсинг флагов
	flag.Parse()

	configPath := *configFlag
	if envConfig := os.Getenv("CONFIG"); envConfig != "" {
		configPath = envConfig
	}

	cfg, err := config.LoadReporterConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Флаги перекрывают конфиг-файл
	if *portFlag != 0 {
		cfg.Port = uint32(*portFlag)
	}
	if *probeFlag != "" {
		cfg.ProbeAddr = *probeFlag
	}
	if *writeTimeoutFlag >= 0 {
		cfg.WriteTimeout = *writeTimeoutFlag
	}
	if *statusFlag != "" {
		cfg.StatusAddress = *statusFlag
	}
	if *trustedSubnetFlag != "" {
		cfg.TrustedSubnet = *trustedSubnetFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}

	// Чтение переменных окружения с приоритетом
	if envPort := os.Getenv("VSOCK_PORT"); envPort != "" {
		port, err := strconv.ParseUint(envPort, 10, 32)
		if err != nil {
			log.Fatalf("Invalid VSOCK_PORT: %v", err)
		}
		cfg.Port = uint32(port)
	}
	if envProbe := os.Getenv("PROBE_ADDR"); envProbe != "" {
		cfg.ProbeAddr = envProbe
	}
	if envWriteTimeout := os.Getenv("WRITE_TIMEOUT"); envWriteTimeout != "" {
		timeoutSec, err := strconv.Atoi(envWriteTimeout)
		if err != nil {
			log.Fatalf("Invalid WRITE_TIMEOUT: %v", err)
		}
		cfg.WriteTimeout = timeoutSec
	}
	if envStatus := os.Getenv("STATUS_ADDRESS"); envStatus != "" {
		cfg.StatusAddress = envStatus
	}
	if envTrustedSubnet := os.Getenv("TRUSTED_SUBNET"); envTrustedSubnet != "" {
		cfg.TrustedSubnet = envTrustedSubnet
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		cfg.LogLevel = envLogLevel
	}

	buildinfo.PrintBuildInfo()

	// Инициализация логгера
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()

	srv := server.New(server.Config{
		Port:         cfg.Port,
		ProbeAddr:    cfg.ProbeAddr,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	// Обработка сигнала завершения: отмена контекста останавливает accept-цикл
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Log.Info("Shutting down")
		cancel()
	}()

	// Статусный эндпоинт опционален и не влияет на vsock-протокол
	if cfg.StatusAddress != "" {
		h := &handler.Handler{Source: srv}
		router := handler.NewRouter(h, cfg.TrustedSubnet)
		go func() {
			logger.Log.Info("Status endpoint listening",
				zap.String("address", cfg.StatusAddress),
			)
			if err := http.ListenAndServe(cfg.StatusAddress, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("Status endpoint failed", zap.Error(err))
			}
		}()
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("VSOCK server failed: %v", err)
	}
}
