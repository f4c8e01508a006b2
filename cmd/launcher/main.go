package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Totarae/LinkLauncher/internal/auth"
	"github.com/Totarae/LinkLauncher/internal/config"
	"github.com/Totarae/LinkLauncher/internal/database"
	v2 "github.com/Totarae/LinkLauncher/internal/grpc/v2"
	"github.com/Totarae/LinkLauncher/internal/handlers"
	"github.com/Totarae/LinkLauncher/internal/icon"
	"github.com/Totarae/LinkLauncher/internal/repositories"
	"github.com/Totarae/LinkLauncher/internal/router"
	"github.com/Totarae/LinkLauncher/internal/service"
	"github.com/Totarae/LinkLauncher/internal/storage"
	"github.com/Totarae/LinkLauncher/internal/storage/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	boot := zap.Must(zap.NewProduction())

	// Инициализация конфигурации
	cfg, err := config.NewConfig()
	if err != nil {
		boot.Fatal("Ошибка конфигурации", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal("Ошибка конфигурации", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		boot.Fatal("Не удалось создать логгер", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Сервер остановлен с ошибкой", zap.Error(err))
		return
	}
	logger.Info("Сервер остановлен")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Инициализация конфигурации",
		zap.String("address", cfg.ServerAddress),
		zap.String("grpc_address", cfg.GRPCAddress),
		zap.String("mode", cfg.Mode),
		zap.Bool("https", cfg.EnableHTTPS),
	)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("JWT_SECRET не задан, сессии не переживут перезапуск")
	}
	authn := auth.New(secret, cfg.TokenTTL)
	authn.Secure = cfg.EnableHTTPS

	icons := icon.NewResolver(cfg.FaviconServiceURL, cfg.DefaultIconURL)
	links := service.NewLinkService(store, icons, logger)
	users := service.NewAuthService(store, authn, logger)

	handler := handlers.NewHandler(links, users, authn, store, logger)
	httpSrv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router.NewRouter(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, healthSrv := v2.NewServer(links, authn, logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Сервер запущен", zap.String("address", cfg.ServerAddress))
		var err error
		if cfg.EnableHTTPS {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	go func() {
		logger.Info("gRPC сервер запущен", zap.String("address", cfg.GRPCAddress))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Получен сигнал завершения")
	case runErr = <-errCh:
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки HTTP сервера", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	return runErr
}

// openStore открывает хранилище согласно режиму конфигурации.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Mode {
	case config.ModeDatabase:
		db, err := database.NewDB(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.MigratePostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		return repositories.NewPostgresRepository(db), nil
	case config.ModeSQLite:
		return repositories.NewSQLiteRepository(ctx, cfg.SQLiteDSN, logger)
	case config.ModeFile:
		return memory.New(cfg.FileStoragePath, logger)
	default:
		return memory.New("", logger)
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
