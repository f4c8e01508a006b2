package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Режимы хранилища.
const (
	ModeDatabase = "database"
	ModeSQLite   = "sqlite"
	ModeFile     = "file"
	ModeMemory   = "in-memory"
)

// Config хранит конфигурацию сервера
type Config struct {
	ServerAddress     string        `json:"server_address"`
	GRPCAddress       string        `json:"grpc_address"`
	DatabaseDSN       string        `json:"database_dsn"`
	SQLiteDSN         string        `json:"sqlite_dsn"`
	FileStoragePath   string        `json:"file_storage_path"`
	JWTSecret         string        `json:"jwt_secret"`
	TokenTTL          time.Duration `json:"token_ttl"`
	FaviconServiceURL string        `json:"favicon_service_url"`
	DefaultIconURL    string        `json:"default_icon_url"`
	EnableHTTPS       bool          `json:"enable_https"`
	TLSCertPath       string        `json:"tls_cert_path"`
	TLSKeyPath        string        `json:"tls_key_path"`
	LogLevel          string        `json:"log_level"`
	Mode              string        `json:"-"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":      "localhost:8080",
	"GRPC_ADDRESS":        "localhost:3200",
	"DATABASE_DSN":        "",
	"SQLITE_DSN":          "",
	"FILE_STORAGE_PATH":   "",
	"JWT_SECRET":          "",
	"TOKEN_TTL":           "24h",
	"FAVICON_SERVICE_URL": "",
	"DEFAULT_ICON_URL":    "",
	"ENABLE_HTTPS":        false,
	"TLS_CERT_PATH":       "cert.pem",
	"TLS_KEY_PATH":        "key.pem",
	"LOG_LEVEL":           "info",
}

var flagKeys = map[string]string{
	"a":      "SERVER_ADDRESS",
	"g":      "GRPC_ADDRESS",
	"d":      "DATABASE_DSN",
	"sqlite": "SQLITE_DSN",
	"f":      "FILE_STORAGE_PATH",
	"j":      "JWT_SECRET",
	"ttl":    "TOKEN_TTL",
	"s":      "ENABLE_HTTPS",
	"cert":   "TLS_CERT_PATH",
	"key":    "TLS_KEY_PATH",
	"l":      "LOG_LEVEL",
}

// NewConfig читает конфигурацию из аргументов командной строки процесса.
func NewConfig() (*Config, error) {
	return Load(os.Args[1:], ".env")
}

// Load собирает конфигурацию. Приоритет: флаги, окружение, .env,
// JSON-файл (-c/-config или CONFIG), значения по умолчанию.
func Load(args []string, envFile string) (*Config, error) {
	fs := flag.NewFlagSet("launcher", flag.ContinueOnError)
	fs.String("a", "", "HTTP server address")
	fs.String("g", "", "gRPC server address")
	fs.String("d", "", "PostgreSQL DSN")
	fs.String("sqlite", "", "SQLite file or libsql:// URL")
	fs.String("f", "", "file storage path (JSON file)")
	fs.String("j", "", "secret for signing session tokens")
	fs.String("ttl", "", "session token lifetime")
	fs.Bool("s", false, "enable HTTPS")
	fs.String("cert", "", "path to TLS certificate")
	fs.String("key", "", "path to TLS key")
	fs.String("l", "", "log level")
	configPath := fs.String("c", "", "path to JSON config file")
	fs.StringVar(configPath, "config", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG")
	}
	if *configPath != "" {
		fileValues, err := readJSON(*configPath)
		if err != nil {
			return nil, err
		}
		// значения из файла перекрывают только умолчания
		for key, val := range fileValues {
			v.SetDefault(key, val)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	// явно переданные флаги важнее окружения
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	cfg := &Config{
		ServerAddress:     v.GetString("SERVER_ADDRESS"),
		GRPCAddress:       v.GetString("GRPC_ADDRESS"),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		SQLiteDSN:         v.GetString("SQLITE_DSN"),
		FileStoragePath:   v.GetString("FILE_STORAGE_PATH"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		TokenTTL:          v.GetDuration("TOKEN_TTL"),
		FaviconServiceURL: v.GetString("FAVICON_SERVICE_URL"),
		DefaultIconURL:    v.GetString("DEFAULT_ICON_URL"),
		EnableHTTPS:       v.GetBool("ENABLE_HTTPS"),
		TLSCertPath:       v.GetString("TLS_CERT_PATH"),
		TLSKeyPath:        v.GetString("TLS_KEY_PATH"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}
	cfg.Mode = detectMode(cfg)
	return cfg, nil
}

func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать JSON-файл конфигурации %q: %w", path, err)
	}
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ошибка разбора JSON-файла конфигурации: %w", err)
	}
	out := make(map[string]any, len(raw))
	for key, val := range raw {
		out[strings.ToUpper(key)] = val
	}
	return out, nil
}

func detectMode(cfg *Config) string {
	switch {
	case cfg.DatabaseDSN != "":
		return ModeDatabase
	case cfg.SQLiteDSN != "":
		return ModeSQLite
	case cfg.FileStoragePath != "":
		return ModeFile
	default:
		return ModeMemory
	}
}

// Validate проверяет корректность конфигурации
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.ServerAddress == "" {
		errs = append(errs, errors.New("адрес сервера не может быть пустым"))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("время жизни токена должно быть положительным: %s", cfg.TokenTTL))
	}
	if cfg.EnableHTTPS && (cfg.TLSCertPath == "" || cfg.TLSKeyPath == "") {
		errs = append(errs, errors.New("для HTTPS нужны пути к сертификату и ключу"))
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("неизвестный уровень логирования %q", cfg.LogLevel))
	}
	return errors.Join(errs...)
}
