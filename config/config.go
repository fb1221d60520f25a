// Package config loads process configuration from the environment and
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/freekieb7/poolhttp/http"
	"github.com/joho/godotenv"
)

const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultServiceName     = "poolhttp"
)

var ErrInvalidValue = errors.New("config: invalid value")

type Config struct {
	Server          http.Config
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	ServiceName string
	// OTLPEndpoint enables telemetry export when set.
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads the given .env files, skipping those that do not exist, and
// overlays the process environment on top. When a key appears in more than
// one file the first file wins.
func Load(files ...string) (Config, error) {
	fileEnv := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: reading %s: %w", file, err)
		}
		for key, value := range values {
			if _, ok := fileEnv[key]; !ok {
				fileEnv[key] = value
			}
		}
	}

	l := loader{fileEnv: fileEnv}

	server := http.DefaultConfig()
	server.Addr = l.getEnv("POOLHTTP_ADDR", server.Addr)
	server.AssetRoot = l.getEnv("POOLHTTP_ASSET_ROOT", server.AssetRoot)
	server.Workers = l.getInt("POOLHTTP_WORKERS", server.Workers)
	server.ReadBufferSize = l.getInt("POOLHTTP_READ_BUFFER_SIZE", server.ReadBufferSize)
	server.SleepDelay = l.getDuration("POOLHTTP_SLEEP_DELAY", server.SleepDelay)
	server.ReadTimeout = l.getDuration("POOLHTTP_READ_TIMEOUT", 0)
	server.ReusePort = l.getBool("POOLHTTP_REUSE_PORT", false)

	cfg := Config{
		Server:          server,
		ShutdownTimeout: l.getDuration("POOLHTTP_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		LogLevel:        l.getLevel("POOLHTTP_LOG_LEVEL", slog.LevelInfo),
		ServiceName:     l.getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		OTLPEndpoint:    l.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:    l.getBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	errs := l.errs
	if cfg.ShutdownTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: POOLHTTP_SHUTDOWN_TIMEOUT must not be negative", ErrInvalidValue))
	}
	if cfg.Server.AssetRoot == "" {
		errs = errors.Join(errs, http.ErrMissingAssetRoot)
	}
	if err := cfg.Server.Validate(); err != nil {
		errs = errors.Join(errs, err)
	}
	if errs != nil {
		return Config{}, errs
	}

	return cfg, nil
}

// loader collects parse errors so that every bad variable is reported at
// once.
type loader struct {
	fileEnv map[string]string
	errs    error
}

func (l *loader) getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := l.fileEnv[key]; v != "" {
		return v
	}
	return fallback
}

func (l *loader) getInt(key string, fallback int) int {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.fail(key, raw, err)
		return fallback
	}
	return v
}

func (l *loader) getBool(key string, fallback bool) bool {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		l.fail(key, raw, err)
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("1.5s") and a bare "0".
func (l *loader) getDuration(key string, fallback time.Duration) time.Duration {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		l.fail(key, raw, err)
		return fallback
	}
	return v
}

func (l *loader) getLevel(key string, fallback slog.Level) slog.Level {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		l.fail(key, raw, err)
		return fallback
	}
	return level
}

func (l *loader) fail(key, raw string, err error) {
	l.errs = errors.Join(l.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, raw, err))
}
