package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-proxy/types"
)

const (
	DefaultCacheCapacity   = 256
	DefaultIdleExpiry      = time.Hour
	DefaultCleanupInterval = time.Minute
	DefaultReloadSpec      = "@every 1h"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// EnsureFile writes the default configuration to configPath when no file
// exists there yet. It reports whether a fresh file was written.
func (l *Loader) EnsureFile(configPath string) (bool, error) {
	if configPath == "" {
		return false, types.ErrConfigNotFound
	}

	_, err := os.Stat(configPath)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, types.WrapError(err, "failed to stat config file")
	}

	data, err := yaml.Marshal(l.Defaults())
	if err != nil {
		return false, types.WrapError(err, "failed to encode default config")
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, types.WrapError(err, "failed to create config directory")
		}
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return false, types.WrapError(err, "failed to write fresh config")
	}

	return true, nil
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.Errorf(types.ErrConfigNotFound, "file not found: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.Parse(data)
}

// Parse overlays data on top of the defaults and validates the result.
func (l *Loader) Parse(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return config, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "sai-proxy",
		Version: "1.0.0",
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Database: &types.DatabaseConfig{
			Type:        "clover",
			Path:        "data/database",
			Compression: 5,
		},
		Caches: &types.CachesConfig{
			Capacity:        DefaultCacheCapacity,
			IdleExpiry:      DefaultIdleExpiry,
			CleanupInterval: DefaultCleanupInterval,
		},
		Reload: &types.ReloadConfig{
			Enabled:  true,
			Spec:     DefaultReloadSpec,
			Timezone: "UTC",
		},
		Metrics: &types.MetricsConfig{
			Enabled:   false,
			Namespace: "sai_proxy",
		},
		Server: &types.ServerConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			Port:            8090,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Proxy: &types.ProxyConfig{
			JoinMessage: "Welcome to the network!",
			Hub:         "hub",
		},
	}
}
