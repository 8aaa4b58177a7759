package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	Reload() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
	OnReload(fn func(*ServiceConfig))
}

type ServiceConfig struct {
	Name     string          `yaml:"name" json:"name" validate:"required"`
	Version  string          `yaml:"version" json:"version" validate:"required"`
	Logger   *LoggerConfig   `yaml:"logger" json:"logger" validate:"required"`
	Database *DatabaseConfig `yaml:"database" json:"database" validate:"required"`
	Caches   *CachesConfig   `yaml:"caches" json:"caches" validate:"required"`
	Reload   *ReloadConfig   `yaml:"reload" json:"reload" validate:"required"`
	Metrics  *MetricsConfig  `yaml:"metrics" json:"metrics" validate:"required"`
	Server   *ServerConfig   `yaml:"server" json:"server" validate:"required"`
	Proxy    *ProxyConfig    `yaml:"proxy" json:"proxy" validate:"required"`
}

type LoggerConfig struct {
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type DatabaseConfig struct {
	Type        string       `yaml:"type" json:"type" validate:"required"`
	Path        string       `yaml:"path" json:"path" validate:"required_if=Type clover"`
	Compression int          `yaml:"compression" json:"compression" validate:"min=-1,max=11"`
	Redis       *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty" validate:"required_if=Type redis"`
}

type RedisConfig struct {
	Addr      string        `yaml:"addr" json:"addr" validate:"required,hostname_port"`
	Password  string        `yaml:"password" json:"password"`
	DB        int           `yaml:"db" json:"db" validate:"min=0"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

type CachesConfig struct {
	Capacity        int           `yaml:"capacity" json:"capacity" validate:"min=1"`
	IdleExpiry      time.Duration `yaml:"idle_expiry" json:"idle_expiry" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" validate:"gte=0"`
}

type ReloadConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Spec     string `yaml:"spec" json:"spec" validate:"required_if=Enabled true"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled" json:"enabled"`
	Namespace string            `yaml:"namespace" json:"namespace"`
	Subsystem string            `yaml:"subsystem" json:"subsystem"`
	Labels    map[string]string `yaml:"labels" json:"labels"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"required_if=Enabled true,min=0,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type ProxyConfig struct {
	JoinMessage string `yaml:"join_message" json:"join_message"`
	Hub         string `yaml:"hub" json:"hub"`
}
