package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Minecraft MinecraftConfig `yaml:"minecraft" json:"minecraft"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
}

// HTTPConfig contains the management API settings
type HTTPConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// MinecraftConfig contains everything needed to launch the server child
type MinecraftConfig struct {
	JavaPath      string `yaml:"java_path" json:"java_path"`
	JarPath       string `yaml:"jar_path" json:"jar_path"`
	ServerDir     string `yaml:"server_dir" json:"server_dir"`
	PluginsDir    string `yaml:"plugins_dir" json:"plugins_dir"`
	MemoryMB      int    `yaml:"memory_mb" json:"memory_mb"`
	MinMemoryMB   int    `yaml:"min_memory_mb" json:"min_memory_mb"`
	GamePort      int    `yaml:"game_port" json:"game_port"`
	ServerType    string `yaml:"server_type" json:"server_type"`
	ServerVersion string `yaml:"server_version" json:"server_version"`
	StopTimeout   int    `yaml:"stop_timeout_seconds" json:"stop_timeout_seconds"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ScheduleConfig contains scheduled-restart settings
type ScheduleConfig struct {
	// RestartCron is a cron expression; empty disables scheduled restarts.
	RestartCron string `yaml:"restart_cron" json:"restart_cron"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Minecraft: MinecraftConfig{
			JavaPath:      "java",
			JarPath:       "server.jar",
			ServerDir:     workDir,
			PluginsDir:    filepath.Join(workDir, "plugins"),
			MemoryMB:      2048,
			GamePort:      25565,
			ServerType:    "paper",
			ServerVersion: "1.21.4",
			StopTimeout:   30,
		},
		Database: DatabaseConfig{
			Path: "./data/mc-manager.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}

	configPath := GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	if jarPath := os.Getenv("MC_JAR_PATH"); jarPath != "" {
		cfg.Minecraft.JarPath = jarPath
	}

	if serverDir := os.Getenv("MC_SERVER_DIR"); serverDir != "" {
		cfg.Minecraft.ServerDir = serverDir
	}

	if pluginsDir := os.Getenv("MC_PLUGINS_DIR"); pluginsDir != "" {
		cfg.Minecraft.PluginsDir = pluginsDir
	}

	if memory := os.Getenv("MC_MEMORY_MB"); memory != "" {
		if parsed, err := strconv.Atoi(memory); err == nil {
			cfg.Minecraft.MemoryMB = parsed
		}
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	cfg.normalizePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Minecraft.MemoryMB <= 0 {
		return fmt.Errorf("memory_mb must be positive")
	}

	if c.Minecraft.MinMemoryMB < 0 {
		return fmt.Errorf("min_memory_mb must not be negative")
	}

	if c.Minecraft.MinMemoryMB > c.Minecraft.MemoryMB {
		return fmt.Errorf("min_memory_mb must not exceed memory_mb")
	}

	if strings.TrimSpace(c.Minecraft.JarPath) == "" {
		return fmt.Errorf("jar_path must be set")
	}

	if c.Minecraft.GamePort <= 0 || c.Minecraft.GamePort > 65535 {
		return fmt.Errorf("game_port must be a valid port number")
	}

	if c.Minecraft.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout_seconds must be positive")
	}

	return nil
}

// GetConfigPath returns the resolved config path
func GetConfigPath() string {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = resolveConfigPath()
	}
	return configPath
}

func resolveConfigPath() string {
	candidates := []string{"./configs/config.yaml", "./config.yaml"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "./configs/config.yaml"
}

// Save writes the configuration back to disk
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) normalizePaths() {
	resolvePath := func(value string) string {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return ""
		}
		if filepath.IsAbs(trimmed) {
			return filepath.Clean(trimmed)
		}
		if abs, err := filepath.Abs(trimmed); err == nil {
			return abs
		}
		return filepath.Clean(trimmed)
	}

	c.Minecraft.ServerDir = resolvePath(c.Minecraft.ServerDir)

	// A relative jar path is resolved against the server directory,
	// matching how the child is launched.
	jar := strings.TrimSpace(c.Minecraft.JarPath)
	if jar != "" && !filepath.IsAbs(jar) {
		c.Minecraft.JarPath = filepath.Join(c.Minecraft.ServerDir, jar)
	} else {
		c.Minecraft.JarPath = resolvePath(jar)
	}

	if strings.TrimSpace(c.Minecraft.PluginsDir) == "" {
		c.Minecraft.PluginsDir = filepath.Join(c.Minecraft.ServerDir, "plugins")
	}
	c.Minecraft.PluginsDir = resolvePath(c.Minecraft.PluginsDir)

	c.Database.Path = resolvePath(c.Database.Path)
}
