package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager handles thread-safe access to the mutable server settings.
// The supervisor snapshots these at spawn time; edits made while a
// server is running apply on the next start.
type Manager struct {
	path  string
	mutex sync.RWMutex
	cfg   *Config
}

// NewManager creates a manager around an already-loaded configuration
func NewManager(cfg *Config, path string) *Manager {
	return &Manager{cfg: cfg, path: path}
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return *m.cfg
}

// Minecraft returns a copy of the current launch settings
func (m *Manager) Minecraft() MinecraftConfig {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.cfg.Minecraft
}

// UpdateMinecraft applies an edit to the launch settings and persists it
func (m *Manager) UpdateMinecraft(update func(*MinecraftConfig)) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	edited := m.cfg.Minecraft
	update(&edited)

	candidate := *m.cfg
	candidate.Minecraft = edited
	candidate.normalizePaths()
	if err := candidate.Validate(); err != nil {
		return err
	}

	m.cfg.Minecraft = candidate.Minecraft
	return Save(m.cfg, m.path)
}

// ImportResult describes what an ImportServerDir call found
type ImportResult struct {
	ServerDir   string `json:"server_dir"`
	JarPath     string `json:"jar_path"`
	PluginsDir  string `json:"plugins_dir"`
	PluginCount int    `json:"plugin_count"`
}

// ImportServerDir inspects an existing server folder, adopts it as the
// configured server directory, and persists the result. A jar whose
// name hints at a known server flavor is preferred over other jars.
func (m *Manager) ImportServerDir(dir string) (*ImportResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("server directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	jarName, err := findServerJar(dir)
	if err != nil {
		return nil, err
	}

	pluginsDir := filepath.Join(dir, "plugins")
	if err := os.MkdirAll(pluginsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plugins directory: %w", err)
	}

	pluginCount := 0
	if entries, err := os.ReadDir(pluginsDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".jar") {
				pluginCount++
			}
		}
	}

	if err := m.UpdateMinecraft(func(mc *MinecraftConfig) {
		mc.ServerDir = dir
		mc.JarPath = filepath.Join(dir, jarName)
		mc.PluginsDir = pluginsDir
	}); err != nil {
		return nil, err
	}

	mc := m.Minecraft()
	return &ImportResult{
		ServerDir:   mc.ServerDir,
		JarPath:     mc.JarPath,
		PluginsDir:  mc.PluginsDir,
		PluginCount: pluginCount,
	}, nil
}

var serverJarHints = []string{"server", "paper", "spigot", "bukkit", "purpur"}

func findServerJar(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read server directory: %w", err)
	}

	var jars []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".jar") {
			jars = append(jars, entry.Name())
		}
	}

	if len(jars) == 0 {
		return "", fmt.Errorf("no server jar found in %s", dir)
	}

	for _, jar := range jars {
		lower := strings.ToLower(jar)
		for _, hint := range serverJarHints {
			if strings.Contains(lower, hint) {
				return jar, nil
			}
		}
	}

	return jars[0], nil
}
