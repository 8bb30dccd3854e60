package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRejectsBadMemory(t *testing.T) {
	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:     "server.jar",
			MemoryMB:    0,
			GamePort:    25565,
			StopTimeout: 30,
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero memory")
	}
}

func TestValidateRejectsMinAboveMax(t *testing.T) {
	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:     "server.jar",
			MemoryMB:    1024,
			MinMemoryMB: 2048,
			GamePort:    25565,
			StopTimeout: 30,
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for min > max memory")
	}
}

func TestNormalizePathsResolvesJarAgainstServerDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:   "paper.jar",
			ServerDir: dir,
		},
	}

	cfg.normalizePaths()

	if cfg.Minecraft.JarPath != filepath.Join(dir, "paper.jar") {
		t.Fatalf("jar path not resolved against server dir: %s", cfg.Minecraft.JarPath)
	}
	if cfg.Minecraft.PluginsDir != filepath.Join(dir, "plugins") {
		t.Fatalf("plugins dir not defaulted: %s", cfg.Minecraft.PluginsDir)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:     filepath.Join(dir, "server.jar"),
			ServerDir:   dir,
			MemoryMB:    4096,
			GamePort:    25565,
			StopTimeout: 30,
		},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)
	loaded, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Minecraft.MemoryMB != 4096 {
		t.Fatalf("expected memory 4096, got %d", loaded.Minecraft.MemoryMB)
	}
}

func TestManagerUpdatePersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:     filepath.Join(dir, "server.jar"),
			ServerDir:   dir,
			MemoryMB:    2048,
			GamePort:    25565,
			StopTimeout: 30,
		},
	}

	manager := NewManager(cfg, path)
	if err := manager.UpdateMinecraft(func(mc *MinecraftConfig) {
		mc.MemoryMB = 3072
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if manager.Minecraft().MemoryMB != 3072 {
		t.Fatal("update not applied in memory")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatal("update not persisted to disk")
	}
}

func TestManagerUpdateRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:     filepath.Join(dir, "server.jar"),
			ServerDir:   dir,
			MemoryMB:    2048,
			GamePort:    25565,
			StopTimeout: 30,
		},
	}

	manager := NewManager(cfg, filepath.Join(dir, "config.yaml"))
	err := manager.UpdateMinecraft(func(mc *MinecraftConfig) {
		mc.MemoryMB = -1
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	if manager.Minecraft().MemoryMB != 2048 {
		t.Fatal("invalid update must not be applied")
	}
}

func TestImportServerDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "paper-1.21.4.jar"), []byte("jar"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "plugins"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugins", "worldedit.jar"), []byte("jar"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Minecraft: MinecraftConfig{
			JarPath:     "server.jar",
			ServerDir:   t.TempDir(),
			MemoryMB:    2048,
			GamePort:    25565,
			StopTimeout: 30,
		},
	}

	manager := NewManager(cfg, filepath.Join(t.TempDir(), "config.yaml"))
	result, err := manager.ImportServerDir(dir)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if result.JarPath != filepath.Join(dir, "paper-1.21.4.jar") {
		t.Fatalf("wrong jar picked: %s", result.JarPath)
	}
	if result.PluginCount != 1 {
		t.Fatalf("expected 1 plugin, got %d", result.PluginCount)
	}
}
