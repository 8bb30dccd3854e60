package server

import (
	"reflect"
	"testing"
)

func TestJavaArgs(t *testing.T) {
	args := javaArgs(LaunchConfig{
		JarPath:  "/srv/minecraft/server.jar",
		MemoryMB: 2048,
	})

	want := []string{"-Xmx2048M", "-Xms2048M", "-jar", "/srv/minecraft/server.jar", "nogui"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("expected %v, got %v", want, args)
	}
}

func TestJavaArgsWithMinMemory(t *testing.T) {
	args := javaArgs(LaunchConfig{
		JarPath:     "server.jar",
		MemoryMB:    4096,
		MinMemoryMB: 1024,
	})

	if args[0] != "-Xmx4096M" || args[1] != "-Xms1024M" {
		t.Fatalf("unexpected memory flags: %v", args[:2])
	}
}

func TestJavaArgsCustomServerArgs(t *testing.T) {
	args := javaArgs(LaunchConfig{
		JarPath:    "server.jar",
		MemoryMB:   2048,
		ServerArgs: []string{"--forceUpgrade"},
	})

	if args[len(args)-1] != "--forceUpgrade" {
		t.Fatalf("custom server args not appended: %v", args)
	}
}
