package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "/data/chat.db")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, FileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.Contains(string(data), "pid=") || !strings.Contains(string(data), "chat_db=/data/chat.db") {
		t.Errorf("lock file = %q", data)
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, FileName)); !os.IsNotExist(err) {
		t.Errorf("lock file left behind: %v", err)
	}
}

func TestDoubleAcquireFails(t *testing.T) {
	tmpDir := t.TempDir()

	l1, err := Acquire(tmpDir, "/data/chat.db")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(tmpDir, "/other/chat.db")
	if err == nil {
		t.Fatal("second Acquire() should fail")
	}

	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected HeldError, got %T: %v", err, err)
	}
	if held.PID != os.Getpid() || held.ChatDB != "/data/chat.db" {
		t.Errorf("held = %+v", held)
	}
}

func TestHolder(t *testing.T) {
	tmpDir := t.TempDir()

	if _, ok, err := Holder(tmpDir); err != nil || ok {
		t.Fatalf("Holder on empty dir = %v, %v", ok, err)
	}

	l, err := Acquire(tmpDir, "/data/chat.db")
	if err != nil {
		t.Fatal(err)
	}
	info, ok, err := Holder(tmpDir)
	if err != nil || !ok {
		t.Fatalf("Holder while held = %v, %v", ok, err)
	}
	if info.PID != os.Getpid() || info.ChatDB != "/data/chat.db" || info.Since.IsZero() {
		t.Errorf("info = %+v", info)
	}

	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := Holder(tmpDir); ok {
		t.Error("Holder after Release reports held")
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
