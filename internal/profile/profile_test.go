package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/imv/internal/config"
)

func TestDirDefaultsToHome(t *testing.T) {
	t.Setenv(EnvHome, "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".imv", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestPathsUnderOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(EnvHome, base)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"socket", SocketPath("test"), filepath.Join("profiles", "test", "daemon.sock")},
		{"lock", LockPath("test"), filepath.Join("profiles", "test", "LOCK")},
		{"thumbs", ThumbDir("test"), filepath.Join("profiles", "test", "thumbs")},
		{"log", LogPath("test"), filepath.Join("profiles", "test", "logs", "imvd.log")},
		{"config", ConfigPath(), "config.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.got, base) || !strings.HasSuffix(tt.got, tt.want) {
				t.Errorf("%s = %q, want %s/.../%s", tt.name, tt.got, base, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{Dir("test"), LogDir("test"), ThumbDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0700 {
			t.Errorf("%s mode = %v", d, info.Mode())
		}
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work", "my-profile", "test_123", "a"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}
	invalid := []string{"", "Main", "has space", "../etc", strings.Repeat("a", 65)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) should fail", name)
		}
	}
}

func TestResolve(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultProfile = "work"
	tests := []struct {
		flag string
		cfg  *config.Config
		want string
	}{
		{"cli", cfg, "cli"},
		{"", cfg, "work"},
		{"", nil, "main"},
		{"", &config.Config{}, "main"},
	}
	for _, tt := range tests {
		if got := Resolve(tt.flag, tt.cfg); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}
