package version_test

import (
	"strings"
	"testing"

	"github.com/tizenorg/wfd-manager/internal/version"
)

func TestVersionInfo(t *testing.T) {
	t.Run("Version should not be empty", func(t *testing.T) {
		if version.Version == "" {
			t.Error("Version should not be empty")
		}
	})

	t.Run("Name should be wfd-manager", func(t *testing.T) {
		if version.Name != "wfd-manager" {
			t.Errorf("Expected name 'wfd-manager', got '%s'", version.Name)
		}
	})
}

func TestGetInfo(t *testing.T) {
	info := version.GetInfo()

	if info.Name != version.Name {
		t.Errorf("Expected name '%s', got '%s'", version.Name, info.Name)
	}
	if info.Version != version.Version {
		t.Errorf("Expected version '%s', got '%s'", version.Version, info.Version)
	}
	if info.API != version.APIVersion {
		t.Errorf("Expected API '%s', got '%s'", version.APIVersion, info.API)
	}
	if !strings.HasPrefix(info.GoVersion, "go") && info.GoVersion != "devel" {
		t.Errorf("Unexpected Go version %q", info.GoVersion)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info version.Info
		want string
	}{
		{"plain", version.Info{Name: "wfd-manager", Version: "1.2.3"}, "wfd-manager v1.2.3"},
		{"commit shortened", version.Info{Name: "wfd-manager", Version: "1.2.3", GitCommit: "0123456789abcdef"}, "wfd-manager v1.2.3 (0123456)"},
		{"short commit", version.Info{Name: "wfd-manager", Version: "1.2.3", GitCommit: "abc"}, "wfd-manager v1.2.3 (abc)"},
		{"build time", version.Info{Name: "wfd-manager", Version: "1.2.3", BuildTime: "2026-10-01"}, "wfd-manager v1.2.3 built 2026-10-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTXT(t *testing.T) {
	txt := version.Info{Version: "1.2.3", API: "v1", GitCommit: "0123456789"}.TXT()

	if txt["version"] != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %q", txt["version"])
	}
	if txt["api"] != "/api/v1" {
		t.Errorf("Expected api /api/v1, got %q", txt["api"])
	}
	if txt["commit"] != "0123456" {
		t.Errorf("Expected short commit, got %q", txt["commit"])
	}

	if _, ok := (version.Info{Version: "1"}).TXT()["commit"]; ok {
		t.Error("Expected no commit entry without a commit")
	}
}
