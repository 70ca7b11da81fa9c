package version

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"1.3.0", "1.2.9", 1},
		{"1.2.3", "1.10.0", -1},
		{"2.0", "1.9.9", 1},
		{"1.2", "1.2.0", 0},
	}

	for _, tt := range tests {
		if got := compareVersions(tt.v1, tt.v2); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.want)
		}
	}
}

func TestCheckForUpdateSkipsDevBuilds(t *testing.T) {
	oldVersion := Version
	defer func() { Version = oldVersion }()
	Version = "dev"

	hasUpdate, tag, err := CheckForUpdate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasUpdate || tag != "" {
		t.Errorf("expected no update for dev build, got hasUpdate=%v tag=%q", hasUpdate, tag)
	}
}

func withReleaseRedirect(t *testing.T, tag string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://github.com/tatnall-legacy/leaguemirror/releases/tag/"+tag)
		w.WriteHeader(http.StatusFound)
	}))
	oldURL := latestReleaseURL
	latestReleaseURL = server.URL
	t.Cleanup(func() {
		latestReleaseURL = oldURL
		server.Close()
	})
}

func TestCheckForUpdateNewerRelease(t *testing.T) {
	oldVersion := Version
	defer func() { Version = oldVersion }()
	Version = "1.0.0"
	withReleaseRedirect(t, "v1.1.0")

	hasUpdate, tag, err := CheckForUpdate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasUpdate {
		t.Error("expected an update to be reported")
	}
	if tag != "v1.1.0" {
		t.Errorf("expected tag v1.1.0, got %q", tag)
	}
}

func TestCheckForUpdateCurrentRelease(t *testing.T) {
	oldVersion := Version
	defer func() { Version = oldVersion }()
	Version = "1.1.0"
	withReleaseRedirect(t, "v1.1.0")

	hasUpdate, tag, err := CheckForUpdate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasUpdate {
		t.Error("expected no update when already on the latest release")
	}
	if tag != "v1.1.0" {
		t.Errorf("expected tag v1.1.0, got %q", tag)
	}
}

func TestGetVersionString(t *testing.T) {
	s := GetVersionString()
	if !strings.HasPrefix(s, "leaguemirror version: ") {
		t.Errorf("unexpected version string %q", s)
	}
	if !strings.Contains(s, "commit: ") || !strings.Contains(s, "built: ") {
		t.Errorf("version string missing build metadata: %q", s)
	}
}
