package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if BuildTime == "" || GitCommit == "" {
		t.Error("build info should be initialized")
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "timetracker "+Version) {
		t.Fatalf("unexpected version line %q", s)
	}
	if !strings.Contains(s, GitCommit) {
		t.Fatalf("version line %q should mention commit", s)
	}
}

func TestUserAgent(t *testing.T) {
	if got, want := UserAgent(), "timetracker-agent/"+Version; got != want {
		t.Fatalf("UserAgent() = %q, want %q", got, want)
	}
}
