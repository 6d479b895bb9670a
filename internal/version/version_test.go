package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		origVersion := Version
		origCommit := GitCommit
		origBuildTime := BuildTime
		defer func() {
			Version = origVersion
			GitCommit = origCommit
			BuildTime = origBuildTime
		}()

		Version = "dev"
		GitCommit = "unknown"
		BuildTime = "unknown"

		result := Info()

		if !strings.Contains(result, "dev") {
			t.Errorf("Info() = %q, should contain 'dev'", result)
		}
		if !strings.Contains(result, "unknown") {
			t.Errorf("Info() = %q, should contain 'unknown'", result)
		}
		if !strings.Contains(result, "built") {
			t.Errorf("Info() = %q, should contain 'built'", result)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		origVersion := Version
		origCommit := GitCommit
		origBuildTime := BuildTime
		defer func() {
			Version = origVersion
			GitCommit = origCommit
			BuildTime = origBuildTime
		}()

		Version = "1.2.3"
		GitCommit = "abc1234"
		BuildTime = "2024-01-15T10:00:00Z"

		result := Info()

		expected := "1.2.3 (abc1234) built 2024-01-15T10:00:00Z"
		if result != expected {
			t.Errorf("Info() = %q, want %q", result, expected)
		}
	})
}

func TestDefaultValues(t *testing.T) {
	// These may be overwritten by ldflags in production builds.
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}
	if BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
}
