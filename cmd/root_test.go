package cmd

import (
	"bytes"
	"strings"
	"testing"

	"stmap/internal/bootstrap/config"
)

func TestResolveLoggerPrefersFlags(t *testing.T) {
	prevLevel, prevFormat := logLevel, logFormat
	t.Cleanup(func() { logLevel, logFormat = prevLevel, prevFormat })

	var out bytes.Buffer
	logLevel, logFormat = "debug", "json"
	logger, err := resolveLogger(&out, config.LogConfig{Level: "error", Format: "text"})
	if err != nil {
		t.Fatalf("resolveLogger() error = %v", err)
	}
	logger.Debug("probe")
	if !strings.Contains(out.String(), `"msg":"probe"`) {
		t.Fatalf("flag level/format ignored, output = %q", out.String())
	}
}

func TestResolveLoggerFallsBackToConfig(t *testing.T) {
	prevLevel, prevFormat := logLevel, logFormat
	t.Cleanup(func() { logLevel, logFormat = prevLevel, prevFormat })

	var out bytes.Buffer
	logLevel, logFormat = "", ""
	logger, err := resolveLogger(&out, config.LogConfig{Level: "warn", Format: "text"})
	if err != nil {
		t.Fatalf("resolveLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(out.String(), "hidden") || !strings.Contains(out.String(), "msg=shown") {
		t.Fatalf("config level ignored, output = %q", out.String())
	}
}

func TestResolveLoggerRejectsUnknownFormat(t *testing.T) {
	prevLevel, prevFormat := logLevel, logFormat
	t.Cleanup(func() { logLevel, logFormat = prevLevel, prevFormat })

	logLevel, logFormat = "", "xml"
	if _, err := resolveLogger(&bytes.Buffer{}, config.LogConfig{}); err == nil {
		t.Fatalf("resolveLogger() expected error for xml format")
	}
}

func TestExecuteRequiresContext(t *testing.T) {
	if err := Execute(nil); err == nil {
		t.Fatalf("Execute(nil) expected error")
	}
}

func TestCommandTreeRegistersMappingCommands(t *testing.T) {
	want := []string{"add", "edit", "delete", "get", "list", "search", "tree", "stats", "tables", "export", "import", "report", "watch"}
	for _, name := range want {
		found, _, err := rootCmd.Find([]string{"mapping", name})
		if err != nil || found.Name() != name {
			t.Fatalf("Find(mapping %s) = %v, %v", name, found, err)
		}
	}
	for _, path := range [][]string{{"serve"}, {"mcp"}, {"init-db"}, {"console", "tree"}} {
		found, _, err := rootCmd.Find(path)
		if err != nil || found.Name() != path[len(path)-1] {
			t.Fatalf("Find(%v) = %v, %v", path, found, err)
		}
	}
}
