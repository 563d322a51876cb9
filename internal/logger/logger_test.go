package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLogRotation(t *testing.T) {
	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "bake.log")

	// lumberjack's smallest size is 1MB.
	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 2,
		MaxAgeDays: 1,
		Compress:   false,
	}

	if err := InitWithFileConfig("debug", cfg, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer Sync()

	asset := strings.Repeat("x", 200)
	for i := 0; i < 15000; i++ {
		Sugar.Infof("transcoded texture %d: %s", i, asset)
	}
	Sync()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Error("main log file does not exist")
	}

	files, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}

	var logFiles []string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "bake") && strings.Contains(f.Name(), ".log") {
			logFiles = append(logFiles, f.Name())
		}
	}
	if len(logFiles) < 2 {
		t.Errorf("expected at least 2 log files (rotation), got %d: %v", len(logFiles), logFiles)
	}
	for _, name := range logFiles {
		// Rotated: bake-YYYY-MM-DDTHH-MM-SS.SSS.log
		if name != "bake.log" && !strings.Contains(name, "-20") {
			t.Errorf("rotated file %s doesn't have expected timestamp format", name)
		}
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{level: "error", expected: []string{"ERROR"}, excluded: []string{"WARN", "INFO", "DEBUG"}},
		{level: "warn", expected: []string{"ERROR", "WARN"}, excluded: []string{"INFO", "DEBUG"}},
		{level: "info", expected: []string{"ERROR", "WARN", "INFO"}, excluded: []string{"DEBUG"}},
		{level: "debug", expected: []string{"ERROR", "WARN", "INFO", "DEBUG"}},
		{level: "bogus", expected: []string{"INFO"}, excluded: []string{"DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")
			cfg := FileConfig{Path: logFile, MaxSizeMB: 10, MaxBackups: 1, MaxAgeDays: 1}
			if err := InitWithFileConfig(tt.level, cfg, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			content, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("failed to read log file: %v", err)
			}
			logContent := string(content)

			for _, exp := range tt.expected {
				if !strings.Contains(logContent, exp) {
					t.Errorf("expected %s in log output", exp)
				}
			}
			for _, exc := range tt.excluded {
				if strings.Contains(logContent, exc) {
					t.Errorf("unexpected %s in log output for level %s", exc, tt.level)
				}
			}
		})
	}
}

func TestNamed(t *testing.T) {
	set(zap.NewNop())
	Named("texture").Info("dropped before init")

	logFile := filepath.Join(t.TempDir(), "named.log")
	if err := InitWithFileConfig("info", FileConfig{Path: logFile, MaxSizeMB: 1}, false); err != nil {
		t.Fatal(err)
	}
	Named("texture").Info("converting texture", zap.String("source", "albedo.png"))
	Sync()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("log file is not JSON lines: %v: %s", err, content)
	}
	want := map[string]string{"stage": "texture", "msg": "converting texture", "source": "albedo.png", "level": "INFO"}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, entry[k], v)
		}
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/bake.log")

	if cfg.Path != "/tmp/bake.log" {
		t.Errorf("expected path /tmp/bake.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 50 {
		t.Errorf("expected MaxSizeMB 50, got %d", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("expected MaxBackups 3, got %d", cfg.MaxBackups)
	}
	if cfg.MaxAgeDays != 7 {
		t.Errorf("expected MaxAgeDays 7, got %d", cfg.MaxAgeDays)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Console: &buf})
	log.Named("shaders").Info("hidden")
	log.Named("shaders").Warn("glslc slow", zap.String("source", "pbr.glsl"))
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	for _, want := range []string{"WARN", "shaders", "glslc slow", "pbr.glsl"} {
		if !strings.Contains(out, want) {
			t.Errorf("console line missing %q: %s", want, out)
		}
	}
}

func TestNewWithoutSinks(t *testing.T) {
	log := New(Options{Level: "debug"})
	if log.Core().Enabled(zap.ErrorLevel) {
		t.Error("logger without sinks should be a no-op")
	}
}
