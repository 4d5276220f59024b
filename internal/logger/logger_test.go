package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"debug", "debug", false},
		{"INFO", "info", false},
		{"", "info", false},
		{"warn", "warn", false},
		{"error", "error", false},
		{"verbose", "info", true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got.String() != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInit_DSPFile(t *testing.T) {
	dir := t.TempDir()
	dspPath := filepath.Join(dir, "nested", "dsp.log")

	// 主日志级别为 error 时 DSP 文件仍记录 info 级别的电平报告
	if err := Init(Config{Level: "error", DSPFile: dspPath}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	DSP().Infof("in rms=%.1f dB", -20.0)
	Sync()

	data, err := os.ReadFile(dspPath)
	if err != nil {
		t.Fatalf("read dsp log: %v", err)
	}
	if !strings.Contains(string(data), "in rms=-20.0 dB") {
		t.Errorf("dsp log missing report: %q", data)
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInit_MainFileRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxout.log")
	if err := Init(Config{Level: "warn", File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Infof("[audio] 被过滤 %d", 1)
	Warnf("[audio] 保留 %d", 2)
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "被过滤") {
		t.Errorf("info line should be filtered at warn level: %q", data)
	}
	if !strings.Contains(string(data), "保留 2") {
		t.Errorf("warn line missing: %q", data)
	}
}
