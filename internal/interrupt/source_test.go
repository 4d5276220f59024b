package interrupt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCheck_ToggleTakesPriorityAndIsConsumed(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFileSource(dir, "", "")
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	touch(t, src.TogglePath())
	touch(t, src.StartPath())

	sig, err := Check(src)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if sig != SignalToggle {
		t.Fatalf("signal = %s, want toggle", sig)
	}
	if fileExists(src.TogglePath()) {
		t.Error("toggle file should be consumed")
	}
	if !fileExists(src.StartPath()) {
		t.Error("start file must be left for the recorder")
	}
}

func TestCheck_StartIsNotConsumed(t *testing.T) {
	dir := t.TempDir()
	src, _ := NewFileSource(dir, "", "")
	touch(t, src.StartPath())

	for i := 0; i < 2; i++ {
		sig, err := Check(src)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if sig != SignalStart {
			t.Fatalf("check %d: signal = %s, want start", i, sig)
		}
	}
}

func TestCheck_NoSignal(t *testing.T) {
	src, _ := NewFileSource(t.TempDir(), "", "")
	sig, err := Check(src)
	if err != nil || sig != SignalNone {
		t.Fatalf("Check = (%s, %v), want (none, nil)", sig, err)
	}
}

type brokenSource struct {
	start bool
}

func (b *brokenSource) ToggleRequested() (bool, error) { return false, errors.New("stat: permission denied") }
func (b *brokenSource) ConsumeToggle() error           { return nil }
func (b *brokenSource) StartRequested() (bool, error)  { return b.start, nil }

func TestCheck_ToggleErrorStillChecksStart(t *testing.T) {
	sig, err := Check(&brokenSource{start: true})
	if sig != SignalStart {
		t.Errorf("signal = %s, want start", sig)
	}
	if err == nil {
		t.Error("toggle error should be reported")
	}
}

func TestNewFileSource_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	src, err := NewFileSource("", "", "")
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if want := filepath.Join("/home/tester", ".voicemode", DefaultToggleFile); src.TogglePath() != want {
		t.Errorf("TogglePath = %q, want %q", src.TogglePath(), want)
	}
	if want := filepath.Join("/home/tester", ".voicemode", DefaultStartFile); src.StartPath() != want {
		t.Errorf("StartPath = %q, want %q", src.StartPath(), want)
	}
}

func TestFileSource_ConsumeMissingToggle(t *testing.T) {
	src, _ := NewFileSource(t.TempDir(), "", "")
	if err := src.ConsumeToggle(); err != nil {
		t.Errorf("consuming a missing toggle should not fail: %v", err)
	}
}

func TestFlag(t *testing.T) {
	f := NewFlag()
	f.RaiseStart()
	f.RaiseToggle()

	select {
	case <-f.Notify():
	default:
		t.Fatal("expected notification")
	}

	sig, _ := Check(f)
	if sig != SignalToggle {
		t.Fatalf("signal = %s, want toggle", sig)
	}
	sig, _ = Check(f)
	if sig != SignalStart {
		t.Fatalf("signal after toggle consumed = %s, want start", sig)
	}

	f.ConsumeStart()
	if sig, _ = Check(f); sig != SignalNone {
		t.Fatalf("signal after reset = %s, want none", sig)
	}
}

func TestWatcher_NotifiesOnFlagFile(t *testing.T) {
	src, _ := NewFileSource(filepath.Join(t.TempDir(), "ptt"), "", "")
	w, err := NewWatcher(src)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	touch(t, filepath.Join(src.Dir(), "unrelated"))
	touch(t, src.TogglePath())

	select {
	case <-w.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for toggle file")
	}

	sig, err := Check(w)
	if err != nil || sig != SignalToggle {
		t.Fatalf("Check = (%s, %v), want (toggle, nil)", sig, err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSignal_String(t *testing.T) {
	tests := []struct {
		s    Signal
		want string
	}{
		{SignalNone, "none"},
		{SignalToggle, "toggle"},
		{SignalStart, "start"},
		{Signal(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Signal(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
