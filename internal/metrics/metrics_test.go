package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Playback("completed", 2*time.Second)
	r.Playback("interrupted", 300*time.Millisecond)
	r.Playback("completed", time.Second)
	r.Underrun()
	r.DSPFailure("eq")
	r.Interrupt("toggle")
	r.SetSpeaking(true)

	if got := testutil.ToFloat64(r.playbacks.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed playbacks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.underruns); got != 1 {
		t.Errorf("underruns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.dspFailures.WithLabelValues("eq")); got != 1 {
		t.Errorf("eq failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.interrupts.WithLabelValues("toggle")); got != 1 {
		t.Errorf("toggle interrupts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.speaking); got != 1 {
		t.Errorf("speaking = %v, want 1", got)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount = (%d, %v)", n, err)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.Playback("completed", time.Second)
	r.Underrun()
	r.DSPFailure("limiter")
	r.Interrupt("start")
	r.SetSpeaking(false)
}
