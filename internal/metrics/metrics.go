// Package metrics 导出播放器和 DSP 处理链的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxout"

// Recorder 持有全部指标。nil Recorder 的方法都是空操作。
type Recorder struct {
	playbacks        *prometheus.CounterVec
	playbackDuration prometheus.Histogram
	underruns        prometheus.Counter
	dspFailures      *prometheus.CounterVec
	interrupts       *prometheus.CounterVec
	speaking         prometheus.Gauge
}

// New 创建指标并注册到 reg。reg 为 nil 时只创建不注册。
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		playbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playbacks_total",
				Help:      "Total number of playbacks by outcome",
			},
			[]string{"outcome"}, // completed, interrupted, timeout, error
		),
		playbackDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "playback_duration_seconds",
				Help:      "Wall-clock duration from stream start to teardown",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		underruns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "underruns_total",
				Help:      "Device callbacks served with silence because the chunk queue was empty",
			},
		),
		dspFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dsp_stage_failures_total",
				Help:      "DSP stages bypassed after a failure",
			},
			[]string{"stage"},
		),
		interrupts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interrupts_total",
				Help:      "Playbacks stopped by a push-to-talk signal",
			},
			[]string{"signal"}, // toggle, start
		),
		speaking: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "speaking",
				Help:      "1 while an output stream is playing",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(r.playbacks, r.playbackDuration, r.underruns, r.dspFailures, r.interrupts, r.speaking)
	}
	return r
}

// Playback 记录一次播放的结果与时长。
func (r *Recorder) Playback(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.playbacks.WithLabelValues(outcome).Inc()
	r.playbackDuration.Observe(d.Seconds())
}

// Underrun 记录一次欠载。会在音频回调线程上调用。
func (r *Recorder) Underrun() {
	if r == nil {
		return
	}
	r.underruns.Inc()
}

// DSPFailure 记录一次处理级失败。
func (r *Recorder) DSPFailure(stage string) {
	if r == nil {
		return
	}
	r.dspFailures.WithLabelValues(stage).Inc()
}

// Interrupt 记录一次 PTT 打断。
func (r *Recorder) Interrupt(signal string) {
	if r == nil {
		return
	}
	r.interrupts.WithLabelValues(signal).Inc()
}

// SetSpeaking 更新播放状态。
func (r *Recorder) SetSpeaking(on bool) {
	if r == nil {
		return
	}
	if on {
		r.speaking.Set(1)
	} else {
		r.speaking.Set(0)
	}
}
