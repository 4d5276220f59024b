package dsp

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/iabetor/voxout/internal/logger"
)

// StageError 表示某一处理级失败（panic 或输出非有限值）。
// 失败的级被旁路，链继续使用该级之前的缓冲。
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("DSP 处理级 %s 失败: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageSet 是一个声道的全部处理级实例。
type stageSet struct {
	eq      *ThreeBandEQ
	eqErr   error
	leveler *OpticalLeveler
	comp    *Compressor
	limiter *Limiter
}

func newStageSet(cfg Config) *stageSet {
	st := &stageSet{
		eq:      &ThreeBandEQ{},
		leveler: NewOpticalLeveler(cfg.SampleRate),
		comp:    NewCompressor(cfg.SampleRate),
		limiter: NewLimiter(cfg.SampleRate, cfg.LimiterLookaheadMs),
	}
	st.eqErr = st.eq.setup(cfg.SampleRate, cfg.EQLowFreqHz, cfg.EQHighFreqHz)
	st.comp.setTiming(cfg.SampleRate, cfg.CompressorAttackMs, cfg.CompressorReleaseMs)
	return st
}

// apply 只重建系数依赖于变化参数的处理级，其余状态保持。
func (st *stageSet) apply(old, cfg Config) {
	st.eqErr = st.eq.setup(cfg.SampleRate, cfg.EQLowFreqHz, cfg.EQHighFreqHz)
	if old.SampleRate != cfg.SampleRate {
		st.leveler.setSampleRate(cfg.SampleRate)
	}
	st.comp.setTiming(cfg.SampleRate, cfg.CompressorAttackMs, cfg.CompressorReleaseMs)
	if old.SampleRate != cfg.SampleRate || old.LimiterLookaheadMs != cfg.LimiterLookaheadMs {
		st.limiter.setup(cfg.SampleRate, cfg.LimiterLookaheadMs)
	}
}

// Chain 按固定顺序串联各处理级：
// 前级增益 → EQ → 电平放大器 → 压缩器 → 限幅器 → 输出衰减。
//
// 同一个 Chain 可以在连续的多段语音之间复用（电平放大器等的记忆会延续），
// 但不能被多个 goroutine 同时调用。
type Chain struct {
	cfg      Config
	channels []*stageSet
}

// NewChain 使用给定配置创建处理链。
func NewChain(cfg Config) *Chain {
	return &Chain{cfg: cfg.Normalize()}
}

// Config 返回当前生效的配置。
func (c *Chain) Config() Config { return c.cfg }

// Reconfigure 切换到新配置。
// 只有系数依赖于变化参数的处理级会被重建：采样率或分频点变化重建 EQ，
// 采样率变化更新电平放大器的时间系数，时间参数变化更新压缩器系数，
// 采样率或前瞻时长变化重建限幅器窗口。电平放大器、压缩器包络和
// 限幅器增益等记忆保持不变。
func (c *Chain) Reconfigure(cfg Config) {
	cfg = cfg.Normalize()
	old := c.cfg
	c.cfg = cfg
	if old.SampleRate != cfg.SampleRate {
		logger.Infof("[dsp] 采样率 %d → %d，重建处理级系数", old.SampleRate, cfg.SampleRate)
	}
	for _, st := range c.channels {
		st.apply(old, cfg)
	}
}

func (c *Chain) stages(ch int) *stageSet {
	for len(c.channels) <= ch {
		c.channels = append(c.channels, newStageSet(c.cfg))
	}
	return c.channels[ch]
}

func (c *Chain) syncSampleRate(sampleRate int) {
	if sampleRate > 0 && sampleRate != c.cfg.SampleRate {
		cfg := c.cfg
		cfg.SampleRate = sampleRate
		c.Reconfigure(cfg)
	}
}

// Process 处理单声道缓冲并返回新的 float32 缓冲，长度与输入相同。
// 处理链关闭时原样返回输入。某一级失败时该级被旁路，
// 返回的缓冲仍然可用，error 列出失败的处理级。
func (c *Chain) Process(samples []float32, sampleRate int) ([]float32, error) {
	if !c.cfg.Enabled {
		return samples, nil
	}
	c.syncSampleRate(sampleRate)

	out := make([]float32, len(samples))
	copy(out, samples)
	err := c.run(c.stages(0), out)

	c.report(samples, out)
	return out, err
}

// ProcessInterleaved 处理交错排列的多声道缓冲，每个声道有独立的处理级状态。
func (c *Chain) ProcessInterleaved(samples []float32, sampleRate, channels int) ([]float32, error) {
	if channels <= 1 {
		return c.Process(samples, sampleRate)
	}
	if !c.cfg.Enabled {
		return samples, nil
	}
	c.syncSampleRate(sampleRate)

	frames := len(samples) / channels
	out := make([]float32, len(samples))
	copy(out, samples)

	var errs error
	buf := make([]float32, frames)
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames; i++ {
			buf[i] = samples[i*channels+ch]
		}
		errs = multierr.Append(errs, c.run(c.stages(ch), buf))
		for i := 0; i < frames; i++ {
			out[i*channels+ch] = buf[i]
		}
	}

	c.report(samples, out)
	return out, errs
}

// run 依次执行各处理级，原地修改 buf。
func (c *Chain) run(st *stageSet, buf []float32) error {
	cfg := c.cfg
	var errs error

	if cfg.PreGainDB != 0 {
		applyGain(buf, DBToLinear(cfg.PreGainDB))
	}

	if cfg.eqActive() {
		if st.eqErr != nil {
			errs = multierr.Append(errs, &StageError{Stage: "eq", Err: st.eqErr})
		} else {
			errs = multierr.Append(errs, runStage("eq", buf, func(b []float32) {
				st.eq.Process(b, cfg.EQLowGainDB, cfg.EQMidGainDB, cfg.EQHighGainDB)
			}, nil))
		}
	}

	if cfg.LevelerEnabled {
		errs = multierr.Append(errs, runStage("leveler", buf, func(b []float32) {
			st.leveler.Process(b, cfg.LevelerPeakReductionDB, cfg.LevelerGainDB)
		}, st.leveler.reset))
	}

	if cfg.CompressorEnabled {
		errs = multierr.Append(errs, runStage("compressor", buf, func(b []float32) {
			st.comp.Process(b, cfg.CompressorThresholdDB, cfg.CompressorRatio,
				cfg.CompressorAttackMs, cfg.CompressorReleaseMs, cfg.CompressorMakeupDB)
		}, st.comp.reset))
	}

	if cfg.LimiterEnabled {
		errs = multierr.Append(errs, runStage("limiter", buf, func(b []float32) {
			st.limiter.Process(b, cfg.LimiterCeilingDB, cfg.LimiterReleaseMs)
		}, st.limiter.reset))
	}

	// 输出衰减放在限幅器之后，只会降低电平
	if cfg.OutputGainDB < 0 {
		applyGain(buf, DBToLinear(cfg.OutputGainDB))
	}

	return errs
}

// runStage 在副本上执行一个处理级。panic 或产生 NaN/Inf 时丢弃副本、
// 重置该级状态并返回 StageError，buf 保持该级之前的内容。
func runStage(name string, buf []float32, process func([]float32), reset func()) (err error) {
	tmp := make([]float32, len(buf))
	copy(tmp, buf)

	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			if reset != nil {
				reset()
			}
			logger.Warnf("[dsp] %v，跳过该级", err)
		}
	}()

	process(tmp)

	for i, v := range tmp {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return &StageError{Stage: name, Err: fmt.Errorf("样本 %d 非有限值", i)}
		}
	}
	copy(buf, tmp)
	return nil
}

func applyGain(buf []float32, gain float64) {
	for i, s := range buf {
		buf[i] = float32(float64(s) * gain)
	}
}

func (c *Chain) report(in, out []float32) {
	inRMS, inPeak := levels(in)
	outRMS, outPeak := levels(out)
	logger.DSP().Infof("[dsp] 输入 RMS=%.1fdB 峰值=%.1fdB → 输出 RMS=%.1fdB 峰值=%.1fdB (增益 %+.1fdB)",
		inRMS, inPeak, outRMS, outPeak, outRMS-inRMS)
}
