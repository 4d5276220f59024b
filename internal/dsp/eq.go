package dsp

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/filter/crossover"
)

// crossoverOrder Linkwitz-Riley 阶数，LR4 即两个二阶 Butterworth 级联。
const crossoverOrder = 4

// ThreeBandEQ 用两个 Linkwitz-Riley 分频器把信号拆成低、中、高三段，
// 按增益重新相加：
//
//	low, rest = split(lowFreq)
//	mid, high = split(highFreq, rest)
//
// 三段增益都为 0 dB 时，远离分频点的频率电平不变。
type ThreeBandEQ struct {
	sampleRate int
	lowFreq    float64
	highFreq   float64

	low, high *crossover.Crossover
}

// NewThreeBandEQ 创建三段 EQ。分频点非法时返回错误。
func NewThreeBandEQ(sampleRate int, lowFreq, highFreq float64) (*ThreeBandEQ, error) {
	eq := &ThreeBandEQ{}
	if err := eq.setup(sampleRate, lowFreq, highFreq); err != nil {
		return nil, err
	}
	return eq, nil
}

// setup 在采样率或分频点变化时重建分频器。
func (eq *ThreeBandEQ) setup(sampleRate int, lowFreq, highFreq float64) error {
	if eq.sampleRate == sampleRate && eq.lowFreq == lowFreq && eq.highFreq == highFreq {
		return nil
	}
	nyquist := float64(sampleRate) / 2
	if sampleRate <= 0 || lowFreq <= 0 || highFreq <= lowFreq || highFreq >= nyquist {
		return fmt.Errorf("EQ 分频点无效: low=%.0fHz high=%.0fHz (采样率 %d)", lowFreq, highFreq, sampleRate)
	}

	eq.sampleRate = sampleRate
	eq.lowFreq = lowFreq
	eq.highFreq = highFreq
	if err := eq.build(); err != nil {
		eq.sampleRate, eq.lowFreq, eq.highFreq = 0, 0, 0
		return err
	}
	return nil
}

// build 按当前参数新建两个处于静止状态的分频器。
func (eq *ThreeBandEQ) build() error {
	low, err := crossover.New(eq.lowFreq, crossoverOrder, float64(eq.sampleRate))
	if err != nil {
		return fmt.Errorf("创建 %.0fHz 分频器失败: %w", eq.lowFreq, err)
	}
	high, err := crossover.New(eq.highFreq, crossoverOrder, float64(eq.sampleRate))
	if err != nil {
		return fmt.Errorf("创建 %.0fHz 分频器失败: %w", eq.highFreq, err)
	}
	eq.low, eq.high = low, high
	return nil
}

// Process 原地处理一段音频。每次调用都从静止状态开始滤波。
func (eq *ThreeBandEQ) Process(samples []float32, lowGainDB, midGainDB, highGainDB float64) {
	if err := eq.build(); err != nil {
		// 由 runStage 转成 StageError
		panic(err)
	}

	lowGain := DBToLinear(lowGainDB)
	midGain := DBToLinear(midGainDB)
	highGain := DBToLinear(highGainDB)

	for i, s := range samples {
		lo, rest := eq.low.ProcessSample(float64(s))
		mid, hi := eq.high.ProcessSample(rest)
		samples[i] = float32(lo*lowGain + mid*midGain + hi*highGain)
	}
}
