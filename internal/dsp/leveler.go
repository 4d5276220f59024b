package dsp

import (
	"math"
)

// 光电管时间常数。释放时间随光电管电平增长：40ms 到 540ms。
const (
	levelerAttackSec      = 0.010
	levelerReleaseBaseSec = 0.040
	levelerReleaseSlope   = 0.5
	levelerKnee           = 0.1
	levelerRelax          = 0.9
)

// OpticalLeveler 模拟 LA-2A 式光电电平放大器。
// 光电管状态 cell 随信号包络充电、按程序相关的速度放电；
// 增益衰减量由 cell 决定，低于软拐点时缓慢回到 1。
// cell 与当前增益在多次调用之间保留。
type OpticalLeveler struct {
	sampleRate    int
	attackCoef    float64
	gainReduction float64
	cell          float64
}

// NewOpticalLeveler 创建电平放大器。
func NewOpticalLeveler(sampleRate int) *OpticalLeveler {
	l := &OpticalLeveler{gainReduction: 1}
	l.setSampleRate(sampleRate)
	return l
}

// setSampleRate 只更新时间系数，保留光电管记忆。
func (l *OpticalLeveler) setSampleRate(sampleRate int) {
	l.sampleRate = sampleRate
	l.attackCoef = timeCoef(levelerAttackSec*1000, sampleRate)
}

// Cell 返回当前光电管电平。
func (l *OpticalLeveler) Cell() float64 { return l.cell }

// GainReduction 返回当前线性增益衰减系数。
func (l *OpticalLeveler) GainReduction() float64 { return l.gainReduction }

// Process 原地处理。peakReductionDB ≤ 0 时退化为纯增益级。
func (l *OpticalLeveler) Process(samples []float32, peakReductionDB, outputGainDB float64) {
	outputGain := DBToLinear(outputGainDB)
	if peakReductionDB <= 0 {
		for i, s := range samples {
			samples[i] = float32(float64(s) * outputGain)
		}
		return
	}

	target := DBToLinear(-peakReductionDB)
	sr := float64(l.sampleRate)

	for i, s := range samples {
		x := float64(s)
		a := math.Abs(x)

		if a > l.cell {
			l.cell = a + l.attackCoef*(l.cell-a)
		} else {
			releaseSec := levelerReleaseBaseSec + levelerReleaseSlope*l.cell
			rc := math.Exp(-1 / (releaseSec * sr))
			l.cell = a + rc*(l.cell-a)
		}

		if l.cell > levelerKnee {
			amount := math.Min(1, l.cell)
			l.gainReduction = 1 - amount*(1-target)
		} else {
			l.gainReduction = 1 + levelerRelax*(l.gainReduction-1)
		}

		samples[i] = float32(x * l.gainReduction * outputGain)
	}
}

func (l *OpticalLeveler) reset() {
	l.cell = 0
	l.gainReduction = 1
}
