package dsp

import "math"

// Compressor 是经典的包络跟随压缩器。
// 包络对 |x| 做独立 attack/release 平滑，超过阈值的部分按
// over_dB·(1−1/ratio) 衰减。包络在多次调用之间保留。
type Compressor struct {
	sampleRate int
	ready      bool
	attackMs   float64
	releaseMs  float64

	attackCoef  float64
	releaseCoef float64

	envelope      float64
	gainReduction float64
}

// NewCompressor 创建压缩器。
func NewCompressor(sampleRate int) *Compressor {
	return &Compressor{sampleRate: sampleRate, gainReduction: 1}
}

// setTiming 在采样率或时间参数变化时重新计算系数，包络保持不变。
func (c *Compressor) setTiming(sampleRate int, attackMs, releaseMs float64) {
	if c.ready && c.sampleRate == sampleRate && c.attackMs == attackMs && c.releaseMs == releaseMs {
		return
	}
	c.ready = true
	c.sampleRate = sampleRate
	c.attackMs = attackMs
	c.releaseMs = releaseMs
	c.attackCoef = timeCoef(attackMs, sampleRate)
	c.releaseCoef = timeCoef(releaseMs, sampleRate)
}

// Envelope 返回当前包络值（线性）。
func (c *Compressor) Envelope() float64 { return c.envelope }

// GainReductionDB 返回当前增益衰减量（dB，正数表示衰减）。
func (c *Compressor) GainReductionDB() float64 { return -LinearToDB(c.gainReduction) }

// Process 原地处理。ratio < 1 按 1 处理。
func (c *Compressor) Process(samples []float32, thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) {
	c.setTiming(c.sampleRate, attackMs, releaseMs)

	if ratio < 1 {
		ratio = 1
	}
	threshold := DBToLinear(thresholdDB)
	makeup := DBToLinear(makeupDB)
	slope := 1 - 1/ratio

	for i, s := range samples {
		x := float64(s)
		a := math.Abs(x)

		if a > c.envelope {
			c.envelope = a + c.attackCoef*(c.envelope-a)
		} else {
			c.envelope = a + c.releaseCoef*(c.envelope-a)
		}

		if c.envelope > threshold {
			overDB := LinearToDB(c.envelope / threshold)
			c.gainReduction = DBToLinear(-overDB * slope)
		} else {
			c.gainReduction = 1
		}

		samples[i] = float32(x * c.gainReduction * makeup)
	}
}

func (c *Compressor) reset() {
	c.envelope = 0
	c.gainReduction = 1
}
