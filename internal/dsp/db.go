// Package dsp 实现 TTS 输出的广播级处理链：
// 前级增益 → 三段 EQ → 光电电平放大器 → 压缩器 → 限幅器 → 输出衰减。
//
// 所有增益参数对外以 dB 表示，内部换算为线性倍数。
package dsp

import "math"

// minDB 是线性值 ≤ 0 时返回的下限，避免 log(0)。
const minDB = -100.0

// DBToLinear 将 dB 转换为线性增益：10^(dB/20)。
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB 将线性增益转换为 dB。linear ≤ 0 时返回 -100。
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return minDB
	}
	return 20 * math.Log10(linear)
}

// timeCoef 返回单极点平滑系数 exp(-1/(t·sr))，t 以毫秒给出。
func timeCoef(ms float64, sampleRate int) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (ms / 1000 * float64(sampleRate)))
}

// levels 返回缓冲区的 RMS 与峰值（dB）。
func levels(samples []float32) (rmsDB, peakDB float64) {
	if len(samples) == 0 {
		return minDB, minDB
	}
	var sum, peak float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return LinearToDB(math.Sqrt(sum / float64(len(samples)))), LinearToDB(peak)
}
