package dsp

import "math"

// DefaultLookaheadMs 是限幅器默认的前瞻窗口。
const DefaultLookaheadMs = 5.0

// Limiter 是前瞻峰值限幅器，总是处理链的最后一级。
//
// 对每个输出样本检查 [i, i+lookahead] 窗口内的峰值；需要的增益比当前更低时
// 立即跳到目标（无 attack 平滑），回升时按 release 时间常数平滑回到 1。
// 因此输出永远不会超过 ceiling。当前增益在多次调用之间保留。
type Limiter struct {
	sampleRate  int
	lookaheadMs float64
	lookahead   int

	gain       float64
	gainTarget float64

	// window 是滑动最大值用的单调队列（样本下标），跨调用复用容量。
	window []int
}

// NewLimiter 创建限幅器。lookaheadMs ≤ 0 时使用默认值。
func NewLimiter(sampleRate int, lookaheadMs float64) *Limiter {
	l := &Limiter{gain: 1, gainTarget: 1}
	l.setup(sampleRate, lookaheadMs)
	return l
}

// setup 重建前瞻窗口长度，保留当前增益。
func (l *Limiter) setup(sampleRate int, lookaheadMs float64) {
	if lookaheadMs <= 0 {
		lookaheadMs = DefaultLookaheadMs
	}
	l.sampleRate = sampleRate
	l.lookaheadMs = lookaheadMs
	l.lookahead = int(lookaheadMs / 1000 * float64(sampleRate))
}

// Lookahead 返回前瞻窗口的样本数。
func (l *Limiter) Lookahead() int { return l.lookahead }

// Gain 返回当前施加的线性增益。
func (l *Limiter) Gain() float64 { return l.gain }

// Process 原地处理。
func (l *Limiter) Process(samples []float32, ceilingDB, releaseMs float64) {
	n := len(samples)
	if n == 0 {
		return
	}
	ceiling := DBToLinear(ceilingDB)
	releaseCoef := timeCoef(releaseMs, l.sampleRate)

	abs := func(j int) float64 { return math.Abs(float64(samples[j])) }

	dq := l.window[:0]
	head, next := 0, 0

	for i := 0; i < n; i++ {
		// 把窗口右端推进到 i+lookahead
		for next < n && next <= i+l.lookahead {
			a := abs(next)
			for len(dq) > head && abs(dq[len(dq)-1]) <= a {
				dq = dq[:len(dq)-1]
			}
			dq = append(dq, next)
			next++
		}
		for dq[head] < i {
			head++
		}
		peak := abs(dq[head])

		l.gainTarget = 1
		if peak > ceiling {
			l.gainTarget = ceiling / peak
		}

		if l.gainTarget < l.gain {
			l.gain = l.gainTarget
		} else {
			l.gain = l.gainTarget + releaseCoef*(l.gain-l.gainTarget)
		}

		y := float64(samples[i]) * l.gain
		// float32 舍入可能越过 ceiling 一个 ulp
		if y > ceiling {
			y = ceiling
		} else if y < -ceiling {
			y = -ceiling
		}
		samples[i] = float32(y)
	}

	l.window = dq[:0]
}

func (l *Limiter) reset() {
	l.gain = 1
	l.gainTarget = 1
}
