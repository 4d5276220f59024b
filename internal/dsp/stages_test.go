package dsp

import (
	"math"
	"math/rand"
	"testing"
)

func constant(n int, v float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestThreeBandEQ_DCFollowsLowBand(t *testing.T) {
	eq, err := NewThreeBandEQ(24000, 200, 4000)
	if err != nil {
		t.Fatalf("NewThreeBandEQ: %v", err)
	}
	buf := constant(24000, 0.25)
	eq.Process(buf, 6, -12, -12)

	// 直流只通过低频段
	want := 0.25 * DBToLinear(6)
	if got := float64(buf[len(buf)-1]); math.Abs(got-want) > 1e-3 {
		t.Errorf("DC output = %v, want %v", got, want)
	}
}

func TestThreeBandEQ_InvalidCrossover(t *testing.T) {
	tests := []struct {
		name      string
		rate      int
		low, high float64
	}{
		{"低点为零", 24000, 0, 4000},
		{"高点低于低点", 24000, 4000, 200},
		{"高点超过奈奎斯特", 16000, 200, 8000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewThreeBandEQ(tt.rate, tt.low, tt.high); err == nil {
				t.Error("expected error for invalid crossover")
			}
		})
	}
}

func TestThreeBandEQ_RebuiltOnlyOnChange(t *testing.T) {
	eq, _ := NewThreeBandEQ(24000, 200, 4000)
	before := eq.low

	if err := eq.setup(24000, 200, 4000); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if eq.low != before {
		t.Error("crossover rebuilt without parameter change")
	}

	if err := eq.setup(48000, 200, 4000); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if eq.low == before || eq.sampleRate != 48000 {
		t.Error("crossover not rebuilt after sample rate change")
	}
}

func TestThreeBandEQ_StateResetPerCall(t *testing.T) {
	eq, _ := NewThreeBandEQ(24000, 200, 4000)
	in := make([]float32, 2400)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/24000))
	}

	first := append([]float32(nil), in...)
	eq.Process(first, 3, -3, 2)
	second := append([]float32(nil), in...)
	eq.Process(second, 3, -3, 2)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs between calls: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestThreeBandEQ_FlatGainsKeepLevel(t *testing.T) {
	eq, _ := NewThreeBandEQ(24000, 200, 4000)
	buf := make([]float32, 24000)
	for i := range buf {
		buf[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/24000))
	}
	eq.Process(buf, 0, 0, 0)

	// 跳过起振段，稳态峰值应接近输入峰值
	var peak float64
	for _, v := range buf[12000:] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if math.Abs(peak-0.5) > 0.02 {
		t.Errorf("flat EQ peak = %f, want ~0.5", peak)
	}
}

func TestOpticalLeveler_PureGainWhenNoReduction(t *testing.T) {
	l := NewOpticalLeveler(24000)
	buf := constant(100, 0.5)
	l.Process(buf, 0, 6)

	want := 0.5 * DBToLinear(6)
	for i, s := range buf {
		if math.Abs(float64(s)-want) > 1e-6 {
			t.Fatalf("sample %d = %v, want %v", i, s, want)
		}
	}
	if l.Cell() != 0 {
		t.Errorf("pure gain stage should not charge the cell, got %v", l.Cell())
	}
}

func TestOpticalLeveler_SteadyStateReduction(t *testing.T) {
	l := NewOpticalLeveler(24000)
	buf := constant(24000, 1.0)
	l.Process(buf, 4, 0)

	want := DBToLinear(-4)
	if got := float64(buf[len(buf)-1]); math.Abs(got-want) > 1e-3 {
		t.Errorf("steady-state gain = %v, want %v", got, want)
	}
}

func TestOpticalLeveler_CellPersistsAcrossCalls(t *testing.T) {
	l := NewOpticalLeveler(24000)
	l.Process(constant(12000, 0.8), 3, 0)
	charged := l.Cell()
	if charged < 0.5 {
		t.Fatalf("cell should charge on loud input, got %v", charged)
	}

	l.Process(make([]float32, 10), 3, 0)
	if l.Cell() < 0.9*charged {
		t.Errorf("cell should release slowly across calls: %v → %v", charged, l.Cell())
	}
}

func TestOpticalLeveler_ReleaseSlowsWithCellLevel(t *testing.T) {
	// 电平越高释放越慢：同样 100 个静音样本，高电平的 cell 相对衰减更少
	hi := NewOpticalLeveler(24000)
	hi.cell = 0.9
	lo := NewOpticalLeveler(24000)
	lo.cell = 0.2

	hi.Process(make([]float32, 100), 3, 0)
	lo.Process(make([]float32, 100), 3, 0)

	if hi.Cell()/0.9 <= lo.Cell()/0.2 {
		t.Errorf("high cell released faster: hi=%v lo=%v", hi.Cell()/0.9, lo.Cell()/0.2)
	}
}

func TestCompressor_SteadyStateReduction(t *testing.T) {
	// -6 dBFS 恒定输入，阈值 -18 dB，4:1 → (−6 − (−18)) × (1 − 1/4) = 9 dB
	c := NewCompressor(24000)
	in := float32(DBToLinear(-6))
	buf := constant(24000, in)
	c.Process(buf, -18, 4, 10, 100, 0)

	got := LinearToDB(float64(buf[len(buf)-1]) / float64(in))
	if math.Abs(got+9) > 0.01 {
		t.Errorf("gain = %.3f dB, want -9 dB", got)
	}
	if math.Abs(c.GainReductionDB()-9) > 0.01 {
		t.Errorf("GainReductionDB = %.3f, want 9", c.GainReductionDB())
	}
}

func TestCompressor_BelowThresholdIsUnity(t *testing.T) {
	c := NewCompressor(24000)
	in := float32(DBToLinear(-30))
	buf := constant(2400, in)
	c.Process(buf, -18, 4, 10, 100, 3)

	want := float64(in) * DBToLinear(3)
	for i, s := range buf {
		if math.Abs(float64(s)-want) > 1e-6 {
			t.Fatalf("sample %d = %v, want %v (makeup only)", i, s, want)
		}
	}
}

func TestCompressor_TimingKeepsEnvelope(t *testing.T) {
	c := NewCompressor(24000)
	c.Process(constant(2400, 0.5), -18, 4, 10, 100, 0)
	env := c.Envelope()

	c.setTiming(48000, 10, 100)
	if c.Envelope() != env {
		t.Errorf("envelope reset by timing change: %v → %v", env, c.Envelope())
	}
}

func TestLimiter_NeverExceedsCeiling(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, ceilingDB := range []float64{-12, -6, -1, 0} {
		l := NewLimiter(24000, 5)
		buf := make([]float32, 48000)
		for i := range buf {
			buf[i] = float32((rng.Float64()*2 - 1) * 0.3)
			if rng.Intn(500) == 0 {
				buf[i] = float32((rng.Float64()*2 - 1) * 4)
			}
		}
		l.Process(buf, ceilingDB, 50)

		ceiling := DBToLinear(ceilingDB)
		for i, s := range buf {
			if math.Abs(float64(s)) > ceiling+1e-6 {
				t.Fatalf("ceiling %v dB: sample %d = %v exceeds %v", ceilingDB, i, s, ceiling)
			}
		}
	}
}

func TestLimiter_ReducesGainAheadOfPeak(t *testing.T) {
	l := NewLimiter(24000, 5) // 120 个样本前瞻
	buf := constant(12000, 0.1)
	buf[1000] = 1.0
	l.Process(buf, -6, 50)

	ceiling := DBToLinear(-6)
	if got := float64(buf[1000 - l.Lookahead() - 1]); math.Abs(got-0.1) > 1e-6 {
		t.Errorf("sample before lookahead window = %v, want untouched 0.1", got)
	}
	if got := float64(buf[950]); got > 0.1*ceiling+1e-6 {
		t.Errorf("sample inside lookahead window = %v, want reduced to %v", got, 0.1*ceiling)
	}
	if got := float64(buf[1000]); math.Abs(got-ceiling) > 1e-5 {
		t.Errorf("peak = %v, want ceiling %v", got, ceiling)
	}
	// release 平滑回到单位增益
	if got := float64(buf[1001]); got >= 0.1 || got <= 0.1*ceiling {
		t.Errorf("first release sample = %v, want between %v and 0.1", got, 0.1*ceiling)
	}
	if got := float64(buf[len(buf)-1]); math.Abs(got-0.1) > 1e-4 {
		t.Errorf("gain did not recover: last sample = %v", got)
	}
}

func TestLimiter_SetupKeepsGain(t *testing.T) {
	l := NewLimiter(24000, 5)
	buf := constant(100, 2)
	l.Process(buf, 0, 50)
	g := l.Gain()

	l.setup(48000, 5)
	if l.Gain() != g {
		t.Errorf("gain reset by setup: %v → %v", g, l.Gain())
	}
	if l.Lookahead() != 240 {
		t.Errorf("lookahead = %d, want 240", l.Lookahead())
	}
}
