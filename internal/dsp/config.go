package dsp

// Config 是处理链的全部参数。每次处理调用期间视为不可变。
type Config struct {
	Enabled    bool `yaml:"enabled"`
	SampleRate int  `yaml:"sample_rate"`

	// 前级增益
	PreGainDB float64 `yaml:"pre_gain_db"`

	// 三段 EQ，三段增益都为 0 时整级跳过
	EQLowGainDB  float64 `yaml:"eq_low_gain_db"`
	EQMidGainDB  float64 `yaml:"eq_mid_gain_db"`
	EQHighGainDB float64 `yaml:"eq_high_gain_db"`
	EQLowFreqHz  float64 `yaml:"eq_low_freq_hz"`
	EQHighFreqHz float64 `yaml:"eq_high_freq_hz"`

	// LA-2A 式电平放大器：只有输出增益和峰值衰减两个旋钮
	LevelerEnabled         bool    `yaml:"leveler_enabled"`
	LevelerGainDB          float64 `yaml:"leveler_gain_db"`
	LevelerPeakReductionDB float64 `yaml:"leveler_peak_reduction_db"`

	CompressorEnabled     bool    `yaml:"compressor_enabled"`
	CompressorThresholdDB float64 `yaml:"compressor_threshold_db"`
	CompressorRatio       float64 `yaml:"compressor_ratio"`
	CompressorAttackMs    float64 `yaml:"compressor_attack_ms"`
	CompressorReleaseMs   float64 `yaml:"compressor_release_ms"`
	CompressorMakeupDB    float64 `yaml:"compressor_makeup_db"`

	LimiterEnabled     bool    `yaml:"limiter_enabled"`
	LimiterCeilingDB   float64 `yaml:"limiter_ceiling_db"`
	LimiterReleaseMs   float64 `yaml:"limiter_release_ms"`
	LimiterLookaheadMs float64 `yaml:"limiter_lookahead_ms"`

	// 限幅器之后的最终输出增益，只允许衰减（≤ 0 dB）
	OutputGainDB float64 `yaml:"output_gain_db"`
}

// DefaultConfig 返回中性的默认参数。
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		SampleRate:             24000,
		EQLowFreqHz:            200,
		EQHighFreqHz:           4000,
		LevelerEnabled:         true,
		LevelerGainDB:          6,
		LevelerPeakReductionDB: 3,
		CompressorEnabled:      true,
		CompressorThresholdDB:  -18,
		CompressorRatio:        4,
		CompressorAttackMs:     10,
		CompressorReleaseMs:    100,
		LimiterEnabled:         true,
		LimiterCeilingDB:       -1,
		LimiterReleaseMs:       50,
		LimiterLookaheadMs:     DefaultLookaheadMs,
	}
}

// VoiceDefaults 返回针对 TTS 人声调校过的预设：
// 低频略收、高频略提，电平放大器和压缩器稍重。
func VoiceDefaults() Config {
	cfg := DefaultConfig()
	cfg.EQLowGainDB = -2
	cfg.EQHighGainDB = 1.5
	cfg.LevelerPeakReductionDB = 4
	cfg.CompressorRatio = 3
	return cfg
}

// Normalize 把越界参数收回合法范围。
func (c Config) Normalize() Config {
	if c.OutputGainDB > 0 {
		c.OutputGainDB = 0
	}
	if c.CompressorRatio < 1 {
		c.CompressorRatio = 1
	}
	return c
}

func (c Config) eqActive() bool {
	return c.EQLowGainDB != 0 || c.EQMidGainDB != 0 || c.EQHighGainDB != 0
}
