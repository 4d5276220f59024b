package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iabetor/voxout/internal/dsp"
)

// Config 是 voxout 的顶层配置结构。
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	DSP       dsp.Config      `yaml:"dsp"`
	Interrupt InterruptConfig `yaml:"interrupt"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AudioConfig 音频播放配置。
type AudioConfig struct {
	// Backend 输出后端：malgo 或 oto。
	Backend string `yaml:"backend"`
	// BufferSize 每次设备回调的帧数。
	BufferSize int  `yaml:"buffer_size"`
	DSPEnabled bool `yaml:"dsp_enabled"`
	// WaitTimeoutSec 等待播放结束的超时（秒），0 表示一直等。
	WaitTimeoutSec int `yaml:"wait_timeout_sec"`
}

// InterruptConfig PTT 打断配置。
type InterruptConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	ToggleFile string `yaml:"toggle_file"`
	StartFile  string `yaml:"start_file"`
	// PollIntervalMs 轮询标志文件的间隔。
	PollIntervalMs int `yaml:"poll_interval_ms"`
	// Watch 使用 fsnotify 监听标志目录，信号出现时立即唤醒等待。
	Watch bool `yaml:"watch"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	DSPFile    string `yaml:"dsp_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// MetricsConfig Prometheus 指标配置。
type MetricsConfig struct {
	// Listen 为空时不启动 /metrics。
	Listen string `yaml:"listen"`
}

// Default 返回未读取任何文件时的配置。
func Default() *Config {
	cfg := &Config{
		Audio: AudioConfig{DSPEnabled: true},
		DSP:   dsp.VoiceDefaults(),
		Interrupt: InterruptConfig{
			Enabled: true,
			Watch:   true,
		},
	}
	setDefaults(cfg)
	return cfg
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。文件中没有出现的字段保留 Default 的值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${VOXOUT_LOG_LEVEL}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// Validate 检查无法自动修正的配置。
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case "malgo", "oto":
	default:
		return fmt.Errorf("未知的音频后端 %q（可选 malgo, oto）", c.Audio.Backend)
	}
	if c.DSP.EQHighFreqHz <= c.DSP.EQLowFreqHz {
		return fmt.Errorf("dsp.eq_high_freq_hz (%v) 必须大于 dsp.eq_low_freq_hz (%v)",
			c.DSP.EQHighFreqHz, c.DSP.EQLowFreqHz)
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = "malgo"
	}
	if cfg.Audio.BufferSize <= 0 {
		cfg.Audio.BufferSize = 2048
	}
	if cfg.Audio.WaitTimeoutSec < 0 {
		cfg.Audio.WaitTimeoutSec = 0
	}

	if cfg.DSP.SampleRate <= 0 {
		cfg.DSP.SampleRate = 24000
	}
	cfg.DSP = cfg.DSP.Normalize()

	if cfg.Interrupt.PollIntervalMs <= 0 {
		cfg.Interrupt.PollIntervalMs = 50
	}
	if cfg.Interrupt.Dir == "" {
		cfg.Interrupt.Dir = "~/.voicemode"
	}
	cfg.Interrupt.Dir = expandHome(cfg.Interrupt.Dir)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Log.DSPFile = expandHome(cfg.Log.DSPFile)
}

// expandHome 把 ~/ 开头的路径替换为用户主目录，Go 不会自动展开 ~。
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return path
	}
	return home + path[1:]
}
