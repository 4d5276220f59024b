package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L 是全局 logger 实例。
	L *zap.SugaredLogger
	// base 是 L 底层的 zap.Logger，Sync 时使用。
	base *zap.Logger
	// dsp 是 DSP 电平报告专用 logger，配置了 DSPFile 时会额外写入独立文件。
	dsp *zap.SugaredLogger
)

func init() {
	// 默认使用 info 级别，输出到 stderr。
	z, _ := zap.NewProduction()
	base = z
	L = z.Sugar()
	dsp = L.Named("dsp")
}

// Config 日志配置。
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	File       string // 日志文件路径，为空则只输出到控制台
	DSPFile    string // DSP 电平日志文件，为空则与主日志合并
	MaxSize    int    // 单个日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件最大数量
	MaxAge     int    // 保留旧日志文件的最大天数
}

// Init 根据配置初始化全局 logger。
func Init(cfg Config) error {
	zapLevel, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var output io.Writer = os.Stderr
	if cfg.File != "" {
		fileWriter, err := rotatingFile(cfg.File, cfg)
		if err != nil {
			return err
		}
		// 同时输出到文件和控制台
		output = io.MultiWriter(os.Stderr, fileWriter)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(output),
		zapLevel,
	)

	base = zap.New(core, zap.AddCallerSkip(1))
	L = base.Sugar()

	dspCore := core
	if cfg.DSPFile != "" {
		dspWriter, err := rotatingFile(cfg.DSPFile, cfg)
		if err != nil {
			return err
		}
		// 电平报告在 info 级别，独立文件不受主日志级别影响
		fileCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(dspWriter),
			zapcore.InfoLevel,
		)
		dspCore = zapcore.NewTee(core, fileCore)
	}
	dsp = zap.New(dspCore).Named("dsp").Sugar()
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("不支持的日志级别: %s", level)
}

// rotatingFile 创建按大小滚动的日志文件。
func rotatingFile(path string, cfg Config) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 64
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,    // MB
		MaxBackups: maxBackups, // 保留旧文件数量
		MaxAge:     maxAge,     // 保留天数
		Compress:   true,
	}, nil
}

// DSP 返回 DSP 电平报告使用的 logger。
func DSP() *zap.SugaredLogger { return dsp }

// Sync 刷新缓冲区，应在程序退出前调用。
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
	if dsp != nil {
		_ = dsp.Sync()
	}
}

// Debugf 记录格式化调试级别日志。
func Debugf(template string, args ...interface{}) { L.Debugf(template, args...) }

// Infof 记录格式化信息级别日志。
func Infof(template string, args ...interface{}) { L.Infof(template, args...) }

// Warnf 记录格式化警告级别日志。
func Warnf(template string, args ...interface{}) { L.Warnf(template, args...) }

// Errorf 记录格式化错误级别日志。
func Errorf(template string, args ...interface{}) { L.Errorf(template, args...) }
