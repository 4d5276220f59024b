package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iabetor/voxout/internal/audio"
	"github.com/iabetor/voxout/internal/config"
	"github.com/iabetor/voxout/internal/dsp"
	"github.com/iabetor/voxout/internal/interrupt"
	"github.com/iabetor/voxout/internal/logger"
	"github.com/iabetor/voxout/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，为空则使用内置默认值")
	file := flag.String("file", "", "要播放的音频文件 (wav/aiff/mp3/ogg)")
	render := flag.String("render", "", "只做 DSP 处理并写入此 WAV 文件，不打开音频设备")
	timeout := flag.Duration("timeout", 0, "等待播放结束的超时，0 表示使用配置值")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "用法: voxout -file <音频文件> [-config voxout.yaml] [-render out.wav]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			os.Exit(1)
		}
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		DSPFile:    cfg.Log.DSPFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	clip, err := audio.DecodeFile(*file)
	if err != nil {
		logger.Errorf("[main] %v", err)
		os.Exit(1)
	}
	logger.Infof("[main] 已加载 %s: %d 帧, %d Hz, %d 声道", *file, clip.Frames(), clip.SampleRate, clip.Channels)

	if *render != "" {
		if err := renderFile(cfg, clip, *render); err != nil {
			logger.Errorf("[main] 渲染失败: %v", err)
			os.Exit(1)
		}
		return
	}

	wait := time.Duration(cfg.Audio.WaitTimeoutSec) * time.Second
	if *timeout > 0 {
		wait = *timeout
	}
	if err := run(cfg, clip, wait); err != nil {
		logger.Errorf("[main] 播放失败: %v", err)
		os.Exit(1)
	}
}

// renderFile 离线处理并写出 WAV，用于试听 DSP 参数。
func renderFile(cfg *config.Config, clip *audio.Clip, out string) error {
	samples := clip.Samples
	if cfg.Audio.DSPEnabled {
		dspCfg := cfg.DSP
		dspCfg.SampleRate = clip.SampleRate
		processed, err := dsp.NewChain(dspCfg).ProcessInterleaved(samples, clip.SampleRate, clip.Channels)
		if err != nil {
			logger.Warnf("[main] DSP 部分处理级失败: %v", err)
		}
		if processed != nil {
			samples = processed
		}
	}
	if err := audio.WriteWAV(out, samples, clip.SampleRate, clip.Channels); err != nil {
		return err
	}
	logger.Infof("[main] 已写入 %s", out)
	return nil
}

func run(cfg *config.Config, clip *audio.Clip, timeout time.Duration) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)
	if cfg.Metrics.Listen != "" {
		srv := metrics.Serve(cfg.Metrics.Listen, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	backend, err := newBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}

	src, closeSrc, err := newInterruptSource(cfg.Interrupt)
	if err != nil {
		return err
	}
	defer closeSrc()

	dspCfg := cfg.DSP
	dspCfg.SampleRate = clip.SampleRate
	player := audio.NewPlayer(backend, audio.PlayerConfig{
		BufferSize: cfg.Audio.BufferSize,
		DSPEnabled: cfg.Audio.DSPEnabled,
		Chain:      dsp.NewChain(dspCfg),
		Interrupt:  src,
		Metrics:    rec,
		OnStateChange: func(from, to audio.State) {
			if to == audio.StateStreaming {
				logger.Infof("[main] 开始说话")
			} else if from == audio.StateStreaming {
				logger.Infof("[main] 停止说话")
			}
		},
	})
	defer player.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		player.Stop()
	}()

	if err := player.Play(clip.Samples, clip.SampleRate, clip.Channels); err != nil {
		return err
	}

	poll := time.Duration(cfg.Interrupt.PollIntervalMs) * time.Millisecond
	completed, interrupted, err := player.WaitWithInterrupt(timeout, poll)
	switch {
	case err != nil:
		return err
	case completed:
		logger.Infof("[main] 播放完成")
	case interrupted:
		logger.Infof("[main] 播放被 PTT 打断")
	case ctx.Err() != nil:
		logger.Infof("[main] 收到退出信号，已停止播放")
	default:
		logger.Warnf("[main] 等待超时 (%v)，已停止播放", timeout)
	}
	return nil
}

func newBackend(name string) (audio.Backend, error) {
	switch name {
	case "oto":
		return audio.NewOtoBackend(), nil
	case "malgo", "":
		return audio.NewMalgoBackend()
	}
	return nil, fmt.Errorf("未知的音频后端: %s", name)
}

// newInterruptSource 按配置创建 PTT 信号源。未启用时返回 nil。
func newInterruptSource(cfg config.InterruptConfig) (interrupt.Source, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return nil, noop, nil
	}

	fs, err := interrupt.NewFileSource(cfg.Dir, cfg.ToggleFile, cfg.StartFile)
	if err != nil {
		return nil, noop, fmt.Errorf("创建 PTT 信号源失败: %w", err)
	}
	if !cfg.Watch {
		return fs, noop, nil
	}

	w, err := interrupt.NewWatcher(fs)
	if err != nil {
		// 监听失败时退回纯轮询
		logger.Warnf("[main] 无法监听 %s，改为轮询: %v", fs.Dir(), err)
		return fs, noop, nil
	}
	return w, func() {
		if err := w.Close(); err != nil {
			logger.Debugf("[main] 关闭 PTT 监听失败: %v", err)
		}
	}, nil
}
