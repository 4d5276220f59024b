package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoBackend 通过 malgo (miniaudio) 打开默认扬声器。
// 设备格式为 S16，回调输出的 float32 在写入前钳位到 [-1, 1]。
type MalgoBackend struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewMalgoBackend 初始化播放上下文。
func NewMalgoBackend() (*MalgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &MalgoBackend{ctx: ctx}, nil
}

// Open 以 cfg 打开一个播放设备，尚未启动。
func (b *MalgoBackend) Open(cfg StreamConfig, cb Callback) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrPlayerClosed
	}

	stream := &malgoStream{
		finished: make(chan struct{}),
		quit:     make(chan struct{}),
	}
	gate := &callbackGate{cb: cb, onFinish: func() { close(stream.finished) }}
	channels := cfg.Channels
	scratch := make([]float32, cfg.FramesPerBuffer*channels)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	deviceConfig.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, _ []byte, frameCount uint32) {
			n := int(frameCount) * channels
			if n > cap(scratch) {
				// 设备实际周期比请求的大，只会发生在第一次回调
				scratch = make([]float32, n)
			}
			buf := scratch[:n]
			gate.fill(buf, int(frameCount))
			PutInt16LE(outputSamples, buf)
		},
	}

	device, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("初始化播放设备失败: %w", err)
	}
	stream.device = device
	return stream, nil
}

// Close 释放播放上下文。
func (b *MalgoBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	if b.ctx != nil {
		_ = b.ctx.Uninit()
		b.ctx.Free()
		b.ctx = nil
	}
}

type malgoStream struct {
	device *malgo.Device

	// finished 在回调第一次返回 Complete 或 Abort 时关闭
	finished chan struct{}
	quit     chan struct{}

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Start 启动设备。回调结束后设备由后台协程停止，不依赖调用方 Wait。
func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("启动播放设备失败: %w", err)
	}
	go stopOnFinish(s.finished, s.quit, s.Stop)
	return nil
}

// Stop 返回时 miniaudio 已停止调用数据回调。可重复调用。
func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.device.IsStarted() {
		return nil
	}
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		s.closed = true
		s.device.Uninit()
		s.mu.Unlock()
	})
	return nil
}
