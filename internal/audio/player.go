package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/iabetor/voxout/internal/dsp"
	"github.com/iabetor/voxout/internal/interrupt"
	"github.com/iabetor/voxout/internal/logger"
	"github.com/iabetor/voxout/internal/metrics"
)

const (
	// DefaultBufferSize 每次设备回调的帧数，也是切块大小。
	DefaultBufferSize = 2048
	// DefaultPollInterval WaitWithInterrupt 的默认轮询间隔。
	DefaultPollInterval = 50 * time.Millisecond
)

var (
	// ErrPlayerClosed 播放器已关闭后再调用 Play。
	ErrPlayerClosed = errors.New("播放器已关闭")
	// ErrInvalidFormat 采样率或声道数不合法。
	ErrInvalidFormat = errors.New("音频格式不合法")
)

// 播放结果，用作日志和指标标签。
const (
	outcomeCompleted   = "completed"
	outcomeInterrupted = "interrupted"
	outcomeTimeout     = "timeout"
	outcomeError       = "error"
)

// PlayerConfig 播放器配置。
type PlayerConfig struct {
	// BufferSize 每次回调的帧数，<= 0 时使用 DefaultBufferSize。
	BufferSize int
	// DSPEnabled 为 false 时样本原样播放。
	DSPEnabled bool
	// DSP 首次播放时用它创建处理链；零值时使用 dsp.VoiceDefaults()。
	DSP dsp.Config
	// Chain 外部注入的处理链，非空时忽略 DSP 字段。
	Chain *dsp.Chain
	// Interrupt PTT 信号源，为空时 WaitWithInterrupt 等价于 Wait。
	Interrupt interrupt.Source
	Metrics   *metrics.Recorder
	// OnStateChange 状态变化通知，进入/离开 Streaming 即开始/停止说话。
	// 在状态锁内调用，不能再调用 Player 的方法。
	OnStateChange func(from, to State)
}

// Player 非阻塞音频播放器。同一时刻最多一个输出流。
type Player struct {
	backend Backend
	cfg     PlayerConfig
	state   *StateMachine
	metrics *metrics.Recorder

	// playMu 串行化 Play，处理链不支持并发调用。
	playMu sync.Mutex
	chain  *dsp.Chain

	mu      sync.Mutex
	closed  bool
	current *playback
	stream  Stream
	lastErr error
}

// NewPlayer 创建播放器。backend 负责打开实际的输出设备。
func NewPlayer(backend Backend, cfg PlayerConfig) *Player {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.DSP == (dsp.Config{}) {
		cfg.DSP = dsp.VoiceDefaults()
	}

	p := &Player{
		backend: backend,
		cfg:     cfg,
		state:   NewStateMachine(),
		metrics: cfg.Metrics,
		chain:   cfg.Chain,
	}
	p.state.SetOnChange(func(from, to State) {
		if to == StateStreaming || from == StateStreaming {
			p.metrics.SetSpeaking(to == StateStreaming)
		}
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(from, to)
		}
	})
	return p
}

// playback 是一次播放请求在音频线程上的状态。
type playback struct {
	id          string
	queue       *chunkQueue
	channels    int
	chunkFrames int
	frames      int
	started     time.Time
	metrics     *metrics.Recorder

	// 仅音频线程访问
	cur chunk
	pos int

	underruns atomic.Int64
	natural   atomic.Bool
	done      chan struct{}
	once      sync.Once
}

func newPlayback(channels, chunkFrames int) *playback {
	return &playback{
		id:          uuid.NewString()[:8],
		channels:    channels,
		chunkFrames: chunkFrames,
		done:        make(chan struct{}),
	}
}

// finish 设置完成事件，只生效一次。natural 表示是否自然播完。
func (pb *playback) finish(natural bool) {
	pb.once.Do(func() {
		pb.natural.Store(natural)
		close(pb.done)
	})
}

func (pb *playback) completed() bool {
	select {
	case <-pb.done:
		return true
	default:
		return false
	}
}

// wait 等待完成事件，timeout <= 0 表示一直等。超时返回 false。
func (pb *playback) wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-pb.done
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-pb.done:
		return true
	case <-t.C:
		return false
	}
}

// fill 是设备回调体：按块出队，块内保留游标，设备请求的帧数与块大小
// 不一致时也不丢数据。不加锁、不做 I/O。
func (pb *playback) fill(out []float32, frames int) CallbackResult {
	want := frames * pb.channels
	if want > len(out) {
		want = len(out)
	}
	written := 0
	for written < want {
		if pb.pos >= len(pb.cur.data) {
			if pb.lastChunkDone() {
				clear(out[written:])
				pb.finish(true)
				return CallbackComplete
			}
			next, ok := pb.queue.pop()
			if !ok {
				// 欠载：补静音，继续回调
				clear(out[written:])
				pb.underruns.Add(1)
				pb.metrics.Underrun()
				return CallbackContinue
			}
			if next.end {
				clear(out[written:])
				pb.finish(true)
				return CallbackComplete
			}
			pb.cur, pb.pos = next, 0
		}
		n := copy(out[written:want], pb.cur.data[pb.pos:])
		pb.pos += n
		written += n
	}
	clear(out[want:])

	// 末尾不完整的块在同一次回调中结束播放
	if pb.pos >= len(pb.cur.data) && pb.lastChunkDone() {
		pb.finish(true)
		return CallbackComplete
	}
	return CallbackContinue
}

// lastChunkDone 当前块是否为末尾的不完整块。
func (pb *playback) lastChunkDone() bool {
	return pb.cur.data != nil && pb.cur.frames < pb.chunkFrames
}

// Play 处理并开始播放交错排列的 float32 样本，立即返回。
// 正在播放的上一段会先被停止。打开或启动设备失败时返回错误，
// 该错误也会在随后的 Wait 中再次返回。
func (p *Player) Play(samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("%w: 采样率 %d, 声道数 %d", ErrInvalidFormat, sampleRate, channels)
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.mu.Lock()
	closed, active := p.closed, p.stream != nil
	p.mu.Unlock()
	if closed {
		return ErrPlayerClosed
	}
	if active {
		logger.Debugf("[audio] 上一段播放尚未结束，先停止")
		p.Stop()
	}
	p.state.ForceIdle()

	if rest := len(samples) % channels; rest != 0 {
		logger.Warnf("[audio] 样本数 %d 不是声道数 %d 的整数倍，丢弃末尾 %d 个样本", len(samples), channels, rest)
		samples = samples[:len(samples)-rest]
	}

	pb := newPlayback(channels, p.cfg.BufferSize)
	pb.metrics = p.metrics
	pb.frames = len(samples) / channels

	p.mu.Lock()
	p.lastErr = nil
	p.current = pb
	p.mu.Unlock()
	p.state.Transition(StateLoaded)

	if pb.frames == 0 {
		logger.Debugf("[audio] %s 没有样本，直接结束", pb.id)
		pb.finish(true)
		p.metrics.Playback(outcomeCompleted, 0)
		p.state.Transition(StateCompleted)
		p.state.Transition(StateIdle)
		return nil
	}

	processed := p.process(samples, sampleRate, channels)
	pb.queue = newChunkQueue(splitChunks(processed, channels, p.cfg.BufferSize))

	stream, err := p.backend.Open(StreamConfig{
		SampleRate:      sampleRate,
		Channels:        channels,
		FramesPerBuffer: p.cfg.BufferSize,
	}, pb.fill)
	if err != nil {
		return p.fail(pb, fmt.Errorf("打开输出设备失败: %w", err))
	}

	pb.started = time.Now()
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()

	if err := stream.Start(); err != nil {
		p.mu.Lock()
		p.stream = nil
		p.mu.Unlock()
		_ = stream.Close()
		return p.fail(pb, fmt.Errorf("启动输出设备失败: %w", err))
	}
	p.state.Transition(StateStreaming)

	logger.Debugf("[audio] %s 开始播放: %d 帧, %d Hz, %d 声道, %d 块",
		pb.id, pb.frames, sampleRate, channels, pb.queue.len()-1)
	return nil
}

// PlayBlocking 播放并等待结束，timeout <= 0 表示一直等。
func (p *Player) PlayBlocking(samples []float32, sampleRate, channels int, timeout time.Duration) error {
	if err := p.Play(samples, sampleRate, channels); err != nil {
		return err
	}
	return p.Wait(timeout)
}

// process 通过处理链处理样本。处理链出错时记录日志并播放未处理的样本。
func (p *Player) process(samples []float32, sampleRate, channels int) []float32 {
	if !p.cfg.DSPEnabled {
		return samples
	}
	if p.chain == nil {
		cfg := p.cfg.DSP
		cfg.SampleRate = sampleRate
		p.chain = dsp.NewChain(cfg)
	}

	out, err := p.runChain(samples, sampleRate, channels)
	if err == nil {
		return out
	}

	for _, e := range multierr.Errors(err) {
		var se *dsp.StageError
		if errors.As(e, &se) {
			p.metrics.DSPFailure(se.Stage)
		} else {
			p.metrics.DSPFailure("chain")
		}
	}
	if out == nil {
		logger.Warnf("[audio] DSP 处理失败，播放原始音频: %v", err)
		return samples
	}
	logger.Warnf("[audio] DSP 部分处理级失败，已旁路: %v", err)
	return out
}

func (p *Player) runChain(samples []float32, sampleRate, channels int) (out []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("处理链 panic: %v", r)
		}
	}()
	return p.chain.ProcessInterleaved(samples, sampleRate, channels)
}

// fail 记录设备错误并结束本次播放。
func (p *Player) fail(pb *playback, err error) error {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()

	pb.finish(false)
	pb.queue.drain()
	p.state.Transition(StateErrored)
	p.state.Transition(StateIdle)
	p.metrics.Playback(outcomeError, 0)
	logger.Errorf("[audio] %s 播放失败: %v", pb.id, err)
	return err
}

// Wait 等待当前播放结束并拆除输出流，timeout <= 0 表示一直等。
// 超时只记录日志；返回 Play 中发生的设备错误。
func (p *Player) Wait(timeout time.Duration) error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()

	outcome := ""
	if pb != nil && !pb.wait(timeout) {
		logger.Warnf("[audio] %s 等待播放结束超时 (%v)，强制停止", pb.id, timeout)
		outcome = outcomeTimeout
	}
	p.teardown(pb, outcome)
	return p.err()
}

// WaitWithInterrupt 等待播放结束，期间按 pollInterval 检查 PTT 信号。
// 信号源实现 interrupt.Notifier 时会被提前唤醒。
// 返回 (true, false) 表示自然播完，(false, true) 表示被 PTT 打断，
// (false, false) 表示超时或被 Stop。
func (p *Player) WaitWithInterrupt(timeout, pollInterval time.Duration) (completed, interrupted bool, err error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb == nil {
		return false, false, p.err()
	}

	src := p.cfg.Interrupt
	if src == nil {
		err := p.Wait(timeout)
		return pb.completed() && pb.natural.Load(), false, err
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	var notify <-chan struct{}
	if n, ok := src.(interrupt.Notifier); ok {
		notify = n.Notify()
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !pb.completed() {
		sig, cerr := interrupt.Check(src)
		if cerr != nil {
			logger.Debugf("[audio] 检查 PTT 信号出错: %v", cerr)
		}
		if sig != interrupt.SignalNone {
			logger.Infof("[audio] %s 播放中检测到 PTT %s 信号，停止播放", pb.id, sig)
			p.metrics.Interrupt(sig.String())
			p.stop(pb)
			return false, true, p.err()
		}

		select {
		case <-pb.done:
		case <-ticker.C:
		case <-notify:
		case <-deadline:
			logger.Warnf("[audio] %s 等待播放结束超时 (%v)，强制停止", pb.id, timeout)
			p.teardown(pb, outcomeTimeout)
			return false, false, p.err()
		}
	}

	p.teardown(pb, "")
	return pb.natural.Load(), false, p.err()
}

// Stop 立即停止播放，可重复调用。
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	p.stop(pb)
}

// stop 停止 pb。pb 已被新的播放替换时什么也不做。
func (p *Player) stop(pb *playback) {
	if pb == nil {
		return
	}
	pb.finish(false)
	p.teardown(pb, "")
}

// teardown 停止并关闭 pb 的输出流，然后清空队列。
// 只拆除仍是当前播放的 pb，旧的等待方醒来时不会影响新的播放。
// outcome 为空时按完成事件判断是自然结束还是被打断。
func (p *Player) teardown(pb *playback, outcome string) {
	p.mu.Lock()
	if pb == nil || p.current != pb || p.stream == nil {
		p.mu.Unlock()
		return
	}
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()

	if err := stream.Stop(); err != nil {
		logger.Warnf("[audio] %s 停止输出流失败: %v", pb.id, err)
	}
	if err := stream.Close(); err != nil {
		logger.Warnf("[audio] %s 关闭输出流失败: %v", pb.id, err)
	}
	// 回调已停止，之后才能安全地清空队列
	dropped := pb.queue.drain()
	pb.finish(false)

	if outcome == "" {
		outcome = outcomeInterrupted
		if pb.natural.Load() {
			outcome = outcomeCompleted
		}
	}
	if n := pb.underruns.Load(); n > 0 {
		logger.Debugf("[audio] %s 播放期间欠载 %d 次", pb.id, n)
	}

	elapsed := time.Since(pb.started)
	p.metrics.Playback(outcome, elapsed)
	if outcome == outcomeCompleted {
		p.state.Transition(StateCompleted)
		logger.Debugf("[audio] %s 播放完成 (%v)", pb.id, elapsed.Round(time.Millisecond))
	} else {
		p.state.Transition(StateInterrupted)
		logger.Debugf("[audio] %s 播放结束: %s, 丢弃 %d 块", pb.id, outcome, dropped)
	}
	p.state.Transition(StateIdle)
}

func (p *Player) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Speaking 是否正在播放。
func (p *Player) Speaking() bool {
	return p.state.Current() == StateStreaming
}

// State 返回当前状态。
func (p *Player) State() State {
	return p.state.Current()
}

// Close 停止播放并释放后端持有的设备上下文。
func (p *Player) Close() {
	p.Stop()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if c, ok := p.backend.(Closer); ok {
		c.Close()
	}
}
