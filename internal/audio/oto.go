package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto 每个进程只能有一个 context，采样率和声道数在创建时固定。
var (
	otoMu       sync.Mutex
	otoCtx      *oto.Context
	otoRate     int
	otoChannels int
)

func otoContext(sampleRate, channels, framesPerBuffer int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if sampleRate != otoRate || channels != otoChannels {
			return nil, fmt.Errorf("%w: oto 已固定为 %d Hz/%d 声道，请求 %d Hz/%d 声道",
				ErrInvalidFormat, otoRate, otoChannels, sampleRate, channels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(framesPerBuffer) * time.Second / time.Duration(sampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 oto 失败: %w", err)
	}
	<-ready

	otoCtx, otoRate, otoChannels = ctx, sampleRate, channels
	return ctx, nil
}

// OtoBackend 通过 ebitengine/oto 播放。oto 从 reader 拉取数据，
// 回调在 oto 的读取协程上运行。不做重采样，所有流必须与第一个流格式一致。
type OtoBackend struct{}

// NewOtoBackend 创建 oto 后端，context 在第一次 Open 时创建。
func NewOtoBackend() *OtoBackend {
	return &OtoBackend{}
}

// Open 创建一个 oto 播放器，尚未启动。
func (b *OtoBackend) Open(cfg StreamConfig, cb Callback) (Stream, error) {
	ctx, err := otoContext(cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer)
	if err != nil {
		return nil, err
	}
	r := &otoReader{
		gate:     callbackGate{cb: cb},
		channels: cfg.Channels,
		scratch:  make([]float32, cfg.FramesPerBuffer*cfg.Channels),
	}
	return &otoStream{reader: r, player: ctx.NewPlayer(r)}, nil
}

// otoReader 把回调适配成 io.Reader。
type otoReader struct {
	mu       sync.Mutex
	gate     callbackGate
	channels int
	scratch  []float32
	stopped  bool
}

func (r *otoReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.gate.finished {
		return 0, io.EOF
	}
	frames := len(p) / (4 * r.channels)
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.channels
	if n > cap(r.scratch) {
		r.scratch = make([]float32, n)
	}
	buf := r.scratch[:n]
	r.gate.fill(buf, frames)
	PutFloat32LE(p[:4*n], buf)
	return 4 * n, nil
}

func (r *otoReader) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

type otoStream struct {
	reader *otoReader
	player *oto.Player
	once   sync.Once
}

func (s *otoStream) Start() error {
	s.player.Play()
	return nil
}

// Stop 之后 Read 只返回 EOF，回调不再进入。
func (s *otoStream) Stop() error {
	s.reader.stop()
	s.player.Pause()
	return nil
}

func (s *otoStream) Close() error {
	var err error
	s.once.Do(func() { err = s.player.Close() })
	return err
}
