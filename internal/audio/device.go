package audio

import "github.com/iabetor/voxout/internal/logger"

// CallbackResult 是设备回调体的三态返回值，由后端解释。
type CallbackResult int

const (
	// CallbackContinue 继续回调。
	CallbackContinue CallbackResult = iota
	// CallbackComplete 本次缓冲已填好，之后输出静音且不再进入回调体。
	CallbackComplete
	// CallbackAbort 立即停止，本次缓冲按静音处理。
	CallbackAbort
)

// Callback 在音频线程上被调用，把 frames 帧交错 float32 样本写入 out
// （长度为 frames*channels）。不得阻塞。
type Callback func(out []float32, frames int) CallbackResult

// StreamConfig 描述要打开的输出流。
type StreamConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Backend 打开输出流。
type Backend interface {
	Open(cfg StreamConfig, cb Callback) (Stream, error)
}

// Stream 是已打开的输出流。Stop 返回时回调不再运行。
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Closer 由持有设备上下文的后端实现。
type Closer interface {
	Close()
}

// callbackGate 把三态结果落实为后端行为：一旦返回 Complete 或 Abort，
// 之后的调用只输出静音。只在音频线程上使用。
// onFinish 在第一次 Complete 或 Abort 时调用一次，不得阻塞。
type callbackGate struct {
	cb       Callback
	onFinish func()
	finished bool
}

func (g *callbackGate) fill(out []float32, frames int) {
	if g.finished {
		clear(out)
		return
	}
	switch g.cb(out, frames) {
	case CallbackContinue:
		return
	case CallbackComplete:
	case CallbackAbort:
		clear(out)
	}
	g.finished = true
	if g.onFinish != nil {
		g.onFinish()
	}
}

// stopOnFinish 等到回调结束后在当前协程调用 stop。设备不能在自己的
// 数据回调里停止，所以由后端另起协程执行。quit 关闭时直接返回。
func stopOnFinish(finished, quit <-chan struct{}, stop func() error) {
	select {
	case <-finished:
		if err := stop(); err != nil {
			logger.Warnf("[audio] 回调结束后停止输出设备失败: %v", err)
		}
	case <-quit:
	}
}
