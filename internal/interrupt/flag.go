package interrupt

import "sync/atomic"

// Flag 是进程内的信号源，供嵌入方（如 PTT 守护进程客户端或热键监听）直接触发。
type Flag struct {
	toggle atomic.Bool
	start  atomic.Bool
	notify chan struct{}
}

// NewFlag 创建进程内信号源。
func NewFlag() *Flag {
	return &Flag{notify: make(chan struct{}, 1)}
}

// RaiseToggle 触发 toggle 信号。
func (f *Flag) RaiseToggle() {
	f.toggle.Store(true)
	f.wake()
}

// RaiseStart 触发 start 信号。
func (f *Flag) RaiseStart() {
	f.start.Store(true)
	f.wake()
}

// ConsumeStart 由下游录音逻辑调用，清除 start 信号。
func (f *Flag) ConsumeStart() { f.start.Store(false) }

// Reset 清除所有信号。
func (f *Flag) Reset() {
	f.toggle.Store(false)
	f.start.Store(false)
}

func (f *Flag) wake() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *Flag) ToggleRequested() (bool, error) { return f.toggle.Load(), nil }

func (f *Flag) ConsumeToggle() error {
	f.toggle.Store(false)
	return nil
}

func (f *Flag) StartRequested() (bool, error) { return f.start.Load(), nil }

// Notify 实现 Notifier。
func (f *Flag) Notify() <-chan struct{} { return f.notify }
