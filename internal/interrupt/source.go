// Package interrupt 提供按键说话（PTT）打断信号源。
//
// 播放器只依赖 Source 接口：toggle 信号被检测到后由播放器消费，
// start 信号保留给下游的录音逻辑消费。
package interrupt

// Signal 是一次检查得到的打断信号。
type Signal int

const (
	// SignalNone 没有打断请求。
	SignalNone Signal = iota
	// SignalToggle 统一的 PTT toggle 信号，优先级最高，检测到后被消费。
	SignalToggle
	// SignalStart 旧版 PTT start 信号，检测到后保留。
	SignalStart
)

var signalNames = [...]string{
	"none",
	"toggle",
	"start",
}

func (s Signal) String() string {
	if int(s) < len(signalNames) {
		return signalNames[s]
	}
	return "unknown"
}

// Source 是打断信号源。
type Source interface {
	// ToggleRequested 报告是否存在 toggle 信号。
	ToggleRequested() (bool, error)
	// ConsumeToggle 清除 toggle 信号。
	ConsumeToggle() error
	// StartRequested 报告是否存在 start 信号。
	StartRequested() (bool, error)
}

// Notifier 由事件驱动的信号源实现，信号可能出现时向 channel 发送通知，
// 让等待方不必等到下一次轮询。
type Notifier interface {
	Notify() <-chan struct{}
}

// Check 按优先级检查信号源：toggle 优先且被消费，start 不消费。
// toggle 检查出错时仍会继续检查 start，错误随结果一并返回。
func Check(src Source) (Signal, error) {
	toggle, toggleErr := src.ToggleRequested()
	if toggleErr == nil && toggle {
		if err := src.ConsumeToggle(); err != nil {
			return SignalToggle, err
		}
		return SignalToggle, nil
	}

	start, err := src.StartRequested()
	if err != nil {
		return SignalNone, err
	}
	if start {
		return SignalStart, toggleErr
	}
	return SignalNone, toggleErr
}
