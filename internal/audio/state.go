package audio

import (
	"sync"

	"github.com/iabetor/voxout/internal/logger"
)

// State 表示播放器当前的生命周期状态。
type State int

const (
	// StateIdle 空闲，没有打开的输出流。
	StateIdle State = iota
	// StateLoaded 样本已处理并切块，正在打开输出流。
	StateLoaded
	// StateStreaming 设备回调正在取块播放。
	StateStreaming
	// StateCompleted 播放自然结束。
	StateCompleted
	// StateInterrupted 播放被 Stop 或 PTT 打断。
	StateInterrupted
	// StateErrored 打开或启动设备失败。
	StateErrored
)

var stateNames = [...]string{
	"Idle",
	"Loaded",
	"Streaming",
	"Completed",
	"Interrupted",
	"Errored",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建一个初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
	}
}

// SetOnChange 注册状态变化时的回调函数。
// 外部用它感知"正在说话"状态（进入/离开 Streaming）。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态。只有合法的转换才会生效：
//
//	Idle      → Loaded                             （play 开始）
//	Loaded    → Streaming | Errored                （设备启动成功/失败）
//	Streaming → Completed | Interrupted | Errored
//	Loaded    → Interrupted                        （设备启动前被 stop）
//
// 任何状态都可以转换到 Idle（拆除输出流后）。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Debugf("[state] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[state] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// ForceIdle 无条件重置状态为 Idle。
func (sm *StateMachine) ForceIdle() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.current
	sm.current = StateIdle
	if from != StateIdle {
		logger.Debugf("[state] 强制重置 %s → Idle", from)
		if sm.onChange != nil {
			sm.onChange(from, StateIdle)
		}
	}
}

// validTransition 检查状态转换是否合法。
func validTransition(from, to State) bool {
	if to == StateIdle {
		return from != StateIdle
	}
	switch from {
	case StateIdle:
		return to == StateLoaded
	case StateLoaded:
		return to == StateStreaming || to == StateCompleted || to == StateErrored || to == StateInterrupted
	case StateStreaming:
		return to == StateCompleted || to == StateInterrupted || to == StateErrored
	}
	return false
}
