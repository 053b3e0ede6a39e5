// Package typing 实现助手回复的逐字揭示动画。
//
// 动画只在完整文本已经拿到之后才开始：这里不做网络流式输出，
// 只是为了节奏感模拟逐步揭示。状态机为 Idle → Animating → Idle。
package typing

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrBusy    = errors.New("typing: animation already in progress")
	ErrStopped = errors.New("typing: animator stopped")
)

// Scheduler 把一次 tick 延后执行。生产环境用 time.AfterFunc，
// 测试里用手动调度器确定性地推进虚拟时间。
type Scheduler interface {
	Schedule(d time.Duration, fn func())
}

type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// Animator 按固定间隔把全文逐字写入目标消息。
// 同一时刻最多只有一个动画任务；揭示粒度是一个 rune。
type Animator struct {
	interval time.Duration
	sched    Scheduler

	mu      sync.Mutex
	target  string
	full    []rune
	cursor  int
	write   func(id, content string)
	done    func(id string)
	stopped bool
}

func New(interval time.Duration, sched Scheduler) *Animator {
	if sched == nil {
		sched = TimerScheduler{}
	}
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}
	return &Animator{interval: interval, sched: sched}
}

// Start 进入 Animating。write 在每个 tick 收到当前前缀，
// done 在前缀到达全文长度、任务回到 Idle 时收到通知。
// 已有任务在跑时返回 ErrBusy，拆除之后返回 ErrStopped。
func (a *Animator) Start(messageID, fullText string, write func(id, content string), done func(id string)) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return ErrStopped
	}
	if a.target != "" {
		a.mu.Unlock()
		return ErrBusy
	}

	a.target = messageID
	a.full = []rune(fullText)
	a.cursor = 0
	a.write = write
	a.done = done

	// 空文本没有 tick 可走，直接落定终态
	if len(a.full) == 0 {
		a.target, a.full, a.write, a.done = "", nil, nil, nil
		a.mu.Unlock()
		if write != nil {
			write(messageID, "")
		}
		if done != nil {
			done(messageID)
		}
		return nil
	}

	a.mu.Unlock()
	a.sched.Schedule(a.interval, a.tick)
	return nil
}

func (a *Animator) tick() {
	a.mu.Lock()
	// 拆除后的存活检查：已被 Stop 丢弃的 tick 不再写入任何内容
	if a.stopped || a.target == "" {
		a.mu.Unlock()
		return
	}

	a.cursor++
	id := a.target
	content := string(a.full[:a.cursor])
	finished := a.cursor >= len(a.full)
	write, done := a.write, a.done
	if finished {
		a.target, a.full, a.write, a.done = "", nil, nil, nil
	}
	a.mu.Unlock()

	if write != nil {
		write(id, content)
	}
	if finished {
		if done != nil {
			done(id)
		}
		return
	}
	a.sched.Schedule(a.interval, a.tick)
}

// TargetID 返回当前动画目标消息的 ID，Idle 时为空串。
// 其它组件据此避免并发修改正在动画中的消息。
func (a *Animator) TargetID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

func (a *Animator) Active() bool {
	return a.TargetID() != ""
}

// Stop 在组件拆除时调用。已写入的前缀保持原样，不回滚；
// 之后再触发的 tick 一律不再写入。
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.target, a.full, a.write, a.done = "", nil, nil, nil
}
