package widget

import (
	"sync"
	"time"
)

// Nudge timings.
const (
	NudgeDelay      = 30 * time.Second
	NudgeVisibleFor = 10 * time.Second
)

type nudgeState int

const (
	nudgeIdle nudgeState = iota
	nudgeArmed
	nudgeVisible
	nudgeDone
)

// Nudge is a one-shot prompt: armed once, shown once, then gone for good.
type Nudge struct {
	mu       sync.Mutex
	clock    Clock
	state    nudgeState
	timer    Timer
	onChange func()
}

func newNudge(clock Clock, onChange func()) *Nudge {
	if onChange == nil {
		onChange = func() {}
	}
	return &Nudge{clock: clock, onChange: onChange}
}

// Arm starts the countdown. It reports false if the nudge was armed before.
func (n *Nudge) Arm() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != nudgeIdle {
		return false
	}
	n.state = nudgeArmed
	n.timer = n.clock.AfterFunc(NudgeDelay, n.show)
	return true
}

// Visible reports whether the nudge bubble is showing.
func (n *Nudge) Visible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == nudgeVisible
}

// Disarm hides the nudge and prevents it from ever showing again.
func (n *Nudge) Disarm() {
	n.mu.Lock()
	wasVisible := n.state == nudgeVisible
	n.state = nudgeDone
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	if wasVisible {
		n.onChange()
	}
}

func (n *Nudge) show() {
	n.mu.Lock()
	if n.state != nudgeArmed {
		n.mu.Unlock()
		return
	}
	n.state = nudgeVisible
	n.timer = n.clock.AfterFunc(NudgeVisibleFor, n.hide)
	n.mu.Unlock()

	n.onChange()
}

func (n *Nudge) hide() {
	n.mu.Lock()
	if n.state != nudgeVisible {
		n.mu.Unlock()
		return
	}
	n.state = nudgeDone
	n.timer = nil
	n.mu.Unlock()

	n.onChange()
}
