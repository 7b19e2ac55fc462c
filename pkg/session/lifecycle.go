package session

import "github.com/looplab/fsm"

// Lifecycle states, per spec.md section 3: a session is created on first
// packet, goes active, and is destroyed on watchdog-dead or explicit
// unbind. Modeled with looplab/fsm, adapted from the teacher's REFER
// subscription state machine (pkg/dialog/refer_fsm.go).
const (
	StateIdle   = "idle"
	StateActive = "active"
	StateDead   = "dead"
)

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: "first_packet", Src: []string{StateIdle}, Dst: StateActive},
			{Name: "kill", Src: []string{StateIdle, StateActive}, Dst: StateDead},
		}, nil,
	)
}
