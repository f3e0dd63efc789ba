// Package devloop coalesces source changes into serialized rebuilds.
//
// Machine is the pure rebuild state machine. Coordinator owns one Machine
// inside a single goroutine and turns triggers into build runs, so at most
// one build is ever in flight and the last change of a burst is always
// followed by a completed build.
package devloop

// State is the rebuild state.
type State int

const (
	// Idle means no build is running.
	Idle State = iota
	// Building means one build is running and no change arrived since it started.
	Building
	// BuildQueued means a build is running and at least one change arrived
	// since it started, so exactly one more build will follow.
	BuildQueued
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case BuildQueued:
		return "build-queued"
	default:
		return "unknown"
	}
}

// Machine is the rebuild state machine. The zero value is Idle.
type Machine struct {
	state State
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Change records a source change and reports whether a build should start now.
func (m *Machine) Change() bool {
	switch m.state {
	case Idle:
		m.state = Building
		return true
	case Building, BuildQueued:
		m.state = BuildQueued
	}
	return false
}

// Done records that the running build finished and reports whether a
// queued build should start.
func (m *Machine) Done() bool {
	switch m.state {
	case BuildQueued:
		m.state = Building
		return true
	case Building:
		m.state = Idle
	}
	return false
}
