package session

// IdleState is the sub-state-machine spec.md §9 calls for: an overlay
// independent of the phase timer, ticking on every wall-clock second
// while its gating condition (WAITING, or paused) holds.
type IdleState string

const (
	IdleActive  IdleState = "ACTIVE"
	IdleIdle    IdleState = "IDLE"
	IdleWarning IdleState = "WARNING"
)

// IdleConfig carries the four thresholds spec.md §4.1.2/§4.1.3 hard-codes
// (30m/15m for WAITING, 10m/5m for paused), pulled from config.Config so
// they are tunable per deployment rather than literal constants.
type IdleConfig struct {
	WaitingWarnSeconds  int
	WaitingForceSeconds int
	PausedWarnSeconds   int
	PausedForceSeconds  int
}

// DefaultIdleConfig matches spec.md's literal values exactly.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		WaitingWarnSeconds:  30 * 60,
		WaitingForceSeconds: 15 * 60,
		PausedWarnSeconds:   10 * 60,
		PausedForceSeconds:  5 * 60,
	}
}

// armWaitingIdle starts the WAITING idle overlay already in IDLE, per
// spec.md §4.1.3's literal "Initial idle_seconds_left = 30*60, state IDLE".
func (s *Session) armWaitingIdle() {
	s.idleState = IdleIdle
	s.idleSecondsLeft = s.idleCfg.WaitingWarnSeconds
}

// armPausedIdle starts the paused-idle overlay per spec.md §4.1.2.
func (s *Session) armPausedIdle() {
	s.idleState = IdleIdle
	s.idleSecondsLeft = s.idleCfg.PausedWarnSeconds
}

func (s *Session) disarmIdle() {
	s.idleState = IdleActive
	s.idleSecondsLeft = 0
}

// idleOutcome reports what a tick's idle-overlay decrement produced, so
// the caller can decide what to do without this function reaching into
// phase-transition logic directly.
type idleOutcome int

const (
	idleNoop idleOutcome = iota
	idleWarnedOnly
	idleExpired // WAITING: destroy session (cancellation). Paused: force END.
)

// tickIdleCounter decrements idle_seconds_left by one and walks the
// ACTIVE/IDLE/WARNING transitions of spec.md §4.1.2/§4.1.3.
// warnSecondsOnRollover is the window to set when IDLE reaches zero and
// rolls into WARNING.
func tickIdleCounter(state *IdleState, secondsLeft *int, warnSecondsOnRollover int) idleOutcome {
	if *state == IdleActive {
		return idleNoop
	}
	*secondsLeft--
	if *secondsLeft >= 0 {
		return idleNoop
	}
	switch *state {
	case IdleIdle:
		*state = IdleWarning
		*secondsLeft = warnSecondsOnRollover
		return idleWarnedOnly
	case IdleWarning:
		return idleExpired
	default:
		return idleNoop
	}
}
