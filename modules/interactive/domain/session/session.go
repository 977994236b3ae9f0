// Package session implements the per-interactive runtime state machine
// of spec.md §4.1 (C2): WAITING -> COUNTDOWN -> QUESTION -> DISCUSSION ->
// (QUESTION | END) -> END, with a pause/idle overlay and a single mutex
// protecting all mutable fields, per spec.md §5.
package session

import (
	"sync"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
)

// RecordQuestionTime is emitted by a tick that leaves QUESTION, carrying
// the aggregate time to persist via storage.Repository.RecordQuestionTime
// (spec.md §6.2). The caller performs the storage call with the mutex
// released, per spec.md §5.
type RecordQuestionTime struct {
	QuestionID interactive.QuestionID
	Seconds    int
}

// TickEvent reports what a single Tick produced, so the owning Engine
// can perform side effects (storage writes, broadcast, manager removal)
// outside the Session's mutex.
type TickEvent struct {
	Phase              Phase
	RecordQuestionTime *RecordQuestionTime
	Ended              bool
	EndedCompleted     bool // conducted=true: the session passed DISCUSSION before ending
}

// Snapshot is a point-in-time, lock-free copy of a Session's state for
// the Broadcast Projector (C4) to read after the mutex is released.
type Snapshot struct {
	Phase             Phase
	QuestionIndex     int
	Question          interactive.Question
	HasQuestion       bool
	Duration          int
	Remaining         int
	ElapsedOnQuestion int
	TickStep          int
	IdleState         IdleState
	IdleSecondsLeft   int
	Conducted         bool
}

// Session owns one interactive's live runtime state. All mutation goes
// through ApplyCommand/Tick, each of which takes the mutex for
// the minimum time needed to mutate local fields, per spec.md §5.
type Session struct {
	mu sync.Mutex

	def interactive.Interactive

	phase            Phase
	questionIndex    int
	currentQuestion  interactive.Question
	hasQuestion      bool
	passedDiscussion bool

	duration          int
	remaining         int
	elapsedOnQuestion int
	tickStep          int // 0 paused, 1 running

	idleState       IdleState
	idleSecondsLeft int
	idleCfg         IdleConfig

	conducted bool
}

// New constructs a Session in WAITING with the WAITING idle overlay
// armed, per spec.md §4.1.3.
func New(def interactive.Interactive, idleCfg IdleConfig) *Session {
	s := &Session{
		def:      def,
		phase:    PhaseWaiting,
		tickStep: 1,
		idleCfg:  idleCfg,
	}
	s.armWaitingIdle()
	return s
}

// ApplyCommand implements spec.md §4.1.1's leader-command table, with one
// deliberate deviation documented in DESIGN.md: an END command only sets
// conducted=true if the Session already passed at least one DISCUSSION,
// honoring invariant §8.4 over a literal reading of the table's middle
// column (which would set conducted=true for an END issued mid-COUNTDOWN
// or mid-first-QUESTION, before any DISCUSSION has occurred).
func (s *Session) ApplyCommand(cmd Command) TickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseWaiting:
		switch cmd {
		case CommandGoing:
			s.phase = PhaseCountdown
			s.duration = s.def.CountdownSeconds
			s.remaining = s.def.CountdownSeconds
			s.disarmIdle()
		case CommandMorePause:
			s.armWaitingIdle()
		case CommandEnd:
			s.transitionToEnd(false)
			return TickEvent{Phase: PhaseEnd, Ended: true}
		}
	case PhaseCountdown, PhaseQuestion, PhaseDiscussion:
		switch cmd {
		case CommandPause:
			if s.tickStep == 1 {
				s.tickStep = 0
				s.armPausedIdle()
			} else {
				s.tickStep = 1
				s.disarmIdle()
			}
		case CommandMorePause:
			if s.tickStep == 0 {
				s.armPausedIdle()
			}
		case CommandEnd:
			conducted := s.passedDiscussion
			s.transitionToEnd(conducted)
			return TickEvent{Phase: PhaseEnd, Ended: true, EndedCompleted: conducted}
		}
	case PhaseEnd:
		// all commands ignored once ended
	}
	return TickEvent{Phase: s.phase}
}

// Tick advances the Session by one second, per spec.md §4.1's coarse
// 1-second loop. It is the only place phase transitions and idle
// transitions happen outside of leader commands.
func (s *Session) Tick() TickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseEnd {
		return TickEvent{Phase: PhaseEnd, Ended: true, EndedCompleted: s.conducted}
	}

	if s.phase == PhaseWaiting {
		if tickIdleCounter(&s.idleState, &s.idleSecondsLeft, s.idleCfg.WaitingForceSeconds) == idleExpired {
			s.transitionToEnd(false)
			return TickEvent{Phase: PhaseEnd, Ended: true}
		}
		return TickEvent{Phase: PhaseWaiting}
	}

	if s.tickStep == 0 {
		if tickIdleCounter(&s.idleState, &s.idleSecondsLeft, s.idleCfg.PausedForceSeconds) == idleExpired {
			conducted := s.passedDiscussion
			s.transitionToEnd(conducted)
			return TickEvent{Phase: PhaseEnd, Ended: true, EndedCompleted: conducted}
		}
		return TickEvent{Phase: s.phase}
	}

	if s.phase == PhaseQuestion {
		s.elapsedOnQuestion++
	}
	s.remaining--

	if s.remaining >= 0 {
		return TickEvent{Phase: s.phase}
	}
	return s.advancePhase()
}

// advancePhase fires when remaining goes negative, implementing the
// COUNTDOWN->QUESTION->DISCUSSION->(QUESTION|END) chain of spec.md §4.1.
// Caller holds the mutex.
func (s *Session) advancePhase() TickEvent {
	switch s.phase {
	case PhaseCountdown:
		s.questionIndex = 0
		s.enterQuestion()
		return TickEvent{Phase: PhaseQuestion}

	case PhaseQuestion:
		rqt := &RecordQuestionTime{QuestionID: s.currentQuestion.ID, Seconds: s.elapsedOnQuestion}
		s.phase = PhaseDiscussion
		s.passedDiscussion = true
		s.duration = s.def.DiscussionSeconds
		s.remaining = s.def.DiscussionSeconds
		return TickEvent{Phase: PhaseDiscussion, RecordQuestionTime: rqt}

	case PhaseDiscussion:
		if s.questionIndex+1 < len(s.def.Questions) {
			s.questionIndex++
			s.enterQuestion()
			return TickEvent{Phase: PhaseQuestion}
		}
		s.transitionToEnd(true)
		return TickEvent{Phase: PhaseEnd, Ended: true, EndedCompleted: true}

	default:
		return TickEvent{Phase: s.phase}
	}
}

func (s *Session) enterQuestion() {
	q, _ := s.def.QuestionAt(s.questionIndex)
	s.currentQuestion = q
	s.hasQuestion = true
	s.elapsedOnQuestion = 0
	s.duration = s.def.AnswerSeconds
	s.remaining = s.def.AnswerSeconds
	s.phase = PhaseQuestion
}

func (s *Session) transitionToEnd(conducted bool) {
	s.phase = PhaseEnd
	s.conducted = conducted
	s.disarmIdle()
}

// IsAcceptingAnswers reports whether the Session is in QUESTION, the
// only phase Answer Ingest (C5) accepts submissions in (spec.md §4.4,
// §8 invariant 10).
func (s *Session) IsAcceptingAnswers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseQuestion
}

// CurrentQuestion returns the prefetched active question, if any.
func (s *Session) CurrentQuestion() (interactive.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentQuestion, s.hasQuestion
}

// ElapsedOnQuestion returns the current QUESTION phase's elapsed
// counter, used to stamp UserAnswer.time_seconds at the moment of
// validation (spec.md §5's ordering guarantee).
func (s *Session) ElapsedOnQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedOnQuestion
}

// InteractiveID returns the id of the Interactive this Session runs.
func (s *Session) InteractiveID() interactive.ID {
	return s.def.ID
}

// Snapshot takes a lock-free copy of the Session's state for broadcast
// projection, per spec.md §5's "take snapshots, release mutex, send".
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:             s.phase,
		QuestionIndex:     s.questionIndex,
		Question:          s.currentQuestion,
		HasQuestion:       s.hasQuestion,
		Duration:          s.duration,
		Remaining:         s.remaining,
		ElapsedOnQuestion: s.elapsedOnQuestion,
		TickStep:          s.tickStep,
		IdleState:         s.idleState,
		IdleSecondsLeft:   s.idleSecondsLeft,
		Conducted:         s.conducted,
	}
}

// Definition returns the immutable Interactive definition the Session
// was constructed from.
func (s *Session) Definition() interactive.Interactive {
	return s.def
}
