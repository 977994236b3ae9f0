package websocket

import (
	"github.com/interactive-quiz/session-engine/modules/interactive/domain/session"
)

// LeaderFrame is the inbound leader command frame of spec.md §6.1.
type LeaderFrame struct {
	InteractiveStatus string `json:"interactive_status"`
}

// Command maps an inbound interactive_status string to a session.Command,
// per spec.md §6.1's enumerated values. ok is false for anything else,
// which the caller silently drops per spec.md §4.4's malformed-frame rule.
func (f LeaderFrame) Command() (session.Command, bool) {
	switch f.InteractiveStatus {
	case "going":
		return session.CommandGoing, true
	case "pause":
		return session.CommandPause, true
	case "more_pause":
		return session.CommandMorePause, true
	case "end":
		return session.CommandEnd, true
	default:
		return "", false
	}
}

// ParticipantFrame is the inbound participant answer frame of spec.md
// §6.1. The wire ids are strings rather than the spec's literal `int`:
// this engine identifies answers by uuid.UUID throughout (DESIGN.md),
// so the frame carries the same string-encoded uuid the rest of the
// system's JSON surfaces use.
type ParticipantFrame struct {
	AnswerID   *string  `json:"answer_id,omitempty" validate:"omitempty,uuid"`
	AnswerIDs  []string `json:"answer_ids,omitempty" validate:"omitempty,dive,uuid"`
	AnswerText *string  `json:"answer_text,omitempty"`
}

// PauseState is the outbound {state, timer_n} object of spec.md §6.1.
type PauseState struct {
	State  string `json:"state"`
	TimerN int    `json:"timer_n"`
}

// Stage names match session.Phase lowercased, per spec.md §6.1's
// stage enum.
const (
	StageWaiting    = "waiting"
	StageCountdown  = "countdown"
	StageQuestion   = "question"
	StageDiscussion = "discussion"
	StageEnd        = "end"
)

// StageFor maps a session.Phase to its outbound stage string.
func StageFor(p session.Phase) string {
	switch p {
	case session.PhaseWaiting:
		return StageWaiting
	case session.PhaseCountdown:
		return StageCountdown
	case session.PhaseQuestion:
		return StageQuestion
	case session.PhaseDiscussion:
		return StageDiscussion
	default:
		return StageEnd
	}
}

// OutboundFrame is the outbound envelope of spec.md §6.1:
// {stage, data, pause?, data_answers?, winners?, score?}, plus the
// DISCUSSION-only correct-answer-id(s) field spec.md §4.1 requires
// (a single AnswerID for SINGLE, a slice for MULTI; omitted for TEXT).
type OutboundFrame struct {
	Stage          string      `json:"stage"`
	Data           interface{} `json:"data,omitempty"`
	Pause          *PauseState `json:"pause,omitempty"`
	DataAnswers    interface{} `json:"data_answers,omitempty"`
	CorrectAnswers interface{} `json:"correct_answers,omitempty"`
	Winners        interface{} `json:"winners,omitempty"`
	Score          interface{} `json:"score,omitempty"`
}
