package participant

import (
	"time"

	"github.com/interactive-quiz/session-engine/modules/interactive/domain/interactive"
)

// UserAnswer is spec.md §3's record, unique on (participant, question): a
// resubmit overwrites the prior row via C1's upsert semantics.
type UserAnswer struct {
	ParticipantID ID
	QuestionID    interactive.QuestionID
	Data          AnswerData
	IsCorrect     bool
	TimeSeconds   int
	CreatedAt     time.Time
}

// NewUserAnswer computes IsCorrect from the Question's Answers, never
// trusting the client (spec.md §3 invariant).
func NewUserAnswer(participantID ID, q interactive.Question, data AnswerData, timeSeconds int, createdAt time.Time) UserAnswer {
	return UserAnswer{
		ParticipantID: participantID,
		QuestionID:    q.ID,
		Data:          data,
		IsCorrect:     data.IsCorrect(q),
		TimeSeconds:   timeSeconds,
		CreatedAt:     createdAt,
	}
}
